package rag

import "github.com/casebook-ai/casebook/internal/chunk"

// Strategy selects how chunks are retrieved for a question.
type Strategy string

const (
	// StrategyNaive searches the chunk index directly.
	StrategyNaive Strategy = "naive"
	// StrategyParentDocument searches chunks but returns the full stories
	// they came from.
	StrategyParentDocument Strategy = "parent_document"
	// StrategyHybrid merges naive and parent-document results, dropping
	// near-duplicates.
	StrategyHybrid Strategy = "hybrid"
	// StrategyAgentic plans the question first and retrieves over multiple
	// steps.
	StrategyAgentic Strategy = "agentic"
)

// Method selects the search mechanism used by the naive strategy.
type Method string

const (
	// MethodSemantic is plain nearest-neighbor search.
	MethodSemantic Method = "semantic"
	// MethodKeyword biases the search toward the query's literal terms.
	MethodKeyword Method = "keyword"
	// MethodHybrid combines semantic and keyword results.
	MethodHybrid Method = "hybrid"
)

// Defaults for Config fields.
const (
	DefaultTopK                     = 5
	DefaultTemperature              = 1.0
	DefaultMaxTokens                = 2048
	DefaultMaxAgentSteps            = 3
	DefaultAgentConfidenceThreshold = 0.7
)

// Config carries the per-query retrieval and generation settings. Callers
// start from DefaultConfig and override what they need; Query repairs any
// invalid numeric field back to its default.
type Config struct {
	Strategy     Strategy `json:"strategy" mapstructure:"strategy"`
	ChunkSize    int      `json:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap" mapstructure:"chunk_overlap"`
	TopK         int      `json:"top_k" mapstructure:"top_k"`
	Method       Method   `json:"retrieval_method" mapstructure:"retrieval_method"`
	Temperature  float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int      `json:"max_tokens" mapstructure:"max_tokens"`

	// Agentic strategy settings.
	MaxAgentSteps            int     `json:"max_agent_steps" mapstructure:"max_agent_steps"`
	AgentConfidenceThreshold float64 `json:"agent_confidence_threshold" mapstructure:"agent_confidence_threshold"`
	EnableReflection         bool    `json:"enable_reflection" mapstructure:"enable_reflection"`
}

// DefaultConfig returns the standard settings: naive semantic retrieval with
// five results, and a three-step agent loop when the agentic strategy is
// chosen.
func DefaultConfig() Config {
	return Config{
		Strategy:                 StrategyNaive,
		ChunkSize:                chunk.DefaultSize,
		ChunkOverlap:             chunk.DefaultOverlap,
		TopK:                     DefaultTopK,
		Method:                   MethodSemantic,
		Temperature:              DefaultTemperature,
		MaxTokens:                DefaultMaxTokens,
		MaxAgentSteps:            DefaultMaxAgentSteps,
		AgentConfidenceThreshold: DefaultAgentConfidenceThreshold,
		EnableReflection:         true,
	}
}

// normalized returns a copy with unset or invalid fields repaired. Chunk
// overlap must stay strictly below chunk size so that segmentation always
// advances.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Strategy == "" {
		c.Strategy = d.Strategy
	}
	if c.Method == "" {
		c.Method = d.Method
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 4
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.Temperature < 0 {
		c.Temperature = d.Temperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.MaxAgentSteps <= 0 {
		c.MaxAgentSteps = d.MaxAgentSteps
	}
	if c.AgentConfidenceThreshold <= 0 || c.AgentConfidenceThreshold > 1 {
		c.AgentConfidenceThreshold = d.AgentConfidenceThreshold
	}
	return c
}

// ParseStrategy maps a string to a Strategy, defaulting to naive for
// anything unrecognized.
func ParseStrategy(s string) Strategy {
	switch Strategy(s) {
	case StrategyParentDocument, StrategyHybrid, StrategyAgentic:
		return Strategy(s)
	default:
		return StrategyNaive
	}
}

// ParseMethod maps a string to a Method, defaulting to semantic.
func ParseMethod(s string) Method {
	switch Method(s) {
	case MethodKeyword, MethodHybrid:
		return Method(s)
	default:
		return MethodSemantic
	}
}
