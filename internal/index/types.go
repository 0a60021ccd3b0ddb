package index

// ContentType classifies what part of a story a chunk was derived from.
type ContentType string

// Content type values. FullDocument marks the synthesized aggregate passage
// used by parent-document retrieval; the others map to story fields.
const (
	ContentMain         ContentType = "main_content"
	ContentHighlights   ContentType = "highlights"
	ContentROIMetrics   ContentType = "roi_metrics"
	ContentChallenges   ContentType = "challenges_solutions"
	ContentCompetitor   ContentType = "competitor_info"
	ContentFullDocument ContentType = "full_document"
)

// Story is a raw customer case study as delivered by the crawler, keyed by
// URL. One story yields one chunk per text segment of Content plus one chunk
// per non-empty structured field.
type Story struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Company        string   `json:"company_name"`
	Industry       string   `json:"industry"`
	Content        string   `json:"content"`
	Highlights     []string `json:"highlights,omitempty"`
	ROIMetrics     []string `json:"roi_metrics,omitempty"`
	Challenges     []string `json:"challenges,omitempty"`
	Solutions      []string `json:"solutions,omitempty"`
	CompetitorInfo string   `json:"competitor_info,omitempty"`
}

// Chunk is the atomic unit of retrieval: a contiguous span of text from one
// story plus the metadata needed for source attribution. Chunks are immutable
// once created and owned by the index.
type Chunk struct {
	Text        string
	Source      string // story URL
	Title       string
	Company     string
	Industry    string
	ChunkIndex  int
	ContentType ContentType
}

// Stats summarizes the current index contents.
type Stats struct {
	Chunks        int
	Companies     int
	Industries    []string
	FullDocuments int
}

// UpsertSummary reports the outcome of an ingestion batch. Failures counts
// stories that could not be embedded or stored; ingestion continues past
// them.
type UpsertSummary struct {
	Stories  int
	Chunks   int
	Failures int
}
