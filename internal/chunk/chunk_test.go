package chunk

import (
	"strings"
	"testing"
)

func TestSplit_Empty(t *testing.T) {
	t.Parallel()

	if got := Split("", 1000, 200); got != nil {
		t.Errorf("Split(\"\") = %v, want nil", got)
	}
}

func TestSplit_ShortTextReturnedVerbatim(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		size int
	}{
		{"single word", "hello", 1000},
		{"exactly size", strings.Repeat("a", 50), 50},
		{"one below size", strings.Repeat("a", 49), 50},
		{"multibyte runes", "こんにちは世界。短いテキスト。", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Split(tt.text, tt.size, 10)
			if len(got) != 1 {
				t.Fatalf("Split() returned %d chunks, want 1", len(got))
			}
			if got[0] != tt.text {
				t.Errorf("Split() = %q, want verbatim %q", got[0], tt.text)
			}
		})
	}
}

func TestSplit_CutsOnSentenceBoundary(t *testing.T) {
	t.Parallel()

	// First sentence ends within the backward scan window of the cut point,
	// so the first chunk should end right after the period.
	first := "This is the first sentence."
	second := " And here comes a second sentence that pushes the text past the chunk size limit for this test."
	text := first + second

	chunks := Split(text, 40, 10)
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want at least 2", len(chunks))
	}
	if chunks[0] != first {
		t.Errorf("first chunk = %q, want %q", chunks[0], first)
	}
}

func TestSplit_NoSentenceBoundaryForcesHardCut(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 2500)
	chunks := Split(text, 1000, 200)

	for i, c := range chunks {
		if len(c) > 1000 {
			t.Errorf("chunk %d has %d chars, want <= 1000", i, len(c))
		}
	}
	assertCoverage(t, text, chunks)
}

func TestSplit_OverlapNearSizeStillTerminates(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("word ", 500)
	chunks := Split(text, 100, 99)

	if len(chunks) == 0 {
		t.Fatal("Split() returned no chunks")
	}
	assertCoverage(t, text, chunks)
}

func TestSplit_OverlappingChunksShareText(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("abcdefghij", 30) // 300 chars, no sentence marks
	chunks := Split(text, 100, 20)

	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want at least 2", len(chunks))
	}
	// Consecutive chunks overlap by 20 chars when no boundary adjustment
	// happens.
	tail := chunks[0][len(chunks[0])-20:]
	if !strings.HasPrefix(chunks[1], tail) {
		t.Errorf("chunk 1 does not start with the 20-char tail of chunk 0")
	}
}

func TestSplit_InvalidParamsFallBackToDefaults(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("a. ", 1000)

	// Zero size and negative overlap must not panic or loop forever.
	if got := Split(text, 0, -5); len(got) == 0 {
		t.Error("Split() with invalid params returned no chunks")
	}
	// overlap >= size must not prevent progress.
	if got := Split(text, 100, 100); len(got) == 0 {
		t.Error("Split() with overlap == size returned no chunks")
	}
}

// assertCoverage verifies every position of the original text appears in at
// least one chunk: walking chunks in order, each chunk must occur somewhere
// at or before the furthest position covered so far, extending coverage to
// its end. Picking the furthest admissible occurrence makes the check exact
// even for repetitive text where a chunk matches in several places.
func assertCoverage(t *testing.T, text string, chunks []string) {
	t.Helper()

	runes := []rune(text)
	covered := 0
	for i, c := range chunks {
		cr := []rune(c)
		start := lastIndexRunesAtOrBefore(runes, cr, covered)
		if start < 0 {
			t.Fatalf("chunk %d does not occur at or before covered position %d", i, covered)
		}
		if end := start + len(cr); end > covered {
			covered = end
		}
	}
	if covered < len(runes) {
		t.Errorf("chunks cover %d of %d chars", covered, len(runes))
	}
}

// lastIndexRunesAtOrBefore returns the largest index <= limit at which needle
// occurs in haystack, or -1.
func lastIndexRunesAtOrBefore(haystack, needle []rune, limit int) int {
	if limit > len(haystack)-len(needle) {
		limit = len(haystack) - len(needle)
	}
	for i := limit; i >= 0; i-- {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func FuzzSplit_CoverageAndTermination(f *testing.F) {
	f.Add("The quick brown fox. Jumps over the lazy dog! Does it? Yes.", 30, 10)
	f.Add(strings.Repeat("abc", 500), 100, 99)
	f.Add("", 1000, 200)
	f.Add("日本語のテキスト。句点で区切る。", 10, 3)
	f.Add("no sentence terminators at all just words", 8, 2)

	f.Fuzz(func(t *testing.T, text string, size, overlap int) {
		if size > 1<<16 || size < -1<<16 || overlap > 1<<16 || overlap < -1<<16 {
			t.Skip("sizes outside realistic range")
		}

		chunks := Split(text, size, overlap)

		if text == "" {
			if chunks != nil {
				t.Fatalf("empty text produced %d chunks", len(chunks))
			}
			return
		}
		if len(chunks) == 0 {
			t.Fatal("non-empty text produced no chunks")
		}

		// Every character must appear in the concatenation of chunks, and the
		// first chunk must anchor at the start of the text.
		if !strings.HasPrefix(text, chunks[0]) {
			t.Errorf("first chunk %q is not a prefix of the text", chunks[0])
		}
		last := chunks[len(chunks)-1]
		if !strings.HasSuffix(text, last) {
			t.Errorf("last chunk %q is not a suffix of the text", last)
		}
	})
}
