// Package chunk splits long text into overlapping segments on sentence
// boundaries. It is the ingestion-side counterpart of the document index:
// every story body passes through Split before embedding.
package chunk

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters between
// consecutive chunks.
const DefaultOverlap = 200

// boundaryScanWindow is how far Split scans backward from a forced cut point
// looking for a sentence terminator, so chunks avoid mid-sentence breaks.
const boundaryScanWindow = 200

// Split divides text into chunks of at most size characters with the given
// overlap between consecutive chunks. Counts are in runes, not bytes, so
// multi-byte characters are never split.
//
// When a cut would land mid-text, Split scans backward up to 200 characters
// for the nearest sentence terminator (. ! ?) and cuts there instead. The
// start position advances by size-overlap each round, clamped so that it
// always makes progress and never skips past the previous chunk's end; this
// guarantees termination and full coverage even when overlap approaches size.
//
// Empty text returns nil. Text with at most size characters is returned
// verbatim as a single chunk.
func Split(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 4
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/(size-overlap)+1)
	start := 0

	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// Prefer to cut just after a sentence terminator near the limit.
		cut := end
		limit := end - boundaryScanWindow
		if limit < start+1 {
			limit = start + 1
		}
		for i := end - 1; i >= limit; i-- {
			if r := runes[i]; r == '.' || r == '!' || r == '?' {
				cut = i + 1
				break
			}
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := start + (size - overlap)
		if next > cut {
			// The boundary scan shortened this chunk; stepping past its end
			// would leave uncovered text.
			next = cut
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}
