package pipeline

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize and DefaultChunkOverlap are the windowing parameters
	// for document text, in characters.
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

var (
	reLineEndings   = regexp.MustCompile(`\r\n|\r`)
	reBlankRuns     = regexp.MustCompile(`\n{2,}`)
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// normalizeText cleans extracted document text: normalizes line endings,
// collapses runs of blank lines, strips trailing whitespace per line, and
// trims the whole string.
func normalizeText(s string) string {
	s = reLineEndings.ReplaceAllString(s, "\n")
	s = reBlankRuns.ReplaceAllString(s, "\n\n")
	s = reTrailingSpace.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// splitChunks cuts text into overlapping fixed-size windows. Chunking is
// deterministic: the same normalized text and parameters always yield the
// same ordered sequence. An empty input yields no chunks.
func splitChunks(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
