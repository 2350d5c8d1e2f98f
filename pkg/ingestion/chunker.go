package ingestion

import (
	"strings"
)

// targetTokens and overlapRatio implement spec §4.2 step 2: target ≈ 800
// tokens, 15% overlap, never split mid-sentence when a boundary exists
// within the last 20% of the window.
const (
	targetTokens = 800
	overlapRatio = 0.15
	boundarySpan = 0.20
)

// chunkText splits text into word-count windows, preferring to end a
// window at a sentence boundary found in its final boundarySpan fraction.
// Token count is approximated as whitespace-delimited word count (spec does
// not mandate a specific tokenizer).
func chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	overlap := int(float64(targetTokens) * overlapRatio)
	boundaryWindow := int(float64(targetTokens) * boundarySpan)

	var chunks []string
	start := 0
	for start < len(words) {
		end := start + targetTokens
		if end > len(words) {
			end = len(words)
		} else {
			end = preferSentenceBoundary(words, start, end, boundaryWindow)
		}

		chunks = append(chunks, strings.Join(words[start:end], " "))

		if end >= len(words) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// preferSentenceBoundary looks backward from end, within the last
// boundaryWindow words of [start,end), for a word ending in sentence
// punctuation, and returns just after it if found.
func preferSentenceBoundary(words []string, start, end, boundaryWindow int) int {
	floor := end - boundaryWindow
	if floor < start {
		floor = start
	}
	for i := end - 1; i >= floor; i-- {
		w := words[i]
		if strings.HasSuffix(w, ".") || strings.HasSuffix(w, "!") || strings.HasSuffix(w, "?") {
			return i + 1
		}
	}
	return end
}

// approxTokenCount is the same approximation chunkText uses, exposed for
// callers that need to record TokenCount on a Chunk.
func approxTokenCount(text string) int {
	return len(strings.Fields(text))
}
