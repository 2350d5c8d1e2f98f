package retrieval

import (
	"math"
	"strings"

	"github.com/feustey/mcp/pkg/domain"
)

// BM25 parameters, the standard Robertson/Sparck-Jones defaults (spec §9
// Open Question: "pick a standard BM25 and document it").
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type lexicalHit struct {
	chunk domain.Chunk
	score float64
}

// bm25Rank scores every chunk in corpus against query and returns the top
// limit by descending score.
func bm25Rank(query string, corpus []domain.Chunk, limit int) []lexicalHit {
	if len(corpus) == 0 {
		return nil
	}

	qTerms := tokenize(query)
	if len(qTerms) == 0 {
		return nil
	}

	docTerms := make([][]string, len(corpus))
	totalLen := 0
	df := make(map[string]int)
	for i, c := range corpus {
		terms := tokenize(c.Text)
		docTerms[i] = terms
		totalLen += len(terms)
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(corpus))
	n := float64(len(corpus))

	hits := make([]lexicalHit, 0, len(corpus))
	for i, c := range corpus {
		tf := termFreq(docTerms[i])
		dl := float64(len(docTerms[i]))
		var score float64
		for _, qt := range qTerms {
			f := float64(tf[qt])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[qt])+0.5)/(float64(df[qt])+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*dl/avgLen))
		}
		if score > 0 {
			hits = append(hits, lexicalHit{chunk: c, score: score})
		}
	}

	sortLexicalHits(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

func termFreq(terms []string) map[string]int {
	out := make(map[string]int, len(terms))
	for _, t := range terms {
		out[t]++
	}
	return out
}

func sortLexicalHits(hits []lexicalHit) {
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}
}
