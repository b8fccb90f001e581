// Package lexical scores passages by query token overlap. It stands in for
// the cross-encoder when no rerank service is configured.
package lexical

import (
	"context"
	"strings"
	"unicode"
)

type Reranker struct{}

func New() *Reranker {
	return &Reranker{}
}

func (r *Reranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := toTokenSet(query)
	scores := make([]float64, len(texts))
	for i, text := range texts {
		tokens := splitAlphaNumLower(text)
		scores[i] = 0.8*tokenOverlap(queryTokens, toSet(tokens)) + 0.2*tokenDensity(queryTokens, tokens)
	}
	return scores, nil
}

// tokenOverlap is the share of distinct query tokens present in the chunk.
func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// tokenDensity is the share of chunk tokens that are query tokens.
func tokenDensity(query map[string]struct{}, chunk []string) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	hits := 0
	for _, token := range chunk {
		if _, ok := query[token]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(chunk))
}

func toTokenSet(s string) map[string]struct{} {
	return toSet(splitAlphaNumLower(s))
}

func toSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
