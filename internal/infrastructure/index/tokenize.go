// Package index provides the per-query in-memory rankers: a TF-IDF vector
// space and a BM25 lexical index built over the same chunk corpus. Nothing
// here survives the query that built it.
package index

import (
	"strings"
	"unicode"
)

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 24)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func termCounts(tokens []string) map[string]int {
	if len(tokens) == 0 {
		return nil
	}
	out := make(map[string]int, len(tokens))
	for _, t := range tokens {
		out[t]++
	}
	return out
}
