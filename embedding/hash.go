package embedding

import (
	"context"
	"hash/fnv"
	"regexp"
	"strings"
)

var hashTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

var hashStopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in",
		"on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been",
		"it", "its", "this", "that", "these", "those", "from", "our", "we", "has",
		"have", "had", "not", "such", "into", "about", "than", "so", "which",
	}

	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}

	return m
}()

// NewHashFunc returns a deterministic, dependency free embedding that hashes
// each term into one of dim buckets with a hash derived sign. Texts that
// share vocabulary land close together. It needs no model server, which
// makes it suitable for tests and offline use.
func NewHashFunc(dim int) Func {
	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vector := make([]float32, dim)

		terms := hashTerms(text)
		for _, term := range terms {
			h := fnv.New64a()
			h.Write([]byte(term))
			sum := h.Sum64()

			bucket := int(sum % uint64(dim))
			if (sum>>63)&1 == 1 {
				vector[bucket] -= 1
			} else {
				vector[bucket] += 1
			}
		}

		// keep the vector non-zero so that it can always be normalised
		if isZero(vector) {
			vector[0] = 1
		}

		return vector, nil
	}
}

func hashTerms(text string) []string {
	raw := hashTokenPattern.FindAllString(strings.ToLower(text), -1)

	terms := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, stop := hashStopwords[t]; stop {
			continue
		}
		terms = append(terms, t)
	}

	if len(terms) == 0 {
		terms = append(terms, strings.Fields(strings.ToLower(text))...)
	}

	return terms
}

func isZero(vector []float32) bool {
	for _, v := range vector {
		if v != 0 {
			return false
		}
	}

	return true
}
