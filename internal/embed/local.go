// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// DefaultLocalDimensions is the vector size of the local embedder. Small on
// purpose: the local embedder exists for offline operation and tests, not
// semantic quality.
const DefaultLocalDimensions = 256

// Compile-time interface check.
var _ Embedder = (*Local)(nil)

// Local is a deterministic feature-hashing embedder. Tokens are hashed into
// a fixed number of signed buckets and the result is L2-normalized, so
// identical text always produces identical unit vectors and token overlap
// translates into vector proximity. It needs no network and no model files.
type Local struct {
	dims int
}

// NewLocal creates a Local embedder with the given dimensionality.
// Non-positive dims falls back to DefaultLocalDimensions.
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = DefaultLocalDimensions
	}
	return &Local{dims: dims}
}

func (l *Local) Dimensions() int { return l.dims }

// Embed hashes the lowercased tokens of text into signed buckets and
// normalizes the result to unit length.
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, finerr.New(finerr.CodeTxValidateInvalidInput, "embed: text has no tokens")
	}

	vec := make([]float32, l.dims)
	for _, tok := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()

		bucket := int(sum % uint64(l.dims))
		// Use one hash bit as the sign so common tokens don't all push the
		// same direction.
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		// All buckets cancelled out; keep a stable non-zero vector.
		vec[0] = 1
		return vec, nil
	}

	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// tokenize lowercases text and splits it on any non-letter, non-digit rune.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
