// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

// Package embed turns transaction text into fixed-size vectors for the
// embedding index. Implementations must be deterministic for identical
// input within a single configured provider and model.
package embed

import "context"

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the dimensionality of the output vectors.
	Dimensions() int
}
