// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import "context"

// EmbeddingIndex maps transaction text to vectors and supports
// nearest-neighbor retrieval keyed by transaction id. Entries exist in 1:1
// correspondence with ledger records; only the TransactionStore mutates the
// index.
type EmbeddingIndex interface {
	// Add embeds text and stores the vector tagged with id. Adding the same
	// id twice replaces the previous entry (last write wins).
	Add(ctx context.Context, id int64, text string, metadata map[string]any) error

	// Remove deletes entries by id, ignoring unknown ids.
	Remove(ctx context.Context, ids []int64) error

	// RemoveAll clears the index.
	RemoveAll(ctx context.Context) error

	// IDs returns all indexed transaction ids.
	IDs(ctx context.Context) ([]int64, error)

	// Search embeds queryText and returns up to topK matches ordered by
	// descending similarity, ties broken by insertion order. An empty index
	// yields an empty result, not an error.
	Search(ctx context.Context, queryText string, topK int) ([]Match, error)

	Close() error
}
