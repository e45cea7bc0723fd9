// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import "context"

// Ledger is the ordered, durable record of all transactions and the source
// of truth for identity and ordering. Iteration order equals insertion
// order. Only the TransactionStore mutates it.
type Ledger interface {
	// Append assigns the next unused id, appends the record, and persists
	// it. Persistence failure aborts the whole insertion.
	Append(ctx context.Context, tx Transaction) (int64, error)

	// Get returns the record with the given id, or ok=false if it does not
	// exist.
	Get(ctx context.Context, id int64) (tx Transaction, ok bool, err error)

	// GetPage returns up to limit records starting at offset in insertion
	// order, optionally filtered to a single category. Offset beyond the
	// end yields an empty slice, not an error.
	GetPage(ctx context.Context, limit, offset int, category string) ([]ListedTransaction, error)

	// IDs returns all live ids in insertion order.
	IDs(ctx context.Context) ([]int64, error)

	// Remove deletes matching records and returns the ids actually removed.
	// Unknown ids are silently ignored.
	Remove(ctx context.Context, ids []int64) ([]int64, error)

	// RemoveAll clears the ledger and returns the number of records removed.
	RemoveAll(ctx context.Context) (int64, error)

	// Count returns the number of live records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
