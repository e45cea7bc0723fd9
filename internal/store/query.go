// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import (
	"context"
	"log/slog"
	"strings"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// DefaultTopK is the number of results returned when the caller does not
// specify one.
const DefaultTopK = 10

// QueryEngine resolves free-text queries into ranked ledger records. It is
// read-only and shares the TransactionStore's read lock, so queries never
// observe a half-completed mutation.
type QueryEngine struct {
	store *TransactionStore
}

// NewQueryEngine creates a QueryEngine over the given store.
func NewQueryEngine(ts *TransactionStore) *QueryEngine {
	return &QueryEngine{store: ts}
}

// Query embeds text, retrieves the topK nearest index entries, and resolves
// them against the ledger. Index entries without a ledger record are a
// synchronization anomaly: they are skipped and logged rather than failing
// the query. Results preserve the index ranking order.
func (q *QueryEngine) Query(ctx context.Context, text string, topK int) ([]RankedTransaction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, finerr.New(finerr.CodeQueryValidateInvalidInput, "query text must not be empty")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	q.store.mu.RLock()
	defer q.store.mu.RUnlock()

	matches, err := q.store.index.Search(ctx, text, topK)
	if err != nil {
		return nil, err
	}

	results := make([]RankedTransaction, 0, len(matches))
	for _, m := range matches {
		tx, ok, err := q.store.ledger.Get(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			slog.Warn("index entry has no ledger record, skipping",
				"transaction_id", m.ID)
			continue
		}
		results = append(results, RankedTransaction{Transaction: tx, Score: m.Score})
	}

	return results, nil
}
