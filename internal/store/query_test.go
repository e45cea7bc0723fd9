// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/finmem-dev/finmem/internal/store"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryRejectsEmptyText(t *testing.T) {
	ts := newTestStore(t)
	qe := store.NewQueryEngine(ts)

	_, err := qe.Query(context.Background(), "   ", 10)
	require.Error(t, err)
	assert.True(t, finerr.IsInvalidInput(err))
}

func TestQueryEmptyStoreReturnsEmpty(t *testing.T) {
	ts := newTestStore(t)
	qe := store.NewQueryEngine(ts)

	results, err := qe.Query(context.Background(), "coffee", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryExactTextRanksRecordFirst(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	qe := store.NewQueryEngine(ts)

	storeAll(t, ts,
		input("monthly rent payment", "Bills", -1400),
		input("espresso downtown", "Food", -4),
		input("weekly groceries", "Food", -80),
	)

	page, _, err := ts.List(ctx, 20, 0, "")
	require.NoError(t, err)
	target := page[1]

	results, err := qe.Query(ctx, target.RawText, 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, target.ID, results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestQueryRespectsTopK(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	qe := store.NewQueryEngine(ts)

	storeAll(t, ts,
		input("a", "", -1), input("b", "", -2), input("c", "", -3), input("d", "", -4),
	)

	results, err := qe.Query(ctx, "a", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestQueryDefaultsTopK(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	qe := store.NewQueryEngine(ts)

	inputs := make([]store.TransactionInput, 0, store.DefaultTopK+5)
	for i := 0; i < store.DefaultTopK+5; i++ {
		inputs = append(inputs, input("record", "", float64(-i-1)))
	}
	storeAll(t, ts, inputs...)

	results, err := qe.Query(ctx, "record", 0)
	require.NoError(t, err)
	assert.Len(t, results, store.DefaultTopK)
}

func TestQuerySkipsIndexEntriesWithoutLedgerRecord(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)
	ts := store.NewTransactionStore(ledger, index)
	qe := store.NewQueryEngine(ts)

	storeAll(t, ts, input("real record", "", -1))

	// Inject an index entry with no ledger counterpart.
	require.NoError(t, index.Add(ctx, 999, "phantom entry", nil))

	results, err := qe.Query(ctx, "phantom entry", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, int64(999), r.ID)
	}
}
