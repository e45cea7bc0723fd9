// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store_test

import (
	"context"
	"testing"

	"github.com/finmem-dev/finmem/internal/embed"
	"github.com/finmem-dev/finmem/internal/store"
	"github.com/finmem-dev/finmem/internal/store/jsonledger"
	_ "github.com/finmem-dev/finmem/internal/store/sqlite"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v float64) *float64 { return &v }

func newTestBackends(t *testing.T) (store.Ledger, store.EmbeddingIndex) {
	t.Helper()
	dir := t.TempDir()

	ledger, err := jsonledger.Open(dir)
	require.NoError(t, err)

	index, err := store.NewEmbeddingIndex("sqlite", dir, embed.NewLocal(64))
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	return ledger, index
}

func newTestStore(t *testing.T) *store.TransactionStore {
	t.Helper()
	ledger, index := newTestBackends(t)
	return store.NewTransactionStore(ledger, index)
}

func input(desc, category string, amt float64) store.TransactionInput {
	return store.TransactionInput{
		Date:        "2026-02-01",
		Amount:      amount(amt),
		Category:    category,
		Description: desc,
	}
}

func storeAll(t *testing.T, ts *store.TransactionStore, inputs ...store.TransactionInput) []int64 {
	t.Helper()
	results := ts.Store(context.Background(), inputs)
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		require.NoError(t, r.Err)
		ids = append(ids, r.ID)
	}
	return ids
}

func TestStoreListRoundTrip(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	ids := storeAll(t, ts,
		input("coffee", "Food", -4.50),
		input("train", "Transport", -12),
		input("rent", "Bills", -1400),
	)

	page, total, err := ts.List(ctx, 3, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 3)

	for i, lt := range page {
		assert.Equal(t, ids[i], lt.ID)
		assert.Equal(t, int64(i)+1, lt.DisplayIndex)
	}
	assert.Less(t, ids[0], ids[1])
	assert.Less(t, ids[1], ids[2])
}

func TestStorePartialBatch(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	results := ts.Store(ctx, []store.TransactionInput{
		input("valid record", "Food", -5),
		{}, // no fields at all: empty raw text
	})
	require.Len(t, results, 2)

	require.NoError(t, results[0].Err)
	assert.Positive(t, results[0].ID)

	require.Error(t, results[1].Err)
	assert.True(t, finerr.IsInvalidInput(results[1].Err))

	page, total, err := ts.List(ctx, 20, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, page, 1)
	assert.Equal(t, "valid record", page[0].Description)
}

func TestStoreDerivesRawText(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	storeAll(t, ts, store.TransactionInput{
		Date:        "2026-03-01",
		Amount:      amount(-23.99),
		Merchant:    "Thai Palace",
		Description: "team dinner",
		Category:    "Food",
	})

	page, _, err := ts.List(ctx, 1, 0, "")
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t,
		"Date: 2026-03-01 Amount: -23.99 Merchant: Thai Palace Description: team dinner Category: Food",
		page[0].RawText)
}

func TestListPaginationBoundary(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	storeAll(t, ts, input("a", "", -1), input("b", "", -2), input("c", "", -3))

	page, total, err := ts.List(ctx, 20, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Empty(t, page)
}

func TestListRejectsNonPositiveLimit(t *testing.T) {
	ts := newTestStore(t)

	_, _, err := ts.List(context.Background(), 0, 0, "")
	require.Error(t, err)
	assert.True(t, finerr.IsInvalidInput(err))

	_, _, err = ts.List(context.Background(), 5, -1, "")
	require.Error(t, err)
	assert.True(t, finerr.IsInvalidInput(err))
}

func TestListCategoryFilter(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)

	storeAll(t, ts,
		input("coffee", "Food", -4),
		input("bus", "Transport", -3),
		input("lunch", "Food", -12),
	)

	page, total, err := ts.List(ctx, 20, 0, "Food")
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "coffee", page[0].Description)
	assert.Equal(t, "lunch", page[1].Description)
	assert.Equal(t, int64(3), page[1].DisplayIndex)
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	storeAll(t, ts, input("keep me", "", -1))

	removed, err := ts.Delete(ctx, nil, true, false)
	require.Error(t, err)
	assert.True(t, finerr.IsConfirmationRequired(err))
	assert.Zero(t, removed)

	_, total, err := ts.List(ctx, 20, 0, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestDeleteAll(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	storeAll(t, ts, input("a", "", -1), input("b", "", -2))

	removed, err := ts.Delete(ctx, nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	page, total, err := ts.List(ctx, 20, 0, "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, page)
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	ts := newTestStore(t)
	ids := storeAll(t, ts, input("doomed", "", -1))

	removed, err := ts.Delete(ctx, ids, false, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = ts.Delete(ctx, ids, false, true)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestDeleteRejectsEmptyIDList(t *testing.T) {
	ts := newTestStore(t)

	_, err := ts.Delete(context.Background(), nil, false, true)
	require.Error(t, err)
	assert.True(t, finerr.IsInvalidInput(err))
}

func TestLedgerAndIndexStayInStep(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)
	ts := store.NewTransactionStore(ledger, index)

	ids := storeAll(t, ts,
		input("a", "Food", -1),
		input("b", "Food", -2),
		input("c", "Bills", -3),
		input("d", "Food", -4),
	)

	_, err := ts.Delete(ctx, ids[1:3], false, true)
	require.NoError(t, err)

	storeAll(t, ts, input("e", "", -5))

	ledgerIDs, err := ledger.IDs(ctx)
	require.NoError(t, err)
	indexIDs, err := index.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledgerIDs, indexIDs)
}

func TestStoreRollsBackLedgerOnEmbedFailure(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)
	failing := &failingIndex{EmbeddingIndex: index, failAdds: 1}
	ts := store.NewTransactionStore(ledger, failing)

	results := ts.Store(ctx, []store.TransactionInput{
		input("will fail", "", -1),
		input("will succeed", "", -2),
	})
	require.Len(t, results, 2)
	require.Error(t, results[0].Err)
	require.NoError(t, results[1].Err)

	// The failed record's append was rolled back; the two stores agree.
	ledgerIDs, err := ledger.IDs(ctx)
	require.NoError(t, err)
	indexIDs, err := index.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledgerIDs, indexIDs)
	assert.Len(t, ledgerIDs, 1)
}

func TestDeleteRetriesIndexRemoval(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)
	failing := &failingIndex{EmbeddingIndex: index, failRemoves: 1}
	ts := store.NewTransactionStore(ledger, failing)

	ids := storeAll(t, ts, input("flaky delete", "", -1))

	// First Remove call fails, the retry succeeds.
	removed, err := ts.Delete(ctx, ids, false, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	indexIDs, err := index.IDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, indexIDs)
}

func TestDeleteEscalatesToInconsistent(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)
	failing := &failingIndex{EmbeddingIndex: index, failRemoves: 10}
	ts := store.NewTransactionStore(ledger, failing)

	ids := storeAll(t, ts, input("stuck", "", -1))

	removed, err := ts.Delete(ctx, ids, false, true)
	require.Error(t, err)
	assert.True(t, finerr.IsInconsistent(err))
	// The ledger side already removed the record.
	assert.Equal(t, int64(1), removed)

	// Reconcile drops the orphaned index entry.
	repaired, err := ts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	ledgerIDs, err := ledger.IDs(ctx)
	require.NoError(t, err)
	indexIDs, err := index.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledgerIDs, indexIDs)
}

func TestReconcileReindexesMissingEntries(t *testing.T) {
	ctx := context.Background()
	ledger, index := newTestBackends(t)

	// Simulate a crash between ledger append and index add.
	id, err := ledger.Append(ctx, store.Transaction{
		Description: "orphaned in ledger",
		RawText:     "Description: orphaned in ledger",
	})
	require.NoError(t, err)

	ts := store.NewTransactionStore(ledger, index)
	repaired, err := ts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, repaired)

	indexIDs, err := index.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{id}, indexIDs)

	// A clean store reconciles to zero repairs.
	repaired, err = ts.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, repaired)
}

// failingIndex wraps a real index and fails the first N Add or Remove calls.
type failingIndex struct {
	store.EmbeddingIndex
	failAdds    int
	failRemoves int
}

func (f *failingIndex) Add(ctx context.Context, id int64, text string, metadata map[string]any) error {
	if f.failAdds > 0 {
		f.failAdds--
		return finerr.New(finerr.CodeIndexEmbedUpstreamFailure, "injected embed failure")
	}
	return f.EmbeddingIndex.Add(ctx, id, text, metadata)
}

func (f *failingIndex) Remove(ctx context.Context, ids []int64) error {
	if f.failRemoves > 0 {
		f.failRemoves--
		return finerr.New(finerr.CodeIndexDatabaseFailure, "injected remove failure")
	}
	return f.EmbeddingIndex.Remove(ctx, ids)
}
