// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// TransactionStore composes the ledger and the embedding index and is the
// only component permitted to mutate both. It owns the invariant that every
// ledger record has exactly one index entry and vice versa, and serializes
// mutations so the two never diverge: Store and Delete run under the write
// lock, List and Query under the read lock.
type TransactionStore struct {
	mu     sync.RWMutex
	ledger Ledger
	index  EmbeddingIndex
}

// NewTransactionStore creates a TransactionStore over the given ledger and
// index. Callers should run Reconcile once at startup before serving.
func NewTransactionStore(ledger Ledger, index EmbeddingIndex) *TransactionStore {
	return &TransactionStore{ledger: ledger, index: index}
}

// Store persists a batch of transactions. Records are processed
// independently: a failed record does not abort the batch, and the per-record
// outcome is reported in the returned slice (same order as inputs).
//
// For each record the ledger append happens first; if the embedding step then
// fails, the append is rolled back before the failure is reported, so the two
// stores never diverge. A record whose derived raw text is empty is rejected
// with a validation error and not persisted.
func (s *TransactionStore) Store(ctx context.Context, inputs []TransactionInput) []StoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]StoreResult, 0, len(inputs))
	for i, in := range inputs {
		raw := in.RawText()
		if raw == "" {
			results = append(results, StoreResult{Err: finerr.New(
				finerr.CodeTxValidateInvalidInput,
				"transaction has no usable fields",
				finerr.Field("batch_index", i),
			)})
			continue
		}

		tx := Transaction{
			Date:        in.Date,
			Amount:      in.Amount,
			Category:    in.Category,
			Description: in.Description,
			Merchant:    in.Merchant,
			RawText:     raw,
			Metadata:    in.Metadata,
			CreatedAt:   time.Now().UTC(),
		}

		id, err := s.ledger.Append(ctx, tx)
		if err != nil {
			results = append(results, StoreResult{Err: finerr.Wrap(err,
				finerr.CodeLedgerPersistFailure, "appending transaction",
				finerr.Field("batch_index", i),
			)})
			continue
		}

		if err := s.index.Add(ctx, id, raw, in.Metadata); err != nil {
			if _, rbErr := s.ledger.Remove(ctx, []int64{id}); rbErr != nil {
				slog.Error("ledger rollback failed after embedding failure",
					"transaction_id", id, "embed_error", err, "rollback_error", rbErr)
				results = append(results, StoreResult{Err: finerr.Wrap(finerr.Join(err, rbErr),
					finerr.CodeTxSyncInconsistent,
					"embedding failed and ledger rollback failed",
					finerr.FieldTransactionID(id),
				)})
				continue
			}
			results = append(results, StoreResult{Err: err})
			continue
		}

		results = append(results, StoreResult{ID: id})
	}

	return results
}

// List returns a page of transactions in insertion order together with the
// total number of live records. The display index on each record is its
// position in the full unfiltered ledger order, not a position within the
// returned page.
func (s *TransactionStore) List(ctx context.Context, limit, offset int, category string) ([]ListedTransaction, int64, error) {
	if limit <= 0 {
		return nil, 0, finerr.Errorf(finerr.CodeTxValidateInvalidInput, "limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, 0, finerr.Errorf(finerr.CodeTxValidateInvalidInput, "offset must be non-negative, got %d", offset)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page, err := s.ledger.GetPage(ctx, limit, offset, category)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.ledger.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	return page, total, nil
}

// Delete removes transactions from both stores as one logical operation and
// returns how many were actually removed. It refuses to do anything without
// confirm. Unknown ids are ignored, so re-running a delete is safe.
//
// Ledger removal happens first; if index removal then fails it is retried
// once, and a store-inconsistent error is returned if it still fails — the
// next Reconcile (or a re-run of the delete) repairs the divergence.
func (s *TransactionStore) Delete(ctx context.Context, ids []int64, deleteAll, confirm bool) (int64, error) {
	if !confirm {
		return 0, finerr.New(finerr.CodeTxDeleteConfirmationRequired,
			"deletion requires confirm=true; no records were removed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if deleteAll {
		count, err := s.ledger.RemoveAll(ctx)
		if err != nil {
			return 0, finerr.Wrap(err, finerr.CodeLedgerPersistFailure, "clearing ledger")
		}
		if err := s.removeFromIndexWithRetry(ctx, nil, true); err != nil {
			return count, err
		}
		return count, nil
	}

	if len(ids) == 0 {
		return 0, finerr.New(finerr.CodeTxValidateInvalidInput,
			"delete requires a non-empty id list or delete_all=true")
	}

	removed, err := s.ledger.Remove(ctx, ids)
	if err != nil {
		return 0, finerr.Wrap(err, finerr.CodeLedgerPersistFailure, "removing transactions")
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if err := s.removeFromIndexWithRetry(ctx, removed, false); err != nil {
		return int64(len(removed)), err
	}

	return int64(len(removed)), nil
}

// removeFromIndexWithRetry performs the index side of a delete, retrying once
// before escalating to a store-inconsistent error.
func (s *TransactionStore) removeFromIndexWithRetry(ctx context.Context, ids []int64, all bool) error {
	remove := func() error {
		if all {
			return s.index.RemoveAll(ctx)
		}
		return s.index.Remove(ctx, ids)
	}

	err := remove()
	if err == nil {
		return nil
	}

	slog.Warn("index removal failed after ledger removal, retrying", "error", err)
	if err = remove(); err == nil {
		return nil
	}

	return finerr.Wrap(err, finerr.CodeTxSyncInconsistent,
		"index removal failed after ledger removal; re-run the delete or reconcile")
}

// Reconcile restores the 1:1 ledger/index correspondence after a crash or a
// partial failure: ledger records missing an index entry are re-embedded, and
// index entries without a ledger record are dropped. It returns the number of
// repairs made and is intended to run at startup, before the store serves
// requests.
func (s *TransactionStore) Reconcile(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledgerIDs, err := s.ledger.IDs(ctx)
	if err != nil {
		return 0, err
	}
	indexIDs, err := s.index.IDs(ctx)
	if err != nil {
		return 0, err
	}

	indexed := make(map[int64]bool, len(indexIDs))
	for _, id := range indexIDs {
		indexed[id] = true
	}
	inLedger := make(map[int64]bool, len(ledgerIDs))
	for _, id := range ledgerIDs {
		inLedger[id] = true
	}

	repaired := 0
	for _, id := range ledgerIDs {
		if indexed[id] {
			continue
		}
		tx, ok, err := s.ledger.Get(ctx, id)
		if err != nil {
			return repaired, err
		}
		if !ok {
			continue
		}
		if err := s.index.Add(ctx, id, tx.RawText, tx.Metadata); err != nil {
			return repaired, finerr.Wrap(err, finerr.CodeTxSyncInconsistent,
				"re-indexing ledger record during reconciliation",
				finerr.FieldTransactionID(id),
			)
		}
		slog.Info("reconciled missing index entry", "transaction_id", id)
		repaired++
	}

	var orphans []int64
	for _, id := range indexIDs {
		if !inLedger[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		if err := s.index.Remove(ctx, orphans); err != nil {
			return repaired, finerr.Wrap(err, finerr.CodeTxSyncInconsistent,
				"removing orphaned index entries during reconciliation")
		}
		slog.Info("reconciled orphaned index entries", "count", len(orphans))
		repaired += len(orphans)
	}

	return repaired, nil
}

// Close closes both underlying stores.
func (s *TransactionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.ledger.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.index.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return finerr.Join(errs...)
	}
	return nil
}
