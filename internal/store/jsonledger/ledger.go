// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

// Package jsonledger implements store.Ledger as a single JSON file holding
// an array of transactions in insertion order. Every mutation rewrites the
// file through a temp-file-and-rename, so a crash mid-write never corrupts
// the persisted ledger.
package jsonledger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/finmem-dev/finmem/internal/store"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// Filename is the ledger file name inside the data directory.
const Filename = "transactions.json"

// Compile-time interface check.
var _ store.Ledger = (*Ledger)(nil)

// Ledger holds the full record set in memory and flushes on every write.
// The internal mutex guards the in-memory state; cross-store serialization
// is the TransactionStore's job.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records []store.Transaction
	byID    map[int64]int // id -> position in records
	nextID  int64
}

// Open loads (or creates) the ledger file inside dataDir.
func Open(dataDir string) (*Ledger, error) {
	path := filepath.Join(dataDir, Filename)

	l := &Ledger{
		path:   path,
		byID:   map[int64]int{},
		nextID: 1,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, finerr.Wrapf(err, finerr.CodeLedgerLoadFailure, "reading ledger file %s", path)
	}

	if err := json.Unmarshal(raw, &l.records); err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeLedgerLoadFailure, "parsing ledger file %s", path)
	}

	for i, tx := range l.records {
		l.byID[tx.ID] = i
		if tx.ID >= l.nextID {
			l.nextID = tx.ID + 1
		}
	}

	return l, nil
}

// Append assigns the next id, appends the record, and flushes. On a flush
// failure the in-memory append is undone so state matches disk.
func (l *Ledger) Append(_ context.Context, tx store.Transaction) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx.ID = l.nextID
	l.records = append(l.records, tx)
	l.byID[tx.ID] = len(l.records) - 1

	if err := l.flush(); err != nil {
		l.records = l.records[:len(l.records)-1]
		delete(l.byID, tx.ID)
		return 0, err
	}

	l.nextID++
	return tx.ID, nil
}

// Get returns the record with the given id.
func (l *Ledger) Get(_ context.Context, id int64) (store.Transaction, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.byID[id]
	if !ok {
		return store.Transaction{}, false, nil
	}
	return l.records[pos], true, nil
}

// GetPage returns up to limit records starting at offset, optionally
// filtered to a single category. The offset addresses the filtered sequence;
// the display index on each record is its 1-based position in the full
// unfiltered order, which follows from the id ordering of the slice.
func (l *Ledger) GetPage(_ context.Context, limit, offset int, category string) ([]store.ListedTransaction, error) {
	if limit < 0 || offset < 0 {
		return nil, finerr.Errorf(finerr.CodeTxValidateInvalidInput,
			"limit and offset must be non-negative, got limit=%d offset=%d", limit, offset)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	page := []store.ListedTransaction{}
	skipped := 0
	for i, tx := range l.records {
		if category != "" && tx.Category != category {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(page) == limit {
			break
		}
		page = append(page, store.ListedTransaction{
			Transaction:  tx,
			DisplayIndex: int64(i) + 1,
		})
	}

	return page, nil
}

// IDs returns all live ids in insertion order.
func (l *Ledger) IDs(_ context.Context) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]int64, len(l.records))
	for i, tx := range l.records {
		ids[i] = tx.ID
	}
	return ids, nil
}

// Remove deletes matching records, ignoring unknown ids, and returns the ids
// actually removed. Relative order of the survivors is preserved.
func (l *Ledger) Remove(_ context.Context, ids []int64) ([]int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doomed := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if _, ok := l.byID[id]; ok {
			doomed[id] = true
		}
	}
	if len(doomed) == 0 {
		return nil, nil
	}

	prev := l.records
	kept := make([]store.Transaction, 0, len(prev)-len(doomed))
	removed := make([]int64, 0, len(doomed))
	for _, tx := range prev {
		if doomed[tx.ID] {
			removed = append(removed, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}

	l.records = kept
	l.reindex()

	if err := l.flush(); err != nil {
		l.records = prev
		l.reindex()
		return nil, err
	}

	return removed, nil
}

// RemoveAll clears the ledger and returns the number of records removed.
func (l *Ledger) RemoveAll(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.records
	l.records = nil
	l.reindex()

	if err := l.flush(); err != nil {
		l.records = prev
		l.reindex()
		return 0, err
	}

	return int64(len(prev)), nil
}

// Count returns the number of live records.
func (l *Ledger) Count(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return int64(len(l.records)), nil
}

// Close is a no-op: every mutation flushes, so there is nothing to tear
// down.
func (l *Ledger) Close() error { return nil }

// reindex rebuilds the id lookup after the record slice changed.
func (l *Ledger) reindex() {
	l.byID = make(map[int64]int, len(l.records))
	for i, tx := range l.records {
		l.byID[tx.ID] = i
	}
}

// flush writes the full record array to a temp file and renames it over the
// ledger file. Rename is atomic on POSIX filesystems, so readers (and the
// next startup) see either the old or the new ledger, never a partial one.
func (l *Ledger) flush() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return finerr.Wrap(err, finerr.CodeLedgerPersistFailure, "encoding ledger")
	}
	if l.records == nil {
		data = []byte("[]")
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return finerr.Wrapf(err, finerr.CodeLedgerPersistFailure, "writing ledger temp file %s", tmp)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return finerr.Wrapf(err, finerr.CodeLedgerPersistFailure, "replacing ledger file %s", l.path)
	}
	return nil
}
