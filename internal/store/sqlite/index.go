// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FinMem Contributors

// Package sqlite implements store.EmbeddingIndex backed by SQLite with the
// sqlite-vec extension.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/finmem-dev/finmem/internal/embed"
	"github.com/finmem-dev/finmem/internal/store"
	finerr "github.com/finmem-dev/finmem/pkg/errors"
)

// Dirname is the index storage directory inside the data directory.
const Dirname = "vectors"

func init() {
	sqlite_vec.Auto()
	store.RegisterIndexBackend("sqlite", newIndex)
}

func newIndex(dataDir string, emb embed.Embedder) (store.EmbeddingIndex, error) {
	dir := filepath.Join(dataDir, Dirname)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, finerr.Wrapf(err, finerr.CodeIndexDatabaseFailure, "creating index directory %s", dir)
	}
	return NewIndex(filepath.Join(dir, "vectors.db"), emb)
}

// Compile-time interface check.
var _ store.EmbeddingIndex = (*Index)(nil)

// Index stores one vector per transaction id in a vec0 virtual table with a
// companion metadata table, and owns the embedder that turns text into
// vectors.
type Index struct {
	db  *sql.DB
	emb embed.Embedder
}

// NewIndex opens (or creates) a SQLite database at dbPath and initialises
// the vec0 virtual table sized to the embedder's dimensionality.
func NewIndex(dbPath string, emb embed.Embedder) (*Index, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "pinging sqlite db")
	}

	if err := migrate(db, emb.Dimensions()); err != nil {
		_ = db.Close()
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "migrating index tables")
	}

	return &Index{db: db, emb: emb}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS tx_vectors USING vec0(id TEXT PRIMARY KEY, embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating tx_vectors virtual table: %w", err)
	}

	const metaDDL = `
CREATE TABLE IF NOT EXISTS tx_vector_metadata (
	id       TEXT PRIMARY KEY,
	metadata TEXT NOT NULL DEFAULT '{}'
)`
	if _, err := db.Exec(metaDDL); err != nil {
		return fmt.Errorf("creating tx_vector_metadata table: %w", err)
	}

	return nil
}

// Add embeds text and upserts the vector and metadata for id. vec0 does not
// support ON CONFLICT, so the upsert is a delete-then-insert (last write
// wins).
func (x *Index) Add(ctx context.Context, id int64, text string, metadata map[string]any) error {
	vec, err := x.emb.Embed(ctx, text)
	if err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "serializing embedding")
	}

	metaJSON := []byte("{}")
	if len(metadata) > 0 {
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "marshalling metadata")
		}
	}

	key := formatID(id)

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tx_vectors WHERE id = ?`, key); err != nil {
		return finerr.Wrapf(err, finerr.CodeIndexDatabaseFailure, "deleting existing vector %s", key)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO tx_vectors(id, embedding) VALUES (?, ?)`, key, blob); err != nil {
		return finerr.Wrapf(err, finerr.CodeIndexDatabaseFailure, "inserting vector %s", key)
	}

	const metaQ = `INSERT INTO tx_vector_metadata(id, metadata) VALUES (?, ?)
ON CONFLICT(id) DO UPDATE SET metadata = excluded.metadata`
	if _, err := tx.ExecContext(ctx, metaQ, key, string(metaJSON)); err != nil {
		return finerr.Wrapf(err, finerr.CodeIndexDatabaseFailure, "upserting vector metadata %s", key)
	}

	if err := tx.Commit(); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "committing vector add")
	}
	return nil
}

// Search embeds queryText and performs a k-nearest-neighbor search. Results
// are ordered by ascending distance with ties broken by id (insertion
// order), and the returned score is the normalized similarity 1/(1+distance).
func (x *Index) Search(ctx context.Context, queryText string, topK int) ([]store.Match, error) {
	vec, err := x.emb.Embed(ctx, queryText)
	if err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(vec)
	if err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "serializing query vector")
	}

	const q = `SELECT id, distance
FROM tx_vectors
WHERE embedding MATCH ? AND k = ?
ORDER BY distance, CAST(id AS INTEGER)`

	rows, err := x.db.QueryContext(ctx, q, blob, topK)
	if err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "searching vectors")
	}
	defer func() { _ = rows.Close() }()

	var matches []store.Match
	for rows.Next() {
		var key string
		var distance float64

		if err := rows.Scan(&key, &distance); err != nil {
			return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "scanning search result")
		}

		id, err := parseID(key)
		if err != nil {
			return nil, err
		}

		matches = append(matches, store.Match{
			ID:    id,
			Score: 1 / (1 + distance),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "iterating search results")
	}

	return matches, nil
}

// Remove deletes vectors and their metadata by id, ignoring unknown ids.
func (x *Index) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = formatID(id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tx_vectors WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "deleting vectors")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tx_vector_metadata WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "deleting vector metadata")
	}

	if err := tx.Commit(); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "committing vector delete")
	}
	return nil
}

// RemoveAll clears the index.
func (x *Index) RemoveAll(ctx context.Context) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tx_vectors`); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "clearing vectors")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tx_vector_metadata`); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "clearing vector metadata")
	}

	if err := tx.Commit(); err != nil {
		return finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "committing index clear")
	}
	return nil
}

// IDs returns all indexed transaction ids in insertion order. The metadata
// table is queried instead of the virtual table because vec0 only supports
// full scans through KNN queries; our mutations keep the two tables in step.
func (x *Index) IDs(ctx context.Context) ([]int64, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT id FROM tx_vector_metadata ORDER BY CAST(id AS INTEGER)`)
	if err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "listing index ids")
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "scanning index id")
		}
		id, err := parseID(key)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, finerr.Wrap(err, finerr.CodeIndexDatabaseFailure, "iterating index ids")
	}

	return ids, nil
}

// Close closes the underlying database connection.
func (x *Index) Close() error {
	return x.db.Close()
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(key string) (int64, error) {
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return 0, finerr.Wrapf(err, finerr.CodeIndexDatabaseFailure, "parsing vector id %q", key)
	}
	return id, nil
}
