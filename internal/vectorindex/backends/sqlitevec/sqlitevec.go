// Package sqlitevec is the on-disk vectorindex.Backend, selected with
// vectorBackend "sqlite-vec" (the default is the in-memory memvec backend): a sqlite-vec vec0
// virtual table driven through database/sql and mattn/go-sqlite3, with the
// sqlite-vec extension registered the way
// theRebelliousNerd-codenerd/internal/store/init_vec.go does it — via the
// vec.Auto() auto-load hook behind a cgo build tag.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/standardbeagle/gik/internal/model"
	"github.com/standardbeagle/gik/internal/vectorindex"
)

// Backend stores vectors in a vec0 virtual table inside a SQLite file
// database at <dir>/vectors.db.
type Backend struct {
	db  *sql.DB
	dim int
}

// Open opens (creating if absent) the SQLite file at dir/vectors.db. The
// vec0 table itself is created lazily on the first Create call, since its
// column width depends on VectorIndexMeta.Dimension.
func Open(dir string) (*Backend, error) {
	path := filepath.Join(dir, "vectors.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitevec: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers
	return &Backend{db: db}, nil
}

func (b *Backend) Name() string { return "sqlite-vec" }

func (b *Backend) Close() error { return b.db.Close() }

// Create (re)creates the vec0 table for the given dimension. The table is
// dropped first: the adapter only calls Create on a fresh base or from
// Reset's full rebuild (spec §4.5 step 3: "delete all records then
// upsert"), and a vec0 table's column width can't be altered once a
// different dimension is in use.
func (b *Backend) Create(ctx context.Context, meta model.VectorIndexMeta) error {
	b.dim = meta.Dimension
	if _, err := b.db.ExecContext(ctx, `DROP TABLE IF EXISTS vec_items`); err != nil {
		return fmt.Errorf("sqlitevec: drop vec0 table: %w", err)
	}
	_, err := b.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE VIRTUAL TABLE vec_items USING vec0(
			embedding float[%d],
			payload TEXT
		)`, meta.Dimension))
	if err != nil {
		return fmt.Errorf("sqlitevec: create vec0 table: %w", err)
	}
	return nil
}

func (b *Backend) Upsert(ctx context.Context, records []model.VectorRecord) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: begin tx: %w", err)
	}
	defer tx.Rollback()

	del, err := tx.PrepareContext(ctx, `DELETE FROM vec_items WHERE rowid = ?`)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: prepare delete: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO vec_items(rowid, embedding, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: prepare insert: %w", err)
	}

	for _, r := range records {
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return 0, fmt.Errorf("sqlitevec: marshal payload for id %d: %w", r.ID, err)
		}
		if _, err := del.ExecContext(ctx, r.ID); err != nil {
			return 0, fmt.Errorf("sqlitevec: delete existing id %d: %w", r.ID, err)
		}
		if _, err := ins.ExecContext(ctx, r.ID, encodeVector(r.Embedding), string(payload)); err != nil {
			return 0, fmt.Errorf("sqlitevec: insert id %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("sqlitevec: commit: %w", err)
	}
	return len(records), nil
}

func (b *Backend) Query(ctx context.Context, embedding []float32, topK int, filter map[string]any) ([]vectorindex.SearchHit, error) {
	if topK <= 0 {
		topK = 10
	}
	rows, err := b.db.QueryContext(ctx, `
		SELECT rowid, distance, payload
		FROM vec_items
		WHERE embedding MATCH ?
		ORDER BY distance
		LIMIT ?`, encodeVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("sqlitevec: query: %w", err)
	}
	defer rows.Close()

	var hits []vectorindex.SearchHit
	for rows.Next() {
		var id uint64
		var distance float64
		var payloadJSON string
		if err := rows.Scan(&id, &distance, &payloadJSON); err != nil {
			return nil, fmt.Errorf("sqlitevec: scan: %w", err)
		}
		var payload map[string]any
		if payloadJSON != "" {
			if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
				return nil, fmt.Errorf("sqlitevec: unmarshal payload: %w", err)
			}
		}
		if !matchesFilter(payload, filter) {
			continue
		}
		// vec0's MATCH distance is smaller-is-closer; invert so
		// SearchHit.Score is consistently larger-is-better across backends.
		hits = append(hits, vectorindex.SearchHit{ID: id, Score: -distance, Payload: payload})
	}
	return hits, rows.Err()
}

func (b *Backend) Delete(ctx context.Context, ids []uint64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM vec_items WHERE rowid IN (%s)`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: delete: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (b *Backend) Count(ctx context.Context) (int, error) {
	var n int
	err := b.db.QueryRowContext(ctx, `SELECT count(*) FROM vec_items`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlitevec: count: %w", err)
	}
	return n, nil
}

func (b *Backend) Exists(ctx context.Context) (bool, error) {
	var name string
	err := b.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='vec_items'`).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlitevec: exists check: %w", err)
	}
	return true, nil
}

func matchesFilter(payload map[string]any, filter map[string]any) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

// encodeVector serializes a []float32 to sqlite-vec's JSON array text
// input format, which vec0 accepts directly for both inserts and MATCH
// queries without needing the binary packing helpers.
func encodeVector(v []float32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%g", f)
	}
	sb.WriteByte(']')
	return sb.String()
}
