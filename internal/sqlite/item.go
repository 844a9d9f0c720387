package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/repository"
)

// ItemRepository implements item.Repository for SQLite
type ItemRepository struct {
	db *DB
}

// NewItemRepository creates a new ItemRepository
func NewItemRepository(db *DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Put inserts the item and its ingest entry in one transaction. A known
// hash leaves both the item and the stream untouched.
func (r *ItemRepository) Put(ctx context.Context, it *item.Item) (item.PutResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return item.PutResult{}, storeError("begin transaction", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO items (hash, payload, source, mime, bytes, raw_path, status, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`
	result, err := tx.ExecContext(ctx, query,
		it.Hash,
		it.Payload,
		it.Source,
		it.Mime,
		it.Bytes,
		nullString(it.RawPath),
		string(it.Status),
		it.IngestedAt,
	)
	if err != nil {
		return item.PutResult{}, storeError("insert item", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return item.PutResult{}, storeError("get rows affected", err)
	}
	if rowsAffected == 0 {
		return item.PutResult{Created: false}, nil
	}

	payload, err := json.Marshal(eventlog.IngestPayload{Source: it.Source, Mime: it.Mime, Bytes: it.Bytes})
	if err != nil {
		return item.PutResult{}, fmt.Errorf("failed to encode ingest payload: %w", err)
	}
	entry := &eventlog.Entry{
		Stream:    eventlog.StreamIngest,
		Type:      eventlog.TypeIngested,
		ItemHash:  it.Hash,
		Payload:   payload,
		CreatedAt: it.IngestedAt,
	}
	if err := appendEntry(ctx, tx, entry); err != nil {
		return item.PutResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return item.PutResult{}, storeError("commit transaction", err)
	}
	return item.PutResult{Created: true, Entry: entry}, nil
}

// Get retrieves an item by hash
func (r *ItemRepository) Get(ctx context.Context, hash string) (*item.Item, error) {
	query := `
		SELECT hash, payload, source, mime, bytes, raw_path, status, ingested_at, decided_at
		FROM items
		WHERE hash = ?
	`
	it, err := scanItem(r.db.QueryRowContext(ctx, query, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, storeError("get item", err)
	}
	return it, nil
}

// List returns item refs, newest first
func (r *ItemRepository) List(ctx context.Context, opts item.ListOptions) ([]item.Ref, error) {
	query := `
		SELECT hash, source, status, bytes, ingested_at
		FROM items
		WHERE (? = '' OR status = ?)
		ORDER BY ingested_at DESC, hash ASC
		LIMIT ? OFFSET ?
	`
	rows, err := r.db.QueryContext(ctx, query, string(opts.Status), string(opts.Status), opts.Limit, opts.Offset)
	if err != nil {
		return nil, storeError("list items", err)
	}
	defer rows.Close()

	var refs []item.Ref
	for rows.Next() {
		var ref item.Ref
		var status string
		if err := rows.Scan(&ref.Hash, &ref.Source, &status, &ref.Bytes, &ref.IngestedAt); err != nil {
			return nil, storeError("scan item ref", err)
		}
		ref.Status = item.Status(status)
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate item rows", err)
	}
	return refs, nil
}

// Counts returns per-status totals
func (r *ItemRepository) Counts(ctx context.Context) (item.StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM items GROUP BY status`)
	if err != nil {
		return item.StatusCounts{}, storeError("count items", err)
	}
	defer rows.Close()

	var counts item.StatusCounts
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return item.StatusCounts{}, storeError("scan item count", err)
		}
		switch item.Status(status) {
		case item.StatusVoting:
			counts.Voting = n
		case item.StatusApproved:
			counts.Approved = n
		case item.StatusRejected:
			counts.Rejected = n
		}
	}
	if err := rows.Err(); err != nil {
		return item.StatusCounts{}, storeError("iterate item counts", err)
	}
	return counts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*item.Item, error) {
	var it item.Item
	var status string
	var rawPath sql.NullString
	var decidedAt sql.NullTime
	err := row.Scan(
		&it.Hash,
		&it.Payload,
		&it.Source,
		&it.Mime,
		&it.Bytes,
		&rawPath,
		&status,
		&it.IngestedAt,
		&decidedAt,
	)
	if err != nil {
		return nil, err
	}
	it.Status = item.Status(status)
	it.RawPath = rawPath.String
	if decidedAt.Valid {
		t := decidedAt.Time
		it.DecidedAt = &t
	}
	return &it, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
