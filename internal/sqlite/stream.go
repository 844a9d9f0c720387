package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/semantix/internal/domain/eventlog"
	"github.com/rpggio/semantix/internal/domain/item"
	"github.com/rpggio/semantix/internal/repository"
)

// StreamRepository implements eventlog.Repository for SQLite
type StreamRepository struct {
	db *DB
}

// NewStreamRepository creates a new StreamRepository
func NewStreamRepository(db *DB) *StreamRepository {
	return &StreamRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEntry(ctx context.Context, ex execer, entry *eventlog.Entry) error {
	payload := string(entry.Payload)
	if payload == "" {
		payload = "{}"
	}
	result, err := ex.ExecContext(ctx, `
		INSERT INTO stream_entries (stream, event_type, item_hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		string(entry.Stream),
		entry.Type,
		nullString(entry.ItemHash),
		payload,
		entry.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", eventlog.ErrDuplicateDecision, entry.ItemHash)
		}
		return streamError("append stream entry", err)
	}
	offset, err := result.LastInsertId()
	if err != nil {
		return streamError("read stream offset", err)
	}
	entry.Offset = offset
	return nil
}

// Append stores an entry and sets its offset
func (r *StreamRepository) Append(ctx context.Context, entry *eventlog.Entry) error {
	return appendEntry(ctx, r.db, entry)
}

// Read returns entries of a stream with offsets greater than after
func (r *StreamRepository) Read(ctx context.Context, stream eventlog.Stream, after int64, limit int) ([]eventlog.Entry, error) {
	query := `
		SELECT seq, stream, event_type, item_hash, payload, created_at
		FROM stream_entries
		WHERE stream = ? AND seq > ?
		ORDER BY seq ASC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, string(stream), after, limit)
	if err != nil {
		return nil, streamError("read stream", err)
	}
	defer rows.Close()

	var entries []eventlog.Entry
	for rows.Next() {
		var e eventlog.Entry
		var name, payload string
		var itemHash sql.NullString
		if err := rows.Scan(&e.Offset, &name, &e.Type, &itemHash, &payload, &e.CreatedAt); err != nil {
			return nil, streamError("scan stream entry", err)
		}
		e.Stream = eventlog.Stream(name)
		e.ItemHash = itemHash.String
		e.Payload = []byte(payload)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, streamError("iterate stream rows", err)
	}
	return entries, nil
}

// Head returns the latest offset of a stream
func (r *StreamRepository) Head(ctx context.Context, stream eventlog.Stream) (int64, error) {
	var head sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM stream_entries WHERE stream = ?`, string(stream)).Scan(&head)
	if err != nil {
		return 0, streamError("read stream head", err)
	}
	return head.Int64, nil
}

// DecisionRepository implements the status compare-and-swap for SQLite
type DecisionRepository struct {
	db *DB
}

// NewDecisionRepository creates a new DecisionRepository
func NewDecisionRepository(db *DB) *DecisionRepository {
	return &DecisionRepository{db: db}
}

// Decide moves an item out of voting and appends its decision entry in one
// transaction. Only the caller that flips the status writes the entry.
func (r *DecisionRepository) Decide(ctx context.Context, hash string, status item.Status, entry *eventlog.Entry) (bool, error) {
	if err := item.ValidateTransition(item.StatusVoting, status); err != nil {
		return false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, storeError("begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET status = ?, decided_at = ?
		WHERE hash = ? AND status = ?
	`, string(status), nullTime(entry.CreatedAt), hash, string(item.StatusVoting))
	if err != nil {
		return false, storeError("update item status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, storeError("get rows affected", err)
	}
	if rowsAffected == 0 {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE hash = ?`, hash).Scan(&exists)
		if err != nil {
			return false, storeError("check item existence", err)
		}
		if exists == 0 {
			return false, repository.ErrNotFound
		}
		return false, nil
	}

	if err := appendEntry(ctx, tx, entry); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, storeError("commit transaction", err)
	}
	return true, nil
}
