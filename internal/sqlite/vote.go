package sqlite

import (
	"context"
	"database/sql"

	"github.com/rpggio/semantix/internal/domain/vote"
	"github.com/rpggio/semantix/internal/repository"
)

// VoteRepository implements vote.Repository for SQLite
type VoteRepository struct {
	db *DB
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *DB) *VoteRepository {
	return &VoteRepository{db: db}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Upsert overwrites the voter's slot and returns the item's tally from the
// same transaction
func (r *VoteRepository) Upsert(ctx context.Context, v *vote.Vote) (vote.Tally, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return vote.Tally{}, storeError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO votes (item_hash, voter_id, label, delta, cast_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_hash, voter_id, label)
		DO UPDATE SET delta = excluded.delta, cast_at = excluded.cast_at
	`, v.ItemHash, v.VoterID, string(v.Label), v.Delta, v.CastAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return vote.Tally{}, repository.ErrNotFound
		}
		return vote.Tally{}, storeError("upsert vote", err)
	}

	if v.Quality != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO vote_quality (item_hash, voter_id, quality, cast_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(item_hash, voter_id)
			DO UPDATE SET quality = excluded.quality, cast_at = excluded.cast_at
		`, v.ItemHash, v.VoterID, *v.Quality, v.CastAt)
		if err != nil {
			return vote.Tally{}, storeError("upsert quality", err)
		}
	}

	tally, err := readTally(ctx, tx, v.ItemHash)
	if err != nil {
		return vote.Tally{}, err
	}

	if err := tx.Commit(); err != nil {
		return vote.Tally{}, storeError("commit transaction", err)
	}
	return tally, nil
}

// Tally returns the current tally for an item
func (r *VoteRepository) Tally(ctx context.Context, itemHash string) (vote.Tally, error) {
	return readTally(ctx, r.db, itemHash)
}

// List returns every stored contribution for an item
func (r *VoteRepository) List(ctx context.Context, itemHash string) ([]vote.Contribution, error) {
	return readContributions(ctx, r.db, itemHash)
}

func readTally(ctx context.Context, q querier, itemHash string) (vote.Tally, error) {
	contributions, err := readContributions(ctx, q, itemHash)
	if err != nil {
		return vote.Tally{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT voter_id, quality, cast_at
		FROM vote_quality
		WHERE item_hash = ?
		ORDER BY cast_at ASC, voter_id ASC
	`, itemHash)
	if err != nil {
		return vote.Tally{}, storeError("read quality inputs", err)
	}
	defer rows.Close()

	var qualities []vote.QualityInput
	for rows.Next() {
		var in vote.QualityInput
		if err := rows.Scan(&in.VoterID, &in.Quality, &in.CastAt); err != nil {
			return vote.Tally{}, storeError("scan quality input", err)
		}
		qualities = append(qualities, in)
	}
	if err := rows.Err(); err != nil {
		return vote.Tally{}, storeError("iterate quality rows", err)
	}

	return vote.NewTally(itemHash, contributions, qualities), nil
}

func readContributions(ctx context.Context, q querier, itemHash string) ([]vote.Contribution, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT voter_id, label, delta, cast_at
		FROM votes
		WHERE item_hash = ?
		ORDER BY voter_id ASC, label ASC
	`, itemHash)
	if err != nil {
		return nil, storeError("read votes", err)
	}
	defer rows.Close()

	var out []vote.Contribution
	for rows.Next() {
		var c vote.Contribution
		var label string
		if err := rows.Scan(&c.VoterID, &label, &c.Delta, &c.CastAt); err != nil {
			return nil, storeError("scan vote", err)
		}
		c.Label = vote.Label(label)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate vote rows", err)
	}
	return out, nil
}
