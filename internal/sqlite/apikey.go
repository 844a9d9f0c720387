package sqlite

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"github.com/rpggio/semantix/internal/repository"
)

// APIKeyRepository resolves bearer tokens to principals
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// Add stores a token under principal. Only the token hash is kept.
func (r *APIKeyRepository) Add(ctx context.Context, token, principal, description string) error {
	if token == "" || principal == "" {
		return repository.ErrInvalidInput
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (key_hash, principal, created_at, description)
		VALUES (?, ?, ?, ?)
	`, HashToken(token), principal, time.Now().UTC(), nullString(description))
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return storeError("add api key", err)
	}
	return nil
}

// Resolve returns the principal for token and records its use.
func (r *APIKeyRepository) Resolve(ctx context.Context, token string) (string, error) {
	hash := HashToken(token)
	var principal string
	err := r.db.QueryRowContext(ctx, `SELECT principal FROM api_keys WHERE key_hash = ?`, hash).Scan(&principal)
	if errors.Is(err, sql.ErrNoRows) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", storeError("resolve api key", err)
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, time.Now().UTC(), hash); err != nil {
		return "", storeError("touch api key", err)
	}
	return principal, nil
}

// HashToken returns the stored form of a bearer token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
