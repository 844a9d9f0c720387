package sqlite

import (
	"fmt"
	"strings"

	"github.com/rpggio/semantix/internal/repository"
)

func isForeignKeyViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeError marks a failure of the item or vote tables.
func storeError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, repository.ErrStoreUnavailable, err)
}

// streamError marks a failure of the stream log.
func streamError(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, repository.ErrStreamUnavailable, err)
}
