// Package checkpoint persists training consumer positions.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/buntdb"
)

const keyPrefix = "checkpoint:"

// ErrRegression indicates an attempt to move a checkpoint backwards.
var ErrRegression = errors.New("checkpoint offset regression")

// Checkpoint is the last approved-stream offset whose batch was committed.
type Checkpoint struct {
	RunKey       string    `json:"run_key"`
	Offset       int64     `json:"offset"`
	Batches      int       `json:"batches"`
	Processed    int       `json:"processed"`
	Skipped      int       `json:"skipped"`
	LastArtifact string    `json:"last_artifact,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store keeps checkpoints in a buntdb file synced on every write.
type Store struct {
	db *buntdb.DB
}

// Open opens or creates the store. An empty path keeps it in memory.
func Open(path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint dir: %w", err)
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	var cfg buntdb.Config
	if err := db.ReadConfig(&cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read buntdb config: %w", err)
	}
	cfg.SyncPolicy = buntdb.Always
	if err := db.SetConfig(cfg); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set buntdb config: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the checkpoint for runKey, or a zero checkpoint at offset 0.
func (s *Store) Load(runKey string) (Checkpoint, error) {
	cp := Checkpoint{RunKey: runKey}
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(keyPrefix + runKey)
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(val), &cp)
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return Checkpoint{RunKey: runKey}, nil
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Save stores cp. Offsets only move forward.
func (s *Store) Save(cp Checkpoint) error {
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	return s.db.Update(func(tx *buntdb.Tx) error {
		key := keyPrefix + cp.RunKey
		if val, err := tx.Get(key); err == nil {
			var prev Checkpoint
			if err := json.Unmarshal([]byte(val), &prev); err != nil {
				return fmt.Errorf("failed to decode checkpoint: %w", err)
			}
			if cp.Offset < prev.Offset {
				return fmt.Errorf("%w: %d < %d", ErrRegression, cp.Offset, prev.Offset)
			}
		} else if !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
}

// Reset forgets the checkpoint for runKey so the next run starts at 0.
func (s *Store) Reset(runKey string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(keyPrefix + runKey)
		return err
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil
	}
	return err
}

// List returns every stored checkpoint ordered by run key.
func (s *Store) List() ([]Checkpoint, error) {
	var out []Checkpoint
	err := s.db.View(func(tx *buntdb.Tx) error {
		var decodeErr error
		err := tx.AscendKeys(keyPrefix+"*", func(key, value string) bool {
			var cp Checkpoint
			if err := json.Unmarshal([]byte(value), &cp); err != nil {
				decodeErr = fmt.Errorf("failed to decode %s: %w", strings.TrimPrefix(key, keyPrefix), err)
				return false
			}
			out = append(out, cp)
			return true
		})
		if decodeErr != nil {
			return decodeErr
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
