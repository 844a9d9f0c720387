package training

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/rpggio/semantix/internal/domain/vote"
)

// DefaultBatchSize is used when a run does not set one.
const DefaultBatchSize = 100

// RunConfig selects which approved items a run consumes and how they are
// batched. Runs with equal configs share a checkpoint.
type RunConfig struct {
	LabelFilter string `json:"label_filter,omitempty" yaml:"label_filter"`
	QualityMin  int    `json:"quality_min" yaml:"quality_min"`
	MaxRecords  int    `json:"max_records,omitempty" yaml:"max_records"`
	BatchSize   int    `json:"batch_size" yaml:"batch_size"`
}

// Validate fills defaults and rejects malformed configs.
func (c RunConfig) Validate() (RunConfig, error) {
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize < 0 {
		return c, fmt.Errorf("%w: batch_size must be positive", ErrInvalidConfig)
	}
	if c.MaxRecords < 0 {
		return c, fmt.Errorf("%w: max_records must not be negative", ErrInvalidConfig)
	}
	if c.LabelFilter != "" {
		l, err := vote.ParseLabel(c.LabelFilter)
		if err != nil {
			return c, fmt.Errorf("%w: label_filter: %w", ErrInvalidConfig, err)
		}
		c.LabelFilter = string(l)
	}
	return c, nil
}

// Key identifies the run. Batch size is excluded so resizing batches resumes
// from the same checkpoint.
func (c RunConfig) Key() string {
	data, _ := json.Marshal(struct {
		LabelFilter string `json:"label_filter"`
		QualityMin  int    `json:"quality_min"`
		MaxRecords  int    `json:"max_records"`
	}{c.LabelFilter, c.QualityMin, c.MaxRecords})
	sum := sha256.Sum256(data)
	return "run-" + hex.EncodeToString(sum[:8])
}
