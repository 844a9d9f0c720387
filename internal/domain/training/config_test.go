package training_test

import (
	"testing"

	"github.com/rpggio/semantix/internal/domain/training"
	"github.com/stretchr/testify/require"
)

func TestRunConfig_Validate(t *testing.T) {
	cfg, err := training.RunConfig{LabelFilter: "Topic:Go"}.Validate()
	require.NoError(t, err)
	require.Equal(t, training.DefaultBatchSize, cfg.BatchSize)
	require.Equal(t, "topic:go", cfg.LabelFilter)

	_, err = training.RunConfig{BatchSize: -1}.Validate()
	require.ErrorIs(t, err, training.ErrInvalidConfig)
	_, err = training.RunConfig{MaxRecords: -1}.Validate()
	require.ErrorIs(t, err, training.ErrInvalidConfig)
	_, err = training.RunConfig{LabelFilter: "bad label"}.Validate()
	require.ErrorIs(t, err, training.ErrInvalidConfig)
}

func TestRunConfig_Key(t *testing.T) {
	a := training.RunConfig{LabelFilter: "go", QualityMin: 1, BatchSize: 10}
	b := training.RunConfig{LabelFilter: "go", QualityMin: 1, BatchSize: 50}
	c := training.RunConfig{LabelFilter: "go", QualityMin: 2, BatchSize: 10}

	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())
	require.Regexp(t, `^run-[0-9a-f]{16}$`, a.Key())
}
