package training

import "errors"

var (
	// ErrFeaturize marks an item the featurizer could not turn into a record.
	// The item is skipped and the run continues.
	ErrFeaturize = errors.New("featurize failed")

	// ErrInvalidConfig indicates a malformed run configuration.
	ErrInvalidConfig = errors.New("invalid run config")

	// ErrRunInProgress indicates the same run config is already consuming.
	ErrRunInProgress = errors.New("training run in progress")
)
