package checkpoint_test

import (
	"path/filepath"
	"testing"

	"github.com/rpggio/semantix/internal/checkpoint"
	"github.com/stretchr/testify/require"
)

func TestStore_LoadDefaultsToZero(t *testing.T) {
	s, err := checkpoint.Open("")
	require.NoError(t, err)
	defer s.Close()

	cp, err := s.Load("run-a")
	require.NoError(t, err)
	require.Equal(t, "run-a", cp.RunKey)
	require.Zero(t, cp.Offset)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	s, err := checkpoint.Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "run-a", Offset: 12, Batches: 2, LastArtifact: "v1"}))
	require.NoError(t, s.Close())

	s, err = checkpoint.Open(path)
	require.NoError(t, err)
	defer s.Close()

	cp, err := s.Load("run-a")
	require.NoError(t, err)
	require.Equal(t, int64(12), cp.Offset)
	require.Equal(t, 2, cp.Batches)
	require.Equal(t, "v1", cp.LastArtifact)
}

func TestStore_RejectsRegression(t *testing.T) {
	s, err := checkpoint.Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "r", Offset: 10}))
	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "r", Offset: 10}))
	require.ErrorIs(t, s.Save(checkpoint.Checkpoint{RunKey: "r", Offset: 9}), checkpoint.ErrRegression)

	require.NoError(t, s.Reset("r"))
	require.NoError(t, s.Reset("r"))
	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "r", Offset: 1}))
}

func TestStore_List(t *testing.T) {
	s, err := checkpoint.Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "b", Offset: 2}))
	require.NoError(t, s.Save(checkpoint.Checkpoint{RunKey: "a", Offset: 1}))

	all, err := s.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "a", all[0].RunKey)
	require.Equal(t, "b", all[1].RunKey)
}
