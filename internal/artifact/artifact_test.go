package artifact_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rpggio/semantix/internal/artifact"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []artifact.Record {
	return []artifact.Record{
		{ItemHash: "aaa", Text: "first", Source: "s", Mime: "text/plain", Bytes: 5, Score: 3, Quality: 1, Voters: 2, Labels: `{"positive":3}`, Features: "{}"},
		{ItemHash: "bbb", Text: "second", Source: "s", Mime: "text/plain", Bytes: 6, Score: 4, Quality: 2, Voters: 3, Labels: `{"positive":4}`, Features: "{}"},
	}
}

func TestWriter_WriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w, err := artifact.NewWriter(dir, nil)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := w.Write(ctx, sampleRecords())
	require.NoError(t, err)
	second, err := w.Write(ctx, sampleRecords())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, int64(2), first.RecordCount)
	require.Equal(t, artifact.Version(sampleRecords()), first.Version)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, first.Version+".parquet", files[0].Name())
}

func TestWriter_ReadBack(t *testing.T) {
	w, err := artifact.NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	a, err := w.Write(context.Background(), sampleRecords())
	require.NoError(t, err)

	rows, err := w.Read(a.Version)
	require.NoError(t, err)
	require.Equal(t, sampleRecords(), rows)

	listed, err := w.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, a.Version, listed[0].Version)
}

func TestWriter_ByteReproducible(t *testing.T) {
	ctx := context.Background()
	w1, err := artifact.NewWriter(t.TempDir(), nil)
	require.NoError(t, err)
	w2, err := artifact.NewWriter(t.TempDir(), nil)
	require.NoError(t, err)

	a1, err := w1.Write(ctx, sampleRecords())
	require.NoError(t, err)
	a2, err := w2.Write(ctx, sampleRecords())
	require.NoError(t, err)

	b1, err := os.ReadFile(a1.Path)
	require.NoError(t, err)
	b2, err := os.ReadFile(a2.Path)
	require.NoError(t, err)
	require.True(t, bytes.Equal(b1, b2))
}

func TestVersion_DependsOnOrder(t *testing.T) {
	records := sampleRecords()
	reversed := []artifact.Record{records[1], records[0]}
	require.NotEqual(t, artifact.Version(records), artifact.Version(reversed))
}

func TestWriter_EmptyAndMissing(t *testing.T) {
	w, err := artifact.NewWriter(filepath.Join(t.TempDir(), "nested", "dir"), nil)
	require.NoError(t, err)

	_, err = w.Write(context.Background(), nil)
	require.ErrorIs(t, err, artifact.ErrEmptyBatch)

	_, err = w.Lookup(strings.Repeat("a", 64))
	require.ErrorIs(t, err, artifact.ErrNotFound)

	_, err = w.Lookup("../checkpoints")
	require.ErrorIs(t, err, artifact.ErrInvalidVersion)
	_, err = w.Read("nope")
	require.ErrorIs(t, err, artifact.ErrInvalidVersion)
}
