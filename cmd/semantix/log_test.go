package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRotatingFile_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "semantix.log")
	rf, err := openRotatingFile(path, 64)
	require.NoError(t, err)
	defer rf.Close()

	line := []byte(strings.Repeat("x", 39) + "\n")
	for range 3 {
		_, err := rf.Write(line)
		require.NoError(t, err)
	}

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, line, current)

	backup, err := os.ReadFile(path + ".1")
	require.NoError(t, err)
	require.Equal(t, line, backup)
}

func TestRotatingFile_ResumesExistingSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semantix.log")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("y"), 60), 0o644))

	rf, err := openRotatingFile(path, 64)
	require.NoError(t, err)
	defer rf.Close()

	_, err = rf.Write([]byte("fresh line\n"))
	require.NoError(t, err)

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "fresh line\n", string(current))
	_, err = os.Stat(path + ".1")
	require.NoError(t, err)
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	require.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestEnsureDir(t *testing.T) {
	require.NoError(t, ensureDir(":memory:"))
	dir := t.TempDir()
	require.NoError(t, ensureDir(filepath.Join(dir, "a", "b", "x.db")))
	_, err := os.Stat(filepath.Join(dir, "a", "b"))
	require.NoError(t, err)
}
