// Package artifact publishes training batches as immutable Parquet files
// named by the hash of their contents.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

const fileExt = ".parquet"

var (
	// ErrWriteFailed indicates the artifact could not be durably published.
	ErrWriteFailed = errors.New("artifact write failed")

	// ErrEmptyBatch indicates a write with no records.
	ErrEmptyBatch = errors.New("artifact batch is empty")

	// ErrNotFound indicates no artifact exists for a version.
	ErrNotFound = errors.New("artifact not found")

	// ErrInvalidVersion indicates a version that is not a sha256 hex digest.
	ErrInvalidVersion = errors.New("invalid artifact version")
)

var versionPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Record is one featurized row. Labels and Features hold canonical JSON so
// that identical inputs always encode to identical bytes.
type Record struct {
	ItemHash   string `parquet:"item_hash" json:"item_hash"`
	Text       string `parquet:"text" json:"text"`
	Source     string `parquet:"source" json:"source"`
	Mime       string `parquet:"mime" json:"mime"`
	Bytes      int64  `parquet:"bytes" json:"bytes"`
	IngestedAt int64  `parquet:"ingested_at_ms" json:"ingested_at_ms"`
	Score      int64  `parquet:"score" json:"score"`
	Quality    int64  `parquet:"quality" json:"quality"`
	Voters     int64  `parquet:"voters" json:"voters"`
	Labels     string `parquet:"labels" json:"labels"`
	Features   string `parquet:"features" json:"features"`
}

// Artifact describes a committed file.
type Artifact struct {
	Version     string    `json:"version"`
	Path        string    `json:"path"`
	RecordCount int64     `json:"record_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Version hashes the ordered item hashes of a batch.
func Version(records []Record) string {
	h := sha256.New()
	for _, r := range records {
		h.Write([]byte(r.ItemHash))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Writer publishes batches into a directory. A version is written at most
// once; readers never observe a partial file under its final name.
type Writer struct {
	dir    string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewWriter creates the artifacts directory if needed.
func NewWriter(dir string, logger *slog.Logger) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: empty artifacts dir", ErrWriteFailed)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir: %w", ErrWriteFailed, err)
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the artifacts directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write publishes records and returns the committed artifact. Writing a
// version that already exists returns the existing artifact untouched.
func (w *Writer) Write(ctx context.Context, records []Record) (*Artifact, error) {
	if len(records) == 0 {
		return nil, ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	version := Version(records)
	path := w.pathFor(version)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := os.Stat(path); err == nil {
		if w.logger != nil {
			w.logger.Debug("artifact exists", "version", version)
		}
		return w.describe(version, path)
	}

	if err := w.publish(path, version, records); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWriteFailed, version, err)
	}
	if w.logger != nil {
		w.logger.Info("artifact written", "version", version, "records", len(records), "path", path)
	}
	return w.describe(version, path)
}

// Lookup returns the committed artifact for version.
func (w *Writer) Lookup(version string) (*Artifact, error) {
	if !versionPattern.MatchString(version) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}
	path := w.pathFor(version)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return w.describe(version, path)
}

// List returns every committed artifact ordered by creation time.
func (w *Writer) List() ([]Artifact, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifacts dir: %w", err)
	}
	var out []Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
			continue
		}
		a, err := w.describe(strings.TrimSuffix(name, fileExt), filepath.Join(w.dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

// Read loads every record of a committed artifact.
func (w *Writer) Read(version string) ([]Record, error) {
	a, err := w.Lookup(version)
	if err != nil {
		return nil, err
	}
	return parquet.ReadFile[Record](a.Path)
}

func (w *Writer) pathFor(version string) string {
	return filepath.Join(w.dir, version+fileExt)
}

func (w *Writer) publish(path, version string, records []Record) (err error) {
	tmp, err := os.CreateTemp(w.dir, "."+version+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	pw := parquet.NewGenericWriter[Record](tmp)
	if _, err = pw.Write(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err = pw.Close(); err != nil {
		return fmt.Errorf("finish parquet: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return syncDir(w.dir)
}

func (w *Writer) describe(version, path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}
	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &Artifact{
		Version:     version,
		Path:        path,
		RecordCount: pf.NumRows(),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("open dir: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}
