package nicks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	defaultDirPerm  os.FileMode = 0o755
	defaultFilePerm os.FileMode = 0o644
)

// fileDoc is the on-disk layout: {"nicks": ["alice", "bob"]}.
type fileDoc struct {
	Nicks []string `json:"nicks"`
}

// FileStore keeps known nicks in a JSON file. Writes go to a temp file that is
// renamed over the target, under an advisory lock on Path+".lock".
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Load reads the file. A missing or empty file is not an error.
func (f *FileStore) Load(ctx context.Context) (Set, error) {
	set, found, err := f.read()
	if err != nil {
		return nil, err
	}
	if !found {
		slog.Warn("nick file not found; no nicks loaded", slog.String("path", f.Path), slog.String("component", "nicks"))
	}
	return set, nil
}

// Save re-reads the file under lock, merges keys into it and atomically replaces it.
func (f *FileStore) Save(ctx context.Context, keys Set) error {
	return withLock(ctx, f.Path+".lock", func() error {
		merged, _, err := f.read()
		if err != nil {
			return err
		}
		merged.Merge(keys)
		data, err := json.MarshalIndent(fileDoc{Nicks: merged.Sorted()}, "", "    ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", f.Path, err)
		}
		return writeAtomic(f.Path, append(data, '\n'))
	})
}

// Close is a no-op.
func (f *FileStore) Close() error { return nil }

func (f *FileStore) read() (Set, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewSet(), false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewSet(), true, nil
	}
	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, true, fmt.Errorf("decode %s: %w", f.Path, err)
	}
	return NewSet(doc.Nicks...), true, nil
}

func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp for %s: %w", path, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return fmt.Errorf("chmod temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp for %s: %w", path, err)
	}

	// Best effort directory sync; ignore failures.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}
