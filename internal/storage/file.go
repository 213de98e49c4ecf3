package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps one JSON object per partition key under baseDir/prefix,
// mirroring the bucket/prefix/key layout of an object store on local disk
type FileStore struct {
	dir string
	// mu serializes writers inside one process; separate processes still race
	mu sync.Mutex
}

// NewFileStore creates a file-backed store. With autoCreate the directory is
// created on demand; otherwise it must already exist.
func NewFileStore(baseDir, prefix string, autoCreate bool) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("file store base directory is required")
	}
	dir := filepath.Join(baseDir, prefix)

	if autoCreate {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create attribute directory: %w", err)
		}
	} else if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("attribute directory %s does not exist", dir)
	}

	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// Get reads the record file for key
func (f *FileStore) Get(ctx context.Context, key string) (Attributes, bool, error) {
	if err := checkKey(key); err != nil {
		return nil, false, err
	}
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read attribute file: %w", err)
	}

	attributes, err := DecodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return attributes, true, nil
}

// Put writes the record to a temp file and renames it over the old one
func (f *FileStore) Put(ctx context.Context, key string, attributes Attributes) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := EncodeRecord(attributes)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".record-*")
	if err != nil {
		return fmt.Errorf("failed to create attribute file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write attribute file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write attribute file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace attribute file: %w", err)
	}
	return nil
}

// Delete removes the record file; a missing file is not an error
func (f *FileStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete attribute file: %w", err)
	}
	return nil
}

// Dir returns the directory records are written to
func (f *FileStore) Dir() string {
	return f.dir
}
