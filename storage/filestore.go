package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore is the local fallback backend. Every Store call writes a new
// file under a fresh local id; ids are never content-derived.
// Files are stored at: {baseDir}/{hex[:2]}/{id}
// where hex is the id with LocalPrefix removed.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// Compile-time interface check.
var _ Backend = (*FileStore)(nil)

// NewFileStore creates a local store rooted at baseDir, typically
// "~/.anchorgate/local". The directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}

	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	return &FileStore{
		baseDir: baseDir,
	}, nil
}

// IDToPath converts a local id to its filesystem path.
// The first 2 hex chars after the prefix name the shard directory.
func IDToPath(baseDir string, id ContentID) string {
	hexPart := string(id)[len(LocalPrefix):]
	return filepath.Join(baseDir, hexPart[:2], string(id))
}

func (fs *FileStore) Name() string   { return "local" }
func (fs *FileStore) Source() Source { return SourceLocal }

// Store writes data under a new local id.
func (fs *FileStore) Store(ctx context.Context, data []byte) (ContentID, error) {
	if len(data) == 0 {
		return "", ErrEmptyContent
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := NewLocalID()
	path := IDToPath(fs.baseDir, id)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return id, nil
}

// Retrieve reads the content stored under id. Non-local ids are never
// present here and return ErrNotFound.
func (fs *FileStore) Retrieve(ctx context.Context, id ContentID) ([]byte, error) {
	if validateLocalID(id) != nil {
		return nil, ErrNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(IDToPath(fs.baseDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}
	return data, nil
}

// Pin is a no-op; local files are kept until deleted.
func (fs *FileStore) Pin(context.Context, ContentID) error { return nil }

// List returns every stored local id by scanning the shard directories.
func (fs *FileStore) List() ([]ContentID, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var result []ContentID

	entries, err := os.ReadDir(fs.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIOFailure, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}

		files, err := os.ReadDir(filepath.Join(fs.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		for _, f := range files {
			if f.IsDir() {
				continue
			}
			id := ContentID(f.Name())
			if validateLocalID(id) != nil {
				continue // skip foreign files
			}
			result = append(result, id)
		}
	}
	return result, nil
}
