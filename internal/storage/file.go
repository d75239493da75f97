package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileStore is for committing daily objects to a local directory.
// It doubles as the checkpoint store for partial day buffers.
type FileStore struct {
	dir string
}

// InitFileStore initializes the local directory sink, creating the
// directory when missing.
func InitFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "not able to create storage dir %v", dir)
	}
	return &FileStore{dir: dir}, nil
}

// Name returns the store name used in logs.
func (f *FileStore) Name() string {
	return "file"
}

// Commit writes one serialized day object under the given key.
// Writes for an existing key replace the file.
func (f *FileStore) Commit(_ context.Context, key string, data []byte) error {
	path := f.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "object %v dir", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "object %v write", key)
	}
	return nil
}

// Get reads back an object written earlier. os.IsNotExist on the returned
// error distinguishes a missing object.
func (f *FileStore) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes an object. Deleting a missing object is not an error.
func (f *FileStore) Delete(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "object %v delete", key)
	}
	return nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, filepath.FromSlash(key))
}
