package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStore reads messages from a local directory, one file per key. It lets
// the forwarder run against saved messages without S3.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

// Fetch reads root/key. Keys that escape the root are rejected.
func (d *DirStore) Fetch(_ context.Context, key string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, fmt.Errorf("invalid message key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(d.root, clean))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return data, nil
}
