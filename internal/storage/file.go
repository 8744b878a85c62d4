package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-faster/errors"
)

// FileSlot stores each key as a file under a directory. Writes go through a
// temp file and an atomic rename so a crash mid-write never leaves a torn
// value behind.
type FileSlot struct {
	dir string
	mu  sync.Mutex
}

// NewFileSlot creates the directory if needed and returns a slot over it.
func NewFileSlot(dir string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create slot directory")
	}
	return &FileSlot{dir: dir}, nil
}

// Get implements Slot.
func (f *FileSlot) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "read slot file")
	}
	return data, true, nil
}

// Set implements Slot.
func (f *FileSlot) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return errors.Wrap(err, "write slot temp file")
	}
	if err := os.Rename(tmp, target); err != nil {
		return errors.Wrap(err, "rename slot file")
	}
	return nil
}

// path maps a key to a file name. Separator characters in keys are flattened
// so a key can never escape the slot directory.
func (f *FileSlot) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
	return filepath.Join(f.dir, safe+".json")
}
