package store

import (
	"fmt"
	"os"
	"path/filepath"

	"trialrag/internal/domain"
)

// writeAtomic lets write fill a temporary file in the directory of path and
// renames it over path only when write succeeds. A failed write leaves any
// previous file at path untouched.
func writeAtomic(path string, write func(tmpPath string) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: create index directory: %w", domain.ErrIO, err)
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", domain.ErrIO, err)
	}
	tmpPath := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	if err := write(tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: write index %s: %w", domain.ErrIO, path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: rename index into place: %w", domain.ErrIO, err)
	}
	return nil
}
