package docstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// File stores the document as a JSON file on local disk.
type File struct {
	Path string
}

// NewFile returns a file backend for path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Name implements Backend.
func (f *File) Name() string { return "file:" + f.Path }

// Load implements Backend.
func (f *File) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotExist, f.Path)
		}
		return nil, fmt.Errorf("docstore: read %s: %w", f.Path, err)
	}
	return data, nil
}

// Save writes data to a temporary file next to the target and renames it
// into place, so a crash never leaves a truncated document behind.
func (f *File) Save(data []byte) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("docstore: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("docstore: write %s: %w", f.Path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("docstore: write %s: %w", f.Path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("docstore: sync %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("docstore: close %s: %w", f.Path, err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("docstore: replace %s: %w", f.Path, err)
	}
	return nil
}
