package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirStore writes reports below a root directory as root/runID/name.
type DirStore struct {
	root string
}

var _ Store = (*DirStore)(nil)

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) path(runID, name string) (string, error) {
	for _, part := range []string{runID, name} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid report path segment %q", part)
		}
	}
	return filepath.Join(d.root, runID, name), nil
}

// Save implements Store.
func (d *DirStore) Save(runID, name string, data []byte) error {
	p, err := d.path(runID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Get implements Store.
func (d *DirStore) Get(runID, name string) ([]byte, error) {
	p, err := d.path(runID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

// List implements Store.
func (d *DirStore) List(runID string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, runID))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete implements Store.
func (d *DirStore) Delete(runID, name string) error {
	p, err := d.path(runID, name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}
