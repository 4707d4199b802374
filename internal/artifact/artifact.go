// Package artifact keeps raw report downloads on disk between fetch and load.
//
// Files are named deterministically from asset, gas day and cycle so a
// download left behind by a run whose load did not commit is found again by
// the next run.
package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dwsmith1983/oacload/pkg/types"
)

// QuarantineDir is the subdirectory rejected downloads are moved to.
const QuarantineDir = "rejected"

// Store manages artifact files under a single directory.
type Store struct {
	dir string
}

// New creates the artifact directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string { return s.dir }

// FileName returns OAC_<asset>_<MM-DD-YYYY>_<cycle>.csv.
func FileName(asset string, key types.DedupKey) string {
	date := strings.ReplaceAll(key.GasDay(), "/", "-")
	return fmt.Sprintf("OAC_%s_%s_%s.csv", asset, date, key.Cycle)
}

// Path returns the artifact path for a key.
func (s *Store) Path(asset string, key types.DedupKey) string {
	return filepath.Join(s.dir, FileName(asset, key))
}

// Write stores data for key, replacing any previous file atomically.
func (s *Store) Write(asset string, key types.DedupKey, data []byte) (string, error) {
	path := s.Path(asset, key)
	tmp, err := os.CreateTemp(s.dir, ".partial-*")
	if err != nil {
		return "", fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("renaming artifact: %w", err)
	}
	return path, nil
}

// Lookup returns the contents of a previously written, non-empty artifact
// for key. ok is false when there is nothing to reuse.
func (s *Store) Lookup(asset string, key types.DedupKey) (data []byte, path string, ok bool, err error) {
	path = s.Path(asset, key)
	data, err = os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, path, false, nil
		}
		return nil, path, false, fmt.Errorf("reading artifact: %w", err)
	}
	if len(data) == 0 {
		return nil, path, false, nil
	}
	return data, path, true, nil
}

// Release deletes an artifact whose rows have been committed. A missing
// file is not an error.
func (s *Store) Release(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing artifact: %w", err)
	}
	return nil
}

// Quarantine moves a rejected artifact out of the reuse path and returns
// its new location.
func (s *Store) Quarantine(path string) (string, error) {
	qdir := filepath.Join(s.dir, QuarantineDir)
	if err := os.MkdirAll(qdir, 0o755); err != nil {
		return "", fmt.Errorf("creating quarantine dir: %w", err)
	}
	dest := filepath.Join(qdir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("quarantining artifact: %w", err)
	}
	return dest, nil
}

// List returns the artifact files currently waiting in the directory.
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "OAC_*.csv"))
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ListQuarantined returns the rejected artifacts kept for inspection.
func (s *Store) ListQuarantined() ([]string, error) {
	return filepath.Glob(filepath.Join(s.dir, QuarantineDir, "OAC_*.csv"))
}
