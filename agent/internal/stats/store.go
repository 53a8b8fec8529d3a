package stats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrPersist wraps every failure to write a record.
var ErrPersist = errors.New("stats: persist failed")

// FileStore keeps one Record in a flat file.
type FileStore struct {
	Path string
}

// Load reads the record. A missing file yields a zero Record and ok == false.
// A file that exists but does not parse returns an error wrapping
// ErrMalformedRecord.
func (s FileStore) Load() (rec Record, ok bool, err error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("stats: read %s: %w", s.Path, err)
	}
	rec, err = Parse(string(data))
	if err != nil {
		return Record{}, false, fmt.Errorf("%s: %w", s.Path, err)
	}
	return rec, true, nil
}

// Save writes rec to a temporary file in the same directory and renames it
// over Path, so a crash leaves either the old or the new record.
func (s FileStore) Save(rec Record) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.WriteString(rec.String() + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrPersist, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: sync: %v", ErrPersist, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrPersist, err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrPersist, err)
	}
	return nil
}
