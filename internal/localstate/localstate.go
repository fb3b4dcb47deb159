/*
Package localstate persists the client's bootstrap record: the things a session needs
before, or without, talking to the server.
*/
package localstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"schoolmaps/internal/pkg/wire"
)

// Record is the persisted bootstrap record.
type Record struct {
	AuthToken string `json:"authToken,omitempty"`
	Theme     string `json:"theme,omitempty"`
	Language  string `json:"language,omitempty"`

	// Guest is the saved guest profile fragment, nil if never saved.
	Guest *wire.ProfileDocument `json:"guest,omitempty"`

	// PendingLogoutNotice marks a user-initiated sign-out whose confirmation has not
	// been shown yet. It survives a restart.
	PendingLogoutNotice bool `json:"pendingLogoutNotice,omitempty"`
}

// Store loads and atomically updates the record.
type Store interface {
	Load() (Record, error)
	Update(fn func(*Record)) error
}

// TakePendingLogoutNotice reads and clears the logout marker in one update.
func TakePendingLogoutNotice(s Store) (bool, error) {
	var pending bool
	err := s.Update(func(r *Record) {
		pending = r.PendingLogoutNotice
		r.PendingLogoutNotice = false
	})
	return pending, err
}

// File keeps the record as JSON in a single file.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Load returns the zero Record when the file does not exist yet.
func (f *File) Load() (Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read()
}

// Update applies fn to the current record and writes the result atomically.
func (f *File) Update(fn func(*Record)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, err := f.read()
	if err != nil {
		return err
	}
	fn(&rec)
	return f.write(rec)
}

func (f *File) read() (Record, error) {
	var rec Record

	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return rec, nil
	}
	if err != nil {
		return rec, fmt.Errorf("read state file: %w", err)
	}
	if len(raw) == 0 {
		return rec, nil
	}

	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode state file: %w", err)
	}
	return rec, nil
}

func (f *File) write(rec Record) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.Mutex
	rec  Record
	fail error
}

func NewMemory(initial Record) *Memory {
	return &Memory{rec: initial}
}

func (m *Memory) Load() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return clone(m.rec), nil
}

func (m *Memory) Update(fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	rec := clone(m.rec)
	fn(&rec)
	m.rec = rec
	return nil
}

// SetFailure makes every later Update fail with err without applying it. nil restores.
func (m *Memory) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func clone(r Record) Record {
	if r.Guest != nil {
		g := wire.ProfileDocument{}.Merge(*r.Guest)
		r.Guest = &g
	}
	return r
}
