// Package store persists scripts as JSON files, one per script id.
// A script is a map's event set or the common-event collection,
// normalized into events holding zero or more pages.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"event-translator/internal/command"
)

// Event is one event of a script with its page variants.
type Event struct {
	ID    int            `json:"id"`
	Pages []command.Page `json:"pages"`
}

// Script is one persisted unit of the store.
type Script struct {
	Name   string  `json:"name"`
	Events []Event `json:"events"`
}

// ReadError reports a failure loading a script. Fatal for that script
// only; the batch moves on.
type ReadError struct {
	ID  string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("read script %q: %v", e.ID, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError reports a failure saving a script.
type WriteError struct {
	ID  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write script %q: %v", e.ID, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Store loads and saves scripts by id.
type Store interface {
	List() ([]string, error)
	Load(id string) (*Script, error)
	Save(id string, s *Script) error
}

// FSStore keeps each script as <root>/<id>.json.
type FSStore struct {
	root string
}

// NewFSStore creates a store rooted at dir.
func NewFSStore(dir string) *FSStore {
	return &FSStore{root: dir}
}

// List returns all script ids in the store, sorted.
func (fs *FSStore) List() ([]string, error) {
	entries, err := os.ReadDir(fs.root)
	if err != nil {
		return nil, fmt.Errorf("list scripts: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
	}
	sort.Strings(ids)
	return ids, nil
}

// Load reads one script. Failures are reported as *ReadError.
func (fs *FSStore) Load(id string) (*Script, error) {
	data, err := os.ReadFile(fs.path(id))
	if err != nil {
		return nil, &ReadError{ID: id, Err: err}
	}
	var s Script
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, &ReadError{ID: id, Err: err}
	}
	if s.Name == "" {
		s.Name = id
	}
	return &s, nil
}

// Save writes one script atomically: the data lands in a temp file that
// replaces the target only after a complete write, so a failed save
// never leaves a half-written script.
func (fs *FSStore) Save(id string, s *Script) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return &WriteError{ID: id, Err: err}
	}
	data = append(data, '\n')

	target := fs.path(id)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &WriteError{ID: id, Err: err}
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return &WriteError{ID: id, Err: err}
	}
	return nil
}

func (fs *FSStore) path(id string) string {
	return filepath.Join(fs.root, id+".json")
}
