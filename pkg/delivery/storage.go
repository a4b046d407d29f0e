package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Storage persists the full queue state as a single document. An embedded
// key-value store could replace the file implementation without touching
// the dispatcher.
type Storage interface {
	Load() (State, error)
	Save(State) error
}

// FileStorage keeps the queue state as one JSON file at a fixed path.
type FileStorage struct {
	path string
}

// NewFileStorage creates a Storage backed by the JSON file at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the queue state. A missing file yields an empty state with no
// error; a corrupt file yields an empty state and the parse error so the
// caller can log it without crashing.
func (f *FileStorage) Load() (State, error) {
	var st State
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read queue state: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("parse queue state: %w", err)
	}
	return st, nil
}

// Save writes the queue state atomically via a temp file rename.
func (f *FileStorage) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal queue state: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write queue state: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace queue state: %w", err)
	}
	return nil
}
