package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// StateManager handles persistent key-value storage in a JSON file. Writes
// take a file lock so the CLI and a running server can share one state file.
type StateManager struct {
	filePath string
	lock     *flock.Flock
	data     map[string]json.RawMessage
	mu       sync.RWMutex
}

// NewManager opens (or prepares) state.json in dataDir.
func NewManager(dataDir string) (*StateManager, error) {
	path := filepath.Join(dataDir, "state.json")
	m := &StateManager{
		filePath: path,
		lock:     flock.New(path + ".lock"),
		data:     make(map[string]json.RawMessage),
	}

	if err := m.load(); err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	return m, nil
}

// Path returns the state file location.
func (m *StateManager) Path() string {
	return m.filePath
}

func (m *StateManager) load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &m.data)
}

// Reload re-reads the file, picking up writes from other processes.
func (m *StateManager) Reload() error {
	return m.load()
}

// Save writes the state file. It holds the write lock so concurrent saves
// never interleave on the temp file.
func (m *StateManager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *StateManager) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(m.filePath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(m.data, "", "  ")
	if err != nil {
		return err
	}

	if err := m.lock.Lock(); err != nil {
		return fmt.Errorf("lock state file: %w", err)
	}
	defer m.lock.Unlock()

	tmp := m.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, m.filePath)
}

// Get retrieves data for a key and unmarshals it into target
func (m *StateManager) Get(key string, target interface{}) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return true, err
	}

	return true, nil
}

// Set stores data for a key and saves to disk
func (m *StateManager) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()

	return m.Save()
}

// Delete removes a key and saves to disk.
func (m *StateManager) Delete(key string) error {
	m.mu.Lock()
	_, ok := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	return m.Save()
}
