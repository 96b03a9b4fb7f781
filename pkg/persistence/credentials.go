package persistence

import (
	"sort"
	"sync"

	"showtracker/pkg/logger"
)

const credentialsKey = "credentials"

// Credentials is the backend cookie/login/API-key store, kept under one key
// of the state file.
type Credentials struct {
	state *StateManager
	mu    sync.RWMutex
	data  map[string]string
}

// NewCredentials loads the stored credentials.
func NewCredentials(state *StateManager) (*Credentials, error) {
	c := &Credentials{state: state, data: make(map[string]string)}
	if _, err := state.Get(credentialsKey, &c.data); err != nil {
		return nil, err
	}
	if c.data == nil {
		c.data = make(map[string]string)
	}
	return c, nil
}

// Get returns the value for key, or "" when unset.
func (c *Credentials) Get(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data[key]
}

// Set stores a value and saves the state file. An empty value deletes the key.
func (c *Credentials) Set(key, value string) error {
	c.mu.Lock()
	if value == "" {
		delete(c.data, key)
	} else {
		c.data[key] = value
	}
	snapshot := make(map[string]string, len(c.data))
	for k, v := range c.data {
		snapshot[k] = v
	}
	c.mu.Unlock()

	if err := c.state.Set(credentialsKey, snapshot); err != nil {
		logger.Error("Failed to save credentials", "err", err)
		return err
	}
	return nil
}

// Keys lists the stored keys, sorted.
func (c *Credentials) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
