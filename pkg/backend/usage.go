package backend

import (
	"sync"
	"time"

	"showtracker/pkg/logger"
	"showtracker/pkg/persistence"
)

const usageStateKey = "backend_usage"

// UsageData is one backend's API usage for the current day.
type UsageData struct {
	LastResetDay    string `json:"last_reset_day"`
	APIHitsUsed     int    `json:"api_hits_used"`
	AllTimeHitsUsed int    `json:"all_time_hits_used"`
}

// UsageManager persists per-backend daily API hit counts in the state file.
type UsageManager struct {
	state *persistence.StateManager
	data  map[string]*UsageData
	mu    sync.Mutex
	now   func() time.Time
}

// NewUsageManager loads usage from the state manager.
func NewUsageManager(sm *persistence.StateManager) (*UsageManager, error) {
	m := &UsageManager{
		state: sm,
		data:  make(map[string]*UsageData),
		now:   time.Now,
	}
	if _, err := sm.Get(usageStateKey, &m.data); err != nil {
		return nil, err
	}
	if m.data == nil {
		m.data = make(map[string]*UsageData)
	}
	return m, nil
}

// entry returns the usage for name, resetting it on a new day. Callers hold mu.
func (m *UsageManager) entry(name string) *UsageData {
	today := m.now().Format("2006-01-02")
	data, ok := m.data[name]
	if !ok {
		data = &UsageData{LastResetDay: today}
		m.data[name] = data
		return data
	}
	if data.LastResetDay != today {
		logger.Debug("Resetting daily usage for backend", "name", name, "last_reset", data.LastResetDay, "today", today)
		data.LastResetDay = today
		data.APIHitsUsed = 0
	}
	return data
}

// Usage returns a copy of the usage for a backend.
func (m *UsageManager) Usage(name string) UsageData {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.entry(name)
}

// SetUsed records an absolute hit count reported by the backend itself.
func (m *UsageManager) SetUsed(name string, hits int) {
	m.mu.Lock()
	data := m.entry(name)
	if hits > data.APIHitsUsed {
		data.AllTimeHitsUsed += hits - data.APIHitsUsed
	}
	data.APIHitsUsed = hits
	m.mu.Unlock()

	m.save()
}

// IncrementUsed adds hits to today's count.
func (m *UsageManager) IncrementUsed(name string, hits int) {
	m.mu.Lock()
	data := m.entry(name)
	data.APIHitsUsed += hits
	data.AllTimeHitsUsed += hits
	m.mu.Unlock()

	m.save()
}

// SyncUsage removes usage data for backends that are no longer configured.
func (m *UsageManager) SyncUsage(activeNames []string) {
	m.mu.Lock()
	active := make(map[string]bool, len(activeNames))
	for _, name := range activeNames {
		active[name] = true
	}
	changed := false
	for name := range m.data {
		if !active[name] {
			logger.Info("Removing orphaned usage data for backend", "name", name)
			delete(m.data, name)
			changed = true
		}
	}
	m.mu.Unlock()

	if changed {
		m.save()
	}
}

func (m *UsageManager) save() {
	m.mu.Lock()
	snapshot := make(map[string]UsageData, len(m.data))
	for k, v := range m.data {
		snapshot[k] = *v
	}
	m.mu.Unlock()

	if err := m.state.Set(usageStateKey, snapshot); err != nil {
		logger.Error("Failed to save usage data", "err", err)
	}
}
