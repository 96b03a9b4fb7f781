package api

import (
	"sort"
	"time"

	"showtracker/pkg/backend"
)

// SystemStats represents the current state of the application
type SystemStats struct {
	Timestamp time.Time      `json:"timestamp"`
	Clients   int            `json:"clients"`
	Backends  []BackendStats `json:"backends"`
}

// BackendStats represents usage for one configured backend
type BackendStats struct {
	Name            string       `json:"name"`
	Type            backend.Type `json:"type"`
	Active          bool         `json:"active"`
	APIHitsLimit    int          `json:"api_hits_limit"`
	APIHitsUsed     int          `json:"api_hits_used"`
	AllTimeHitsUsed int          `json:"all_time_hits_used"`
}

// collectStats gathers usage for active and excluded backends
func (s *Server) collectStats() SystemStats {
	cfg, _, searcher, usage, _ := s.snapshot()

	limits := make(map[string]int)
	if cfg != nil {
		for _, b := range cfg.Backends {
			limits[b.Name] = b.APIHitsDay
		}
	}

	stats := SystemStats{Timestamp: time.Now()}
	add := func(desc backend.Descriptor, active bool) {
		bs := BackendStats{
			Name:         desc.Name,
			Type:         desc.Type,
			Active:       active,
			APIHitsLimit: limits[desc.Name],
		}
		if usage != nil {
			u := usage.Usage(desc.Name)
			bs.APIHitsUsed = u.APIHitsUsed
			bs.AllTimeHitsUsed = u.AllTimeHitsUsed
		}
		stats.Backends = append(stats.Backends, bs)
	}
	for _, desc := range searcher.Active() {
		add(desc, true)
	}
	for _, desc := range searcher.Excluded() {
		add(desc, false)
	}
	sort.SliceStable(stats.Backends, func(i, j int) bool {
		return stats.Backends[i].Name < stats.Backends[j].Name
	})

	s.clientsMu.Lock()
	stats.Clients = len(s.clients)
	s.clientsMu.Unlock()

	return stats
}
