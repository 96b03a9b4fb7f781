package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"showtracker/pkg/backend"
	"showtracker/pkg/config"
	"showtracker/pkg/identify"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
	"showtracker/pkg/search"
)

// AggregatorFactory builds a fresh aggregator over the configured backends.
// Every websocket client gets its own, so a client's new search only
// supersedes that client's previous one.
type AggregatorFactory func(opts ...search.Option) *search.Aggregator

// Server handles API requests
type Server struct {
	mu         sync.RWMutex
	config     *config.Config
	factory    AggregatorFactory
	searcher   *search.Aggregator
	usage      *backend.UsageManager
	identifier *identify.Identifier

	// WebSocket Client Registry
	clients   map[*Client]bool
	clientsMu sync.Mutex
	logCh     chan string
	stop      chan struct{}
	stopOnce  sync.Once
}

type Client struct {
	conn     *websocket.Conn
	send     chan WSMessage
	done     chan struct{}
	doneOnce sync.Once
	searcher *search.Aggregator
}

// NewServer creates a new API server. usage and identifier may be nil.
func NewServer(cfg *config.Config, factory AggregatorFactory, usage *backend.UsageManager, identifier *identify.Identifier) *Server {
	s := &Server{
		config:     cfg,
		factory:    factory,
		searcher:   factory(search.WithObserver(search.LogObserver{})),
		usage:      usage,
		identifier: identifier,
		clients:    make(map[*Client]bool),
		logCh:      make(chan string, 100),
		stop:       make(chan struct{}),
	}

	// Start log broadcaster
	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()

	return s
}

// Reload swaps in a new configuration and backend set. Connected websocket
// clients keep their aggregator until they reconnect.
func (s *Server) Reload(cfg *config.Config, factory AggregatorFactory, usage *backend.UsageManager, identifier *identify.Identifier) {
	searcher := factory(search.WithObserver(search.LogObserver{}))

	s.mu.Lock()
	s.config = cfg
	s.factory = factory
	s.searcher = searcher
	s.usage = usage
	s.identifier = identifier
	s.mu.Unlock()

	logger.Info("API server reloaded", "backends", len(searcher.Active()), "excluded", len(searcher.Excluded()))
}

// Close stops the log broadcaster and disconnects every websocket client.
func (s *Server) Close() {
	s.stopOnce.Do(func() {
		logger.SetBroadcast(nil)
		close(s.stop)
	})
	s.clientsMu.Lock()
	for client := range s.clients {
		client.close()
	}
	s.clientsMu.Unlock()
}

func (s *Server) broadcastLogs() {
	for {
		var line string
		select {
		case <-s.stop:
			return
		case line = <-s.logCh:
		}
		payload, _ := json.Marshal(line)
		msg := WSMessage{Type: "log_entry", Payload: payload}

		s.clientsMu.Lock()
		for client := range s.clients {
			select {
			case client.send <- msg:
			default:
				// Drop message if client buffer is full
			}
		}
		s.clientsMu.Unlock()
	}
}

// AddClient registers a new websocket client
func (s *Server) AddClient(client *Client) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

// RemoveClient unregisters a websocket client and cancels its search
func (s *Server) RemoveClient(client *Client) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
	client.close()
	if client.searcher != nil {
		client.searcher.CancelAsync()
	}
}

func (c *Client) close() {
	c.doneOnce.Do(func() { close(c.done) })
}

// push queues msg for the write loop, giving up once the client is gone.
func (c *Client) push(msg WSMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.done:
		return false
	}
}

func (s *Server) snapshot() (*config.Config, AggregatorFactory, *search.Aggregator, *backend.UsageManager, *identify.Identifier) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.factory, s.searcher, s.usage, s.identifier
}

// Handler returns the HTTP handler for the API
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/backends", s.handleBackends)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/quality", s.handleQuality)
	mux.HandleFunc("GET /api/identify", s.handleIdentify)
	mux.HandleFunc("/api/ws", s.handleWebSocket)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// SearchResponse is the body of a blocking search.
type SearchResponse struct {
	SessionID  string           `json:"session_id"`
	Query      string           `json:"query"`
	Normalized string           `json:"normalized"`
	Results    []backend.Result `json:"results"`
	Failures   []search.Failure `json:"failures"`
	Elapsed    string           `json:"elapsed"`
}

// handleSearch runs a blocking search over every active backend and applies
// the configured result filter. With strict=1 and a query carrying
// numbering, results are narrowed to releases of that episode.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing 'q' query parameter")
		return
	}
	cfg, _, searcher, _, _ := s.snapshot()

	sess, err := searcher.Run(r.Context(), query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, search.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		if sess == nil {
			writeError(w, status, err.Error())
			return
		}
		logger.Debug("Search ended early", "session", sess.ID, "err", err)
	}

	results := search.Dedupe(sess.Results())
	if filter, err := search.NewFilter(cfg.Filter); err != nil {
		logger.Warn("Ignoring invalid result filter", "err", err)
	} else {
		results = filter.Apply(results)
	}
	if r.URL.Query().Get("strict") == "1" {
		if title, numbering, ok := release.Split(sess.Normalized); ok {
			if ep, found := release.ExtractEpisode(numbering); found {
				results = search.FilterEpisode(results, title, ep)
			}
		}
	}
	search.SortByQuality(results)
	if results == nil {
		results = []backend.Result{}
	}
	failures := sess.Failures()
	if failures == nil {
		failures = []search.Failure{}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		SessionID:  sess.ID,
		Query:      sess.Query,
		Normalized: sess.Normalized,
		Results:    results,
		Failures:   failures,
		Elapsed:    time.Since(sess.Started).Round(time.Millisecond).String(),
	})
}

// BackendsResponse lists the configured backends.
type BackendsResponse struct {
	Active   []backend.Descriptor `json:"active"`
	Excluded []backend.Descriptor `json:"excluded"`
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	_, _, searcher, _, _ := s.snapshot()
	writeJSON(w, http.StatusOK, backendsOf(searcher))
}

func backendsOf(a *search.Aggregator) BackendsResponse {
	resp := BackendsResponse{Active: a.Active(), Excluded: a.Excluded()}
	if resp.Excluded == nil {
		resp.Excluded = []backend.Descriptor{}
	}
	return resp
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.collectStats())
}

// QualityResponse is the classification of a single release name.
type QualityResponse struct {
	Name       string          `json:"name"`
	Quality    release.Quality `json:"quality"`
	Normalized string          `json:"normalized"`
	Episode    string          `json:"episode,omitempty"`
}

func (s *Server) handleQuality(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "missing 'name' query parameter")
		return
	}
	resp := QualityResponse{
		Name:       name,
		Quality:    release.ParseQuality(name),
		Normalized: release.Normalize(name),
	}
	if ep, ok := release.ExtractEpisode(name); ok {
		resp.Episode = ep.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing 'path' query parameter")
		return
	}
	_, _, _, _, identifier := s.snapshot()
	if identifier == nil {
		writeError(w, http.StatusServiceUnavailable, "show identification is not configured")
		return
	}
	res := identifier.ParseFile(r.Context(), path)
	status := http.StatusOK
	if !res.OK() {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, res)
}

// Addr returns the listen address from the config.
func (s *Server) Addr() string {
	cfg, _, _, _, _ := s.snapshot()
	return fmt.Sprintf("%s:%d", cfg.APIBind, cfg.APIPort)
}
