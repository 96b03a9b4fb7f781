package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"showtracker/pkg/backend"
	"showtracker/pkg/config"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
	"showtracker/pkg/search"
)

type fakeBackend struct {
	name    string
	results []string
	err     error
}

func (f *fakeBackend) Descriptor() backend.Descriptor {
	return backend.Descriptor{Name: f.name, Type: backend.Torrent}
}

func (f *fakeBackend) Search(ctx context.Context, query string) ([]backend.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]backend.Result, 0, len(f.results))
	for i, name := range f.results {
		out = append(out, backend.NewResult(f.name, backend.Torrent, name, int64(i+1)*1000, "http://"+f.name+"/"+name))
	}
	return out, nil
}

type lockedBackend struct {
	fakeBackend
}

func (l *lockedBackend) Descriptor() backend.Descriptor {
	return backend.Descriptor{Name: l.name, Type: backend.Usenet, RequiresAuth: true}
}

func (l *lockedBackend) SetAuth(backend.AuthState) {}
func (l *lockedBackend) Auth() backend.AuthState   { return backend.AuthState{} }

type noCreds struct{}

func (noCreds) Get(string) string { return "" }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger.Init("DEBUG")
	factory := func(opts ...search.Option) *search.Aggregator {
		backends := []backend.Backend{
			&fakeBackend{name: "alpha", results: []string{"House.S02E14.HDTV.XviD-LOL", "House.S02E15.720p.HDTV.x264-LOL"}},
			&fakeBackend{name: "beta", results: []string{"House.S02E14.720p.BluRay.x264-DEMAND"}},
			&fakeBackend{name: "broken", err: errors.New("connection refused")},
			&lockedBackend{fakeBackend{name: "locked"}},
		}
		opts = append(opts, search.WithTimeout(5*time.Second))
		return search.New(backends, noCreds{}, opts...)
	}
	cfg := config.Default(t.TempDir())
	s := NewServer(cfg, factory, nil, nil)
	t.Cleanup(s.Close)
	return s
}

func TestSearchEndpoint(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?q=House+S02E14&strict=1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Normalized != "HOUSE s02e14" {
		t.Errorf("normalized = %q", body.Normalized)
	}
	if len(body.Results) != 2 {
		t.Fatalf("expected 2 results for the episode, got %+v", body.Results)
	}
	if body.Results[0].Quality != release.BluRay720p || body.Results[1].Quality != release.HDTVXviD {
		t.Errorf("results not sorted by quality: %+v", body.Results)
	}
	if len(body.Failures) != 1 || body.Failures[0].Backend != "broken" {
		t.Errorf("expected one failure from broken, got %+v", body.Failures)
	}
}

func TestSearchEndpointValidation(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	for _, path := range []string{"/api/search", "/api/search?q=+++", "/api/quality", "/api/identify?path=x"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		want := http.StatusBadRequest
		if strings.HasPrefix(path, "/api/identify") {
			want = http.StatusServiceUnavailable
		}
		if resp.StatusCode != want {
			t.Errorf("GET %s = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestBackendsEndpoint(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/backends")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body BackendsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Active) != 3 {
		t.Errorf("expected 3 active backends, got %+v", body.Active)
	}
	if len(body.Excluded) != 1 || body.Excluded[0].Name != "locked" {
		t.Errorf("expected locked to be excluded, got %+v", body.Excluded)
	}
}

func TestQualityEndpoint(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/quality?name=Lost.S06E03.720p.BluRay.x264-MACRO")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body QualityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Quality != release.BluRay720p {
		t.Errorf("quality = %v", body.Quality)
	}
	if body.Episode != "S06E03" {
		t.Errorf("episode = %q", body.Episode)
	}
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	stats := s.collectStats()
	if len(stats.Backends) != 4 {
		t.Fatalf("expected 4 backends in stats, got %+v", stats.Backends)
	}
	for _, b := range stats.Backends {
		if (b.Name == "locked") == b.Active {
			t.Errorf("unexpected active flag for %s", b.Name)
		}
	}
}

func TestWebSocketSearch(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(searchRequest{Query: "House S02E14"})
	if err := conn.WriteJSON(WSMessage{Type: "search", Payload: payload}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	var progress, failures int
	var started bool
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		switch msg.Type {
		case "search_started":
			started = true
		case "progress":
			progress++
		case "error":
			var f search.Failure
			if err := json.Unmarshal(msg.Payload, &f); err != nil {
				t.Fatal(err)
			}
			if f.Backend != "broken" {
				t.Errorf("unexpected failure %+v", f)
			}
			failures++
		case "done":
			var c search.Completion
			if err := json.Unmarshal(msg.Payload, &c); err != nil {
				t.Fatal(err)
			}
			if progress != 3 || failures != 1 {
				t.Errorf("got %d progress and %d errors before done", progress, failures)
			}
			if c.Results != 3 || c.Failures != 1 {
				t.Errorf("unexpected completion %+v", c)
			}
			if !started {
				// search_started may trail fast sessions; read on briefly
				conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				for !started {
					if err := conn.ReadJSON(&msg); err != nil {
						t.Fatalf("search_started never arrived: %v", err)
					}
					started = msg.Type == "search_started"
				}
			}
			return
		}
	}
}

func TestWebSocketBadSearch(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, _ := json.Marshal(searchRequest{Query: "   "})
	if err := conn.WriteJSON(WSMessage{Type: "search", Payload: payload}); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == "search_error" {
			return
		}
	}
}
