package easynews

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"showtracker/pkg/backend"
	"showtracker/pkg/config"
	"showtracker/pkg/logger"
)

const (
	defaultBaseURL    = "https://members.easynews.com"
	searchPath        = "/2.0/search/solr-search/"
	maxResultsPerPage = 250
	minDuration       = 60
)

var (
	disallowedExts = map[string]bool{
		".rar": true, ".zip": true, ".exe": true, ".jpg": true, ".png": true, ".nfo": true,
	}
	allowedVideoExts = map[string]bool{
		".mkv": true, ".mp4": true, ".m4v": true, ".avi": true, ".ts": true,
		".mov": true, ".wmv": true, ".mpg": true, ".mpeg": true, ".flv": true, ".webm": true,
	}
)

// Client searches the Easynews usenet web front-end. Results are plain HTTP
// downloads that need the account's basic auth.
type Client struct {
	name    string
	icon    string
	baseURL string
	http    *backend.HTTPClient
	usage   *backend.UsageManager

	mu   sync.RWMutex
	auth backend.AuthState
}

// Ensure Client implements the backend interfaces at compile time.
var (
	_ backend.Backend       = (*Client)(nil)
	_ backend.Authenticator = (*Client)(nil)
	_ backend.Loginer       = (*Client)(nil)
)

// New is the registry factory. Credentials may also come from the
// credential store later, so missing ones are not an error here.
func New(cfg config.BackendConfig, deps backend.Deps) (backend.Backend, error) {
	return NewClient(cfg, deps), nil
}

// NewClient creates a new Easynews client
func NewClient(cfg config.BackendConfig, deps backend.Deps) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	name := cfg.Name
	if name == "" {
		name = "Easynews"
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = backend.NewHTTPClient(0)
	}
	return &Client{
		name:    name,
		icon:    cfg.Icon,
		baseURL: base,
		http:    httpClient,
		usage:   deps.Usage,
		auth:    backend.AuthState{Username: cfg.Username, Password: cfg.Password},
	}
}

func (c *Client) Descriptor() backend.Descriptor {
	return backend.Descriptor{
		Name:         c.name,
		Icon:         c.icon,
		Type:         backend.HTTP,
		RequiresAuth: true,
		CanLogin:     true,
	}
}

func (c *Client) SetAuth(a backend.AuthState) {
	c.mu.Lock()
	c.auth = a
	c.mu.Unlock()
}

func (c *Client) Auth() backend.AuthState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.auth
}

// LoginWith checks the credentials with a minimal search and returns the
// auth state to store when Easynews accepts them.
func (c *Client) LoginWith(ctx context.Context, username, password string) (backend.AuthState, error) {
	if username == "" || password == "" {
		return backend.AuthState{}, backend.AuthError(c.name, "username and password are required")
	}
	if _, err := c.search(ctx, "test", username, password, 1); err != nil {
		return backend.AuthState{}, err
	}
	logger.Info("Easynews login succeeded", "backend", c.name, "username", username)
	return backend.AuthState{Username: username, Password: password}, nil
}

// Search queries Easynews for video files matching query.
func (c *Client) Search(ctx context.Context, query string) ([]backend.Result, error) {
	auth := c.Auth()
	if auth.Username == "" || auth.Password == "" {
		return nil, backend.AuthError(c.name, "no login")
	}

	data, err := c.search(ctx, query, auth.Username, auth.Password, maxResultsPerPage)
	if err != nil {
		return nil, err
	}
	if c.usage != nil {
		c.usage.IncrementUsed(c.name, 1)
	}

	results := c.results(data)
	logger.Debug("Easynews search finished", "backend", c.name, "query", query, "results", len(results))
	return results, nil
}

func (c *Client) search(ctx context.Context, query, username, password string, perPage int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("fly", "2")
	params.Set("sb", "1")
	params.Set("pno", "1")
	params.Set("pby", strconv.Itoa(perPage))
	params.Set("u", "1")
	params.Set("chxu", "1")
	params.Set("chxgx", "1")
	params.Set("st", "basic")
	params.Set("gps", query)
	params.Set("vv", "1")
	params.Set("safeO", "0")
	params.Set("s1", "relevance")
	params.Set("s1d", "-")
	params.Add("fty[]", "VIDEO")

	searchURL := c.baseURL + searchPath + "?" + params.Encode()
	resp, err := c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(username, password)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, backend.AuthError(c.name, "credentials rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status %d", resp.StatusCode)
	}

	var data searchResponse
	if err := backend.DecodeJSON(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &data, nil
}

// searchResponse is the solr-search answer. Rows are either positional
// arrays or objects depending on the API version.
type searchResponse struct {
	Data  []any `json:"data"`
	Total int   `json:"total"`
}

type item struct {
	Hash     string
	Filename string
	Ext      string
	Subject  string
	Size     int64
	Duration any
}

// parseItem reads one row. Positional rows are
// [0:hash, 6:subject, 10:filename, 11:ext, 12:size, 14:duration].
func parseItem(entry any) item {
	var it item
	switch row := entry.(type) {
	case []any:
		if len(row) < 12 {
			return it
		}
		it.Hash, _ = row[0].(string)
		it.Subject, _ = row[6].(string)
		it.Filename, _ = row[10].(string)
		it.Ext, _ = row[11].(string)
		if len(row) > 12 {
			it.Size = toInt64(row[12])
		}
		if len(row) > 14 {
			it.Duration = row[14]
		}
	case map[string]any:
		it.Hash, _ = row["hash"].(string)
		it.Subject, _ = row["subject"].(string)
		it.Filename, _ = row["filename"].(string)
		it.Ext, _ = row["ext"].(string)
		it.Size = toInt64(row["size"])
		it.Duration = row["duration"]
	}
	return it
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

func (c *Client) results(data *searchResponse) []backend.Result {
	out := make([]backend.Result, 0, len(data.Data))
	seen := make(map[string]bool)
	for _, entry := range data.Data {
		it := parseItem(entry)
		if it.Hash == "" || seen[it.Hash] {
			continue
		}

		ext := strings.ToLower(it.Ext)
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if disallowedExts[ext] || (ext != "" && !allowedVideoExts[ext]) {
			continue
		}
		if d, ok := parseDuration(it.Duration); ok && d < minDuration {
			continue
		}

		title := it.Filename + ext
		if it.Filename == "" {
			title = it.Subject
		}
		if title == "" || strings.Contains(strings.ToLower(title), "sample") {
			continue
		}
		seen[it.Hash] = true

		download := fmt.Sprintf("%s/dl/%s%s/%s", c.baseURL, it.Hash, ext, url.PathEscape(title))
		out = append(out, backend.NewResult(c.name, backend.HTTP, title, it.Size, download))
	}
	return out
}

// parseDuration reads seconds from a number, "1:23:45" or "23:45".
func parseDuration(raw any) (int64, bool) {
	switch v := raw.(type) {
	case float64:
		return int64(v), v > 0
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, n > 0
		}
		parts := strings.Split(v, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return 0, false
		}
		var total int64
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil {
				return 0, false
			}
			total = total*60 + int64(n)
		}
		return total, total > 0
	}
	return 0, false
}
