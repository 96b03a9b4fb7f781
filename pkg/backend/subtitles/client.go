// Package subtitles is a backend for OpenSubtitles-style JSON search APIs.
package subtitles

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
	"showtracker/pkg/release"
)

const defaultBaseURL = "https://api.opensubtitles.com"

// Client searches a subtitle site. Each file of a subtitle entry becomes one
// result tagged with the entry's language.
type Client struct {
	name     string
	icon     string
	baseURL  string
	language string
	http     *backend.HTTPClient

	mu   sync.RWMutex
	auth backend.AuthState
}

var (
	_ backend.Backend       = (*Client)(nil)
	_ backend.Authenticator = (*Client)(nil)
)

func New(cfg config.BackendConfig, deps backend.Deps) (backend.Backend, error) {
	return NewClient(cfg, deps), nil
}

func NewClient(cfg config.BackendConfig, deps backend.Deps) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	name := cfg.Name
	if name == "" {
		name = "Subtitles"
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = backend.NewHTTPClient(0)
	}
	return &Client{
		name:     name,
		icon:     cfg.Icon,
		baseURL:  base,
		language: strings.ToLower(cfg.Language),
		http:     httpClient,
		auth:     backend.AuthState{APIKey: cfg.APIKey},
	}
}

func (c *Client) Descriptor() backend.Descriptor {
	return backend.Descriptor{Name: c.name, Icon: c.icon, Type: backend.Subtitle}
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

type searchResponse struct {
	Data []struct {
		Attributes attributes `json:"attributes"`
	} `json:"data"`
}

type attributes struct {
	Release  string `json:"release"`
	Language string `json:"language"`
	URL      string `json:"url"`
	Files    []struct {
		FileID   int64  `json:"file_id"`
		FileName string `json:"file_name"`
	} `json:"files"`
}

// queryParams uses the structured season/episode fields when the query
// carries numbering.
func (c *Client) queryParams(query string) url.Values {
	v := url.Values{}
	if c.language != "" {
		v.Set("languages", c.language)
	}
	title, numbering, ok := release.Split(query)
	if ok {
		if ep, found := release.ExtractEpisode(numbering); found && ep.Season > 0 {
			v.Set("query", strings.ToLower(title))
			v.Set("season_number", strconv.Itoa(ep.Season))
			v.Set("episode_number", strconv.Itoa(ep.Episode))
			v.Set("type", "episode")
			return v
		}
	}
	v.Set("query", strings.ToLower(query))
	return v
}

// Search looks up subtitles for the query.
func (c *Client) Search(ctx context.Context, query string) ([]backend.Result, error) {
	searchURL := c.baseURL + "/api/v1/subtitles?" + c.queryParams(query).Encode()
	header := http.Header{}
	header.Set("Accept", "application/json")
	if key := c.Auth().APIKey; key != "" {
		header.Set("Api-Key", key)
	}

	resp, err := c.http.Get(ctx, searchURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, backend.AuthError(c.name, fmt.Sprintf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned status %d", resp.StatusCode)
	}

	var data searchResponse
	if err := backend.DecodeJSON(resp.Body, &data); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var results []backend.Result
	for _, entry := range data.Data {
		attr := entry.Attributes
		if c.language != "" && !strings.EqualFold(attr.Language, c.language) {
			continue
		}
		for _, f := range attr.Files {
			name := attr.Release
			if name == "" {
				name = f.FileName
			}
			download := fmt.Sprintf("%s/api/v1/download?file_id=%d", c.baseURL, f.FileID)
			r := backend.NewResult(c.name, backend.Subtitle, name, 0, download, attr.URL)
			r.Language = strings.ToLower(attr.Language)
			results = append(results, r)
		}
	}
	logger.Debug("Subtitle search finished", "backend", c.name, "query", query, "results", len(results))
	return results, nil
}
