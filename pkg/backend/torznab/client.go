package torznab

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"showtracker/pkg/backend"
	"showtracker/pkg/backend/feed"
	"showtracker/pkg/config"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
)

// Client searches a torrent site through a Torznab feed (Jackett, Prowlarr).
type Client struct {
	name   string
	icon   string
	apiURL string
	http   *backend.HTTPClient
	mu     sync.RWMutex
	auth   backend.AuthState
}

var (
	_ backend.Backend       = (*Client)(nil)
	_ backend.Authenticator = (*Client)(nil)
)

// New is the registry factory. The configured URL is the full Torznab
// endpoint without the trailing /api; APIPath overrides it.
func New(cfg config.BackendConfig, deps backend.Deps) (backend.Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("torznab url is required")
	}
	return NewClient(cfg, deps), nil
}

func NewClient(cfg config.BackendConfig, deps backend.Deps) *Client {
	apiPath := cfg.APIPath
	if apiPath == "" {
		apiPath = "/api"
	}
	if !strings.HasPrefix(apiPath, "/") {
		apiPath = "/" + apiPath
	}
	httpClient := deps.HTTP
	if httpClient == nil {
		httpClient = backend.NewHTTPClient(0)
	}
	name := cfg.Name
	if name == "" {
		name = "Torznab"
	}
	return &Client{
		name:   name,
		icon:   cfg.Icon,
		apiURL: strings.TrimRight(cfg.URL, "/") + apiPath,
		http:   httpClient,
		auth:   backend.AuthState{APIKey: cfg.APIKey},
	}
}

func (c *Client) Descriptor() backend.Descriptor {
	return backend.Descriptor{Name: c.name, Icon: c.icon, Type: backend.Torrent}
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

// params maps the query onto tvsearch when it carries numbering or an air
// date, using the season=YYYY ep=MM/DD convention for daily shows.
func params(query, apiKey string) url.Values {
	v := url.Values{}
	if apiKey != "" {
		v.Set("apikey", apiKey)
	}

	title, numbering, ok := release.Split(query)
	if ok {
		if ep, found := release.ExtractEpisode(numbering); found && ep.Season > 0 {
			v.Set("t", "tvsearch")
			v.Set("q", title)
			v.Set("season", strconv.Itoa(ep.Season))
			v.Set("ep", strconv.Itoa(ep.Episode))
			return v
		}
	}
	if ep, found := release.ExtractEpisode(query); found && !ep.AirDate.IsZero() {
		v.Set("t", "tvsearch")
		title := query
		if i := strings.Index(query, ep.AirDate.Format("2006")); i >= 0 {
			title = strings.TrimSpace(query[:i])
		}
		v.Set("q", title)
		v.Set("season", ep.AirDate.Format("2006"))
		v.Set("ep", ep.AirDate.Format("01/02"))
		return v
	}
	v.Set("t", "search")
	v.Set("q", query)
	return v
}

func (c *Client) Search(ctx context.Context, query string) ([]backend.Result, error) {
	apiURL := c.apiURL + "?" + params(query, c.Auth().APIKey).Encode()
	logger.Debug("Torznab search request", "backend", c.name, "query", query)

	resp, err := c.http.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	if apiErr := feed.ParseAPIError(resp.Body); apiErr != nil {
		if apiErr.IsAuth() {
			return nil, backend.AuthError(c.name, apiErr.Description)
		}
		return nil, apiErr
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, backend.AuthError(c.name, fmt.Sprintf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned status %d", resp.StatusCode)
	}

	var rss feed.RSS
	if err := backend.DecodeXML(resp.Body, &rss); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return c.results(rss.Channel.Items), nil
}

func (c *Client) results(items []feed.Item) []backend.Result {
	out := make([]backend.Result, 0, len(items))
	seen := make(map[string]bool)
	for i := range items {
		item := &items[i]
		item.Normalize()

		magnet := item.GetAttribute("magneturl")
		if magnet == "" && strings.HasPrefix(item.Link, "magnet:") {
			magnet = item.Link
		}
		hash := strings.ToLower(item.GetAttribute("infohash"))
		if magnet == "" && hash != "" {
			magnet = fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", hash, url.QueryEscape(item.Title))
		}
		if magnet == "" && item.Link == "" {
			logger.Debug("Skipping torznab item without link", "backend", c.name, "title", item.Title)
			continue
		}
		key := hash
		if key == "" {
			key = item.Link
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		out = append(out, backend.NewResult(c.name, backend.Torrent, item.Title, item.Size, magnet, item.Link, item.DetailsURL()))
	}
	return out
}
