package newznab

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

// tvCategory is the Newznab TV category.
const tvCategory = "5000"

// Client is a Newznab API client for a single usenet indexer.
type Client struct {
	baseURL string
	apiPath string
	name    string
	icon    string
	http    *backend.HTTPClient

	mu       sync.RWMutex
	auth     backend.AuthState
	apiLimit int
	apiUsed  int
	apiLeft  int
	usage    *backend.UsageManager
}

// Ensure Client implements the backend interfaces at compile time.
var (
	_ backend.Backend       = (*Client)(nil)
	_ backend.Authenticator = (*Client)(nil)
)

// New is the registry factory.
func New(cfg config.BackendConfig, deps backend.Deps) (backend.Backend, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("newznab url is required")
	}
	return NewClient(cfg, deps), nil
}

// NewClient creates a new Newznab client
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

	c := &Client{
		name:     cfg.Name,
		icon:     cfg.Icon,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiPath:  apiPath,
		http:     httpClient,
		auth:     backend.AuthState{APIKey: cfg.APIKey},
		apiLimit: cfg.APIHitsDay,
		apiLeft:  cfg.APIHitsDay,
		usage:    deps.Usage,
	}

	if c.usage != nil {
		used := c.usage.Usage(c.Name()).APIHitsUsed
		c.apiUsed = used
		c.apiLeft = cfg.APIHitsDay - used
		if c.apiLeft < 0 && cfg.APIHitsDay > 0 {
			c.apiLeft = 0
		}
	}
	return c
}

// Name returns the name of this indexer
func (c *Client) Name() string {
	if c.name != "" {
		return c.name
	}
	return "Newznab"
}

func (c *Client) Descriptor() backend.Descriptor {
	return backend.Descriptor{
		Name:         c.Name(),
		Icon:         c.icon,
		Type:         backend.Usenet,
		RequiresAuth: true,
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

// checkAPILimit returns error if the daily API limit is reached
func (c *Client) checkAPILimit() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.apiLimit > 0 && c.apiLeft <= 0 {
		return fmt.Errorf("daily API limit of %d reached", c.apiLimit)
	}
	return nil
}

// updateUsageFromHeaders updates remaining counts from Newznab headers
func (c *Client) updateUsageFromHeaders(h http.Header) {
	c.mu.Lock()
	c.apiUsed++
	if c.apiLeft > 0 {
		c.apiLeft--
	}
	if val := h.Get("X-RateLimit-Daily-Limit"); val != "" {
		if limit, err := strconv.Atoi(val); err == nil {
			c.apiLimit = limit
		}
	}
	remaining := h.Get("X-RateLimit-Daily-Remaining")
	if remaining == "" {
		remaining = h.Get("x-api-remaining")
	}
	if remaining != "" {
		if n, err := strconv.Atoi(remaining); err == nil {
			c.apiLeft = n
			if c.apiLimit > 0 {
				c.apiUsed = c.apiLimit - n
			}
		}
	}
	used := c.apiUsed
	c.mu.Unlock()

	if c.usage != nil {
		c.usage.SetUsed(c.Name(), used)
	}
}

// Remaining reports the API hits left today; -1 when the indexer has no limit.
func (c *Client) Remaining() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.apiLimit <= 0 {
		return -1
	}
	return c.apiLeft
}

// checkNewznabError maps Newznab error bodies to errors.
func (c *Client) checkNewznabError(body []byte) error {
	apiErr := feed.ParseAPIError(body)
	if apiErr == nil {
		return nil
	}
	switch {
	case apiErr.IsAuth():
		return backend.AuthError(c.Name(), apiErr.Description)
	case apiErr.Code == 201:
		return fmt.Errorf("request limit reached (code %d): %s", apiErr.Code, apiErr.Description)
	case apiErr.Code >= 200 && apiErr.Code <= 299:
		return fmt.Errorf("request error (code %d): %s", apiErr.Code, apiErr.Description)
	case apiErr.Code >= 300 && apiErr.Code <= 399:
		return fmt.Errorf("server error (code %d): %s", apiErr.Code, apiErr.Description)
	default:
		return apiErr
	}
}

// searchParams builds the query. Queries carrying episode numbering become a
// tvsearch with season/ep parameters.
func (c *Client) searchParams(query, apiKey string) url.Values {
	params := url.Values{}
	params.Set("apikey", apiKey)
	params.Set("o", "xml")
	params.Set("limit", "100")

	title, numbering, ok := release.Split(query)
	ep, hasEp := release.ExtractEpisode(numbering)
	if ok && hasEp && ep.Season > 0 {
		params.Set("t", "tvsearch")
		params.Set("cat", tvCategory)
		params.Set("q", title)
		params.Set("season", strconv.Itoa(ep.Season))
		params.Set("ep", strconv.Itoa(ep.Episode))
		return params
	}
	params.Set("t", "search")
	params.Set("q", query)
	return params
}

// Search queries the Newznab indexer.
func (c *Client) Search(ctx context.Context, query string) ([]backend.Result, error) {
	if err := c.checkAPILimit(); err != nil {
		return nil, err
	}
	auth := c.Auth()
	if auth.APIKey == "" {
		return nil, backend.AuthError(c.Name(), "no API key")
	}

	apiURL := fmt.Sprintf("%s%s?%s", c.baseURL, c.apiPath, c.searchParams(query, auth.APIKey).Encode())
	logger.Debug("Newznab search request", "indexer", c.Name(), "query", query)

	resp, err := c.http.Get(ctx, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	c.updateUsageFromHeaders(resp.Header)

	if err := c.checkNewznabError(resp.Body); err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, backend.AuthError(c.Name(), fmt.Sprintf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("returned status %d", resp.StatusCode)
	}

	var rss feed.RSS
	if err := backend.DecodeXML(resp.Body, &rss); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	results := make([]backend.Result, 0, len(rss.Channel.Items))
	for i := range rss.Channel.Items {
		item := &rss.Channel.Items[i]
		item.Normalize()
		if item.Title == "" || item.Link == "" {
			continue
		}
		results = append(results, backend.NewResult(c.Name(), backend.Usenet, item.Title, item.Size, item.Link, item.DetailsURL()))
	}
	logger.Debug("Newznab search finished", "indexer", c.Name(), "results", len(results))
	return results, nil
}
