package tvdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"showtracker/pkg/logger"
	"showtracker/pkg/persistence"
)

const (
	defaultBaseURL = "https://api4.thetvdb.com/v4"
	stateKey       = "tvdb_token"
	successVal     = "success"
	tokenValidDays = 25 // TVDB tokens last ~1 month; refresh before expiry
)

// ErrNoMatch is returned when a search finds no series.
var ErrNoMatch = errors.New("no matching TVDB series")

// Client for TheTVDB API v4
type Client struct {
	apiKey  string
	pin     string
	baseURL string
	state   *persistence.StateManager
	client  *http.Client

	mu         sync.Mutex
	tokenCache string // in-memory cache, refreshed from state if needed
}

// Series is one search hit.
type Series struct {
	ID   string
	Name string
	Year string
}

// NewClient creates a new TVDB client. state may be nil, in which case the
// token is only cached in memory.
func NewClient(apiKey, pin string, state *persistence.StateManager) *Client {
	return &Client{
		apiKey:  apiKey,
		pin:     pin,
		baseURL: defaultBaseURL,
		state:   state,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// loginResponse matches the response from POST /login
type loginResponse struct {
	Status string `json:"status"`
	Data   struct {
		Token string `json:"token"`
	} `json:"data"`
}

// searchResponse matches the response from GET /search
type searchResponse struct {
	Status string `json:"status"`
	Data   []struct {
		TVDBID string `json:"tvdb_id"`
		Name   string `json:"name"`
		Year   string `json:"year"`
		Type   string `json:"type"`
	} `json:"data"`
}

// tokenState is stored in state.json
type tokenState struct {
	Token     string `json:"token"`
	CreatedAt string `json:"created_at"` // RFC3339
}

// ensureToken gets a valid bearer token: from cache, from state.json (if not expired), or by logging in
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("TVDB API key not configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tokenCache != "" {
		return c.tokenCache, nil
	}
	if c.state != nil {
		var stored tokenState
		if found, _ := c.state.Get(stateKey, &stored); found && stored.Token != "" {
			if created, err := time.Parse(time.RFC3339, stored.CreatedAt); err == nil {
				age := time.Since(created)
				if age < tokenValidDays*24*time.Hour {
					c.tokenCache = stored.Token
					return c.tokenCache, nil
				}
				logger.Debug("TVDB token expired, refreshing", "age_days", int(age.Hours()/24))
			}
		}
	}

	token, err := c.login(ctx)
	if err != nil {
		return "", err
	}
	if c.state != nil {
		state := tokenState{
			Token:     token,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := c.state.Set(stateKey, state); err != nil {
			logger.Warn("Failed to save TVDB token to state", "err", err)
		}
	}
	c.tokenCache = token
	return token, nil
}

func (c *Client) login(ctx context.Context) (string, error) {
	body := map[string]string{"apikey": c.apiKey}
	if c.pin != "" {
		body["pin"] = c.pin
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("TVDB login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("TVDB login returned status: %d", resp.StatusCode)
	}

	var out loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode TVDB login response: %w", err)
	}
	if out.Status != successVal || out.Data.Token == "" {
		return "", fmt.Errorf("TVDB login failed: status=%s", out.Status)
	}
	logger.Debug("TVDB login successful")
	return out.Data.Token, nil
}

// invalidateToken clears the cached token (e.g. after 401)
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.tokenCache = ""
	c.mu.Unlock()
	if c.state != nil {
		if err := c.state.Delete(stateKey); err != nil {
			logger.Warn("Failed to clear TVDB token", "err", err)
		}
	}
}

// get performs a GET with Bearer auth. A 401 drops the token and retries
// once with a fresh login.
func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusUnauthorized {
			return resp, nil
		}
		resp.Body.Close()
		c.invalidateToken()
		if attempt > 0 {
			return nil, fmt.Errorf("TVDB token invalid or expired")
		}
	}
}

// SearchSeries returns the best TVDB series match for a show name.
func (c *Client) SearchSeries(ctx context.Context, name string) (*Series, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("TVDB API key not configured")
	}
	params := url.Values{}
	params.Set("query", name)
	params.Set("type", "series")
	params.Set("limit", strconv.Itoa(5))

	resp, err := c.get(ctx, "/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TVDB search returned status: %d", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode TVDB response: %w", err)
	}
	if out.Status != successVal {
		return nil, fmt.Errorf("TVDB search failed: status=%s", out.Status)
	}
	for _, item := range out.Data {
		if item.Type != "" && item.Type != "series" {
			continue
		}
		if item.TVDBID == "" {
			continue
		}
		logger.Debug("Resolved TVDB series", "name", name, "tvdb", item.TVDBID, "match", item.Name)
		return &Series{ID: item.TVDBID, Name: item.Name, Year: item.Year}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoMatch, name)
}
