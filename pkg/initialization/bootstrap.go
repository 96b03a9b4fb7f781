package initialization

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"showtracker/pkg/backend"
	"showtracker/pkg/backend/easynews"
	"showtracker/pkg/backend/newznab"
	"showtracker/pkg/backend/subtitles"
	"showtracker/pkg/backend/torznab"
	"showtracker/pkg/cache"
	"showtracker/pkg/config"
	"showtracker/pkg/identify"
	"showtracker/pkg/logger"
	"showtracker/pkg/persistence"
	"showtracker/pkg/release"
	"showtracker/pkg/search"
	"showtracker/pkg/services/metadata/tvdb"
	"showtracker/pkg/showdb"
)

// InitializedComponents holds all the components initialized during bootstrap
type InitializedComponents struct {
	Config      *config.Config
	State       *persistence.StateManager
	Credentials *persistence.Credentials
	Usage       *backend.UsageManager
	Backends    []backend.Backend
	Shows       *showdb.Store
	ShowCache   *cache.Cache[string, identify.ShowInfo]
	Identifier  *identify.Identifier

	registry *backend.Registry
	deps     backend.Deps
}

// NewRegistry returns the registry of every built-in backend type.
func NewRegistry() *backend.Registry {
	r := backend.NewRegistry()
	r.Register("newznab", newznab.New)
	r.Register("torznab", torznab.New)
	r.Register("easynews", easynews.New)
	r.Register("subtitles", subtitles.New)
	return r
}

// Bootstrap coordinates the application startup sequence
func Bootstrap() (*InitializedComponents, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return BootstrapWith(cfg)
}

// BootstrapWith builds every component from an already loaded config.
func BootstrapWith(cfg *config.Config) (*InitializedComponents, error) {
	if cfg.Log.File != "" {
		if err := logger.EnableFile(logger.FileOptions{
			Path:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAgeDays: cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		}); err != nil {
			logger.Warn("Failed to enable log file", "path", cfg.Log.File, "err", err)
		}
	}

	if _, err := search.NewFilter(cfg.Filter); err != nil {
		return nil, fmt.Errorf("filter config: %w", err)
	}
	release.SetExceptions(cfg.SceneExceptions)

	// 1. State file, credentials and usage
	dataDir := filepath.Dir(cfg.LoadedPath)
	state, err := persistence.NewManager(dataDir)
	if err != nil {
		return nil, fmt.Errorf("state error: %w", err)
	}
	creds, err := persistence.NewCredentials(state)
	if err != nil {
		return nil, fmt.Errorf("credentials error: %w", err)
	}
	usage, err := backend.NewUsageManager(state)
	if err != nil {
		return nil, fmt.Errorf("usage error: %w", err)
	}

	// 2. Search backends
	deps := backend.Deps{
		HTTP:  backend.NewHTTPClient(cfg.SearchTimeout()),
		Usage: usage,
	}
	registry := NewRegistry()
	backends, err := registry.Build(cfg.EnabledBackends(), deps)
	if err != nil {
		logger.Error("Some backends failed to initialize", "err", err)
	}
	names := make([]string, len(backends))
	for i, b := range backends {
		names[i] = b.Descriptor().Name
	}
	usage.SyncUsage(names)
	logger.Info("Initialized search backends", "count", len(backends))

	// 3. Show database and identification
	shows, err := showdb.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("show database error: %w", err)
	}
	showCache := cache.New[string, identify.ShowInfo](cfg.ShowCacheTTL())

	var remote identify.RemoteIdentifier
	if cfg.TVDBAPIKey != "" {
		remote = TVDBRemote(tvdb.NewClient(cfg.TVDBAPIKey, cfg.TVDBPIN, state))
		logger.Info("TVDB lookups enabled")
	} else {
		logger.Debug("TVDB_API_KEY not set, identification uses the local database only")
	}

	return &InitializedComponents{
		Config:      cfg,
		State:       state,
		Credentials: creds,
		Usage:       usage,
		Backends:    backends,
		Shows:       shows,
		ShowCache:   showCache,
		Identifier:  identify.New(shows, remote, showCache),
		registry:    registry,
		deps:        deps,
	}, nil
}

// TVDBRemote adapts a TVDB client to the identifier's remote lookup. A
// search without a match is a negative answer, not an error.
func TVDBRemote(client *tvdb.Client) identify.RemoteIdentifier {
	return identify.RemoteFunc(func(ctx context.Context, name string) (identify.ShowInfo, error) {
		series, err := client.SearchSeries(ctx, name)
		if errors.Is(err, tvdb.ErrNoMatch) {
			return identify.ShowInfo{}, nil
		}
		if err != nil {
			return identify.ShowInfo{}, err
		}
		return identify.ShowInfo{Success: true, SourceID: series.ID, Title: series.Name}, nil
	})
}

// NewAggregator builds a search aggregator over its own instances of the
// configured backends, applying the stored credentials anew. Aggregators never
// share a backend, so each backend runs at most one search at a time. It
// serves as api.AggregatorFactory.
func (c *InitializedComponents) NewAggregator(opts ...search.Option) *search.Aggregator {
	opts = append([]search.Option{search.WithTimeout(c.Config.SearchTimeout())}, opts...)
	return search.New(c.newBackends(), c.Credentials, opts...)
}

// newBackends rebuilds the backends that built at bootstrap. Build errors
// were logged then and are skipped quietly here.
func (c *InitializedComponents) newBackends() []backend.Backend {
	if c.registry == nil {
		return c.Backends
	}
	out := make([]backend.Backend, 0, len(c.Backends))
	for _, bc := range c.Config.EnabledBackends() {
		if b, err := c.registry.New(bc, c.deps); err == nil {
			out = append(out, b)
		}
	}
	return out
}

// Close releases the database and cache.
func (c *InitializedComponents) Close() {
	c.ShowCache.Close()
	if err := c.Shows.Close(); err != nil {
		logger.Warn("Failed to close show database", "err", err)
	}
}
