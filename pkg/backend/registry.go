package backend

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"showtracker/pkg/config"
	"showtracker/pkg/logger"
)

// Deps are the shared services handed to every backend constructor.
type Deps struct {
	HTTP  *HTTPClient
	Usage *UsageManager
}

// Factory builds a backend from its configuration.
type Factory func(cfg config.BackendConfig, deps Deps) (Backend, error)

// Registry maps backend type names to constructors. It is filled explicitly
// at startup.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a constructor. Registering a type twice panics.
func (r *Registry) Register(typ string, f Factory) {
	typ = strings.ToLower(typ)
	if _, dup := r.factories[typ]; dup {
		panic(fmt.Sprintf("backend type %q registered twice", typ))
	}
	r.factories[typ] = f
}

// Types lists the registered type names, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// New builds one backend.
func (r *Registry) New(cfg config.BackendConfig, deps Deps) (Backend, error) {
	f, ok := r.factories[strings.ToLower(cfg.Type)]
	if !ok {
		return nil, fmt.Errorf("backend %q: unknown type %q (known: %s)", cfg.Name, cfg.Type, strings.Join(r.Types(), ", "))
	}
	b, err := f(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", cfg.Name, err)
	}
	return b, nil
}

// Build constructs every enabled backend. Backends that fail to build are
// logged and skipped; their errors are joined into the returned error.
func (r *Registry) Build(cfgs []config.BackendConfig, deps Deps) ([]Backend, error) {
	var (
		out  []Backend
		errs []error
	)
	for _, cfg := range cfgs {
		if cfg.Disabled {
			continue
		}
		b, err := r.New(cfg, deps)
		if err != nil {
			logger.Warn("Skipping backend", "name", cfg.Name, "type", cfg.Type, "err", err)
			errs = append(errs, err)
			continue
		}
		logger.Debug("Backend ready", "name", cfg.Name, "type", cfg.Type)
		out = append(out, b)
	}
	return out, errors.Join(errs...)
}
