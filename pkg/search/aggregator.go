// Package search fans a normalized query out to every active backend and
// merges what comes back.
package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"showtracker/pkg/backend"
	"showtracker/pkg/logger"
	"showtracker/pkg/release"
)

// DefaultTimeout bounds one backend's search.
const DefaultTimeout = 45 * time.Second

// ErrEmptyQuery is returned for queries with nothing left after normalizing.
var ErrEmptyQuery = errors.New("empty search query")

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithObserver adds an observer that receives the notifications of every
// session.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observers = append(a.observers, o)
	}
}

// WithTimeout sets the per-backend deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.timeout = d
	}
}

// Aggregator owns the active backends. Backends that require auth and have
// none after consulting the credential store are excluded once, in New.
type Aggregator struct {
	observers Observers
	timeout   time.Duration
	runners   []*backend.Runner
	excluded  []backend.Descriptor

	mu      sync.Mutex
	current *Session
}

// New builds an aggregator from candidate backends, applying stored
// credentials to each. Backends with a duplicate name are dropped.
func New(candidates []backend.Backend, creds backend.CredentialStore, opts ...Option) *Aggregator {
	a := &Aggregator{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(a)
	}

	seen := make(map[string]bool, len(candidates))
	for _, b := range candidates {
		desc := b.Descriptor()
		if seen[desc.Name] {
			logger.Warn("Ignoring backend with duplicate name", "backend", desc.Name)
			continue
		}
		seen[desc.Name] = true

		if !backend.ApplyStoredAuth(b, creds) {
			logger.Info("Backend excluded, no credentials", "backend", desc.Name)
			a.excluded = append(a.excluded, desc)
			continue
		}
		a.runners = append(a.runners, backend.NewRunner(b, a.timeout))
	}
	return a
}

// Active describes the backends that take part in searches.
func (a *Aggregator) Active() []backend.Descriptor {
	out := make([]backend.Descriptor, len(a.runners))
	for i, r := range a.runners {
		out[i] = r.Backend().Descriptor()
	}
	return out
}

// Excluded describes the backends left out for missing credentials.
func (a *Aggregator) Excluded() []backend.Descriptor {
	return append([]backend.Descriptor(nil), a.excluded...)
}

// Backend returns the active backend with the given name.
func (a *Aggregator) Backend(name string) (backend.Backend, bool) {
	for _, r := range a.runners {
		if r.Name() == name {
			return r.Backend(), true
		}
	}
	return nil, false
}

// NormalizeQuery reduces a raw query to the form sent to backends: root
// title tokens followed by the lower-cased numbering, if any.
func NormalizeQuery(query string) string {
	query = strings.TrimSpace(query)
	normalized := release.Normalize(query)
	if normalized == "" {
		return query
	}
	return normalized
}

func (a *Aggregator) names() []string {
	names := make([]string, len(a.runners))
	for i, r := range a.runners {
		names[i] = r.Name()
	}
	return names
}

func (a *Aggregator) start(ctx context.Context, query string, extra []Observer) (*Session, context.Context, error) {
	normalized := NormalizeQuery(query)
	if normalized == "" {
		return nil, nil, ErrEmptyQuery
	}
	observer := append(Observers{}, a.observers...)
	observer = append(observer, extra...)

	// Backends run on a context detached from the caller's, so ending ctx
	// marks the session cancelled before any backend sees it.
	runCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	s := newSession(query, normalized, a.names(), observer, stop)
	s.watch(ctx)
	logger.Debug("Search session started", "session", s.ID, "query", query, "normalized", normalized, "backends", len(a.runners))
	return s, runCtx, nil
}

// SearchAsync starts a session and returns at once. Any session started
// earlier through SearchAsync is cancelled first, as each backend runs at
// most one asynchronous search.
func (a *Aggregator) SearchAsync(ctx context.Context, query string, observers ...Observer) (*Session, error) {
	s, ctx, err := a.start(ctx, query, observers)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	if a.current != nil {
		a.current.Cancel()
	}
	a.current = s
	a.mu.Unlock()

	if len(a.runners) == 0 {
		s.finishEmpty()
		return s, nil
	}
	for _, r := range a.runners {
		name := r.Name()
		r.SearchAsync(ctx, s.Normalized, func(results []backend.Result, err error) {
			s.complete(name, results, err)
		})
	}
	return s, nil
}

// CancelAsync cancels the session started by SearchAsync, if any.
// Cancellation is best effort; the session will not report Done.
func (a *Aggregator) CancelAsync() {
	a.mu.Lock()
	s := a.current
	a.current = nil
	a.mu.Unlock()

	if s == nil {
		return
	}
	s.Cancel()
	logger.Debug("Search session cancelled", "session", s.ID)
}

// Run searches every active backend and waits for all of them. It does not
// touch the asynchronous session, so blocking searches may run concurrently.
// When ctx ends first the session is cancelled and returned with ctx's error.
func (a *Aggregator) Run(ctx context.Context, query string, observers ...Observer) (*Session, error) {
	s, runCtx, err := a.start(ctx, query, observers)
	if err != nil {
		return nil, err
	}
	if len(a.runners) == 0 {
		s.finishEmpty()
		return s, nil
	}

	for _, r := range a.runners {
		go func(r *backend.Runner) {
			results, err := r.Search(runCtx, s.Normalized)
			s.complete(r.Name(), results, err)
		}(r)
	}
	if err := s.Wait(ctx); err != nil {
		s.Cancel()
		return s, err
	}
	return s, nil
}

// Search is Run returning only the results. Failed backends contribute
// nothing and do not fail the call.
func (a *Aggregator) Search(ctx context.Context, query string) ([]backend.Result, error) {
	s, err := a.Run(ctx, query)
	if s == nil {
		return nil, err
	}
	return s.Results(), err
}
