package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"

	"showtracker/pkg/logger"
)

// Runner drives asynchronous searches on one backend. At most one search is
// in flight per Runner: starting a new one cancels the previous one.
type Runner struct {
	backend Backend
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

// NewRunner wraps b. A positive timeout bounds every search.
func NewRunner(b Backend, timeout time.Duration) *Runner {
	return &Runner{backend: b, timeout: timeout}
}

// Backend returns the wrapped backend.
func (r *Runner) Backend() Backend {
	return r.backend
}

// Name is the backend's descriptor name.
func (r *Runner) Name() string {
	return r.backend.Descriptor().Name
}

// Search runs one synchronous search. A panic inside the backend is returned
// as an *Error instead of crashing the caller.
func (r *Runner) Search(ctx context.Context, query string) (results []Result, err error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	name := r.Name()
	var pc panics.Catcher
	pc.Try(func() {
		results, err = r.backend.Search(ctx, query)
	})
	if rec := pc.Recovered(); rec != nil {
		logger.Error("Backend search panicked", "backend", name, "panic", rec.Value)
		return nil, &Error{Backend: name, Op: "search", Err: fmt.Errorf("panic: %v", rec.Value)}
	}
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", r.timeout, err)
		}
		return nil, AsError(name, "search", err)
	}
	return results, nil
}

// SearchAsync cancels any in-flight search on this runner and starts a new
// one. done is called exactly once, from the search goroutine, when the
// search returns.
func (r *Runner) SearchAsync(ctx context.Context, query string, done func([]Result, error)) {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	gen := r.generation
	r.cancel = cancel
	r.mu.Unlock()

	go func() {
		results, err := r.Search(ctx, query)

		r.mu.Lock()
		if r.generation == gen {
			r.cancel = nil
		}
		r.mu.Unlock()
		cancel()

		done(results, err)
	}()
}

// CancelAsync cancels the in-flight search, if any. Cancellation is best
// effort: a backend blocked in a call that ignores its context finishes late.
func (r *Runner) CancelAsync() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Busy reports whether an uncancelled SearchAsync search is still running.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}
