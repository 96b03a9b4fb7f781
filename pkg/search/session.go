package search

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"showtracker/pkg/backend"
)

// Session is one fan-out search across the active backends. Its remaining set
// only shrinks, and it finishes exactly once when the set becomes empty,
// unless it was cancelled first.
type Session struct {
	ID         string
	Query      string
	Normalized string
	Started    time.Time

	observer Observer
	stop     context.CancelFunc
	unwatch  func() bool
	done     chan struct{}

	// notify serializes state changes together with their notifications, so
	// observers see percentages in increasing order.
	notify sync.Mutex

	mu        sync.Mutex
	total     int
	remaining map[string]bool
	results   []backend.Result
	failures  []Failure
	finished  bool
	cancelled bool
}

func newSession(query, normalized string, names []string, observer Observer, stop context.CancelFunc) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		Query:      query,
		Normalized: normalized,
		Started:    time.Now(),
		observer:   observer,
		stop:       stop,
		done:       make(chan struct{}),
		total:      len(names),
		remaining:  make(map[string]bool, len(names)),
	}
	for _, name := range names {
		s.remaining[name] = true
	}
	return s
}

// finishEmpty completes a session that has no backends at all.
func (s *Session) finishEmpty() {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	s.finished = true
	close(s.done)
	s.mu.Unlock()

	s.release()
	s.observer.Done(Completion{SessionID: s.ID, Elapsed: time.Since(s.Started)})
}

// complete records the outcome of one backend. Late completions after a
// cancel, and repeated completions for the same backend, are ignored.
func (s *Session) complete(name string, results []backend.Result, err error) {
	s.notify.Lock()
	defer s.notify.Unlock()

	s.mu.Lock()
	if s.cancelled || s.finished || !s.remaining[name] {
		s.mu.Unlock()
		return
	}
	delete(s.remaining, name)

	var failure *Failure
	if err != nil {
		f := newFailure(s.ID, name, err)
		s.failures = append(s.failures, f)
		failure = &f
		results = nil
	}
	s.results = append(s.results, results...)

	progress := Progress{
		SessionID: s.ID,
		Backend:   name,
		Results:   results,
		Percent:   s.percentLocked(),
		Remaining: s.remainingLocked(),
	}

	var completion *Completion
	if len(s.remaining) == 0 {
		s.finished = true
		close(s.done)
		completion = &Completion{
			SessionID: s.ID,
			Results:   len(s.results),
			Failures:  len(s.failures),
			Elapsed:   time.Since(s.Started),
		}
	}
	s.mu.Unlock()

	if failure != nil {
		s.observer.Error(*failure)
	}
	s.observer.ProgressChanged(progress)
	if completion != nil {
		s.release()
		s.observer.Done(*completion)
	}
}

// watch cancels the session when ctx ends.
func (s *Session) watch(ctx context.Context) {
	unwatch := context.AfterFunc(ctx, s.Cancel)
	s.mu.Lock()
	s.unwatch = unwatch
	s.mu.Unlock()
}

// release frees the backend context and stops watching the caller's context.
func (s *Session) release() {
	s.stop()
	s.mu.Lock()
	unwatch := s.unwatch
	s.mu.Unlock()
	if unwatch != nil {
		unwatch()
	}
}

func newFailure(sessionID, name string, err error) Failure {
	message := "search failed"
	switch {
	case errors.Is(err, backend.ErrAuthRequired):
		message = "authentication required"
	case errors.Is(err, context.DeadlineExceeded):
		message = "timed out"
	case errors.Is(err, context.Canceled):
		message = "cancelled"
	}
	return Failure{SessionID: sessionID, Backend: name, Message: message, Detail: err.Error(), Err: err}
}

func (s *Session) percentLocked() float64 {
	if s.total == 0 {
		return 100
	}
	return float64(s.total-len(s.remaining)) / float64(s.total) * 100
}

func (s *Session) remainingLocked() []string {
	names := make([]string, 0, len(s.remaining))
	for name := range s.remaining {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cancel stops the session. Backends are asked to stop through their
// context; a cancelled session never reports Done.
func (s *Session) Cancel() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	s.mu.Unlock()
	s.release()
}

// Percent is the share of backends that have finished, 0 to 100.
func (s *Session) Percent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.percentLocked()
}

// Remaining lists the backends still searching, sorted.
func (s *Session) Remaining() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked()
}

// Results returns the results collected so far, in completion order.
func (s *Session) Results() []backend.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]backend.Result(nil), s.results...)
}

// Failures returns the backend failures collected so far.
func (s *Session) Failures() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failures...)
}

// Finished reports whether every backend has completed.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finished
}

// Cancelled reports whether Cancel stopped the session before it finished.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Done is closed when the session finishes. It stays open for a cancelled
// session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the session finishes or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		select {
		case <-s.done:
			return nil
		default:
			return ctx.Err()
		}
	}
}
