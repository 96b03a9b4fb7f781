package backend

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"showtracker/pkg/logger"
)

type fakeBackend struct {
	desc   Descriptor
	search func(ctx context.Context, query string) ([]Result, error)
	auth   AuthState
}

func (f *fakeBackend) Descriptor() Descriptor { return f.desc }

func (f *fakeBackend) Search(ctx context.Context, query string) ([]Result, error) {
	return f.search(ctx, query)
}

func (f *fakeBackend) SetAuth(a AuthState) { f.auth = a }
func (f *fakeBackend) Auth() AuthState     { return f.auth }

func blockingBackend(started chan<- struct{}) *fakeBackend {
	return &fakeBackend{
		desc: Descriptor{Name: "slow"},
		search: func(ctx context.Context, query string) ([]Result, error) {
			if started != nil {
				started <- struct{}{}
			}
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
}

func TestRunnerSearch(t *testing.T) {
	b := &fakeBackend{
		desc: Descriptor{Name: "ok"},
		search: func(ctx context.Context, query string) ([]Result, error) {
			return []Result{NewResult("ok", Torrent, query, 1)}, nil
		},
	}
	results, err := NewRunner(b, time.Second).Search(context.Background(), "LOST s06e03")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Release != "LOST s06e03" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestRunnerRecoversPanic(t *testing.T) {
	logger.Init("DEBUG")
	b := &fakeBackend{
		desc: Descriptor{Name: "broken"},
		search: func(ctx context.Context, query string) ([]Result, error) {
			panic("parser exploded")
		},
	}
	_, err := NewRunner(b, 0).Search(context.Background(), "q")
	var be *Error
	if !errors.As(err, &be) || be.Backend != "broken" {
		t.Fatalf("expected *Error for broken, got %v", err)
	}
	if !strings.Contains(err.Error(), "parser exploded") {
		t.Errorf("panic value missing from %q", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	_, err := NewRunner(blockingBackend(nil), 20*time.Millisecond).Search(context.Background(), "q")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected timeout message, got %q", err)
	}
}

func TestRunnerWrapsErrors(t *testing.T) {
	inner := AuthError("idx", "bad key")
	b := &fakeBackend{
		desc:   Descriptor{Name: "idx"},
		search: func(ctx context.Context, query string) ([]Result, error) { return nil, inner },
	}
	_, err := NewRunner(b, 0).Search(context.Background(), "q")
	if err != inner {
		t.Errorf("existing *Error should pass through unchanged, got %v", err)
	}
	if !errors.Is(err, ErrAuthRequired) {
		t.Error("expected ErrAuthRequired")
	}
}

func TestRunnerSearchAsyncCancelsPrevious(t *testing.T) {
	started := make(chan struct{}, 2)
	r := NewRunner(blockingBackend(started), 0)

	first := make(chan error, 1)
	r.SearchAsync(context.Background(), "one", func(_ []Result, err error) { first <- err })
	<-started
	if !r.Busy() {
		t.Error("runner should be busy")
	}

	second := make(chan error, 1)
	r.SearchAsync(context.Background(), "two", func(_ []Result, err error) { second <- err })

	select {
	case err := <-first:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("first search: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first search was not cancelled by the second")
	}

	<-started
	r.CancelAsync()
	select {
	case err := <-second:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("second search: expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("CancelAsync did not stop the search")
	}
	if r.Busy() {
		t.Error("runner should be idle after cancel")
	}
}

func TestRunnerDoneCalledOnce(t *testing.T) {
	var calls atomic.Int32
	done := make(chan struct{})
	b := &fakeBackend{
		desc:   Descriptor{Name: "ok"},
		search: func(ctx context.Context, query string) ([]Result, error) { return nil, nil },
	}
	r := NewRunner(b, 0)
	r.SearchAsync(context.Background(), "q", func([]Result, error) {
		calls.Add(1)
		close(done)
	})
	<-done
	r.CancelAsync()
	time.Sleep(10 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("done called %d times", calls.Load())
	}
	if r.Busy() {
		t.Error("runner should be idle after completion")
	}
}
