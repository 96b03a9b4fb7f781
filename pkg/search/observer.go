package search

import (
	"time"

	"showtracker/pkg/backend"
	"showtracker/pkg/logger"
)

// Progress is reported each time one backend of a session finishes.
// Results holds only what that backend produced.
type Progress struct {
	SessionID string           `json:"session_id"`
	Backend   string           `json:"backend"`
	Results   []backend.Result `json:"results"`
	Percent   float64          `json:"percent"`
	Remaining []string         `json:"remaining"`
}

// Failure describes one backend that failed during a session.
type Failure struct {
	SessionID string `json:"session_id"`
	Backend   string `json:"backend"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Err       error  `json:"-"`
}

// Completion is reported once, after the last backend of a session finished.
type Completion struct {
	SessionID string        `json:"session_id"`
	Results   int           `json:"results"`
	Failures  int           `json:"failures"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Observer receives the notifications of a search session. Calls for one
// session are serialized.
type Observer interface {
	ProgressChanged(Progress)
	Error(Failure)
	Done(Completion)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) ProgressChanged(p Progress) {
	for _, obs := range o {
		obs.ProgressChanged(p)
	}
}

func (o Observers) Error(f Failure) {
	for _, obs := range o {
		obs.Error(f)
	}
}

func (o Observers) Done(c Completion) {
	for _, obs := range o {
		obs.Done(c)
	}
}

// EventType names the kind of an Event.
type EventType string

const (
	EventProgress EventType = "progress"
	EventError    EventType = "error"
	EventDone     EventType = "done"
)

// Event is one notification as a value, for callers that drain a channel
// instead of implementing Observer.
type Event struct {
	Type       EventType   `json:"type"`
	Progress   *Progress   `json:"progress,omitempty"`
	Failure    *Failure    `json:"failure,omitempty"`
	Completion *Completion `json:"completion,omitempty"`
}

// ChanObserver turns notifications into Events on a channel. Sends block
// when the buffer is full, so the caller must keep draining C until the done
// event of every session it observes.
type ChanObserver struct {
	events chan Event
}

// NewChanObserver creates a ChanObserver with the given buffer size.
func NewChanObserver(buffer int) *ChanObserver {
	return &ChanObserver{events: make(chan Event, buffer)}
}

// C returns the event channel. It is never closed.
func (c *ChanObserver) C() <-chan Event {
	return c.events
}

func (c *ChanObserver) ProgressChanged(p Progress) {
	c.events <- Event{Type: EventProgress, Progress: &p}
}

func (c *ChanObserver) Error(f Failure) {
	c.events <- Event{Type: EventError, Failure: &f}
}

func (c *ChanObserver) Done(done Completion) {
	c.events <- Event{Type: EventDone, Completion: &done}
}

// LogObserver writes session notifications to the global logger.
type LogObserver struct{}

func (LogObserver) ProgressChanged(p Progress) {
	logger.Debug("Search progress", "session", p.SessionID, "backend", p.Backend,
		"results", len(p.Results), "percent", p.Percent, "remaining", p.Remaining)
}

func (LogObserver) Error(f Failure) {
	logger.Warn("Backend search failed", "session", f.SessionID, "backend", f.Backend, "message", f.Message, "detail", f.Detail)
}

func (LogObserver) Done(c Completion) {
	logger.Info("Search finished", "session", c.SessionID, "results", c.Results, "failures", c.Failures, "elapsed", c.Elapsed)
}
