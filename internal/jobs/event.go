package jobs

import (
	"context"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/pipeline"
)

// EventType names a job lifecycle transition.
type EventType string

const (
	EventQueued    EventType = "queued"
	EventStarted   EventType = "started"
	EventRetrying  EventType = "retrying"
	EventSucceeded EventType = "succeeded"
	EventFailed    EventType = "failed"
)

// Event is emitted by the queue on every lifecycle transition.
type Event struct {
	Type    EventType        `json:"type"`
	JobID   string           `json:"job_id"`
	Input   string           `json:"input,omitempty"`
	Source  Source           `json:"source,omitempty"`
	Status  Status           `json:"status,omitempty"` // final status on succeeded/failed
	Worker  string           `json:"worker,omitempty"`
	Attempt int              `json:"attempt,omitempty"`
	Stage   string           `json:"stage,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Error   string           `json:"error,omitempty"`
	Result  *pipeline.Result `json:"result,omitempty"`
	Time    time.Time        `json:"time"`
}

// Emitter consumes lifecycle events. Emit errors are logged and never fail a job.
type Emitter interface {
	Emit(ctx context.Context, ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, ev Event) error

func (f EmitterFunc) Emit(ctx context.Context, ev Event) error { return f(ctx, ev) }
