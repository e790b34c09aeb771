// Package notify publishes job lifecycle events to NATS JetStream.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
)

const publishTimeout = 5 * time.Second

// Notifier is a jobs.Emitter that can be shut down.
type Notifier interface {
	jobs.Emitter
	Close() error
}

// Noop discards every event. It is used when NATS is disabled.
type Noop struct{}

func (Noop) Emit(context.Context, jobs.Event) error { return nil }
func (Noop) Close() error                           { return nil }

// Message is the JSON body published for each event. The full pipeline
// result is reduced to the fields a subscriber needs to fetch artifacts.
type Message struct {
	Type       jobs.EventType    `json:"type"`
	JobID      string            `json:"job_id"`
	Status     jobs.Status       `json:"status,omitempty"`
	Source     jobs.Source       `json:"source,omitempty"`
	Attempt    int               `json:"attempt,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Kind       string            `json:"kind,omitempty"`
	Error      string            `json:"error,omitempty"`
	LineItems  int               `json:"line_items,omitempty"`
	Exceptions int               `json:"exceptions,omitempty"`
	Artifacts  map[string]string `json:"artifacts,omitempty"`
	Time       time.Time         `json:"time"`
}

// NewMessage flattens ev for publishing.
func NewMessage(ev jobs.Event) Message {
	m := Message{
		Type: ev.Type, JobID: ev.JobID, Status: ev.Status, Source: ev.Source, Attempt: ev.Attempt,
		Stage: ev.Stage, Kind: ev.Kind, Error: ev.Error, Time: ev.Time,
	}
	if ev.Result != nil {
		m.LineItems = ev.Result.LineItemCount
		m.Exceptions = ev.Result.ExceptionCount
		m.Artifacts = ev.Result.Artifacts
	}
	return m
}

// Subject returns the subject an event of type t is published on.
func Subject(prefix string, t jobs.EventType) string {
	return prefix + "." + string(t)
}

type publishFunc func(ctx context.Context, subject string, data []byte) error

// Publisher sends events to a JetStream stream bound to <prefix>.>.
type Publisher struct {
	conn    *nats.Conn
	prefix  string
	publish publishFunc
}

// New connects to NATS and ensures the stream exists. A disabled
// configuration returns Noop.
func New(ctx context.Context, cfg config.NATSConfig) (Notifier, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("boqbuilder"))
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			Retryable().WithContext("url", cfg.URL).Build()
	}
	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to create JetStream context").Build()
	}

	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "boqbuilder job lifecycle events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to ensure JetStream stream").
			WithContext("stream", cfg.Stream).Build()
	}

	slog.Info("NATS notifier initialized",
		slog.String("url", cfg.URL), slog.String("stream", cfg.Stream), slog.String("subject_prefix", cfg.SubjectPrefix))

	return &Publisher{
		conn:   conn,
		prefix: cfg.SubjectPrefix,
		publish: func(ctx context.Context, subject string, data []byte) error {
			_, err := js.Publish(ctx, subject, data)
			return err
		},
	}, nil
}

// Emit publishes ev on <prefix>.<type>.
func (p *Publisher) Emit(ctx context.Context, ev jobs.Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("failed to marshal job event: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	subject := Subject(p.prefix, ev.Type)
	if err := p.publish(pctx, subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to publish job event").
			Retryable().WithContext("subject", subject).Build()
	}
	slog.Debug("Published job event", logfields.JobID(ev.JobID), slog.String("subject", subject))
	return nil
}

func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
