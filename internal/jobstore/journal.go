package jobstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
)

// Journal persists queue events and serves the projected job records.
// It implements jobs.Emitter.
type Journal struct {
	store *SQLiteStore
	proj  *Projection
}

// Open opens the database at path and rebuilds the projection from it.
func Open(ctx context.Context, path string, historySize int) (*Journal, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	j := &Journal{store: store, proj: NewProjection(historySize)}
	if err := j.Rebuild(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return j, nil
}

// Rebuild refolds every stored event into a fresh projection.
func (j *Journal) Rebuild(ctx context.Context) error {
	events, err := j.store.All(ctx)
	if err != nil {
		return err
	}
	j.proj.Reset(events)
	slog.Info("Job store projection rebuilt", logfields.Count(len(events)))
	return nil
}

// Emit appends ev and applies it to the projection. The projection is
// updated even when the append fails so live status stays current.
func (j *Journal) Emit(ctx context.Context, ev jobs.Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	j.proj.Apply(ev)
	return j.store.Append(ctx, ev)
}

// Get returns one job's record or ErrNotFound.
func (j *Journal) Get(jobID string) (*Record, error) {
	r, ok := j.proj.Get(jobID)
	if !ok {
		return nil, ErrNotFound.WithContext("job_id", jobID)
	}
	return r, nil
}

// List returns every retained record, most recently queued first.
func (j *Journal) List() []*Record { return j.proj.List() }

// Events returns the raw event log of one job.
func (j *Journal) Events(ctx context.Context, jobID string) ([]jobs.Event, error) {
	return j.store.ByJob(ctx, jobID)
}

// Prune drops events older than retention. The projection keeps its records.
func (j *Journal) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	return j.store.Prune(ctx, now.Add(-retention))
}

func (j *Journal) Close() error { return j.store.Close() }
