package jobstore

import (
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
)

// StatusInterrupted marks a job that was queued or running when the
// process stopped; it is only assigned while rebuilding from the log.
const StatusInterrupted jobs.Status = "interrupted"

// Record is the read model for one job.
type Record struct {
	JobID       string            `json:"job_id"`
	Input       string            `json:"input,omitempty"`
	Source      jobs.Source       `json:"source,omitempty"`
	Status      jobs.Status       `json:"status"`
	Attempts    int               `json:"attempts"`
	QueuedAt    time.Time         `json:"queued_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	Kind        string            `json:"kind,omitempty"`
	Error       string            `json:"error,omitempty"`
	Converter   string            `json:"converter,omitempty"`
	LineItems   int               `json:"line_items"`
	Exceptions  int               `json:"exceptions"`
	Artifacts   map[string]string `json:"artifacts,omitempty"`
}

// Terminal reports whether the record will not change again.
func (r *Record) Terminal() bool {
	switch r.Status {
	case jobs.StatusSucceeded, jobs.StatusFailed, jobs.StatusCanceled, StatusInterrupted:
		return true
	}
	return false
}

// Projection folds job events into per-job records. Finished jobs beyond
// maxSize are dropped oldest first; unfinished ones are always kept.
type Projection struct {
	mu      sync.RWMutex
	records map[string]*Record
	maxSize int
}

func NewProjection(maxSize int) *Projection {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Projection{records: make(map[string]*Record), maxSize: maxSize}
}

// Apply folds one event into the projection.
func (p *Projection) Apply(ev jobs.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(ev)
	p.pruneLocked()
}

func (p *Projection) applyLocked(ev jobs.Event) {
	if ev.JobID == "" {
		return
	}
	rec, ok := p.records[ev.JobID]
	if !ok {
		rec = &Record{JobID: ev.JobID, Status: jobs.StatusQueued, QueuedAt: ev.Time}
		p.records[ev.JobID] = rec
	}
	if ev.Input != "" {
		rec.Input = ev.Input
	}
	if ev.Source != "" {
		rec.Source = ev.Source
	}
	if ev.Attempt > rec.Attempts {
		rec.Attempts = ev.Attempt
	}

	switch ev.Type {
	case jobs.EventQueued:
		rec.Status = jobs.StatusQueued
		rec.QueuedAt = ev.Time
	case jobs.EventStarted:
		t := ev.Time
		rec.StartedAt = &t
		rec.Status = jobs.StatusRunning
	case jobs.EventRetrying:
		rec.Status = jobs.StatusRunning
		rec.Stage = ev.Stage
		rec.Kind = ev.Kind
		rec.Error = ev.Error
	case jobs.EventSucceeded, jobs.EventFailed:
		t := ev.Time
		rec.CompletedAt = &t
		if rec.StartedAt != nil {
			rec.Duration = t.Sub(*rec.StartedAt)
		}
		if ev.Type == jobs.EventSucceeded {
			rec.Status = jobs.StatusSucceeded
			rec.Stage, rec.Kind, rec.Error = "", "", ""
		} else {
			rec.Status = jobs.StatusFailed
			if ev.Status != "" {
				rec.Status = ev.Status
			}
			rec.Stage = ev.Stage
			rec.Kind = ev.Kind
			rec.Error = ev.Error
		}
		if res := ev.Result; res != nil {
			rec.Converter = res.ConverterUsed
			rec.LineItems = res.LineItemCount
			rec.Exceptions = res.ExceptionCount
			if len(res.Artifacts) > 0 {
				rec.Artifacts = make(map[string]string, len(res.Artifacts))
				for k, v := range res.Artifacts {
					rec.Artifacts[k] = v
				}
			}
		}
	}
}

func (p *Projection) pruneLocked() {
	var finished []*Record
	for _, r := range p.records {
		if r.Terminal() {
			finished = append(finished, r)
		}
	}
	if len(finished) <= p.maxSize {
		return
	}
	sortNewestFirst(finished)
	for _, r := range finished[p.maxSize:] {
		delete(p.records, r.JobID)
	}
}

// Reset replaces the projection's state with the fold of events. Jobs the
// log leaves unfinished are marked interrupted.
func (p *Projection) Reset(events []jobs.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.records = make(map[string]*Record)
	for _, ev := range events {
		p.applyLocked(ev)
	}
	for _, r := range p.records {
		if !r.Terminal() {
			r.Status = StatusInterrupted
		}
	}
	p.pruneLocked()
}

// Get returns a copy of one job's record.
func (p *Projection) Get(jobID string) (*Record, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.records[jobID]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// List returns copies of all records, most recently queued first.
func (p *Projection) List() []*Record {
	p.mu.RLock()
	out := make([]*Record, 0, len(p.records))
	for _, r := range p.records {
		cp := *r
		out = append(out, &cp)
	}
	p.mu.RUnlock()
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(rs []*Record) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].QueuedAt.Equal(rs[j].QueuedAt) {
			return rs[i].QueuedAt.After(rs[j].QueuedAt)
		}
		return rs[i].JobID < rs[j].JobID
	})
}
