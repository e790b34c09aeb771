package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
	"git.home.luguber.info/inful/boqbuilder/internal/pipeline"
	"git.home.luguber.info/inful/boqbuilder/internal/retry"
)

// Source records how a job entered the queue.
type Source string

const (
	SourceUpload Source = "upload"
	SourceInbox  Source = "inbox"
	SourceCLI    Source = "cli"
)

// Status is the queue-level view of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

var (
	ErrQueueFull    = dberrors.NewError(dberrors.CategoryRuntime, "job queue is full").Retryable().Build()
	ErrDuplicateJob = dberrors.ValidationError("job already queued").Build()
	ErrQueueStopped = dberrors.NewError(dberrors.CategoryRuntime, "job queue is stopped").Build()
)

// Job is one drawing waiting for or going through the pipeline.
type Job struct {
	ID          string           `json:"id"`
	Input       string           `json:"input"`
	CatalogPath string           `json:"catalog_path,omitempty"`
	Source      Source           `json:"source"`
	Status      Status           `json:"status"`
	Attempts    int              `json:"attempts"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Duration    time.Duration    `json:"duration,omitempty"`
	Error       string           `json:"error,omitempty"`
	Result      *pipeline.Result `json:"result,omitempty"`

	cancel context.CancelFunc
}

// Runner executes one attempt of a job. *pipeline.Orchestrator implements it.
type Runner interface {
	Run(ctx context.Context, job pipeline.Job) (*pipeline.Result, error)
}

// Queue is a fixed pool of workers draining a bounded channel of jobs.
// Transient failures are resubmitted according to the retry policy.
type Queue struct {
	jobs        chan *Job
	workers     int
	capacity    int
	mu          sync.RWMutex
	active      map[string]*Job // queued and running
	history     []*Job          // finished, oldest first
	historySize int
	stopChan    chan struct{}
	stopOnce    sync.Once
	stopped     bool
	wg          sync.WaitGroup
	runner      Runner

	retryPolicy retry.Policy
	recorder    metrics.Recorder
	emitters    []Emitter
}

// New creates a queue holding at most capacity waiting jobs.
func New(capacity, workers int, runner Runner) *Queue {
	if capacity <= 0 {
		capacity = 100
	}
	if workers <= 0 {
		workers = 2
	}
	if runner == nil {
		panic("jobs.New: runner is required")
	}
	return &Queue{
		jobs:        make(chan *Job, capacity),
		workers:     workers,
		capacity:    capacity,
		active:      make(map[string]*Job),
		historySize: 50,
		stopChan:    make(chan struct{}),
		runner:      runner,
		retryPolicy: retry.DefaultPolicy(),
		recorder:    metrics.NoopRecorder{},
	}
}

// FromConfig builds a queue sized and retried per cfg.
func FromConfig(cfg config.QueueConfig, runner Runner) *Queue {
	q := New(cfg.Capacity, cfg.Workers, runner)
	q.ConfigureRetry(cfg)
	if cfg.HistorySize > 0 {
		q.historySize = cfg.HistorySize
	}
	return q
}

// ConfigureRetry replaces the retry policy. Call before Start.
func (q *Queue) ConfigureRetry(cfg config.QueueConfig) {
	q.retryPolicy = retry.FromConfig(cfg)
}

func (q *Queue) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	q.recorder = r
}

// AddEmitter registers a lifecycle event consumer. Call before Start.
func (q *Queue) AddEmitter(e Emitter) {
	if e != nil {
		q.emitters = append(q.emitters, e)
	}
}

// Start launches the workers; they exit when ctx is done or Stop is called.
func (q *Queue) Start(ctx context.Context) {
	slog.Info("Starting job queue", slog.Int("workers", q.workers), slog.Int("capacity", q.capacity))
	for i := range q.workers {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop cancels running jobs, waits for the workers and marks every job
// still waiting in the channel as canceled.
func (q *Queue) Stop(ctx context.Context) {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		for _, job := range q.active {
			if job.cancel != nil {
				job.cancel()
			}
		}
		q.mu.Unlock()
		close(q.stopChan)
	})
	q.wg.Wait()

	for {
		select {
		case job := <-q.jobs:
			q.finish(job, StatusCanceled, context.Canceled)
			q.emit(ctx, Event{Type: EventFailed, JobID: job.ID, Input: job.Input, Source: job.Source, Status: StatusCanceled, Error: context.Canceled.Error()})
		default:
			q.recorder.SetQueueDepth(0)
			return
		}
	}
}

// Length is the number of jobs waiting for a worker.
func (q *Queue) Length() int { return len(q.jobs) }

// Enqueue adds job to the queue without blocking.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job == nil {
		return dberrors.ValidationError("job cannot be nil").Build()
	}
	if job.ID == "" {
		job.ID = pipeline.NewJobID()
	}
	if job.Input == "" {
		return dberrors.ValidationError("job input is required").WithContext("job_id", job.ID).Build()
	}

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return ErrQueueStopped
	}
	if _, dup := q.active[job.ID]; dup {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	job.Status = StatusQueued
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		q.active[job.ID] = job
	default:
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.mu.Unlock()

	q.recorder.SetQueueDepth(len(q.jobs))
	slog.Info("Job queued", logfields.JobID(job.ID), logfields.Path(job.Input), slog.String("source", string(job.Source)))
	q.emit(ctx, Event{Type: EventQueued, JobID: job.ID, Input: job.Input, Source: job.Source})
	return nil
}

// Get returns a copy of the job, looking at queued and running jobs first.
func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if j, ok := q.active[id]; ok {
		return j.snapshot(), true
	}
	for i := len(q.history) - 1; i >= 0; i-- {
		if q.history[i].ID == id {
			return q.history[i].snapshot(), true
		}
	}
	return nil, false
}

// List returns copies of all known jobs, newest first.
func (q *Queue) List() []*Job {
	q.mu.RLock()
	out := make([]*Job, 0, len(q.active)+len(q.history))
	for _, j := range q.active {
		out = append(out, j.snapshot())
	}
	for _, j := range q.history {
		out = append(out, j.snapshot())
	}
	q.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (j *Job) snapshot() *Job {
	cp := *j
	cp.cancel = nil
	return &cp
}

func (q *Queue) worker(ctx context.Context, workerID string) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopChan:
			return
		case job := <-q.jobs:
			if job != nil {
				q.recorder.SetQueueDepth(len(q.jobs))
				q.processJob(ctx, job, workerID)
			}
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *Job, workerID string) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now()
	q.mu.Lock()
	job.cancel = cancel
	job.StartedAt = &started
	job.Status = StatusRunning
	q.active[job.ID] = job
	if q.stopped {
		cancel()
	}
	q.mu.Unlock()

	slog.Info("Job started", logfields.JobID(job.ID), logfields.Worker(workerID))
	q.emit(jobCtx, Event{Type: EventStarted, JobID: job.ID, Input: job.Input, Source: job.Source, Worker: workerID, Attempt: 1})

	err := q.execute(jobCtx, job, workerID)

	// Completion events outlive the job's own context.
	done := context.WithoutCancel(ctx)
	status := StatusSucceeded
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		status = StatusCanceled
	default:
		status = StatusFailed
	}
	q.finish(job, status, err)

	ev := Event{JobID: job.ID, Input: job.Input, Source: job.Source, Status: status, Worker: workerID, Attempt: job.Attempts, Result: job.Result}
	if err == nil {
		ev.Type = EventSucceeded
		slog.Info("Job succeeded", logfields.JobID(job.ID), logfields.Duration(job.Duration))
	} else {
		ev.Type = EventFailed
		ev.Error = err.Error()
		if se, ok := pipeline.IsStageError(err); ok {
			ev.Stage = string(se.Stage)
			ev.Kind = string(se.ErrorKind())
		}
		slog.Warn("Job failed", logfields.JobID(job.ID), logfields.JobStatus(string(status)), logfields.Error(err))
	}
	q.emit(done, ev)
}

// finish moves job from the active set into history.
func (q *Queue) finish(job *Job, status Status, err error) {
	end := time.Now()
	q.mu.Lock()
	defer q.mu.Unlock()

	job.CompletedAt = &end
	if job.StartedAt != nil {
		job.Duration = end.Sub(*job.StartedAt)
	}
	job.Status = status
	if err != nil {
		job.Error = err.Error()
	}
	job.cancel = nil
	delete(q.active, job.ID)
	q.history = append(q.history, job)
	if len(q.history) > q.historySize {
		q.history = append([]*Job(nil), q.history[len(q.history)-q.historySize:]...)
	}
}

// execute runs attempts until success, a permanent failure, or the retry
// budget is spent.
func (q *Queue) execute(ctx context.Context, job *Job, workerID string) error {
	policy := q.retryPolicy
	if policy.Initial <= 0 {
		policy = retry.DefaultPolicy()
	}

	retries := 0
	for {
		attempt := retries + 1
		res, err := q.runner.Run(ctx, pipeline.Job{
			ID:          job.ID,
			Input:       job.Input,
			CatalogPath: job.CatalogPath,
			Attempt:     attempt,
		})
		q.mu.Lock()
		job.Attempts = attempt
		if res != nil {
			job.Result = res
		}
		q.mu.Unlock()
		if err == nil {
			return nil
		}

		se, ok := pipeline.IsStageError(err)
		if !ok || !se.Transient() || !policy.Allows(retries) {
			if ok && se.Transient() && retries > 0 {
				slog.Warn("Retries exhausted", logfields.JobID(job.ID), logfields.Attempt(attempt), logfields.Stage(string(se.Stage)))
			}
			return err
		}

		retries++
		q.recorder.IncJobRetry()
		delay := policy.Delay(retries)
		slog.Warn("Transient job failure, retrying",
			logfields.JobID(job.ID),
			logfields.Attempt(attempt),
			slog.Int("max_retries", policy.MaxRetries),
			logfields.Stage(string(se.Stage)),
			logfields.Duration(delay),
			logfields.Error(err),
		)
		q.emit(ctx, Event{
			Type: EventRetrying, JobID: job.ID, Input: job.Input, Source: job.Source, Worker: workerID,
			Attempt: attempt + 1, Stage: string(se.Stage), Kind: string(se.ErrorKind()), Error: err.Error(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

func (q *Queue) emit(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	for _, e := range q.emitters {
		if err := e.Emit(ctx, ev); err != nil {
			slog.Warn("Failed to emit job event", logfields.JobID(ev.JobID), slog.String("event", string(ev.Type)), logfields.Error(err))
		}
	}
}
