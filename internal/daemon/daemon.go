// Package daemon runs boqbuilder as a service: an HTTP API for uploads, a
// watched inbox directory, the job queue and its event journal, plus
// periodic workspace retention.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
	"git.home.luguber.info/inful/boqbuilder/internal/jobstore"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
	"git.home.luguber.info/inful/boqbuilder/internal/notify"
	"git.home.luguber.info/inful/boqbuilder/internal/pipeline"
	"git.home.luguber.info/inful/boqbuilder/internal/server"
	"git.home.luguber.info/inful/boqbuilder/internal/workspace"
)

// Status is the daemon lifecycle state.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

const (
	sweepTaskName  = "workspace-sweep"
	rescanTaskName = "inbox-rescan"

	defaultSettle = 500 * time.Millisecond
)

// Option customises a Daemon.
type Option func(*Daemon)

// WithRunner replaces the pipeline orchestrator, mainly for tests.
func WithRunner(r jobs.Runner) Option { return func(d *Daemon) { d.runner = r } }

// WithNotifier replaces the notifier built from the NATS configuration.
func WithNotifier(n notify.Notifier) Option { return func(d *Daemon) { d.notifier = n } }

// WithInboxSettle sets how long an inbox file must stay unchanged before it is claimed.
func WithInboxSettle(d time.Duration) Option { return func(dm *Daemon) { dm.settle = d } }

// WithClock overrides time.Now for retention sweeps.
func WithClock(now func() time.Time) Option { return func(d *Daemon) { d.now = now } }

// Daemon owns every long-running component.
type Daemon struct {
	cfg    *config.Config
	status atomic.Value

	runner     jobs.Runner
	notifier   notify.Notifier
	settle     time.Duration
	now        func() time.Time
	workspaces *workspace.Manager
	journal    *jobstore.Journal
	queue      *jobs.Queue
	server     *server.Server
	scheduler  *Scheduler
	inbox      *InboxWatcher

	claimMu   sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
	closed    atomic.Bool
}

// New builds the daemon from cfg. Nothing listens or runs until Start.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, derrors.NewError(derrors.CategoryConfig, "configuration is required").Build()
	}
	d := &Daemon{
		cfg:        cfg,
		settle:     defaultSettle,
		now:        time.Now,
		workspaces: workspace.NewManager(cfg.Workspace.BaseDir),
	}
	d.status.Store(StatusStopped)
	for _, opt := range opts {
		opt(d)
	}

	reg := metrics.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)
	if d.runner == nil {
		d.runner = pipeline.FromConfig(cfg, convert.ExecRunner{}, rec)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Daemon.StorePath), 0o750); err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create job store directory").
			WithContext("path", cfg.Daemon.StorePath).Build()
	}
	journal, err := jobstore.Open(ctx, cfg.Daemon.StorePath, cfg.Queue.HistorySize)
	if err != nil {
		return nil, err
	}
	d.journal = journal

	if d.notifier == nil {
		n, err := notify.New(ctx, cfg.NATS)
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		d.notifier = n
	}

	d.queue = jobs.FromConfig(cfg.Queue, d.runner)
	d.queue.SetRecorder(rec)
	d.queue.AddEmitter(d.journal)
	d.queue.AddEmitter(d.notifier)

	d.server = server.New(cfg.Daemon, server.Options{
		Submitter:  d,
		Records:    d.journal,
		Workspaces: d.workspaces,
		Queue:      d.queue,
		Metrics:    metrics.HTTPHandler(reg),
	})

	sched, err := NewScheduler()
	if err != nil {
		_ = d.closeStores()
		return nil, derrors.WrapError(err, derrors.CategoryDaemon, "scheduler setup failed").Build()
	}
	d.scheduler = sched

	if cfg.Daemon.InboxDir != "" {
		iw, err := NewInboxWatcher(cfg.Daemon.InboxDir, d.settle, func(path string) {
			d.claimLogged(context.Background(), path)
		})
		if err != nil {
			_ = d.closeStores()
			return nil, derrors.WrapError(err, derrors.CategoryDaemon, "inbox setup failed").Build()
		}
		d.inbox = iw
	}
	return d, nil
}

// Status returns the current lifecycle state.
func (d *Daemon) Status() Status {
	if s, ok := d.status.Load().(Status); ok {
		return s
	}
	return StatusStopped
}

// Journal exposes job records, mainly for tests and the CLI.
func (d *Daemon) Journal() *jobstore.Journal { return d.journal }

// Queue exposes the job queue.
func (d *Daemon) Queue() *jobs.Queue { return d.queue }

// Handler returns the HTTP handler without binding a port.
func (d *Daemon) Handler() http.Handler {
	return d.server.Handler()
}

// Start brings components up in dependency order: workers, HTTP, scheduler,
// then the inbox, which is scanned once for files dropped while stopped.
func (d *Daemon) Start(ctx context.Context) error {
	if d.closed.Load() {
		return derrors.NewError(derrors.CategoryDaemon, "daemon is closed").Build()
	}
	if d.Status() != StatusStopped {
		return derrors.NewError(derrors.CategoryDaemon, "daemon already started").Build()
	}
	d.status.Store(StatusStarting)
	slog.Info("Starting daemon", slog.String("http_addr", d.cfg.Daemon.HTTPAddr))

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.queue.Start(runCtx)
	if err := d.server.Start(runCtx); err != nil {
		d.fail(runCtx)
		return err
	}
	if err := d.schedule(runCtx); err != nil {
		d.fail(runCtx)
		return err
	}
	d.scheduler.Start()

	if d.inbox != nil {
		if err := d.inbox.Start(runCtx); err != nil {
			d.fail(runCtx)
			return derrors.WrapError(err, derrors.CategoryDaemon, "inbox watcher failed").Build()
		}
		d.ScanInbox(runCtx)
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon running")
	return nil
}

func (d *Daemon) fail(ctx context.Context) {
	d.status.Store(StatusError)
	_ = d.server.Shutdown(context.WithoutCancel(ctx))
	d.queue.Stop(context.WithoutCancel(ctx))
	d.cancel()
}

func (d *Daemon) schedule(ctx context.Context) error {
	if iv := d.cfg.Daemon.SweepInterval; iv > 0 {
		if _, err := d.scheduler.Every(sweepTaskName, iv, func() { d.Sweep(ctx) }); err != nil {
			return derrors.WrapError(err, derrors.CategoryDaemon, "failed to schedule sweep").Build()
		}
	}
	if iv := d.cfg.Daemon.RescanInterval; iv > 0 && d.inbox != nil {
		if _, err := d.scheduler.Every(rescanTaskName, iv, func() { d.ScanInbox(ctx) }); err != nil {
			return derrors.WrapError(err, derrors.CategoryDaemon, "failed to schedule inbox rescan").Build()
		}
	}
	return nil
}

// Stop shuts components down in reverse order and waits for running jobs
// to be canceled. The job store is closed, so a stopped daemon cannot be
// restarted.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.Status() == StatusStopped {
		return d.closeStores()
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping daemon")

	var errs []error
	if d.inbox != nil {
		if err := d.inbox.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.scheduler.Stop(); err != nil {
		errs = append(errs, err)
	}
	if err := d.server.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	d.queue.Stop(ctx)
	if d.cancel != nil {
		d.cancel()
	}
	errs = append(errs, d.closeStores())

	d.status.Store(StatusStopped)
	if err := errors.Join(errs...); err != nil {
		return derrors.WrapError(err, derrors.CategoryDaemon, "daemon shutdown incomplete").Build()
	}
	slog.Info("Daemon stopped")
	return nil
}

func (d *Daemon) closeStores() error {
	var errs []error
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		if d.notifier != nil {
			errs = append(errs, d.notifier.Close())
		}
		if d.journal != nil {
			errs = append(errs, d.journal.Close())
		}
	})
	return errors.Join(errs...)
}

// Run starts the daemon and blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return d.Stop(stopCtx)
}

// Submit stages an uploaded drawing in a fresh workspace and queues it.
func (d *Daemon) Submit(ctx context.Context, filename string, body io.Reader) (string, error) {
	id := pipeline.NewJobID()
	ws, err := d.workspaces.Create(id)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create workspace").Build()
	}
	dst := filepath.Join(ws.In, filepath.Base(filename))
	if err := writeFile(dst, body); err != nil {
		_ = os.RemoveAll(ws.Root)
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "failed to store upload").
			WithContext("job_id", id).Build()
	}
	if err := d.queue.Enqueue(ctx, &jobs.Job{ID: id, Input: dst, Source: jobs.SourceUpload}); err != nil {
		_ = os.RemoveAll(ws.Root)
		return "", err
	}
	return id, nil
}

func writeFile(dst string, body io.Reader) error {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ScanInbox claims every drawing currently in the inbox.
func (d *Daemon) ScanInbox(ctx context.Context) int {
	if d.inbox == nil {
		return 0
	}
	paths, err := d.inbox.Scan()
	if err != nil {
		slog.Error("Inbox scan failed", logfields.Error(err))
		return 0
	}
	claimed := 0
	for _, p := range paths {
		if d.claimLogged(ctx, p) != "" {
			claimed++
		}
	}
	if claimed > 0 {
		slog.Info("Inbox scan claimed drawings", logfields.Count(claimed))
	}
	return claimed
}

func (d *Daemon) claimLogged(ctx context.Context, path string) string {
	id, err := d.ClaimInboxFile(ctx, path)
	if err != nil {
		slog.Error("Failed to claim inbox file", logfields.Path(path), logfields.Error(err))
		return ""
	}
	return id
}

// ClaimInboxFile moves path out of the inbox into a new workspace and
// queues it. A file that is already gone, claimed by a concurrent scan,
// returns an empty ID and no error.
func (d *Daemon) ClaimInboxFile(ctx context.Context, path string) (string, error) {
	if !IsDrawing(path) {
		return "", nil
	}
	d.claimMu.Lock()
	defer d.claimMu.Unlock()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "cannot stat inbox file").Build()
	}

	id := pipeline.NewJobID()
	ws, err := d.workspaces.Create(id)
	if err != nil {
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "failed to create workspace").Build()
	}
	dst := filepath.Join(ws.In, filepath.Base(path))
	if err := moveFile(path, dst); err != nil {
		_ = os.RemoveAll(ws.Root)
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", derrors.WrapError(err, derrors.CategoryFileSystem, "failed to move inbox file").
			WithContext("path", path).Build()
	}
	if err := d.queue.Enqueue(ctx, &jobs.Job{ID: id, Input: dst, Source: jobs.SourceInbox}); err != nil {
		// Put the drawing back so the next rescan retries it.
		if rerr := moveFile(dst, path); rerr != nil {
			slog.Error("Failed to return drawing to inbox", logfields.Path(dst), logfields.Error(rerr))
		} else {
			_ = os.RemoveAll(ws.Root)
		}
		return "", err
	}
	return id, nil
}

// moveFile renames src to dst, copying across filesystems when needed.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil || os.IsNotExist(err) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()
	if err := writeFile(dst, in); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return os.Remove(src)
}

// Sweep deletes workspaces and journal events older than the retention
// window. A zero retention keeps everything.
func (d *Daemon) Sweep(ctx context.Context) {
	retention := d.cfg.Workspace.Retention
	if retention <= 0 {
		return
	}
	now := d.now()
	removed, err := d.workspaces.Sweep(retention, now)
	if err != nil {
		slog.Error("Workspace sweep failed", logfields.Error(err))
	}
	pruned, err := d.journal.Prune(ctx, retention, now)
	if err != nil {
		slog.Error("Job journal prune failed", logfields.Error(err))
	}
	if len(removed) > 0 || pruned > 0 {
		slog.Info("Retention sweep complete",
			logfields.Count(len(removed)), slog.Int64("events_pruned", pruned))
	}
}
