package daemon

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/jobs"
	"git.home.luguber.info/inful/boqbuilder/internal/notify"
	"git.home.luguber.info/inful/boqbuilder/internal/pipeline"
)

type recordingRunner struct {
	mu     sync.Mutex
	inputs map[string]string // job ID -> input contents
}

func (r *recordingRunner) Run(_ context.Context, job pipeline.Job) (*pipeline.Result, error) {
	data, err := os.ReadFile(job.Input)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.inputs == nil {
		r.inputs = make(map[string]string)
	}
	r.inputs[job.ID] = string(data)
	r.mu.Unlock()
	return &pipeline.Result{JobID: job.ID, Status: pipeline.StatusSuccess, Input: job.Input}, nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inputs)
}

func (r *recordingRunner) input(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.inputs[id]
	return s, ok
}

func testConfig(t *testing.T, withInbox bool) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.BaseDir = filepath.Join(root, "jobs")
	cfg.Workspace.Retention = time.Hour
	cfg.Daemon.HTTPAddr = "127.0.0.1:0"
	cfg.Daemon.StorePath = filepath.Join(root, "state", "jobs.db")
	cfg.Daemon.InboxDir = ""
	if withInbox {
		cfg.Daemon.InboxDir = filepath.Join(root, "inbox")
	}
	cfg.Queue.Workers = 1
	return cfg
}

func newDaemon(t *testing.T, cfg *config.Config, runner jobs.Runner, opts ...Option) *Daemon {
	t.Helper()
	opts = append([]Option{WithRunner(runner), WithNotifier(notify.Noop{}), WithInboxSettle(20 * time.Millisecond)}, opts...)
	d, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = d.Stop(ctx)
	})
	return d
}

func waitForStatus(t *testing.T, d *Daemon, id string, want jobs.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec, err := d.Journal().Get(id)
		return err == nil && rec.Status == want
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSubmitQueuesUpload(t *testing.T) {
	runner := &recordingRunner{}
	d := newDaemon(t, testConfig(t, false), runner)
	require.NoError(t, d.Start(context.Background()))

	id, err := d.Submit(context.Background(), "../plans/ground.dxf", strings.NewReader("0\nEOF\n"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	waitForStatus(t, d, id, jobs.StatusSucceeded)
	got, ok := runner.input(id)
	require.True(t, ok)
	assert.Equal(t, "0\nEOF\n", got)

	rec, err := d.Journal().Get(id)
	require.NoError(t, err)
	assert.Equal(t, jobs.SourceUpload, rec.Source)
	assert.Equal(t, "ground.dxf", filepath.Base(rec.Input))
	assert.True(t, strings.HasPrefix(rec.Input, d.cfg.Workspace.BaseDir))
}

func TestSubmitWhenStoppedRemovesWorkspace(t *testing.T) {
	cfg := testConfig(t, false)
	d := newDaemon(t, cfg, &recordingRunner{})
	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background()))

	_, err := d.Submit(context.Background(), "a.dwg", strings.NewReader("x"))
	require.ErrorIs(t, err, jobs.ErrQueueStopped)

	entries, err := os.ReadDir(cfg.Workspace.BaseDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestClaimInboxFileMovesDrawing(t *testing.T) {
	runner := &recordingRunner{}
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, runner)
	d.queue.Start(context.Background())
	t.Cleanup(func() { d.queue.Stop(context.Background()) })

	src := filepath.Join(cfg.Daemon.InboxDir, "Level 1.DWG")
	require.NoError(t, os.WriteFile(src, []byte("dwg-bytes"), 0o600))

	id, err := d.ClaimInboxFile(context.Background(), src)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.NoFileExists(t, src)

	waitForStatus(t, d, id, jobs.StatusSucceeded)
	got, _ := runner.input(id)
	assert.Equal(t, "dwg-bytes", got)

	rec, err := d.Journal().Get(id)
	require.NoError(t, err)
	assert.Equal(t, jobs.SourceInbox, rec.Source)
}

func TestClaimInboxFileIgnoresOthers(t *testing.T) {
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, &recordingRunner{})

	notes := filepath.Join(cfg.Daemon.InboxDir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0o600))

	id, err := d.ClaimInboxFile(context.Background(), notes)
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.FileExists(t, notes)

	id, err = d.ClaimInboxFile(context.Background(), filepath.Join(cfg.Daemon.InboxDir, "gone.dxf"))
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestClaimReturnsDrawingWhenQueueRejects(t *testing.T) {
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, &recordingRunner{})
	d.queue.Stop(context.Background())

	src := filepath.Join(cfg.Daemon.InboxDir, "a.dxf")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err := d.ClaimInboxFile(context.Background(), src)
	require.Error(t, err)
	assert.FileExists(t, src)
}

func TestStartScansExistingInbox(t *testing.T) {
	runner := &recordingRunner{}
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, runner)

	for _, name := range []string{"a.dwg", "b.dxf", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(cfg.Daemon.InboxDir, name), []byte(name), 0o600))
	}
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool { return runner.count() == 2 }, 5*time.Second, 10*time.Millisecond)
	left, err := scanDir(cfg.Daemon.InboxDir)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.FileExists(t, filepath.Join(cfg.Daemon.InboxDir, "readme.txt"))
}

func TestInboxWatcherPicksUpNewDrawings(t *testing.T) {
	runner := &recordingRunner{}
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, runner)
	require.NoError(t, d.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(cfg.Daemon.InboxDir, "new.dxf"), []byte("fresh"), 0o600))
	require.Eventually(t, func() bool { return runner.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Len(t, d.Journal().List(), 1)
}

func TestSweepRemovesExpiredWorkspaces(t *testing.T) {
	cfg := testConfig(t, false)
	later := time.Now().Add(48 * time.Hour)
	d := newDaemon(t, cfg, &recordingRunner{}, WithClock(func() time.Time { return later }))

	ws, err := d.workspaces.Create("old-job")
	require.NoError(t, err)

	d.Sweep(context.Background())
	assert.NoDirExists(t, ws.Root)
}

func TestSweepKeepsEverythingWithoutRetention(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Workspace.Retention = 0
	later := time.Now().Add(48 * time.Hour)
	d := newDaemon(t, cfg, &recordingRunner{}, WithClock(func() time.Time { return later }))

	ws, err := d.workspaces.Create("kept-job")
	require.NoError(t, err)

	d.Sweep(context.Background())
	assert.DirExists(t, ws.Root)
}

func TestLifecycle(t *testing.T) {
	cfg := testConfig(t, true)
	d := newDaemon(t, cfg, &recordingRunner{})
	assert.Equal(t, StatusStopped, d.Status())

	require.NoError(t, d.Start(context.Background()))
	assert.Equal(t, StatusRunning, d.Status())
	assert.ElementsMatch(t, []string{sweepTaskName, rescanTaskName}, d.scheduler.Names())
	require.Error(t, d.Start(context.Background()))

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, StatusStopped, d.Status())
	require.Error(t, d.Start(context.Background()), "a stopped daemon keeps its store closed")
}

func TestRunStopsWhenContextEnds(t *testing.T) {
	d := newDaemon(t, testConfig(t, false), &recordingRunner{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, time.Second) }()
	require.Eventually(t, func() bool { return d.Status() == StatusRunning }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Equal(t, StatusStopped, d.Status())
}

func TestIsDrawing(t *testing.T) {
	assert.True(t, IsDrawing("a.dwg"))
	assert.True(t, IsDrawing("/x/B.DXF"))
	assert.False(t, IsDrawing(".dwg"))
	assert.False(t, IsDrawing("a.pdf"))
}
