package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/boq"
	"git.home.luguber.info/inful/boqbuilder/internal/cad"
	"git.home.luguber.info/inful/boqbuilder/internal/catalog"
	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	"git.home.luguber.info/inful/boqbuilder/internal/extract"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
	"git.home.luguber.info/inful/boqbuilder/internal/observability"
	"git.home.luguber.info/inful/boqbuilder/internal/report"
	"git.home.luguber.info/inful/boqbuilder/internal/workspace"
)

// Converter is the conversion stage's collaborator.
type Converter interface {
	Convert(ctx context.Context, drawingPath, outputDir, targetVersion string) (string, *convert.Metadata, error)
}

// SinkFactory opens a fresh spreadsheet sink per job.
type SinkFactory func() (report.Sink, error)

// Orchestrator sequences the stages of a job. It holds no per-job state and
// may run several jobs concurrently.
type Orchestrator struct {
	workspaces    *workspace.Manager
	converter     Converter
	extractor     *extract.Extractor
	catalogPath   string
	targetVersion string
	recorder      metrics.Recorder
	newSink       SinkFactory
	now           func() time.Time
}

type Option func(*Orchestrator)

func WithCatalogPath(path string) Option { return func(o *Orchestrator) { o.catalogPath = path } }

func WithTargetVersion(v string) Option {
	return func(o *Orchestrator) {
		if v != "" {
			o.targetVersion = v
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithSinkFactory(f SinkFactory) Option { return func(o *Orchestrator) { o.newSink = f } }

// WithClock replaces time.Now for timestamps in results.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

func New(ws *workspace.Manager, conv Converter, x *extract.Extractor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		workspaces:    ws,
		converter:     conv,
		extractor:     x,
		targetVersion: "ACAD2018",
		recorder:      metrics.NoopRecorder{},
		newSink:       func() (report.Sink, error) { return report.NewXLSXSink() },
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FromConfig wires the orchestrator's collaborators from configuration.
func FromConfig(cfg *config.Config, runner convert.Runner, rec metrics.Recorder) *Orchestrator {
	return New(
		workspace.NewManager(cfg.Workspace.BaseDir),
		convert.FromConfig(cfg.Conversion, runner, rec),
		extract.New(extract.OptionsFromConfig(cfg.Extraction)),
		WithCatalogPath(cfg.Catalog.Path),
		WithTargetVersion(cfg.Conversion.TargetVersion),
		WithRecorder(rec),
	)
}

// Workspaces exposes the manager so callers can locate job artifacts.
func (o *Orchestrator) Workspaces() *workspace.Manager { return o.workspaces }

// run carries one job's intermediate values between stages.
type run struct {
	job         Job
	ws          *workspace.Job
	res         *Result
	interchange string
	drawing     *cad.Drawing
	rows        []boq.Row
	exceptions  []boq.ExceptionRecord
	items       []boq.LineItem
	rooms       []boq.RoomTotal
	stats       boq.Statistics
}

type stage struct {
	state State
	fn    func(context.Context, *run) error
}

// Run processes job to completion. On failure the returned Result is in
// StateFailed, error.json has been written, and the error is a *StageError.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Result, error) {
	if job.ID == "" {
		job.ID = NewJobID()
	}
	ctx = observability.WithJobID(ctx, job.ID)
	if job.Attempt > 0 {
		ctx = observability.WithAttempt(ctx, job.Attempt)
	}
	started := o.now()
	res := &Result{
		JobID:          job.ID,
		State:          StateQueued,
		Attempt:        job.Attempt,
		Input:          job.Input,
		Artifacts:      map[string]string{},
		StageDurations: map[State]int64{},
		StartedAt:      started,
	}

	ws, err := o.workspaces.Create(job.ID)
	if err != nil {
		se := newFatal(StateQueued, dberrors.WrapError(err, dberrors.CategoryFileSystem, "cannot create job workspace").Retryable().Build())
		o.finishFailed(ctx, &run{job: job, res: res}, se)
		return res, se
	}
	r := &run{job: job, ws: ws, res: res}
	observability.InfoContext(ctx, "Job started", logfields.Path(job.Input))

	stages := []stage{
		{StateConverting, o.convert},
		{StateExtracting, o.extract},
		{StateNormalizing, o.normalize},
		{StateAggregating, o.aggregate},
		{StateReporting, o.report},
	}
	for _, st := range stages {
		if err := ctx.Err(); err != nil {
			se := newCanceled(st.state, err)
			o.finishFailed(ctx, r, se)
			return res, se
		}
		if err := transition(res, st.state); err != nil {
			se := newFatal(st.state, err)
			o.finishFailed(ctx, r, se)
			return res, se
		}

		sctx := observability.WithStage(ctx, string(st.state))
		observability.DebugContext(sctx, "Stage started")
		t0 := time.Now()
		err := o.safely(sctx, st, r)
		dur := time.Since(t0)
		res.StageDurations[st.state] = dur.Milliseconds()
		o.recorder.ObserveStageDuration(string(st.state), dur)

		if err == nil {
			o.recorder.IncStageResult(string(st.state), metrics.ResultSuccess)
			continue
		}
		se := asStageError(st.state, err)
		if se.Kind == StageErrorWarning {
			o.recorder.IncStageResult(string(st.state), metrics.ResultWarning)
			res.Warnings = append(res.Warnings, se.Err.Error())
			observability.WarnContext(sctx, "Stage completed with warning", logfields.Error(se.Err))
			continue
		}
		o.recorder.IncStageResult(string(st.state), metrics.ResultFatal)
		o.finishFailed(sctx, r, se)
		return res, se
	}

	_ = transition(res, StateSucceeded)
	res.Status = StatusSuccess
	res.FinishedAt = o.now()
	o.recorder.IncJobOutcome(metrics.JobOutcomeSucceeded)
	o.recorder.ObserveJobDuration(res.FinishedAt.Sub(started))
	observability.InfoContext(ctx, "Job succeeded",
		logfields.Count(res.LineItemCount), logfields.Duration(res.FinishedAt.Sub(started)))
	return res, nil
}

// safely runs a stage, turning a panic into an internal fatal error.
func (o *Orchestrator) safely(ctx context.Context, st stage, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			observability.ErrorContext(ctx, "Stage panicked", slog.Any("panic", p), slog.String("stack", string(debug.Stack())))
			err = newFatal(st.state, dberrors.InternalError(fmt.Sprintf("panic: %v", p)).Build())
		}
	}()
	return st.fn(ctx, r)
}

// finishFailed moves the job to failed and persists error.json. Partial
// artifacts are left in place.
func (o *Orchestrator) finishFailed(ctx context.Context, r *run, se *StageError) {
	res := r.res
	res.Status = StatusFailed
	if res.State != StateFailed {
		_ = transition(res, StateFailed)
	}
	res.FinishedAt = o.now()
	res.Failure = &FailureInfo{Stage: se.Stage, Kind: se.ErrorKind(), Message: se.Err.Error()}

	o.recorder.IncJobOutcome(metrics.JobOutcomeFailed)
	o.recorder.ObserveJobDuration(res.FinishedAt.Sub(res.StartedAt))
	observability.ErrorContext(ctx, "Job failed",
		logfields.Stage(string(se.Stage)), slog.String("kind", string(res.Failure.Kind)), logfields.Error(se.Err))

	if r.ws == nil {
		return
	}
	path := r.ws.Artifact(report.FailureFile)
	err := report.WriteFailure(path, report.Failure{
		JobID:   res.JobID,
		Stage:   string(se.Stage),
		Kind:    string(res.Failure.Kind),
		Message: res.Failure.Message,
		Time:    res.FinishedAt.UTC(),
	})
	if err != nil {
		observability.ErrorContext(ctx, "Failed to write failure artifact", logfields.Path(path), logfields.Error(err))
		return
	}
	res.Artifacts[ArtifactError] = path
}

func (o *Orchestrator) convert(ctx context.Context, r *run) error {
	if _, err := os.Stat(r.job.Input); err != nil {
		return newFatal(StateConverting, dberrors.WrapError(fmt.Errorf("%w: %w", convert.ErrInputNotFound, err),
			dberrors.CategoryNotFound, "source drawing missing").Fatal().WithContext("path", r.job.Input).Build())
	}
	staged, err := r.ws.Stage(r.job.Input)
	if err != nil {
		return newFatal(StateConverting, dberrors.WrapError(err, dberrors.CategoryFileSystem, "cannot stage input").Retryable().Build())
	}

	out, meta, err := o.converter.Convert(ctx, staged, r.ws.Tmp, o.targetVersion)
	if meta != nil {
		r.res.Conversion = meta
		r.res.ConverterUsed = meta.ConverterUsed
		r.res.SizeRatio = meta.SizeRatio
		r.res.Warnings = append(r.res.Warnings, meta.Warnings...)
	}
	if err != nil {
		if ctx.Err() != nil {
			return newCanceled(StateConverting, err)
		}
		return newFatal(StateConverting, err)
	}
	r.interchange = out
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, r *run) error {
	d, err := o.extractor.Extract(r.interchange)
	if err != nil {
		return newFatal(StateExtracting, err)
	}
	r.drawing = d

	res := r.res
	res.DrawingVersion = d.Metadata.Version
	res.Units = string(d.Metadata.Units)
	res.EntityCount = d.EntityCount()
	res.EntityCounts = d.Counts()
	res.Measurements = d.Measurements
	res.RoomCount = len(d.Spatial.Rooms)
	res.WallCount = len(d.Spatial.Walls)
	res.OpeningCount = len(d.Spatial.Openings)
	res.Warnings = append(res.Warnings, d.Metadata.Warnings...)
	for kind, n := range res.EntityCounts {
		o.recorder.AddEntities(string(kind), n)
	}
	observability.InfoContext(ctx, "Drawing extracted", logfields.Count(res.EntityCount))

	// The full extraction is kept next to the interchange file for inspection.
	dump := filepath.Join(r.ws.Tmp, report.DrawingFile)
	if err := report.WriteJSON(dump, d); err != nil {
		observability.WarnContext(ctx, "Failed to write drawing dump", logfields.Path(dump), logfields.Error(err))
		res.Warnings = append(res.Warnings, "drawing dump not written: "+err.Error())
	} else {
		res.Artifacts[ArtifactDrawing] = dump
	}

	if res.EntityCount == 0 {
		return newWarning(StateExtracting, ErrEmptyExtraction)
	}
	return nil
}

func (o *Orchestrator) normalize(ctx context.Context, r *run) error {
	path := r.job.CatalogPath
	if path == "" {
		path = o.catalogPath
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return newFatal(StateNormalizing, err)
	}
	r.res.CatalogEntries = cat.Len()

	r.rows = catalog.NormalizeAll(r.drawing.Inserts(), cat)
	r.drawing = nil
	r.exceptions = boq.Validate(r.rows)
	r.res.RowCount = len(r.rows)
	r.res.ExceptionCount = len(r.exceptions)
	if len(r.exceptions) > 0 {
		observability.WarnContext(ctx, "Rows failed validation", logfields.Count(len(r.exceptions)))
	}
	return nil
}

func (o *Orchestrator) aggregate(_ context.Context, r *run) error {
	r.items, r.rooms = boq.Aggregate(r.rows)
	r.stats = boq.Summarize(r.items)
	r.res.LineItemCount = r.stats.TotalItems
	r.res.CategoryCount = r.stats.Categories
	r.res.HighConfidenceCount = r.stats.HighConfidence
	return nil
}

func (o *Orchestrator) report(ctx context.Context, r *run) error {
	res := r.res
	data := report.Data{
		JobID:         res.JobID,
		Source:        res.Input,
		ConverterUsed: res.ConverterUsed,
		SizeRatio:     res.SizeRatio,
		EntityCount:   res.EntityCount,
		Items:         r.items,
		Rooms:         r.rooms,
		Exceptions:    r.exceptions,
		Stats:         r.stats,
		Warnings:      res.Warnings,
		GeneratedAt:   o.now(),
	}

	sink, err := o.newSink()
	if err != nil {
		return newFatal(StateReporting, err)
	}
	defer func() { _ = sink.Close() }()

	workbook := r.ws.Artifact(report.WorkbookFile)
	if err := report.WriteWorkbook(sink, workbook, data); err != nil {
		return newFatal(StateReporting, err)
	}
	res.Artifacts[ArtifactWorkbook] = workbook

	md := r.ws.Artifact(report.SummaryMDFile)
	if err := report.WriteMarkdown(md, data); err != nil {
		return newFatal(StateReporting, err)
	}
	res.Artifacts[ArtifactSummaryMD] = md

	// summary.json records the final state, which Run applies once this stage returns.
	summary := r.ws.Artifact(report.SummaryJSONFile)
	res.Artifacts[ArtifactSummaryJSON] = summary
	final := *res
	final.State = StateSucceeded
	final.Status = StatusSuccess
	final.FinishedAt = o.now()
	if err := report.WriteJSON(summary, &final); err != nil {
		delete(res.Artifacts, ArtifactSummaryJSON)
		return newFatal(StateReporting, err)
	}
	observability.InfoContext(ctx, "Report written", logfields.Path(workbook))
	return nil
}

// IsStageError reports whether err carries a *StageError.
func IsStageError(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
