package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/dxf"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
	"git.home.luguber.info/inful/boqbuilder/internal/observability"
)

// Passthrough is the converter name reported when the input is already DXF.
const Passthrough = "passthrough"

// Metadata records how a drawing was converted, including every failed attempt.
type Metadata struct {
	InputFile     string    `json:"input_file"`
	InputSize     int64     `json:"input_size"`
	OutputFile    string    `json:"output_file,omitempty"`
	OutputSize    int64     `json:"output_size,omitempty"`
	TargetVersion string    `json:"target_version"`
	ConverterUsed string    `json:"converter_used,omitempty"`
	SizeRatio     float64   `json:"size_ratio,omitempty"`
	EntityCount   int       `json:"entity_count,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Attempts      []Attempt `json:"attempts,omitempty"`
	Warnings      []string  `json:"warnings,omitempty"`
}

// Attempt is one backend invocation.
type Attempt struct {
	Backend    string `json:"backend"`
	Binary     string `json:"binary"`
	DurationMS int64  `json:"duration_ms"`
	ExitCode   int    `json:"exit_code"`
	Result     string `json:"result"`
	Error      string `json:"error,omitempty"`
}

// BackendStatus is the probe result for one backend.
type BackendStatus struct {
	Name      string
	Priority  int
	Binary    string
	Available bool
}

// Converter tries backends in ascending priority until one yields a valid interchange file.
type Converter struct {
	backends []Backend
	timeout  time.Duration
	minRatio float64
	maxRatio float64
	recorder metrics.Recorder
}

// Option configures a Converter.
type Option func(*Converter)

func WithTimeout(d time.Duration) Option {
	return func(c *Converter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSizeRatio sets the plausible output/input size range.
func WithSizeRatio(minRatio, maxRatio float64) Option {
	return func(c *Converter) { c.minRatio, c.maxRatio = minRatio, maxRatio }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Converter) {
		if r != nil {
			c.recorder = r
		}
	}
}

// New sorts backends by priority; equal priorities keep their given order.
func New(backends []Backend, opts ...Option) *Converter {
	c := &Converter{
		backends: append([]Backend(nil), backends...),
		timeout:  config.DefaultConversionTimeout,
		minRatio: 0.5,
		maxRatio: 50,
		recorder: metrics.NoopRecorder{},
	}
	sort.SliceStable(c.backends, func(i, j int) bool { return c.backends[i].Priority() < c.backends[j].Priority() })
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds the configured backends. Unknown names are rejected by
// config validation, so they are skipped here.
func FromConfig(cfg config.ConversionConfig, runner Runner, rec metrics.Recorder) *Converter {
	var backends []Backend
	for _, bc := range cfg.Backends {
		if bc.Disabled {
			continue
		}
		switch bc.Name {
		case config.BackendLibreDWG:
			backends = append(backends, NewLibreDWG(bc, runner))
		case config.BackendODA:
			backends = append(backends, NewODA(bc, runner))
		}
	}
	return New(backends,
		WithTimeout(cfg.Timeout),
		WithSizeRatio(cfg.MinSizeRatio, cfg.MaxSizeRatio),
		WithRecorder(rec),
	)
}

// Available probes every backend.
func (c *Converter) Available() []BackendStatus {
	out := make([]BackendStatus, 0, len(c.backends))
	for _, b := range c.backends {
		bin, ok := b.Probe()
		out = append(out, BackendStatus{Name: b.Name(), Priority: b.Priority(), Binary: bin, Available: ok})
	}
	return out
}

// Convert produces an interchange file for drawingPath inside outputDir. The
// returned metadata is non-nil even on failure so callers can report attempts.
func (c *Converter) Convert(ctx context.Context, drawingPath, outputDir, targetVersion string) (string, *Metadata, error) {
	started := time.Now()
	meta := &Metadata{InputFile: drawingPath, TargetVersion: targetVersion}
	defer func() { meta.DurationMS = time.Since(started).Milliseconds() }()

	fi, err := os.Stat(drawingPath)
	if err != nil || !fi.Mode().IsRegular() {
		if err == nil {
			err = errors.New("not a regular file")
		}
		return "", meta, dberrors.WrapError(fmt.Errorf("%w: %w", ErrInputNotFound, err), dberrors.CategoryNotFound, "source drawing missing").
			Fatal().
			WithContext("path", drawingPath).
			Build()
	}
	meta.InputSize = fi.Size()

	if strings.EqualFold(filepath.Ext(drawingPath), ".dxf") {
		meta.ConverterUsed = Passthrough
		meta.OutputFile = drawingPath
		meta.OutputSize = fi.Size()
		meta.SizeRatio = 1
		observability.InfoContext(ctx, "Input is already DXF; skipping conversion", logfields.Path(drawingPath))
		return drawingPath, meta, nil
	}

	if err := os.MkdirAll(outputDir, 0o750); err != nil {
		return "", meta, dberrors.WrapError(err, dberrors.CategoryFileSystem, "cannot create conversion directory").
			WithContext("path", outputDir).
			Build()
	}

	type candidate struct {
		backend Backend
		binary  string
	}
	var candidates []candidate
	for _, b := range c.backends {
		if bin, ok := b.Probe(); ok {
			candidates = append(candidates, candidate{backend: b, binary: bin})
			continue
		}
		observability.DebugContext(ctx, "Converter backend not available", logfields.Backend(b.Name()))
		meta.Warnings = append(meta.Warnings, fmt.Sprintf("backend %s not available", b.Name()))
	}
	if len(candidates) == 0 {
		return "", meta, dberrors.WrapError(ErrNoConverterAvailable, dberrors.CategoryConfig,
			"no DWG converter is installed or configured").
			Fatal().
			UserAction().
			WithContext("backends", len(c.backends)).
			Build()
	}

	for _, cand := range candidates {
		inv := Invocation{Input: drawingPath, OutputDir: outputDir, TargetVersion: targetVersion, Binary: cand.binary}
		out, ok := c.attempt(ctx, cand.backend, inv, meta)
		if ok {
			return out, meta, nil
		}
		if ctx.Err() != nil {
			return "", meta, dberrors.WrapError(fmt.Errorf("%w: %w", ErrConversionFailed, ctx.Err()), dberrors.CategoryConversion, "conversion canceled").
				Build()
		}
	}

	reasons := make([]string, 0, len(meta.Attempts))
	for _, a := range meta.Attempts {
		reasons = append(reasons, a.Backend+": "+a.Error)
	}
	return "", meta, dberrors.WrapError(
		fmt.Errorf("%w: %s", ErrConversionFailed, strings.Join(reasons, "; ")),
		dberrors.CategoryConversion, "all converters failed").
		Retryable().
		WithContext("attempts", len(meta.Attempts)).
		Build()
}

func (c *Converter) attempt(ctx context.Context, b Backend, inv Invocation, meta *Metadata) (string, bool) {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	outcome, err := b.Invoke(tctx, inv)
	elapsed := time.Since(started)

	a := Attempt{Backend: b.Name(), Binary: inv.Binary, DurationMS: elapsed.Milliseconds(), ExitCode: outcome.ExitCode}
	for _, w := range outcome.Warnings {
		meta.Warnings = append(meta.Warnings, b.Name()+": "+w)
	}

	var (
		entities int
		ratio    float64
		outSize  int64
	)
	result := metrics.ConverterSuccess
	switch {
	case errors.Is(tctx.Err(), context.DeadlineExceeded):
		result = metrics.ConverterTimeout
		err = fmt.Errorf("timed out after %s", c.timeout)
	case err != nil:
		result = metrics.ConverterFailed
	default:
		outSize, ratio, entities, err = c.validate(outcome.Output, meta.InputSize)
		if err != nil {
			result = metrics.ConverterInvalid
		}
	}
	a.Result = string(result)
	c.recorder.ObserveConversion(b.Name(), elapsed, result)

	if err != nil {
		a.Error = err.Error()
		meta.Attempts = append(meta.Attempts, a)
		observability.WarnContext(ctx, "Converter attempt failed",
			logfields.Backend(b.Name()), logfields.Duration(elapsed), slog.String("result", a.Result), logfields.Error(err))
		return "", false
	}

	meta.Attempts = append(meta.Attempts, a)
	meta.ConverterUsed = b.Name()
	meta.OutputFile = outcome.Output
	meta.OutputSize = outSize
	meta.SizeRatio = ratio
	meta.EntityCount = entities
	observability.InfoContext(ctx, "Converter attempt succeeded",
		logfields.Backend(b.Name()), logfields.Duration(elapsed), logfields.Count(entities))
	return outcome.Output, true
}

// validate checks the output exists, is plausibly sized and parses with entities.
func (c *Converter) validate(path string, inputSize int64) (int64, float64, int, error) {
	if path == "" {
		return 0, 0, 0, errNoOutput
	}
	fi, err := os.Stat(path)
	if err != nil {
		return 0, 0, 0, errNoOutput
	}
	if fi.Size() == 0 {
		return 0, 0, 0, errEmptyOutput
	}
	var ratio float64
	if inputSize > 0 {
		ratio = float64(fi.Size()) / float64(inputSize)
		if ratio < c.minRatio || ratio > c.maxRatio {
			return fi.Size(), ratio, 0, fmt.Errorf("%w: %.2f outside [%.2f, %.2f]", errRatio, ratio, c.minRatio, c.maxRatio)
		}
	}
	doc, err := dxf.ReadFile(path)
	if err != nil {
		return fi.Size(), ratio, 0, fmt.Errorf("output not parseable: %w", err)
	}
	n := len(doc.ModelSpace())
	if n == 0 {
		return fi.Size(), ratio, 0, errNoEntities
	}
	return fi.Size(), ratio, n, nil
}
