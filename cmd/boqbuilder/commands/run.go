package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
	"git.home.luguber.info/inful/boqbuilder/internal/pipeline"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Drawing string `arg:"" help:"DWG or DXF drawing to process"`
	Catalog string `help:"Block catalog (.csv or .yaml), overrides configuration"`
	Workdir string `help:"Workspace base directory, overrides configuration"`
	JobID   string `name:"job-id" help:"Job identifier (generated when empty)"`
	JSON    bool   `help:"Print the full job result as JSON"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return r.Execute(ctx, g.out(), cfg, convert.ExecRunner{})
}

// Execute runs one job synchronously and prints its result to w.
func (r *RunCmd) Execute(ctx context.Context, w io.Writer, cfg *config.Config, runner convert.Runner) error {
	if r.Workdir != "" {
		cfg.Workspace.BaseDir = r.Workdir
	}
	if r.Catalog != "" {
		cfg.Catalog.Path = r.Catalog
	}
	input, err := filepath.Abs(r.Drawing)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryValidation, "invalid drawing path").Build()
	}

	orch := pipeline.FromConfig(cfg, runner, metrics.NoopRecorder{})
	res, runErr := orch.Run(ctx, pipeline.Job{ID: r.JobID, Input: input, Attempt: 1})
	if res != nil {
		if err := r.print(w, res); err != nil {
			return err
		}
	}
	return classify(runErr)
}

func (r *RunCmd) print(w io.Writer, res *pipeline.Result) error {
	if r.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return derrors.WrapError(err, derrors.CategoryInternal, "failed to encode result").Build()
		}
		return nil
	}
	fmt.Fprintf(w, "Job:        %s\n", res.JobID)
	fmt.Fprintf(w, "Status:     %s\n", res.Status)
	fmt.Fprintf(w, "Input:      %s\n", res.Input)
	if res.ConverterUsed != "" {
		fmt.Fprintf(w, "Converter:  %s\n", res.ConverterUsed)
	}
	fmt.Fprintf(w, "Entities:   %d\n", res.EntityCount)
	fmt.Fprintf(w, "Line items: %d (%d high confidence)\n", res.LineItemCount, res.HighConfidenceCount)
	fmt.Fprintf(w, "Exceptions: %d\n", res.ExceptionCount)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warn)
	}
	if res.Failure != nil {
		fmt.Fprintf(w, "Failed in %s (%s): %s\n", res.Failure.Stage, res.Failure.Kind, res.Failure.Message)
	}
	names := make([]string, 0, len(res.Artifacts))
	for name := range res.Artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "Artifact:   %s -> %s\n", name, res.Artifacts[name])
	}
	return nil
}

// classify gives pipeline failures a category so the CLI exit code reflects
// the failure kind, and records the failing stage on the error.
func classify(err error) error {
	if err == nil {
		return nil
	}
	se, ok := pipeline.IsStageError(err)
	if !ok {
		if derrors.IsClassified(err) {
			return err
		}
		return derrors.WrapError(err, derrors.CategoryInternal, "job failed").Build()
	}
	var cat derrors.ErrorCategory
	switch se.ErrorKind() {
	case pipeline.KindInputNotFound:
		cat = derrors.CategoryNotFound
	case pipeline.KindNoConverterAvailable, pipeline.KindConversionFailed:
		cat = derrors.CategoryConversion
	case pipeline.KindUnreadableDrawing:
		cat = derrors.CategoryParse
	default:
		cat = derrors.CategoryInternal
	}
	if ce, ok := derrors.AsClassified(err); ok {
		cat = ce.Category()
	}
	return derrors.WrapError(err, cat, "job failed").
		WithContextMap(derrors.ErrorContext{"stage": string(se.Stage), "kind": string(se.ErrorKind())}).
		Build()
}
