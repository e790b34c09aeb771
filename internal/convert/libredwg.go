package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
)

// LibreDWGBackend drives dwg2dxf in single-file mode.
type LibreDWGBackend struct {
	Binary   string
	Path     string
	Prio     int
	Runner   Runner
}

// NewLibreDWG builds the backend from its config entry.
func NewLibreDWG(bc config.BackendConfig, runner Runner) *LibreDWGBackend {
	if runner == nil {
		runner = ExecRunner{}
	}
	binary := bc.Binary
	if binary == "" {
		binary = "dwg2dxf"
	}
	return &LibreDWGBackend{Binary: binary, Path: bc.Path, Prio: bc.Priority, Runner: runner}
}

func (b *LibreDWGBackend) Name() string  { return config.BackendLibreDWG }
func (b *LibreDWGBackend) Priority() int { return b.Prio }

func (b *LibreDWGBackend) Probe() (string, bool) { return probeBinary(b.Path, b.Binary) }

func (b *LibreDWGBackend) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	bin := inv.Binary
	if bin == "" {
		bin = b.Binary
	}
	out := filepath.Join(inv.OutputDir, stem(inv.Input)+".dxf")
	if err := removeStale(out); err != nil {
		return Outcome{}, err
	}

	res, err := b.Runner.Run(ctx, inv.OutputDir, bin, inv.Input, "-o", out, "--as", libreDWGVersion(inv.TargetVersion))
	oc := Outcome{ExitCode: res.ExitCode, Stderr: res.Stderr}
	if err != nil {
		return oc, err
	}
	if !nonEmptyFile(out) {
		if res.ExitCode != 0 {
			return oc, exitError("dwg2dxf", res)
		}
		return oc, errNoOutput
	}
	oc.Output = out
	// dwg2dxf exits non-zero on recoverable object errors but still writes usable output.
	if res.ExitCode != 0 {
		oc.Warnings = append(oc.Warnings, fmt.Sprintf("dwg2dxf exited with status %d but produced output", res.ExitCode))
	}
	return oc, nil
}

// libreDWGVersion maps ACAD2018 to the r2018 form dwg2dxf expects.
func libreDWGVersion(target string) string {
	v := strings.ToUpper(strings.TrimSpace(target))
	switch {
	case v == "":
		return "r2018"
	case strings.HasPrefix(v, "ACAD"):
		return "r" + strings.TrimPrefix(v, "ACAD")
	case strings.HasPrefix(v, "R"):
		return "r" + strings.TrimPrefix(v, "R")
	}
	return "r" + v
}
