package convert

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
)

// ODABackend drives ODAFileConverter, which only works on directories: it
// converts every file in the input directory matching a filter.
type ODABackend struct {
	Binary   string
	Path     string
	Prio     int
	Runner   Runner
}

// NewODA builds the backend from its config entry.
func NewODA(bc config.BackendConfig, runner Runner) *ODABackend {
	if runner == nil {
		runner = ExecRunner{}
	}
	binary := bc.Binary
	if binary == "" {
		binary = "ODAFileConverter"
	}
	return &ODABackend{Binary: binary, Path: bc.Path, Prio: bc.Priority, Runner: runner}
}

func (b *ODABackend) Name() string  { return config.BackendODA }
func (b *ODABackend) Priority() int { return b.Prio }

func (b *ODABackend) Probe() (string, bool) { return probeBinary(b.Path, b.Binary) }

func (b *ODABackend) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	bin := inv.Binary
	if bin == "" {
		bin = b.Binary
	}
	expected := filepath.Join(inv.OutputDir, stem(inv.Input)+".dxf")
	if err := removeStale(expected); err != nil {
		return Outcome{}, err
	}
	version := strings.ToUpper(strings.TrimSpace(inv.TargetVersion))
	if version == "" {
		version = "ACAD2018"
	}

	// Arguments: input dir, output dir, output version, output type, recurse, audit, filter.
	res, err := b.Runner.Run(ctx, inv.OutputDir, bin,
		filepath.Dir(inv.Input), inv.OutputDir, version, "DXF", "0", "1", filepath.Base(inv.Input))
	oc := Outcome{ExitCode: res.ExitCode, Stderr: res.Stderr}
	if err != nil {
		return oc, err
	}

	out := discoverOutput(inv.OutputDir, expected)
	if out == "" {
		if res.ExitCode != 0 {
			return oc, exitError("ODAFileConverter", res)
		}
		return oc, errNoOutput
	}
	oc.Output = out
	if res.ExitCode != 0 {
		oc.Warnings = append(oc.Warnings, "ODAFileConverter reported a non-zero status but produced output")
	}
	return oc, nil
}

// discoverOutput returns expected if present, else the first .dxf in dir by name.
func discoverOutput(dir, expected string) string {
	if nonEmptyFile(expected) {
		return expected
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".dxf") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	for _, n := range names {
		if p := filepath.Join(dir, n); nonEmptyFile(p) {
			return p
		}
	}
	return ""
}
