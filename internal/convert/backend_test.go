package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/testutil/dxfgen"
)

type runCall struct {
	dir  string
	name string
	args []string
}

type fakeRunner struct {
	calls []runCall
	do    func(args []string) (RunResult, error)
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (RunResult, error) {
	f.calls = append(f.calls, runCall{dir: dir, name: name, args: args})
	if f.do == nil {
		return RunResult{}, nil
	}
	return f.do(args)
}

func TestLibreDWGInvocation(t *testing.T) {
	in := writeInput(t)
	outDir := t.TempDir()

	t.Run("writes output and maps version", func(t *testing.T) {
		r := &fakeRunner{do: func(args []string) (RunResult, error) {
			dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, filepath.Dir(args[2]), filepath.Base(args[2]))
			return RunResult{}, nil
		}}
		b := NewLibreDWG(config.BackendConfig{Priority: 1}, r)
		oc, err := b.Invoke(t.Context(), Invocation{Input: in, OutputDir: outDir, TargetVersion: "ACAD2018"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(outDir, "plan.dxf"), oc.Output)
		require.Len(t, r.calls, 1)
		assert.Equal(t, "dwg2dxf", r.calls[0].name)
		assert.Equal(t, []string{in, "-o", oc.Output, "--as", "r2018"}, r.calls[0].args)
	})

	t.Run("non-zero exit with output is a warning", func(t *testing.T) {
		r := &fakeRunner{do: func(args []string) (RunResult, error) {
			dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, filepath.Dir(args[2]), filepath.Base(args[2]))
			return RunResult{ExitCode: 1}, nil
		}}
		oc, err := NewLibreDWG(config.BackendConfig{}, r).Invoke(t.Context(), Invocation{Input: in, OutputDir: outDir})
		require.NoError(t, err)
		require.Len(t, oc.Warnings, 1)
		assert.Contains(t, oc.Warnings[0], "status 1")
	})

	t.Run("non-zero exit without output fails and clears stale file", func(t *testing.T) {
		stale := filepath.Join(outDir, "plan.dxf")
		require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))
		r := &fakeRunner{do: func([]string) (RunResult, error) {
			return RunResult{ExitCode: 2, Stderr: "bad object"}, nil
		}}
		oc, err := NewLibreDWG(config.BackendConfig{}, r).Invoke(t.Context(), Invocation{Input: in, OutputDir: outDir})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad object")
		assert.Equal(t, 2, oc.ExitCode)
		assert.NoFileExists(t, stale)
	})
}

func TestLibreDWGVersion(t *testing.T) {
	for in, want := range map[string]string{
		"ACAD2018": "r2018",
		"acad2013": "r2013",
		"R2000":    "r2000",
		"":         "r2018",
		"14":       "r14",
	} {
		assert.Equal(t, want, libreDWGVersion(in), in)
	}
}

func TestODAInvocation(t *testing.T) {
	in := writeInput(t)

	t.Run("directory batch arguments", func(t *testing.T) {
		outDir := t.TempDir()
		r := &fakeRunner{do: func(args []string) (RunResult, error) {
			dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, args[1], "plan.dxf")
			return RunResult{}, nil
		}}
		b := NewODA(config.BackendConfig{Path: "/nonexistent/ODAFileConverter"}, r)
		oc, err := b.Invoke(t.Context(), Invocation{Input: in, OutputDir: outDir, TargetVersion: "acad2018"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(outDir, "plan.dxf"), oc.Output)
		assert.Equal(t, []string{filepath.Dir(in), outDir, "ACAD2018", "DXF", "0", "1", "plan.dwg"}, r.calls[0].args)
	})

	t.Run("discovers differently named output", func(t *testing.T) {
		outDir := t.TempDir()
		r := &fakeRunner{do: func(args []string) (RunResult, error) {
			dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, args[1], "PLAN_converted.DXF")
			return RunResult{}, nil
		}}
		oc, err := NewODA(config.BackendConfig{}, r).Invoke(t.Context(), Invocation{Input: in, OutputDir: outDir})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(outDir, "PLAN_converted.DXF"), oc.Output)
	})

	t.Run("no output", func(t *testing.T) {
		oc, err := NewODA(config.BackendConfig{}, &fakeRunner{}).Invoke(t.Context(), Invocation{Input: in, OutputDir: t.TempDir()})
		require.ErrorIs(t, err, errNoOutput)
		assert.Empty(t, oc.Output)
	})

	t.Run("runner error propagates", func(t *testing.T) {
		r := &fakeRunner{do: func([]string) (RunResult, error) { return RunResult{}, errors.New("exec format error") }}
		_, err := NewODA(config.BackendConfig{}, r).Invoke(t.Context(), Invocation{Input: in, OutputDir: t.TempDir()})
		require.Error(t, err)
	})
}

func TestProbeBinary(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "dwg2dxf")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	plain := filepath.Join(dir, "readme")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0o644))

	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		if name == "onpath" {
			return "/usr/bin/onpath", nil
		}
		return "", errors.New("not found")
	}

	bin, ok := probeBinary(exe, "missing")
	assert.True(t, ok)
	assert.Equal(t, exe, bin)

	bin, ok = probeBinary(plain, "onpath")
	assert.True(t, ok, "non-executable configured path falls back to PATH")
	assert.Equal(t, "/usr/bin/onpath", bin)

	_, ok = probeBinary("", "missing")
	assert.False(t, ok)
}

func TestConverterAvailable(t *testing.T) {
	c := New([]Backend{
		&fakeBackend{name: "b", prio: 2, available: false},
		&fakeBackend{name: "a", prio: 1, available: true},
	})
	st := c.Available()
	require.Len(t, st, 2)
	assert.Equal(t, BackendStatus{Name: "a", Priority: 1, Binary: "/opt/a", Available: true}, st[0])
	assert.False(t, st[1].Available)
}

// dxfRunner writes a fixed DXF to wherever the backend expects output. It is
// safe for concurrent use.
type dxfRunner struct {
	body   string
	target func(args []string) string
}

func (r dxfRunner) Run(_ context.Context, _, _ string, args ...string) (RunResult, error) {
	return RunResult{}, os.WriteFile(r.target(args), []byte(r.body), 0o600)
}

func TestConcurrentConvertSharesBackends(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "converter")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	body := dxfgen.New().Circle("0", 0, 0, 1).Circle("0", 2, 0, 1).String()

	backends := map[string]Backend{
		"libredwg": NewLibreDWG(config.BackendConfig{Path: exe},
			dxfRunner{body: body, target: func(args []string) string { return args[2] }}),
		"oda": NewODA(config.BackendConfig{Path: exe},
			dxfRunner{body: body, target: func(args []string) string { return filepath.Join(args[1], "plan.dxf") }}),
	}
	for name, b := range backends {
		t.Run(name, func(t *testing.T) {
			c := New([]Backend{b}, WithSizeRatio(0.01, 1000))
			in := writeInput(t)
			dirs := make([]string, 8)
			for i := range dirs {
				dirs[i] = t.TempDir()
			}

			errs := make([]error, len(dirs))
			metas := make([]*Metadata, len(dirs))
			var wg sync.WaitGroup
			for i, dir := range dirs {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, metas[i], errs[i] = c.Convert(context.Background(), in, dir, "ACAD2018")
				}()
			}
			wg.Wait()

			for i := range dirs {
				require.NoError(t, errs[i])
				assert.Equal(t, name, metas[i].ConverterUsed)
				require.Len(t, metas[i].Attempts, 1)
				assert.Equal(t, exe, metas[i].Attempts[0].Binary)
			}
		})
	}
}

func TestProbeLeavesBackendUnchanged(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "dwg2dxf")
	require.NoError(t, os.WriteFile(exe, []byte("#!/bin/sh\n"), 0o755))
	b := NewLibreDWG(config.BackendConfig{Path: exe}, &fakeRunner{})
	before := *b

	bin, ok := b.Probe()
	require.True(t, ok)
	assert.Equal(t, exe, bin)
	assert.Equal(t, before, *b)
}
