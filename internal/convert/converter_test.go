package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/testutil/dxfgen"
)

type fakeBackend struct {
	name      string
	prio      int
	available bool
	invoke    func(ctx context.Context, inv Invocation) (Outcome, error)
	calls     *[]string
}

func (f *fakeBackend) Name() string  { return f.name }
func (f *fakeBackend) Priority() int { return f.prio }
func (f *fakeBackend) Probe() (string, bool) {
	return "/opt/" + f.name, f.available
}

func (f *fakeBackend) Invoke(ctx context.Context, inv Invocation) (Outcome, error) {
	if f.calls != nil {
		*f.calls = append(*f.calls, f.name)
	}
	return f.invoke(ctx, inv)
}

// writes produces a DXF with n circles in the output directory.
func writes(t *testing.T, n int) func(context.Context, Invocation) (Outcome, error) {
	return func(_ context.Context, inv Invocation) (Outcome, error) {
		b := dxfgen.New()
		for i := range n {
			b.Circle("0", float64(i), 0, 1)
		}
		return Outcome{Output: b.WriteFile(t, inv.OutputDir, stem(inv.Input)+".dxf")}, nil
	}
}

func fails(msg string) func(context.Context, Invocation) (Outcome, error) {
	return func(context.Context, Invocation) (Outcome, error) { return Outcome{ExitCode: 1}, errors.New(msg) }
}

// writeInput creates a fake binary drawing sized so a small DXF has a plausible ratio.
func writeInput(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "plan.dwg")
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("\x00AC1032", 40)), 0o600))
	return p
}

func TestConvertFallsBackAfterInvalidOutput(t *testing.T) {
	var calls []string
	a := &fakeBackend{name: "a", prio: 1, available: true, invoke: writes(t, 0), calls: &calls}
	b := &fakeBackend{name: "b", prio: 2, available: true, invoke: writes(t, 3), calls: &calls}
	c := New([]Backend{b, a})

	out, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, calls)
	assert.Equal(t, "b", meta.ConverterUsed)
	assert.Equal(t, out, meta.OutputFile)
	assert.Equal(t, 3, meta.EntityCount)
	assert.Greater(t, meta.SizeRatio, 0.0)
	require.Len(t, meta.Attempts, 2)
	assert.Equal(t, "a", meta.Attempts[0].Backend)
	assert.Equal(t, "invalid", meta.Attempts[0].Result)
	assert.Contains(t, meta.Attempts[0].Error, "no model-space entities")
	assert.Equal(t, "success", meta.Attempts[1].Result)
}

func TestConvertStopsAtFirstValid(t *testing.T) {
	var calls []string
	c := New([]Backend{
		&fakeBackend{name: "second", prio: 2, available: true, invoke: writes(t, 1), calls: &calls},
		&fakeBackend{name: "first", prio: 1, available: true, invoke: writes(t, 1), calls: &calls},
	})
	_, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, calls)
	assert.Equal(t, "first", meta.ConverterUsed)
}

func TestConvertSkipsUnavailable(t *testing.T) {
	var calls []string
	c := New([]Backend{
		&fakeBackend{name: "missing", prio: 1, available: false, invoke: writes(t, 1), calls: &calls},
		&fakeBackend{name: "present", prio: 2, available: true, invoke: writes(t, 1), calls: &calls},
	})
	_, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
	require.NoError(t, err)
	assert.Equal(t, []string{"present"}, calls)
	assert.Contains(t, meta.Warnings, "backend missing not available")
}

func TestConvertErrors(t *testing.T) {
	t.Run("input not found", func(t *testing.T) {
		c := New([]Backend{&fakeBackend{name: "a", available: true, invoke: writes(t, 1)}})
		_, meta, err := c.Convert(t.Context(), filepath.Join(t.TempDir(), "nope.dwg"), t.TempDir(), "ACAD2018")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInputNotFound)
		assert.True(t, dberrors.HasCategory(err, dberrors.CategoryNotFound))
		assert.NotNil(t, meta)
	})

	t.Run("no converter available", func(t *testing.T) {
		c := New([]Backend{&fakeBackend{name: "a", available: false}})
		_, _, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
		assert.ErrorIs(t, err, ErrNoConverterAvailable)
		assert.NotErrorIs(t, err, ErrConversionFailed)
		assert.True(t, dberrors.HasCategory(err, dberrors.CategoryConfig))
	})

	t.Run("all backends fail", func(t *testing.T) {
		c := New([]Backend{
			&fakeBackend{name: "a", prio: 1, available: true, invoke: fails("boom")},
			&fakeBackend{name: "b", prio: 2, available: true, invoke: fails("bang")},
		})
		_, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
		require.ErrorIs(t, err, ErrConversionFailed)
		assert.Contains(t, err.Error(), "a: boom")
		assert.Contains(t, err.Error(), "b: bang")
		require.Len(t, meta.Attempts, 2)
		assert.Empty(t, meta.ConverterUsed)
		ce, ok := dberrors.AsClassified(err)
		require.True(t, ok)
		assert.True(t, ce.CanRetry())
	})
}

func TestConvertTimeoutFallsBack(t *testing.T) {
	slow := &fakeBackend{name: "slow", prio: 1, available: true, invoke: func(ctx context.Context, _ Invocation) (Outcome, error) {
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	}}
	fast := &fakeBackend{name: "fast", prio: 2, available: true, invoke: writes(t, 1)}
	c := New([]Backend{slow, fast}, WithTimeout(20*time.Millisecond))

	_, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
	require.NoError(t, err)
	assert.Equal(t, "fast", meta.ConverterUsed)
	assert.Equal(t, "timeout", meta.Attempts[0].Result)
	assert.Contains(t, meta.Attempts[0].Error, "timed out")
}

func TestConvertRejectsImplausibleSizeRatio(t *testing.T) {
	c := New([]Backend{&fakeBackend{name: "a", available: true, invoke: writes(t, 50)}}, WithSizeRatio(0.5, 1.5))
	_, meta, err := c.Convert(t.Context(), writeInput(t), t.TempDir(), "ACAD2018")
	require.ErrorIs(t, err, ErrConversionFailed)
	assert.Contains(t, meta.Attempts[0].Error, "implausible output size ratio")
}

func TestConvertPassesThroughDXF(t *testing.T) {
	var calls []string
	in := dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, t.TempDir(), "plan.DXF")
	c := New([]Backend{&fakeBackend{name: "a", available: true, invoke: writes(t, 1), calls: &calls}})

	out, meta, err := c.Convert(t.Context(), in, t.TempDir(), "ACAD2018")
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, Passthrough, meta.ConverterUsed)
	assert.Empty(t, calls)
}

func TestFromConfigOrdersAndFiltersBackends(t *testing.T) {
	cfg := config.Default().Conversion
	cfg.Backends = []config.BackendConfig{
		{Name: config.BackendODA, Binary: "oda-x", Priority: 1},
		{Name: config.BackendLibreDWG, Binary: "dwg2dxf-x", Priority: 2},
		{Name: config.BackendLibreDWG, Binary: "off", Priority: 0, Disabled: true},
	}
	c := FromConfig(cfg, &fakeRunner{}, nil)
	require.Len(t, c.backends, 2)
	assert.Equal(t, config.BackendODA, c.backends[0].Name())
	assert.Equal(t, config.BackendLibreDWG, c.backends[1].Name())
	assert.Equal(t, cfg.Timeout, c.timeout)
}
