package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boqbuilder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ACAD2018", cfg.Conversion.TargetVersion)
	assert.Equal(t, 300*time.Second, cfg.Conversion.Timeout)
	assert.InDelta(t, 0.5, cfg.Conversion.MinSizeRatio, 1e-9)
	require.Len(t, cfg.Conversion.Backends, 2)
	assert.Equal(t, BackendLibreDWG, cfg.Conversion.Backends[0].Name)
	assert.Equal(t, BackendODA, cfg.Conversion.Backends[1].Name)
	assert.InDelta(t, 1.0, cfg.Extraction.MinRoomArea, 1e-9)
	assert.Equal(t, []string{"WALL", "MUR"}, cfg.Extraction.WallKeywords)
	assert.Equal(t, 2, cfg.Queue.MaxRetries)
	assert.Equal(t, RetryBackoffLinear, cfg.Queue.RetryBackoff)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("BOQ_TEST_BASE", "/srv/boq")
	path := writeConfig(t, `
workspace:
  base_dir: ${BOQ_TEST_BASE}/jobs
conversion:
  timeout: 45s
  backends:
    - name: ODA
      path: /opt/oda/ODAFileConverter
queue:
  max_retries: 0
  retry_backoff: Exponential
logging:
  level: DEBUG
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/boq/jobs", cfg.Workspace.BaseDir)
	assert.Equal(t, 45*time.Second, cfg.Conversion.Timeout)
	require.Len(t, cfg.Conversion.Backends, 1)
	assert.Equal(t, BackendODA, cfg.Conversion.Backends[0].Name)
	assert.Equal(t, "ODAFileConverter", cfg.Conversion.Backends[0].Binary)
	assert.Equal(t, 2, cfg.Conversion.Backends[0].Priority)
	assert.Equal(t, 0, cfg.Queue.MaxRetries, "explicit zero must survive defaults")
	assert.Equal(t, RetryBackoffExponential, cfg.Queue.RetryBackoff)
	assert.Equal(t, LogLevelDebug, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
	assert.Equal(t, "/srv/boq/jobs.db", cfg.Daemon.StorePath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvODAPath, "/custom/ODAFileConverter")
	t.Setenv(EnvDXFVersion, "acad2013")
	t.Setenv(EnvCatalogPath, "/etc/boq/catalog.csv")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ACAD2013", cfg.Conversion.TargetVersion)
	assert.Equal(t, "/etc/boq/catalog.csv", cfg.Catalog.Path)
	require.Len(t, cfg.Conversion.Backends, 2)
	assert.Equal(t, "/custom/ODAFileConverter", cfg.Conversion.Backends[1].Path)
}

func TestValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown backend", "conversion:\n  backends:\n    - name: teigha\n      binary: x\n"},
		{"ratio bounds", "conversion:\n  min_size_ratio: 5\n  max_size_ratio: 2\n"},
		{"bad version", "conversion:\n  target_version: R2018\n"},
		{"unknown field", "conversion:\n  timout: 3s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestInitRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boqbuilder.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false), "second init without force must fail")
	require.NoError(t, Init(path, true))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Conversion.Timeout, cfg.Conversion.Timeout)
	assert.Len(t, cfg.Conversion.Backends, 2)
}

func TestNormalizeRetryBackoff(t *testing.T) {
	cases := map[string]RetryBackoffMode{
		"Fixed":      RetryBackoffFixed,
		" constant ": RetryBackoffFixed,
		"LINEAR":     RetryBackoffLinear,
		"exp":        RetryBackoffExponential,
		"fibonacci":  "",
		"":           "",
	}
	for in, want := range cases {
		got := NormalizeRetryBackoff(in)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, want != "", got.Valid())
	}
}
