package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file values.
const (
	EnvODAPath     = "BOQ_ODA_PATH"
	EnvLibreDWG    = "BOQ_LIBREDWG_PATH"
	EnvDXFVersion  = "BOQ_DXF_VERSION"
	EnvCatalogPath = "BOQ_CATALOG_PATH"
	EnvLogLevel    = "BOQ_LOG_LEVEL"
)

var dotEnvFiles = []string{".env", ".env.local"}

// loadDotEnv loads the first .env file found. Existing variables are not overwritten.
func loadDotEnv() {
	for _, f := range dotEnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("Failed to load env file", "file", f, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "file", f)
		return
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(EnvDXFVersion)); v != "" {
		cfg.Conversion.TargetVersion = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvCatalogPath)); v != "" {
		cfg.Catalog.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = NormalizeLogLevel(v)
	}
	overrides := map[string]string{
		BackendODA:      os.Getenv(EnvODAPath),
		BackendLibreDWG: os.Getenv(EnvLibreDWG),
	}
	for name, path := range overrides {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if len(cfg.Conversion.Backends) == 0 {
			cfg.Conversion.Backends = append([]BackendConfig(nil), defaultBackends...)
		}
		if b := cfg.Conversion.backend(name); b != nil {
			b.Path = path
			continue
		}
		cfg.Conversion.Backends = append(cfg.Conversion.Backends, BackendConfig{Name: name, Path: path})
	}
}

func (c *ConversionConfig) backend(name string) *BackendConfig {
	for i := range c.Backends {
		if strings.EqualFold(c.Backends[i].Name, name) {
			return &c.Backends[i]
		}
	}
	return nil
}
