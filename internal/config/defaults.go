package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Known converter backends.
const (
	BackendLibreDWG = "libredwg"
	BackendODA      = "oda"
)

// DefaultConversionTimeout bounds a single converter invocation.
const DefaultConversionTimeout = 300 * time.Second

var defaultBackends = []BackendConfig{
	{Name: BackendLibreDWG, Binary: "dwg2dxf", Priority: 1},
	{Name: BackendODA, Binary: "ODAFileConverter", Path: "/usr/local/bin/ODAFileConverter", Priority: 2},
}

// DefaultApplier fills defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

var appliers = []DefaultApplier{
	workspaceDefaults{},
	conversionDefaults{},
	extractionDefaults{},
	queueDefaults{},
	daemonDefaults{},
	natsDefaults{},
	loggingDefaults{},
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = "1"
	}
	for _, a := range appliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return fmt.Errorf("apply %s defaults: %w", a.Domain(), err)
		}
	}
	return nil
}

type workspaceDefaults struct{}

func (workspaceDefaults) Domain() string { return "workspace" }

func (workspaceDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Workspace.BaseDir == "" {
		cfg.Workspace.BaseDir = filepath.Join("data", "jobs")
	}
	if cfg.Workspace.Retention < 0 {
		cfg.Workspace.Retention = 0
	}
	return nil
}

type conversionDefaults struct{}

func (conversionDefaults) Domain() string { return "conversion" }

func (conversionDefaults) ApplyDefaults(cfg *Config) error {
	c := &cfg.Conversion
	if c.TargetVersion == "" {
		c.TargetVersion = "ACAD2018"
	}
	c.TargetVersion = strings.ToUpper(c.TargetVersion)
	if c.Timeout <= 0 {
		c.Timeout = DefaultConversionTimeout
	}
	if c.MinSizeRatio <= 0 {
		c.MinSizeRatio = 0.5
	}
	if c.MaxSizeRatio <= 0 {
		c.MaxSizeRatio = 50
	}
	if len(c.Backends) == 0 {
		c.Backends = append([]BackendConfig(nil), defaultBackends...)
		return nil
	}
	for i := range c.Backends {
		b := &c.Backends[i]
		b.Name = strings.ToLower(strings.TrimSpace(b.Name))
		for _, d := range defaultBackends {
			if d.Name != b.Name {
				continue
			}
			if b.Binary == "" {
				b.Binary = d.Binary
			}
			if b.Priority == 0 {
				b.Priority = d.Priority
			}
		}
	}
	return nil
}

type extractionDefaults struct{}

func (extractionDefaults) Domain() string { return "extraction" }

func (extractionDefaults) ApplyDefaults(cfg *Config) error {
	e := &cfg.Extraction
	if e.MinRoomArea <= 0 {
		e.MinRoomArea = 1.0
	}
	if len(e.WallKeywords) == 0 {
		e.WallKeywords = []string{"WALL", "MUR"}
	}
	if len(e.DoorKeywords) == 0 {
		e.DoorKeywords = []string{"DOOR", "PORTE"}
	}
	if len(e.WindowKeywords) == 0 {
		e.WindowKeywords = []string{"WINDOW", "FENETRE", "FENÊTRE"}
	}
	if len(e.OpeningKeywords) == 0 {
		e.OpeningKeywords = []string{"OPENING"}
	}
	return nil
}

type queueDefaults struct{}

func (queueDefaults) Domain() string { return "queue" }

func (queueDefaults) ApplyDefaults(cfg *Config) error {
	q := &cfg.Queue
	if q.Workers <= 0 {
		q.Workers = 2
	}
	if q.Capacity <= 0 {
		q.Capacity = 100
	}
	if !q.maxRetriesSpecified && q.MaxRetries == 0 {
		q.MaxRetries = 2
	}
	if q.MaxRetries < 0 {
		q.MaxRetries = 0
	}
	if m := NormalizeRetryBackoff(string(q.RetryBackoff)); m != "" {
		q.RetryBackoff = m
	} else {
		q.RetryBackoff = RetryBackoffLinear
	}
	if q.RetryInitialDelay <= 0 {
		q.RetryInitialDelay = time.Second
	}
	if q.RetryMaxDelay <= 0 {
		q.RetryMaxDelay = 30 * time.Second
	}
	if q.HistorySize <= 0 {
		q.HistorySize = 200
	}
	return nil
}

type daemonDefaults struct{}

func (daemonDefaults) Domain() string { return "daemon" }

func (daemonDefaults) ApplyDefaults(cfg *Config) error {
	d := &cfg.Daemon
	if d.HTTPAddr == "" {
		d.HTTPAddr = ":8080"
	}
	if d.MaxConnections <= 0 {
		d.MaxConnections = 64
	}
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = 200 << 20
	}
	if d.SweepInterval <= 0 {
		d.SweepInterval = time.Hour
	}
	if d.RescanInterval <= 0 {
		d.RescanInterval = 5 * time.Minute
	}
	if d.StorePath == "" {
		d.StorePath = filepath.Join(filepath.Dir(cfg.Workspace.BaseDir), "jobs.db")
	}
	return nil
}

type natsDefaults struct{}

func (natsDefaults) Domain() string { return "nats" }

func (natsDefaults) ApplyDefaults(cfg *Config) error {
	n := &cfg.NATS
	if n.URL == "" {
		n.URL = "nats://127.0.0.1:4222"
	}
	if n.Stream == "" {
		n.Stream = "BOQ_JOBS"
	}
	if n.SubjectPrefix == "" {
		n.SubjectPrefix = "boq.jobs"
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
