package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate rejects configurations that cannot run. It expects defaults to be applied.
func Validate(cfg *Config) error {
	v := configurationValidator{config: cfg}
	for _, check := range []func() error{v.validateConversion, v.validateExtraction, v.validateQueue, v.validateDaemon} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func (v configurationValidator) validateConversion() error {
	c := v.config.Conversion
	if c.Timeout <= 0 {
		return errors.New("conversion.timeout must be positive")
	}
	if c.MinSizeRatio >= c.MaxSizeRatio {
		return fmt.Errorf("conversion.min_size_ratio (%g) must be below max_size_ratio (%g)", c.MinSizeRatio, c.MaxSizeRatio)
	}
	if !strings.HasPrefix(c.TargetVersion, "ACAD") {
		return fmt.Errorf("conversion.target_version %q must look like ACAD2018", c.TargetVersion)
	}
	seen := map[string]bool{}
	for _, b := range c.Backends {
		switch b.Name {
		case BackendLibreDWG, BackendODA:
		default:
			return fmt.Errorf("unknown conversion backend %q", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("conversion backend %q configured twice", b.Name)
		}
		seen[b.Name] = true
		if b.Binary == "" && b.Path == "" {
			return fmt.Errorf("conversion backend %q needs a binary or path", b.Name)
		}
	}
	return nil
}

func (v configurationValidator) validateExtraction() error {
	if v.config.Extraction.MinRoomArea < 0 {
		return errors.New("extraction.min_room_area cannot be negative")
	}
	return nil
}

func (v configurationValidator) validateQueue() error {
	q := v.config.Queue
	if q.Workers <= 0 {
		return errors.New("queue.workers must be positive")
	}
	if q.Capacity <= 0 {
		return errors.New("queue.capacity must be positive")
	}
	if q.RetryInitialDelay > q.RetryMaxDelay {
		return fmt.Errorf("queue.retry_initial_delay (%s) exceeds retry_max_delay (%s)", q.RetryInitialDelay, q.RetryMaxDelay)
	}
	return nil
}

func (v configurationValidator) validateDaemon() error {
	d := v.config.Daemon
	if d.HTTPAddr == "" {
		return errors.New("daemon.http_addr is required")
	}
	if d.MaxUploadBytes <= 0 {
		return errors.New("daemon.max_upload_bytes must be positive")
	}
	if v.config.NATS.Enabled && v.config.NATS.URL == "" {
		return errors.New("nats.url is required when nats is enabled")
	}
	return nil
}
