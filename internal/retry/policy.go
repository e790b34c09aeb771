package retry

import (
	"errors"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
)

// Policy describes how often and how late a failed job is resubmitted.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int // resubmissions after the first attempt
}

// DefaultPolicy is linear backoff, 1s initial, 30s cap, 2 retries.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffLinear, Initial: time.Second, Max: 30 * time.Second, MaxRetries: 2}
}

// NewPolicy builds a policy from config values; zero or unknown values keep the defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries >= 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if mode.Valid() {
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the queue retry policy.
func FromConfig(q config.QueueConfig) Policy {
	return NewPolicy(q.RetryBackoff, q.RetryInitialDelay, q.RetryMaxDelay, q.MaxRetries)
}

// Allows reports whether a job that has already been retried retries times may run again.
func (p Policy) Allows(retries int) bool {
	return retries < p.MaxRetries
}

// Delay returns the wait before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if n > 32 {
			return p.Max
		}
		d = p.Initial << (n - 1)
		if d <= 0 {
			return p.Max
		}
	default:
		d = time.Duration(n) * p.Initial
	}
	if d > p.Max {
		return p.Max
	}
	return d
}

// Validate rejects policies that cannot be applied.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return errors.New("retry initial delay must be > 0")
	}
	if p.Max <= 0 {
		return errors.New("retry max delay must be > 0")
	}
	if p.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	return nil
}
