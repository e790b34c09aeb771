package config

import "strings"

// RetryBackoffMode selects how the delay between job attempts grows.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var backoffModes = map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"constant":    RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
	"exp":         RetryBackoffExponential,
}

// NormalizeRetryBackoff maps user input onto a mode; unknown input yields "".
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return backoffModes[strings.ToLower(strings.TrimSpace(raw))]
}

// Valid reports whether m is one of the known modes.
func (m RetryBackoffMode) Valid() bool {
	return m == RetryBackoffFixed || m == RetryBackoffLinear || m == RetryBackoffExponential
}
