package convert

import "errors"

var (
	// ErrInputNotFound means the source drawing does not exist.
	ErrInputNotFound = errors.New("input drawing not found")
	// ErrNoConverterAvailable means no backend passed its probe. This is a
	// configuration problem, not a conversion failure.
	ErrNoConverterAvailable = errors.New("no converter available")
	// ErrConversionFailed means every available backend was tried and none produced a valid result.
	ErrConversionFailed = errors.New("conversion failed")
)

var (
	errNoOutput      = errors.New("no output file produced")
	errEmptyOutput   = errors.New("output file is empty")
	errRatio         = errors.New("implausible output size ratio")
	errNoEntities    = errors.New("output contains no model-space entities")
	errNotExecutable = errors.New("not an executable file")
)
