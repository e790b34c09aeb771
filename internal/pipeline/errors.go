package pipeline

import (
	"errors"
	"fmt"

	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	"git.home.luguber.info/inful/boqbuilder/internal/extract"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// ErrEmptyExtraction is recorded as a warning when a drawing has no entities.
var ErrEmptyExtraction = errors.New("drawing contains no entities")

// ErrorKind is the user-visible failure taxonomy.
type ErrorKind string

const (
	KindInputNotFound        ErrorKind = "InputNotFound"
	KindNoConverterAvailable ErrorKind = "NoConverterAvailable"
	KindConversionFailed     ErrorKind = "ConversionFailed"
	KindUnreadableDrawing    ErrorKind = "UnreadableDrawing"
	KindInternal             ErrorKind = "Internal"
)

// KindOf maps any error onto the taxonomy; unrecognized errors are Internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, convert.ErrInputNotFound):
		return KindInputNotFound
	case errors.Is(err, convert.ErrNoConverterAvailable):
		return KindNoConverterAvailable
	case errors.Is(err, convert.ErrConversionFailed):
		return KindConversionFailed
	case errors.Is(err, extract.ErrUnreadableDrawing):
		return KindUnreadableDrawing
	}
	return KindInternal
}

// StageErrorKind says whether a stage error aborts the run.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"
	StageErrorWarning  StageErrorKind = "warning"
	StageErrorCanceled StageErrorKind = "canceled"
)

// StageError ties a failure to the stage it happened in.
type StageError struct {
	Kind  StageErrorKind
	Stage State
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind is the taxonomy kind of the underlying cause.
func (e *StageError) ErrorKind() ErrorKind { return KindOf(e.Err) }

// Transient reports whether resubmitting the job may succeed. Conversion
// failures are, as are internal errors unless they were classified as not retryable.
func (e *StageError) Transient() bool {
	if e == nil || e.Kind == StageErrorCanceled {
		return false
	}
	switch e.ErrorKind() {
	case KindConversionFailed:
		return true
	case KindInternal:
		if ce, ok := dberrors.AsClassified(e.Err); ok {
			return ce.CanRetry()
		}
		return true
	}
	return false
}

func newFatal(stage State, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func newWarning(stage State, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

func newCanceled(stage State, err error) *StageError {
	return &StageError{Kind: StageErrorCanceled, Stage: stage, Err: err}
}

// asStageError wraps plain errors as fatal failures of stage.
func asStageError(stage State, err error) *StageError {
	var se *StageError
	if errors.As(err, &se) {
		return se
	}
	return newFatal(stage, err)
}
