package jobstore

import (
	"git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

var (
	// ErrOpenFailed indicates the SQLite database could not be opened or initialized.
	ErrOpenFailed = errors.NewError(errors.CategoryJobStore, "could not open job store").Fatal().Build()

	// ErrAppendFailed indicates an event could not be written.
	ErrAppendFailed = errors.NewError(errors.CategoryJobStore, "failed to append job event").Retryable().Build()

	// ErrQueryFailed indicates reading events failed.
	ErrQueryFailed = errors.NewError(errors.CategoryJobStore, "failed to query job events").Build()

	// ErrNotFound is returned for unknown job IDs.
	ErrNotFound = errors.NotFoundError("job not found").Build()
)
