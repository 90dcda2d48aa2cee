package monitoring

import (
	"errors"

	"github.com/smukkama/water-quality-server/internal/database"
)

var (
	// ErrNotFound is returned when acknowledging an unknown alert
	ErrNotFound = database.ErrNotFound

	// ErrInvalidReading is returned when a submission fails validation.
	// Nothing is persisted.
	ErrInvalidReading = errors.New("invalid reading")

	// ErrPartialEvaluation is returned when a write fails part way through
	// evaluation. Records written before the failure are kept.
	ErrPartialEvaluation = errors.New("partial evaluation")

	// ErrSummariesUnavailable is returned when no summary source is configured
	ErrSummariesUnavailable = errors.New("summaries are not available")
)
