package task

import "errors"

// Domain errors for the task lifecycle. Handlers map these onto HTTP status
// codes; the worker records them as the task's failure cause. Store
// unavailability is deliberately separate from task failure: it means the
// service cannot assert anything about task state.
var (
	// ErrMissingPayload is returned when a submission carries no file part.
	ErrMissingPayload = errors.New("no file uploaded")

	// ErrCorruptAudio is returned when the (possibly extracted) audio artifact
	// is below the minimum size floor or unreadable.
	ErrCorruptAudio = errors.New("audio file is empty or corrupted")

	// ErrExtractionFailed is returned when converting a video container to a
	// waveform fails.
	ErrExtractionFailed = errors.New("audio extraction failed")

	// ErrArtifactMissing is returned when the worker finds its artifact gone
	// before analysis started.
	ErrArtifactMissing = errors.New("audio artifact missing before analysis")

	// ErrAnalysisFailed is returned when the analysis function errored or
	// produced an empty result.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrNotFound is returned on lookups for unknown task ids.
	ErrNotFound = errors.New("task not found")

	// ErrResultsUnavailable is returned for completed tasks whose results
	// field is absent (legacy records).
	ErrResultsUnavailable = errors.New("results not available for this task")

	// ErrStoreUnavailable is returned when the task store cannot be reached.
	ErrStoreUnavailable = errors.New("task store unavailable")
)
