package panel

import "errors"

// Sentinel errors surfaced by the engine. The transport layer maps these to
// structured API errors; StoreUnavailable is the only one a caller should
// retry, the engine itself is stateless and idempotent.
var (
	// ErrInvalidWindow indicates an empty or unparseable window (start >= end).
	ErrInvalidWindow = errors.New("invalid window")

	// ErrInvalidDimension indicates an unknown domain or level, or a path that
	// already fixes the deepest level.
	ErrInvalidDimension = errors.New("invalid dimension")

	// ErrMissingParameter indicates a required parameter was not supplied,
	// e.g. the category value for the loyalty metric.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrStoreUnavailable indicates the transaction store scan failed or timed
	// out. Safe to retry with backoff.
	ErrStoreUnavailable = errors.New("transaction store unavailable")
)
