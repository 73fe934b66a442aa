package target

import "errors"

// Validation failures are detected synchronously and never retried; callers
// surface the message to the end user. Degenerate geometry (a target that
// never or always clears a threshold) is a value, not an error.
var (
	// ErrInvalidArgument marks a value that is not a usable time, duration
	// or angular quantity (non-finite, non-positive span, out of range).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidTarget marks an unrecognized body name or a malformed
	// catalog coordinate.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrAmbiguousTarget marks a request carrying both or neither of the
	// two target specifications (catalog coordinate, body name).
	ErrAmbiguousTarget = errors.New("ambiguous target specification")
)
