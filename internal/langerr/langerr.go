// Package langerr defines the sentinel errors shared by the detection and training packages.
//
// Errors are always wrapped with context; callers test them with errors.Is.
package langerr

import "errors"

var (
	// ErrInvalidInput marks a precondition violation on an argument, such as an empty token.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidConfiguration marks bad settings: non-positive token lengths, malformed ISO codes.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrDataCorruption marks unparsable corpora or serialized artifacts.
	ErrDataCorruption = errors.New("data corruption")

	// ErrStatePrecondition marks an operation attempted in the wrong lifecycle state.
	ErrStatePrecondition = errors.New("state precondition violated")
)
