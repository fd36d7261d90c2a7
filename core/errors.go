package core

import (
	"errors"
	"fmt"
)

// Error taxonomy for the copilot core. The HTTP layer maps these to
// status codes; nothing below it swallows them.
var (
	// ErrInvalidInput marks bad caller arguments. Not retryable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrProviderUnavailable marks a transient failure of an external
	// model provider. Safe to retry; conversation history is left
	// untouched by the failed call.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrDimensionMismatch marks a vector whose dimensionality does not
	// match the index it is used against.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrDuplicateKey marks an insert with an identifier that already
	// exists in the index.
	ErrDuplicateKey = errors.New("duplicate identifier")

	// ErrUnknownTool marks an invocation of a tool name that was never
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrSchemaViolation marks tool arguments that do not match the
	// tool's declared input schema.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrToolLoopExceeded is the safety fuse for runaway tool-call
	// loops. The caller receives a degraded response alongside it.
	ErrToolLoopExceeded = errors.New("tool loop exceeded")
)

// ToolExecutionError tags a domain failure raised inside a tool
// handler. The conversation continues; the failure is reported to the
// user as a failed action.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
