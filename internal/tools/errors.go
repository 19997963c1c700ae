package tools

import (
	"errors"

	"github.com/stratalabs/finsight/internal/auth"
)

// Dispatch outcome taxonomy. Every dispatch resolves to exactly one of
// these; callers distinguish them with errors.Is.
var (
	// ErrNotFound means no tool with the requested name is registered
	ErrNotFound = errors.New("tool not found")

	// ErrInvalidArguments means the arguments failed schema validation
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrAccessDenied aliases the guard's sentinel so callers can match
	// denials without importing auth directly
	ErrAccessDenied = auth.ErrAccessDenied

	// ErrExecutionFailed means the handler ran and failed
	ErrExecutionFailed = errors.New("tool execution failed")
)
