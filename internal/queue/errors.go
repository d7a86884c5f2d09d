package queue

import "errors"

var (
	// ErrUnknownJobType indicates a reserved job whose type has no
	// registered handler. The dispatcher archives such jobs immediately;
	// retrying cannot help until a handler exists.
	ErrUnknownJobType = errors.New("no handler registered for job type")

	// ErrDuplicateHandler indicates an attempt to register a second handler
	// for a job type that already has one.
	ErrDuplicateHandler = errors.New("handler already registered for job type")

	// ErrJobTimeout indicates a handler exceeded the per-job execution
	// timeout and was abandoned.
	ErrJobTimeout = errors.New("job execution timed out")

	// ErrHandlerPanic indicates a handler panicked. The panic is recovered
	// and treated as a handler failure so that one bad job cannot take down
	// the dispatcher.
	ErrHandlerPanic = errors.New("handler panicked")
)
