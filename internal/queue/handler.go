package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/sableword/presswork/internal/domain"
)

// Handler executes jobs of a single type. Implementations receive the job's
// payload verbatim and must honor context cancellation: the dispatcher wraps
// every execution in a per-job timeout.
type Handler interface {
	// JobType returns the type identifier this handler serves.
	JobType() string

	// Handle executes one job. A nil return completes the job; a non-nil
	// return either releases it for retry or, once attempts are exhausted,
	// archives it with this error.
	Handle(ctx context.Context, job *domain.Job) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc struct {
	Type string
	Fn   func(ctx context.Context, job *domain.Job) error
}

func (h HandlerFunc) JobType() string { return h.Type }

func (h HandlerFunc) Handle(ctx context.Context, job *domain.Job) error {
	return h.Fn(ctx, job)
}

// HandlerRegistry maps job types to handlers. Registration normally happens
// once at startup, but the registry is safe for concurrent use so handlers
// can be added while the dispatcher runs.
type HandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to its job type. Registering a second handler for
// the same type returns an error wrapping ErrDuplicateHandler; silently
// replacing a handler would make dispatch order-dependent on startup code.
func (r *HandlerRegistry) Register(h Handler) error {
	jobType := h.JobType()
	if jobType == "" {
		return fmt.Errorf("handler job type cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Resolve returns the handler for the given job type, or an error wrapping
// ErrUnknownJobType when none is registered.
func (r *HandlerRegistry) Resolve(jobType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[jobType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJobType, jobType)
	}
	return h, nil
}

// JobTypes returns the registered job types, useful for logging at startup.
func (r *HandlerRegistry) JobTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
