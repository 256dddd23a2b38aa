package element

import (
	"fmt"
	"sync"

	"opineeo/survey-widget/internal"

	"github.com/go-playground/validator/v10"
)

// Handler is a host callback referenced by an oncomplete or onclose
// attribute. detail is the payload for complete and nil for close.
type Handler func(detail any, elementID string)

// Registry is the handler namespace attribute paths such as
// "app.survey.done" resolve against.
type Registry struct {
	mu        sync.RWMutex
	validator *validator.Validate
	handlers  map[string]Handler
}

func NewRegistry(v *validator.Validate) *Registry {
	return &Registry{
		validator: v,
		handlers:  make(map[string]Handler),
	}
}

func (r *Registry) Register(path string, h Handler) error {
	if path == "" || h == nil {
		return fmt.Errorf("%w: handler path and function are required", internal.ErrValidationFailed)
	}
	err := r.validator.Var(path, "dotted_path")
	if err != nil {
		return fmt.Errorf("%w: handler path %q", internal.ErrValidationFailed, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[path] = h
	return nil
}

func (r *Registry) Unregister(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, path)
}

// Resolve returns the handler registered under path, nil when the path is
// empty, malformed or unknown.
func (r *Registry) Resolve(path string) Handler {
	if path == "" || r.validator.Var(path, "dotted_path") != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.handlers[path]
}
