package host

import (
	"context"
	"regexp"
	"sync"
	"time"

	"opineeo/survey-widget/internal/bundle"
	"opineeo/survey-widget/internal/element"
	"opineeo/survey-widget/internal/widget"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var pageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Recorder receives page and message measurements.
type Recorder interface {
	PageOpened(ctx context.Context)
	PageClosed(ctx context.Context)
	RecordMessage(ctx context.Context, direction, messageType string)
}

type nopRecorder struct{}

func (nopRecorder) PageOpened(context.Context)                    {}
func (nopRecorder) PageClosed(context.Context)                    {}
func (nopRecorder) RecordMessage(context.Context, string, string) {}

// Registry keeps page sessions alive for ttl after their last activity so a
// reconnecting page resumes where it left off. Expired or removed sessions
// are closed.
type Registry struct {
	logger    *zap.Logger
	validator *validator.Validate
	handlers  *element.Registry
	loader    *bundle.Loader
	recorder  Recorder
	options   []widget.Option

	// mu serialises Open so two connections with the same page id share one session.
	mu       sync.Mutex
	sessions *cache.Cache
}

func NewRegistry(
	logger *zap.Logger,
	validator *validator.Validate,
	ttl time.Duration,
	handlers *element.Registry,
	loader *bundle.Loader,
	recorder Recorder,
	options ...widget.Option,
) *Registry {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	r := &Registry{
		logger:    logger,
		validator: validator,
		handlers:  handlers,
		loader:    loader,
		recorder:  recorder,
		options:   options,
		sessions:  cache.New(ttl, ttl/2),
	}
	r.sessions.OnEvicted(func(id string, value interface{}) {
		s, ok := value.(*Session)
		if !ok {
			return
		}
		s.Close(context.Background())
		r.recorder.PageClosed(context.Background())
		r.logger.Debug("Page session evicted", zap.String("page_id", id))
	})
	return r
}

// Open returns the live session for pageID, or a new one. An empty or
// malformed id gets a generated one. resumed reports whether the session
// already existed.
func (r *Registry) Open(ctx context.Context, pageID string) (session *Session, resumed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pageIDPattern.MatchString(pageID) {
		if value, ok := r.sessions.Get(pageID); ok {
			r.sessions.SetDefault(pageID, value)
			return value.(*Session), true, nil
		}
	} else {
		pageID = "pg-" + uuid.NewString()
	}

	_, release, err := r.loader.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}

	session = newSession(pageID, r.logger, r.validator, r.handlers, release, r.options)
	r.sessions.SetDefault(pageID, session)
	r.recorder.PageOpened(ctx)
	return session, false, nil
}

// Get returns the session for pageID without extending its lifetime.
func (r *Registry) Get(pageID string) (*Session, bool) {
	value, ok := r.sessions.Get(pageID)
	if !ok {
		return nil, false
	}
	return value.(*Session), true
}

// Touch extends the lifetime of a session.
func (r *Registry) Touch(pageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if value, ok := r.sessions.Get(pageID); ok {
		r.sessions.SetDefault(pageID, value)
	}
}

func (r *Registry) Remove(pageID string) {
	r.sessions.Delete(pageID)
}

func (r *Registry) Len() int {
	return r.sessions.ItemCount()
}

// Sweep closes every expired session now instead of waiting for the janitor.
func (r *Registry) Sweep() {
	r.sessions.DeleteExpired()
}

// Close closes every session.
func (r *Registry) Close() {
	r.sessions.DeleteExpired()
	for id := range r.sessions.Items() {
		r.sessions.Delete(id)
	}
}
