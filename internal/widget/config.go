package widget

import (
	"context"
	"time"

	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/style"
	"opineeo/survey-widget/internal/survey"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	exitDuration  = 300 * time.Millisecond
	enterDuration = 400 * time.Millisecond
	shakeDuration = 250 * time.Millisecond
	focusDelay    = 30 * time.Millisecond

	shakeAnimation = "p .25s ease"

	// ErrSurveyNotFoundMessage is the error state when no survey could be resolved.
	ErrSurveyNotFoundMessage = "Survey not found"
)

// Config is what a host page passes when creating a widget.
type Config struct {
	Token         string
	SurveyID      string
	UserID        string
	ExtraInfo     string
	AutoClose     time.Duration `validate:"gte=0"`
	CustomCSS     string        `validate:"css_safe"`
	SurveyData    *survey.Survey
	Branding      bool
	ResponseToken string

	OnComplete func(payload survey.Payload)
	OnClose    func()
}

// Client talks to the survey API.
type Client interface {
	FetchSurvey(ctx context.Context, token, surveyID string) (survey.Survey, error)
	Submit(ctx context.Context, token string, payload survey.Payload) error
}

// Recorder receives widget lifecycle measurements.
type Recorder interface {
	RecordMount(ctx context.Context, outcome string)
	RecordSubmit(ctx context.Context, outcome string, elapsed time.Duration)
	RecordClose(ctx context.Context)
}

const (
	OutcomeOK          = "ok"
	OutcomeFetched     = "fetched"
	OutcomeUnavailable = "unavailable"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

type Option func(*Widget)

func WithClient(c Client) Option {
	return func(w *Widget) { w.client = c }
}

func WithClock(c clock.Clock) Option {
	return func(w *Widget) { w.clock = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(w *Widget) { w.logger = logger }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(w *Widget) { w.tracer = tracer }
}

func WithRecorder(r Recorder) Option {
	return func(w *Widget) { w.recorder = r }
}

func WithScoper(s *style.Scoper) Option {
	return func(w *Widget) { w.scoper = s }
}

type nopRecorder struct{}

func (nopRecorder) RecordMount(context.Context, string)                {}
func (nopRecorder) RecordSubmit(context.Context, string, time.Duration) {}
func (nopRecorder) RecordClose(context.Context)                         {}

// unavailableClient is used when no Client was configured; every call fails.
type unavailableClient struct{}

func (unavailableClient) FetchSurvey(context.Context, string, string) (survey.Survey, error) {
	return survey.Survey{}, errNoClient
}

func (unavailableClient) Submit(context.Context, string, survey.Payload) error {
	return errNoClient
}
