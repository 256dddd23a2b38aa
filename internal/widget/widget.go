package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/style"
	"opineeo/survey-widget/internal/survey"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var errNoClient = errors.New("no survey api client configured")

// Widget is one survey instance bound to a container of a document. All
// state is guarded by mu; deferred work captures the mount generation and
// does nothing once the widget has been destroyed or remounted.
type Widget struct {
	mu sync.Mutex

	cfg      Config
	doc      dom.Document
	client   Client
	clock    clock.Clock
	logger   *zap.Logger
	tracer   trace.Tracer
	recorder Recorder
	scoper   *style.Scoper

	generation uint64
	container  dom.Container
	detach     []func()
	timers     map[uint64]clock.Timer
	timerSeq   uint64

	survey        *survey.Survey
	customCSS     string
	branding      bool
	responseToken string
	scopeClass    string

	index      int
	responses  map[string]survey.Response
	otherText  map[string]string
	loading    bool
	submitting bool
	done       bool
	errMsg     string
	enterClass string

	autoCloseScheduled bool
}

func New(doc dom.Document, cfg Config, opts ...Option) *Widget {
	w := &Widget{
		cfg:       cfg,
		doc:       doc,
		client:    unavailableClient{},
		clock:     clock.Real{},
		logger:    zap.NewNop(),
		tracer:    otel.Tracer("widget/engine"),
		recorder:  nopRecorder{},
		responses: make(map[string]survey.Response),
		otherText: make(map[string]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Mount renders the widget into the element with the given id. A missing
// container or an already cancelled ctx makes Mount a no-op. Mounting an
// already mounted widget destroys the previous mount first.
func (w *Widget) Mount(ctx context.Context, containerID string) {
	traceCtx, span := w.tracer.Start(ctx, "Mount")
	defer span.End()
	logger := logutil.WithContext(traceCtx, w.logger)

	span.SetAttributes(attribute.String("container_id", containerID), attribute.String("survey_id", w.cfg.SurveyID))

	w.mu.Lock()
	if ctx.Err() != nil {
		w.mu.Unlock()
		logger.Debug("Mount cancelled before it started", zap.String("container_id", containerID))
		return
	}
	if w.container != nil {
		w.destroyLocked()
	}

	container, ok := w.doc.Container(containerID)
	if !ok {
		w.mu.Unlock()
		logger.Debug("Container not found, skipping mount", zap.String("container_id", containerID))
		return
	}

	w.generation++
	gen := w.generation
	w.container = container
	w.survey = w.cfg.SurveyData
	w.customCSS = w.cfg.CustomCSS
	w.branding = w.cfg.Branding
	w.responseToken = w.cfg.ResponseToken

	w.injectBaseStyleLocked()
	container.SetDisplay("block")

	outcome := OutcomeOK
	if w.survey == nil && w.cfg.Token != "" && w.cfg.SurveyID != "" {
		w.loading = true
		w.renderLocked()
		token, surveyID := w.cfg.Token, w.cfg.SurveyID
		w.mu.Unlock()

		fetched, err := w.client.FetchSurvey(traceCtx, token, surveyID)

		w.mu.Lock()
		if w.generation != gen {
			w.mu.Unlock()
			logger.Debug("Widget destroyed while fetching survey, dropping result", zap.String("survey_id", surveyID))
			return
		}
		w.loading = false
		if err != nil {
			logger.Warn("Failed to fetch survey data", zap.String("survey_id", surveyID), zap.Error(err))
			span.RecordError(err)
			w.errMsg = err.Error()
		} else {
			w.survey = &fetched
			w.responseToken = fetched.ResponseToken
			w.branding = fetched.Branding
			if fetched.Style != "" {
				w.customCSS = fetched.Style
			}
			outcome = OutcomeFetched
		}
	}

	if w.cfg.Token == "" || w.cfg.SurveyID == "" {
		w.branding = true
	}
	if w.survey == nil {
		if w.errMsg == "" {
			w.errMsg = ErrSurveyNotFoundMessage
		}
		outcome = OutcomeUnavailable
	}

	if w.scopeClass == "" {
		surveyID := ""
		if w.survey != nil {
			surveyID = w.survey.ID
		}
		w.scopeClass = style.ScopeClass(surveyID, w.clock.Now())
	}
	w.addCustomStylesLocked(logger)
	w.renderLocked()

	handlers := map[dom.EventKind]dom.Listener{
		dom.EventClick: w.onClick,
		dom.EventInput: w.onInput,
	}
	for kind, listener := range handlers {
		w.detach = append(w.detach, container.AddListener(kind, listener))
	}
	w.mu.Unlock()

	w.recorder.RecordMount(traceCtx, outcome)
	logger.Debug("Widget mounted", zap.String("container_id", containerID), zap.String("scope", w.ScopeClass()), zap.String("outcome", outcome))
}

// Destroy clears the container, detaches listeners, cancels pending timers
// and resets all answers. The widget can be mounted again afterwards.
func (w *Widget) Destroy() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.destroyLocked()
}

// Close destroys the widget, invokes OnClose and removes the container from
// the document. Closing a widget that is not mounted does nothing.
func (w *Widget) Close(ctx context.Context) {
	w.mu.Lock()
	w.closeLocked(ctx)
}

// closeLocked expects mu held and releases it.
func (w *Widget) closeLocked(ctx context.Context) {
	container := w.container
	if container == nil {
		w.mu.Unlock()
		return
	}
	w.destroyLocked()
	onClose := w.cfg.OnClose
	w.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	container.Remove()
	w.recorder.RecordClose(ctx)
}

func (w *Widget) destroyLocked() {
	for _, d := range w.detach {
		d()
	}
	for _, t := range w.timers {
		t.Stop()
	}
	if w.container != nil {
		w.container.SetHTML("")
	}

	w.generation++
	w.detach = nil
	w.timers = nil
	w.container = nil
	w.survey = nil
	w.responses = make(map[string]survey.Response)
	w.otherText = make(map[string]string)
	w.index = 0
	w.done = false
	w.submitting = false
	w.loading = false
	w.errMsg = ""
	w.enterClass = ""
	w.autoCloseScheduled = false
}

// ScopeClass returns the class applied to the container, empty before the first mount.
func (w *Widget) ScopeClass() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.scopeClass
}

// Snapshot exposes read-only state for hosts and tests.
type Snapshot struct {
	Mounted    bool
	Index      int
	Done       bool
	Submitting bool
	Loading    bool
	Error      string
	Branding   bool
	Responses  map[string]survey.Response
	OtherText  map[string]string
}

func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	responses := make(map[string]survey.Response, len(w.responses))
	for k, v := range w.responses {
		responses[k] = v
	}
	otherText := make(map[string]string, len(w.otherText))
	for k, v := range w.otherText {
		otherText[k] = v
	}

	return Snapshot{
		Mounted:    w.container != nil,
		Index:      w.index,
		Done:       w.done,
		Submitting: w.submitting,
		Loading:    w.loading,
		Error:      w.errMsg,
		Branding:   w.branding,
		Responses:  responses,
		OtherText:  otherText,
	}
}

func (w *Widget) injectBaseStyleLocked() {
	if w.doc.HasStyle(style.BaseStyleID) {
		return
	}
	w.doc.AppendStyle(style.BaseStyleID, style.Base())
}

func (w *Widget) addCustomStylesLocked(logger *zap.Logger) {
	if w.customCSS == "" {
		return
	}
	if strings.Contains(strings.ToLower(w.customCSS), "</style") {
		logger.Warn("Custom CSS closes its style element, ignoring it", zap.String("scope", w.scopeClass))
		return
	}

	var (
		scoped string
		err    error
	)
	if w.scoper != nil {
		scoped, err = w.scoper.Scope(w.customCSS, w.scopeClass)
	} else {
		scoped, err = style.Scope(w.customCSS, w.scopeClass)
	}
	if err != nil {
		logger.Warn("Failed to scope custom CSS, ignoring it", zap.String("scope", w.scopeClass), zap.Error(err))
		return
	}

	styleID := style.CustomStyleID(w.scopeClass)
	w.doc.RemoveStyle(styleID)
	w.doc.AppendStyle(styleID, scoped)
}

// afterLocked schedules fn to run with mu held, unless the widget has been
// destroyed or remounted by then.
func (w *Widget) afterLocked(d time.Duration, fn func()) {
	gen := w.generation
	id := w.nextTimerLocked()
	t := w.clock.AfterFunc(d, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.timers, id)
		if w.generation != gen || w.container == nil {
			return
		}
		fn()
	})
	w.trackLocked(id, t)
}

func (w *Widget) nextTimerLocked() uint64 {
	w.timerSeq++
	return w.timerSeq
}

// trackLocked remembers a pending timer so destroy can stop it. Timers remove
// themselves once they fire.
func (w *Widget) trackLocked(id uint64, t clock.Timer) {
	if w.timers == nil {
		w.timers = make(map[uint64]clock.Timer)
	}
	w.timers[id] = t
}
