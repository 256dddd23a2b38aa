package element

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/internal/widget"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TagName = "opineeo-survey"

const (
	AttrSurveyID   = "survey-id"
	AttrToken      = "token"
	AttrAutoClose  = "auto-close"
	AttrUserID     = "user-id"
	AttrExtraInfo  = "extra-info"
	AttrCustomCSS  = "custom-css"
	AttrOnComplete = "oncomplete"
	AttrOnClose    = "onclose"
	AttrSurvey     = "survey"
)

const (
	EventComplete = "complete"
	EventClose    = "close"
)

// ObservedAttributes are the attributes whose changes remount the widget.
var ObservedAttributes = []string{
	AttrSurveyID,
	AttrToken,
	AttrAutoClose,
	AttrUserID,
	AttrExtraInfo,
	AttrCustomCSS,
	AttrOnComplete,
	AttrOnClose,
	AttrSurvey,
}

func IsObserved(name string) bool {
	for _, a := range ObservedAttributes {
		if a == name {
			return true
		}
	}
	return false
}

// Document is what an element needs from the page it lives in.
type Document interface {
	dom.Document
	Append(parentID, tag, id string) (dom.Container, error)
}

// Factory builds the widget for one mount.
type Factory func(cfg widget.Config) *widget.Widget

// Element drives a widget from the attributes of an <opineeo-survey> host
// element. The widget renders into a private child container.
type Element struct {
	mu sync.Mutex

	logger    *zap.Logger
	validator *validator.Validate
	doc       Document
	registry  *Registry
	factory   Factory

	id          string
	containerID string
	attrs       map[string]string
	surveyData  *survey.Survey
	customCSS   string
	connected   bool
	widget      *widget.Widget
	cancelMount context.CancelFunc
}

func New(logger *zap.Logger, validator *validator.Validate, doc Document, elementID string, registry *Registry, factory Factory) *Element {
	return &Element{
		logger:      logger,
		validator:   validator,
		doc:         doc,
		registry:    registry,
		factory:     factory,
		id:          elementID,
		containerID: NewContainerID(),
		attrs:       make(map[string]string),
	}
}

// NewContainerID returns a random "opn-" prefixed element id.
func NewContainerID() string {
	return "opn-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func (e *Element) ID() string {
	return e.id
}

func (e *Element) ContainerID() string {
	return e.containerID
}

// Widget returns the currently mounted widget, nil while disconnected.
func (e *Element) Widget() *widget.Widget {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.widget
}

// Connect creates the container on first connection, or when a previous
// close removed it, and mounts a widget.
func (e *Element) Connect(ctx context.Context) error {
	e.mu.Lock()
	if _, ok := e.doc.Container(e.containerID); !ok {
		_, err := e.doc.Append(e.id, "div", e.containerID)
		if err != nil {
			e.mu.Unlock()
			return err
		}
	}
	e.connected = true
	mount := e.remountLocked(ctx)
	e.mu.Unlock()

	mount()
	return nil
}

func (e *Element) Disconnect() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connected = false
	e.stopLocked()
}

// SetAttribute stores an observed attribute and remounts while connected.
// Other attributes are ignored.
func (e *Element) SetAttribute(ctx context.Context, name, value string) {
	if !IsObserved(name) {
		return
	}

	e.mu.Lock()
	e.attrs[name] = value
	mount := e.remountLocked(ctx)
	e.mu.Unlock()

	mount()
}

func (e *Element) RemoveAttribute(ctx context.Context, name string) {
	if !IsObserved(name) {
		return
	}

	e.mu.Lock()
	delete(e.attrs, name)
	mount := e.remountLocked(ctx)
	e.mu.Unlock()

	mount()
}

// SetSurveyData sets the fallback survey used when no survey attribute is present.
func (e *Element) SetSurveyData(ctx context.Context, s *survey.Survey) {
	e.mu.Lock()
	e.surveyData = s
	mount := e.remountLocked(ctx)
	e.mu.Unlock()

	mount()
}

// SetCustomCSS sets the fallback css used when no custom-css attribute is present.
func (e *Element) SetCustomCSS(ctx context.Context, css string) {
	e.mu.Lock()
	e.customCSS = css
	mount := e.remountLocked(ctx)
	e.mu.Unlock()

	mount()
}

// remountLocked replaces the widget with one built from the current
// attributes and returns the call that mounts it. That call may block on the
// survey fetch and must run without e.mu held. While disconnected it does
// nothing.
func (e *Element) remountLocked(ctx context.Context) func() {
	if !e.connected {
		return func() {}
	}
	e.stopLocked()

	mountCtx, cancel := context.WithCancel(ctx)
	w := e.factory(e.configLocked(ctx))
	e.widget = w
	e.cancelMount = cancel

	containerID := e.containerID
	return func() {
		w.Mount(mountCtx, containerID)
	}
}

// stopLocked aborts a mount still waiting on its fetch and destroys the
// current widget.
func (e *Element) stopLocked() {
	if e.cancelMount != nil {
		e.cancelMount()
		e.cancelMount = nil
	}
	if e.widget != nil {
		e.widget.Destroy()
		e.widget = nil
	}
}

func (e *Element) configLocked(ctx context.Context) widget.Config {
	logger := logutil.WithContext(ctx, e.logger)

	surveyData := e.surveyData
	if raw := e.attrs[AttrSurvey]; raw != "" {
		s, err := survey.Decode(e.validator, []byte(raw))
		if err != nil {
			logger.Warn("Invalid survey attribute, ignoring it", zap.String("element_id", e.id), zap.Error(err))
		} else {
			surveyData = &s
		}
	}

	customCSS := e.attrs[AttrCustomCSS]
	if customCSS == "" {
		customCSS = e.customCSS
	}

	elementID := e.id
	onComplete := e.registry.Resolve(e.attrs[AttrOnComplete])
	onClose := e.registry.Resolve(e.attrs[AttrOnClose])

	return widget.Config{
		SurveyID:   e.attrs[AttrSurveyID],
		Token:      e.attrs[AttrToken],
		AutoClose:  parseAutoClose(e.attrs[AttrAutoClose]),
		UserID:     e.attrs[AttrUserID],
		ExtraInfo:  e.attrs[AttrExtraInfo],
		SurveyData: surveyData,
		CustomCSS:  customCSS,
		OnComplete: func(payload survey.Payload) {
			if onComplete != nil {
				onComplete(payload, elementID)
			}
			e.doc.DispatchCustomEvent(elementID, EventComplete, payload)
		},
		OnClose: func() {
			if onClose != nil {
				onClose(nil, elementID)
			}
			e.doc.DispatchCustomEvent(elementID, EventClose, nil)
		},
	}
}

// parseAutoClose reads a millisecond count; anything unparsable or not
// positive disables auto close.
func parseAutoClose(value string) time.Duration {
	ms, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) || ms <= 0 {
		return 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}
