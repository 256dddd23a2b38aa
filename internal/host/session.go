package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/dom"
	"opineeo/survey-widget/internal/element"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/internal/widget"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const outboxSize = 256

// Session is the server side of one browser page: a document, the widgets
// and custom elements living in it, and the outbox of mutations waiting to be
// written to the current connection.
type Session struct {
	id        string
	logger    *zap.Logger
	tracer    trace.Tracer
	validator *validator.Validate
	page      *dom.Page
	handlers  *element.Registry
	options   []widget.Option

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	widgets  map[string]*widget.Widget
	elements map[string]*element.Element
	closed   bool

	// outMu is taken from page observers while the page is locked, so it
	// must never be held while calling into the page.
	outMu sync.Mutex
	out   chan ServerMessage

	stopObserving func()
	release       func()
}

func newSession(id string, logger *zap.Logger, validator *validator.Validate, handlers *element.Registry, release func(), options []widget.Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		logger:    logger.With(zap.String("page_id", id)),
		tracer:    otel.Tracer("host/session"),
		validator: validator,
		page:      dom.NewPage(),
		handlers:  handlers,
		options:   options,
		ctx:       ctx,
		cancel:    cancel,
		widgets:   make(map[string]*widget.Widget),
		elements:  make(map[string]*element.Element),
		release:   release,
	}
	s.stopObserving = s.page.Observe(s.forward)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Page() *dom.Page {
	return s.page
}

// Attach installs a fresh outbox and returns it. The outbox starts with a
// hello message followed by a replay of the current document, so a client
// that reconnects converges on the server state. The outbox holds the whole
// replay plus outboxSize live messages. A previous outbox is closed.
func (s *Session) Attach() <-chan ServerMessage {
	s.mu.Lock()
	containers := s.containerIDsLocked()
	s.mu.Unlock()

	var out chan ServerMessage
	s.page.Sync(func(doc *goquery.Document) {
		mutations := replay(doc, containers)
		out = make(chan ServerMessage, 1+len(mutations)+outboxSize)

		s.outMu.Lock()
		defer s.outMu.Unlock()

		if s.out != nil {
			close(s.out)
		}
		s.out = out
		s.pushLocked(ServerMessage{Type: TypeHello, Page: s.id})
		for _, m := range mutations {
			s.pushLocked(mutationMessage(m))
		}
	})
	return out
}

// Detach drops out if it is still the current outbox.
func (s *Session) Detach(out <-chan ServerMessage) {
	s.outMu.Lock()
	defer s.outMu.Unlock()

	if s.out != nil && (<-chan ServerMessage)(s.out) == out {
		close(s.out)
		s.out = nil
	}
}

// Send queues a message for the current connection, if any.
func (s *Session) Send(msg ServerMessage) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.pushLocked(msg)
}

func (s *Session) forward(m dom.Mutation) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	s.pushLocked(mutationMessage(m))
}

// pushLocked never blocks. When the client cannot keep up the outbox is
// closed, which ends the connection; the client reconnects and gets a replay.
func (s *Session) pushLocked(msg ServerMessage) {
	if s.out == nil {
		return
	}
	select {
	case s.out <- msg:
	default:
		s.logger.Warn("Outbox full, dropping connection", zap.Int("size", cap(s.out)))
		close(s.out)
		s.out = nil
	}
}

// Handle applies one client message to the page.
func (s *Session) Handle(ctx context.Context, msg ClientMessage) error {
	traceCtx, span := s.tracer.Start(ctx, "Handle")
	defer span.End()
	span.SetAttributes(attribute.String("page_id", s.id), attribute.String("type", msg.Type))

	err := s.validator.Struct(msg)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", internal.ErrValidationFailed, err)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return internal.ErrPageNotFound
	}

	// Work started by a message outlives the connection that sent it.
	sessionCtx := trace.ContextWithSpanContext(s.ctx, trace.SpanContextFromContext(traceCtx))

	switch msg.Type {
	case TypeMount:
		err = s.mount(sessionCtx, msg)
	case TypeEvent:
		err = s.dispatch(sessionCtx, msg)
	case TypeDestroy:
		err = s.destroy(msg.ContainerID)
	case TypeClose:
		err = s.close(sessionCtx, msg.ContainerID)
	case TypeConnect:
		err = s.connect(sessionCtx, msg)
	case TypeAttribute:
		err = s.attribute(sessionCtx, msg)
	case TypeDisconnect:
		err = s.disconnect(msg.ElementID)
	case TypeProperty:
		err = s.property(sessionCtx, msg)
	default:
		err = fmt.Errorf("%w: %s", internal.ErrUnknownMessage, msg.Type)
	}
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (s *Session) mount(ctx context.Context, msg ClientMessage) error {
	if msg.ContainerID == "" || msg.Config == nil {
		return fmt.Errorf("%w: mount needs a container id and a config", internal.ErrValidationFailed)
	}
	if msg.Config.SurveyData != nil {
		err := survey.Validate(s.validator, *msg.Config.SurveyData)
		if err != nil {
			return err
		}
	}

	_, err := s.page.Append("", "div", msg.ContainerID)
	if err != nil {
		return err
	}

	containerID := msg.ContainerID
	cfg := msg.Config.WidgetConfig()
	cfg.OnComplete = func(payload survey.Payload) {
		s.page.DispatchCustomEvent(containerID, element.EventComplete, payload)
	}
	cfg.OnClose = func() {
		s.page.DispatchCustomEvent(containerID, element.EventClose, nil)
	}

	w := widget.New(s.page, cfg, s.options...)

	s.mu.Lock()
	previous := s.widgets[containerID]
	s.widgets[containerID] = w
	s.mu.Unlock()

	if previous != nil {
		previous.Destroy()
	}
	w.Mount(ctx, containerID)
	return nil
}

func (s *Session) dispatch(ctx context.Context, msg ClientMessage) error {
	if msg.ContainerID == "" || msg.Event == nil {
		return fmt.Errorf("%w: event needs a container id and an event", internal.ErrValidationFailed)
	}
	if !s.page.Dispatch(ctx, msg.ContainerID, *msg.Event) {
		return fmt.Errorf("%w: %s", internal.ErrWidgetNotMounted, msg.ContainerID)
	}
	return nil
}

func (s *Session) destroy(containerID string) error {
	w, err := s.widget(containerID)
	if err != nil {
		return err
	}
	w.Destroy()
	return nil
}

func (s *Session) close(ctx context.Context, containerID string) error {
	w, err := s.widget(containerID)
	if err != nil {
		return err
	}
	w.Close(ctx)
	return nil
}

func (s *Session) widget(containerID string) (*widget.Widget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.widgets[containerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", internal.ErrWidgetNotMounted, containerID)
	}
	return w, nil
}

func (s *Session) connect(ctx context.Context, msg ClientMessage) error {
	if msg.ElementID == "" {
		return fmt.Errorf("%w: connect needs an element id", internal.ErrValidationFailed)
	}

	_, err := s.page.Append("", element.TagName, msg.ElementID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.elements[msg.ElementID]
	if !ok {
		e = element.New(s.logger, s.validator, s.page, msg.ElementID, s.handlers, func(cfg widget.Config) *widget.Widget {
			return widget.New(s.page, cfg, s.options...)
		})
		s.elements[msg.ElementID] = e
	}
	s.mu.Unlock()

	// Attributes are applied before connecting so the first mount sees all of them.
	names := make([]string, 0, len(msg.Attributes))
	for name := range msg.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.SetAttribute(ctx, name, msg.Attributes[name])
	}

	return e.Connect(ctx)
}

func (s *Session) attribute(ctx context.Context, msg ClientMessage) error {
	e, err := s.element(msg.ElementID)
	if err != nil {
		return err
	}
	if msg.Removed {
		e.RemoveAttribute(ctx, msg.Name)
	} else {
		e.SetAttribute(ctx, msg.Name, msg.Value)
	}
	return nil
}

func (s *Session) disconnect(elementID string) error {
	e, err := s.element(elementID)
	if err != nil {
		return err
	}
	e.Disconnect()
	return nil
}

func (s *Session) property(ctx context.Context, msg ClientMessage) error {
	e, err := s.element(msg.ElementID)
	if err != nil {
		return err
	}

	switch msg.Name {
	case PropertySurveyData:
		if msg.Survey != nil {
			err := survey.Validate(s.validator, *msg.Survey)
			if err != nil {
				return err
			}
		}
		e.SetSurveyData(ctx, msg.Survey)
	case PropertyCustomCSS:
		err := s.validator.Var(msg.Value, "css_safe")
		if err != nil {
			return fmt.Errorf("%w: %v", internal.ErrValidationFailed, err)
		}
		e.SetCustomCSS(ctx, msg.Value)
	default:
		return fmt.Errorf("%w: unknown property %q", internal.ErrValidationFailed, msg.Name)
	}
	return nil
}

func (s *Session) element(elementID string) (*element.Element, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.elements[elementID]
	if !ok {
		return nil, fmt.Errorf("%w: element %s", internal.ErrContainerNotFound, elementID)
	}
	return e, nil
}

// Close destroys every widget, disconnects every element and releases the
// bundle reference. It is idempotent.
func (s *Session) Close(ctx context.Context) {
	logger := logutil.WithContext(ctx, s.logger)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	widgets := make([]*widget.Widget, 0, len(s.widgets))
	for _, w := range s.widgets {
		widgets = append(widgets, w)
	}
	elements := make([]*element.Element, 0, len(s.elements))
	for _, e := range s.elements {
		elements = append(elements, e)
	}
	s.widgets = make(map[string]*widget.Widget)
	s.elements = make(map[string]*element.Element)
	s.mu.Unlock()

	s.cancel()
	for _, w := range widgets {
		w.Destroy()
	}
	for _, e := range elements {
		e.Disconnect()
	}
	s.stopObserving()

	s.outMu.Lock()
	if s.out != nil {
		close(s.out)
		s.out = nil
	}
	s.outMu.Unlock()

	if s.release != nil {
		s.release()
	}
	logger.Debug("Page session closed", zap.Int("widgets", len(widgets)), zap.Int("elements", len(elements)))
}

func (s *Session) containerIDsLocked() []string {
	ids := make([]string, 0, len(s.widgets)+len(s.elements))
	for id := range s.widgets {
		ids = append(ids, id)
	}
	for _, e := range s.elements {
		ids = append(ids, e.ContainerID())
	}
	sort.Strings(ids)
	return ids
}

// replay describes the parts of doc the engine owns as mutations: every
// stylesheet, then for each container its creation, attributes and content.
// Containers that no longer exist are removed.
func replay(doc *goquery.Document, containerIDs []string) []dom.Mutation {
	var out []dom.Mutation

	doc.Find("head style[id]").Each(func(_ int, sel *goquery.Selection) {
		id, _ := sel.Attr("id")
		out = append(out, dom.Mutation{Kind: dom.MutationAppendStyle, Target: id, Value: sel.Text()})
	})

	for _, id := range containerIDs {
		sel := doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("id")
			return v == id
		}).First()
		if sel.Length() == 0 {
			out = append(out, dom.Mutation{Kind: dom.MutationRemove, Target: id})
			continue
		}

		parent, _ := sel.Parent().Attr("id")
		out = append(out, dom.Mutation{Kind: dom.MutationCreate, Target: id, Name: goquery.NodeName(sel), Value: parent})
		for _, name := range []string{"class", "style"} {
			if value, ok := sel.Attr(name); ok {
				out = append(out, dom.Mutation{Kind: dom.MutationAttr, Target: id, Name: name, Value: value})
			}
		}
		inner, err := sel.Html()
		if err != nil {
			continue
		}
		out = append(out, dom.Mutation{Kind: dom.MutationHTML, Target: id, Value: inner})
	}
	return out
}
