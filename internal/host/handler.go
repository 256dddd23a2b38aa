package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"opineeo/survey-widget/internal"
	"opineeo/survey-widget/internal/bundle"
	"opineeo/survey-widget/internal/clock"
	"opineeo/survey-widget/internal/style"
	"opineeo/survey-widget/internal/survey"
	"opineeo/survey-widget/internal/widget"

	handlerutil "github.com/NYCU-SDC/summer/pkg/handler"
	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/NYCU-SDC/summer/pkg/problem"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 256 << 10
)

type PreviewRequest struct {
	Survey    survey.Survey `json:"survey"`
	Index     int           `json:"index" validate:"gte=0"`
	CustomCSS string        `json:"customCSS" validate:"css_safe"`
	Branding  bool          `json:"branding"`
}

type PreviewResponse struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	ScopeClass string `json:"scopeClass"`
}

type Handler struct {
	logger        *zap.Logger
	tracer        trace.Tracer
	validator     *validator.Validate
	problemWriter *problem.HttpWriter

	sessions *Registry
	loader   *bundle.Loader
	scoper   *style.Scoper
	clock    clock.Clock
	recorder Recorder
	upgrader websocket.Upgrader
}

func NewHandler(
	logger *zap.Logger,
	validator *validator.Validate,
	problemWriter *problem.HttpWriter,
	sessions *Registry,
	loader *bundle.Loader,
	scoper *style.Scoper,
	recorder Recorder,
	allowedOrigins []string,
) *Handler {
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Handler{
		logger:        logger,
		tracer:        otel.Tracer("host/handler"),
		validator:     validator,
		problemWriter: problemWriter,
		sessions:      sessions,
		loader:        loader,
		scoper:        scoper,
		clock:         clock.Real{},
		recorder:      recorder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

// checkOrigin accepts every origin when allowed is empty or contains "*".
// Widgets are embedded into third-party pages, so same-origin is not the default.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		if len(set) == 0 || set["*"] {
			return true
		}
		return set[r.Header.Get("Origin")]
	}
}

// ServeBundle serves the browser runtime with an ETag, so unchanged bundles
// are answered with 304.
func (h *Handler) ServeBundle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ServeBundle")
	defer span.End()
	logger := logutil.WithContext(ctx, h.logger)

	b, release, err := h.loader.Acquire(ctx)
	if err != nil {
		span.RecordError(err)
		h.problemWriter.WriteError(ctx, w, err, logger)
		return
	}
	defer release()

	w.Header().Set("Content-Type", bundle.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", b.ETag)
	http.ServeContent(w, r, bundle.FileName, b.BuiltAt, bytes.NewReader(b.Body))
}

// ServeSocket upgrades to a websocket bound to the page session named by the
// page query parameter.
func (h *Handler) ServeSocket(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ServeSocket")
	defer span.End()
	logger := logutil.WithContext(ctx, h.logger)

	session, resumed, err := h.sessions.Open(ctx, r.URL.Query().Get("page"))
	if err != nil {
		span.RecordError(err)
		h.problemWriter.WriteError(ctx, w, err, logger)
		return
	}
	span.SetAttributes(attribute.String("page_id", session.ID()), attribute.Bool("resumed", resumed))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		logger.Warn("Failed to upgrade websocket connection", zap.String("page_id", session.ID()), zap.Error(err))
		return
	}
	logger.Debug("Page connected", zap.String("page_id", session.ID()), zap.Bool("resumed", resumed))

	out := session.Attach()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writePump(ctx, conn, out)
	}()

	h.readPump(ctx, logger, conn, session)
	session.Detach(out)
	<-done
	logger.Debug("Page disconnected", zap.String("page_id", session.ID()))
}

func (h *Handler) readPump(ctx context.Context, logger *zap.Logger, conn *websocket.Conn, session *Session) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		h.sessions.Touch(session.ID())
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("Websocket closed unexpectedly", zap.String("page_id", session.ID()), zap.Error(err))
			}
			return
		}
		h.sessions.Touch(session.ID())

		var msg ClientMessage
		err = json.Unmarshal(data, &msg)
		if err != nil {
			session.Send(ServerMessage{Type: TypeError, Message: fmt.Sprintf("%v: %v", internal.ErrInvalidRequestBody, err)})
			continue
		}
		h.recorder.RecordMessage(ctx, "in", msg.Type)

		err = session.Handle(ctx, msg)
		if err != nil {
			logger.Debug("Failed to handle page message", zap.String("page_id", session.ID()), zap.String("type", msg.Type), zap.Error(err))
			session.Send(ServerMessage{Type: TypeError, Message: err.Error()})
		}

		// Handling may block on the survey api; keep the peer alive meanwhile.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump is the only writer of conn. It exits when out is closed or a
// write fails, and closes conn so the read side stops too.
func (h *Handler) writePump(ctx context.Context, conn *websocket.Conn, out <-chan ServerMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			err := conn.WriteJSON(msg)
			if err != nil {
				return
			}
			h.recorder.RecordMessage(ctx, "out", msg.Type)
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				return
			}
		}
	}
}

// Preview renders one question of a survey definition the way a mounted
// widget would, along with the stylesheet it needs.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Preview")
	defer span.End()
	logger := logutil.WithContext(ctx, h.logger)

	var req PreviewRequest
	err := handlerutil.ParseAndValidateRequestBody(ctx, h.validator, r, &req)
	if err != nil {
		h.problemWriter.WriteError(ctx, w, err, logger)
		return
	}

	err = survey.Validate(h.validator, req.Survey)
	if err != nil {
		h.problemWriter.WriteError(ctx, w, err, logger)
		return
	}

	resp, err := BuildPreview(h.scoper, h.clock.Now(), req)
	if err != nil {
		span.RecordError(err)
		h.problemWriter.WriteError(ctx, w, err, logger)
		return
	}

	handlerutil.WriteJSONResponse(w, http.StatusOK, resp)
}

// BuildPreview renders req outside of any page. The scope class is derived
// from the survey id, or from now when the survey has none.
func BuildPreview(scoper *style.Scoper, now time.Time, req PreviewRequest) (PreviewResponse, error) {
	scopeClass := style.ScopeClass(req.Survey.ID, now)

	markup, err := widget.Render(widget.PreviewView(req.Survey, req.Index, req.Branding))
	if err != nil {
		return PreviewResponse{}, fmt.Errorf("%w: %v", internal.ErrInternalServerError, err)
	}

	css := style.Base()
	custom := req.CustomCSS
	if custom == "" {
		custom = req.Survey.Style
	}
	if custom != "" {
		scoped, err := scoper.Scope(custom, scopeClass)
		if err != nil {
			return PreviewResponse{}, fmt.Errorf("%w: custom css: %v", internal.ErrValidationFailed, err)
		}
		css += "\n" + scoped
	}

	return PreviewResponse{
		HTML:       fmt.Sprintf(`<div class="%s" style="display: block">%s</div>`, html.EscapeString(scopeClass), markup),
		CSS:        css,
		ScopeClass: scopeClass,
	}, nil
}
