package surveyapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"opineeo/survey-widget/internal"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type caller struct {
	token string
}

func (c caller) GetToken() string {
	return c.token
}

// Middleware accepts requests carrying one of a fixed set of bearer tokens.
type Middleware struct {
	tracer trace.Tracer
	logger *zap.Logger
	tokens [][]byte
}

func NewMiddleware(logger *zap.Logger, tokens []string) *Middleware {
	m := &Middleware{
		tracer: otel.Tracer("surveyapi/middleware"),
		logger: logger,
	}
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			m.tokens = append(m.tokens, []byte(t))
		}
	}
	return m
}

func (m *Middleware) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		traceCtx, span := m.tracer.Start(r.Context(), "AuthMiddleware")
		defer span.End()
		logger := logutil.WithContext(traceCtx, m.logger)

		header := r.Header.Get("Authorization")
		if header == "" {
			writeFailure(w, internal.ErrMissingAuthHeader)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeFailure(w, internal.ErrInvalidAuthHeaderFormat)
			return
		}

		if !m.known(token) {
			logger.Warn("Rejected unknown api token", zap.String("remote_addr", r.RemoteAddr))
			span.RecordError(internal.ErrUnauthorizedError)
			writeFailure(w, internal.ErrUnauthorizedError)
			return
		}

		ctx := context.WithValue(r.Context(), internal.TokenContextKey, caller{token: token})
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) known(token string) bool {
	found := false
	for _, t := range m.tokens {
		if subtle.ConstantTimeCompare(t, []byte(token)) == 1 {
			found = true
		}
	}
	return found
}
