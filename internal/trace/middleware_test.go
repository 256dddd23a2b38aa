package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware_RecoverMiddleware(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	m := NewMiddleware(zap.New(core), true)

	handler := m.RecoverMiddleware(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("Recovered from panic").Len())
}

func TestMiddleware_TraceMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name:       "Should record an implicit 200",
			handler:    func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("OK")) },
			wantStatus: http.StatusOK,
		},
		{
			name:       "Should keep the first status written",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
			wantStatus: http.StatusTeapot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			m := NewMiddleware(zap.New(core), false)

			var sawSpan bool
			handler := m.TraceMiddleware(func(w http.ResponseWriter, r *http.Request) {
				sawSpan = trace.SpanFromContext(r.Context()) != nil
				tt.handler(w, r)
			})

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))

			assert.True(t, sawSpan)
			assert.Equal(t, tt.wantStatus, rec.Code)
			served := logs.FilterMessage("Served request").All()
			if assert.Len(t, served, 1) {
				assert.Equal(t, int64(tt.wantStatus), served[0].ContextMap()["status"])
			}
		})
	}
}
