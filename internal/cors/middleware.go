package cors

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	allowedMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	allowedHeaders = "Authorization, Content-Type, If-None-Match, Traceparent"
)

// Middleware answers preflight requests and sets CORS headers for allowed
// origins. A "*" entry allows every origin.
type Middleware struct {
	logger   *zap.Logger
	origins  map[string]bool
	allowAll bool
}

func NewMiddleware(logger *zap.Logger, allowOrigins []string) *Middleware {
	m := &Middleware{
		logger:  logger,
		origins: make(map[string]bool, len(allowOrigins)),
	}
	for _, o := range allowOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "*" {
			m.allowAll = true
			continue
		}
		if o != "" {
			m.origins[o] = true
		}
	}
	return m
}

func (m *Middleware) Allowed(origin string) bool {
	return m.allowAll || m.origins[origin]
}

func (m *Middleware) HandlerFunc(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !m.Allowed(origin) {
				m.logger.Debug("Origin not allowed", zap.String("origin", origin), zap.String("path", r.URL.Path))
			} else {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Expose-Headers", "ETag, Content-Disposition")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if origin != "" && m.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Methods", allowedMethods)
				w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}
