package auth

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Url params in the order of most to least specific. The first one present names the
// resource a request acted on, e.g. /trip/{trip_id}/tours/{tour_id}/markers/{marker_id}
// is recorded against the marker.
var auditedResources = []struct {
	param    string
	resource string
}{
	{"marker_id", "marker"},
	{"route_id", "route"},
	{"tour_id", "tour"},
	{"invitation_id", "invitation"},
	{"user_id", "user"},
	{"trip_id", "trip"},
}

type AuditLogger struct {
	logger *slog.Logger
	// Reads are only recorded when set, by default the audit trail holds changes.
	includeReads bool
}

func NewAuditLogger(stream io.Writer) AuditLogger {
	return AuditLogger{logger: slog.New(slog.NewJSONHandler(stream, nil))}
}

func (log AuditLogger) WithReads() AuditLogger {
	log.includeReads = true
	return log
}

func remoteAddr(r *http.Request) string {
	for _, header := range []string{"X-Real-Ip", "X-Forwarded-For"} {
		if value := r.Header.Get(header); value != "" {
			// X-Forwarded-For is a list with the originating client first.
			first, _, _ := strings.Cut(value, ",")
			return strings.TrimSpace(first)
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// Resolves the resource kind and id from the matched route. Must be called after the
// request has been routed, otherwise the url params of mounted sub routers are missing.
func auditTarget(rctx *chi.Context) (string, string, []any) {
	if rctx == nil {
		return "", "", nil
	}

	ids := make([]any, 0, len(rctx.URLParams.Keys))
	for i, key := range rctx.URLParams.Keys {
		if strings.HasSuffix(key, "_id") {
			ids = append(ids, slog.String(key, rctx.URLParams.Values[i]))
		}
	}

	for _, candidate := range auditedResources {
		if id := rctx.URLParam(candidate.param); id != "" {
			return candidate.resource, id, ids
		}
	}
	return "", "", ids
}

func (log AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if isRead(r.Method) && !log.includeReads {
			return
		}

		rctx := chi.RouteContext(r.Context())
		resource, resourceId, ids := auditTarget(rctx)
		pattern := r.URL.Path
		if rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		log.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit",
			slog.String("actor_id", user.Id.String()),
			slog.String("actor_email", user.Email),
			slog.String("actor_role", user.Role),
			slog.String("remote_addr", remoteAddr(r)),
			slog.String("method", r.Method),
			slog.String("route", pattern),
			slog.String("resource", resource),
			slog.String("resource_id", resourceId),
			slog.Group("ids", ids...),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return http.HandlerFunc(handler)
}
