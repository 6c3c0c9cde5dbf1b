package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// quietPaths are served but never logged.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// redactedParams are query keys whose values never reach the log.
var redactedParams = map[string]bool{
	"token":         true,
	"code":          true,
	"key":           true,
	"secret":        true,
	"password":      true,
	"session":       true,
	"api_key":       true,
	"apikey":        true,
	"access_token":  true,
	"refresh_token": true,
}

// RequestLoggingMiddleware writes one log line per request.
type RequestLoggingMiddleware struct {
	logger *slog.Logger
}

func NewRequestLoggingMiddleware(logger *slog.Logger) *RequestLoggingMiddleware {
	return &RequestLoggingMiddleware{logger: logger}
}

// Handler tags the response with a request ID (the caller's when it sent a
// usable one) and logs method, route, status and latency. Responses of 500
// and above log at warn.
func (m *RequestLoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := requestID(r)
		w.Header().Set(RequestIDHeader, id)

		if quietPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		began := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		level := slog.LevelInfo
		if sw.status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}

		attrs := []slog.Attr{
			slog.String("request_id", id),
			slog.String("method", r.Method),
			slog.String("path", sanitizePath(r.URL.Path, r.URL.RawQuery)),
			slog.Int("status", sw.status),
			slog.Int64("duration_ms", time.Since(began).Milliseconds()),
			slog.String("ip", getClientIP(r)),
			slog.String("user_agent", r.UserAgent()),
		}
		if r.Pattern != "" {
			attrs = append(attrs, slog.String("route", r.Pattern))
		}
		m.logger.LogAttrs(r.Context(), level, "request", attrs...)
	})
}

func requestID(r *http.Request) string {
	id := r.Header.Get(RequestIDHeader)
	if id == "" || len(id) > maxRequestIDLength {
		return uuid.NewString()
	}
	return id
}

// statusWriter remembers the first status written.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.written {
		sw.status = code
		sw.written = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// sanitizePath rebuilds path and query with sensitive values replaced.
// Bare keys without a value are dropped.
func sanitizePath(path, rawQuery string) string {
	if rawQuery == "" {
		return path
	}

	var b strings.Builder
	for _, pair := range strings.Split(rawQuery, "&") {
		name, _, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		if redactedParams[strings.ToLower(name)] {
			b.WriteString(name + "=[REDACTED]")
		} else {
			b.WriteString(pair)
		}
	}
	return path + b.String()
}
