package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Codeveil-Studio/QRCode-Web-sub001/internal/domain"
)

// requestIDHeader is set on the response by the request logging middleware
// before any handler runs.
const requestIDHeader = "X-Request-ID"

// defaultRetryAfter is sent with 429s unless the rate limiter already set
// a more precise value.
const defaultRetryAfter = "60"

var statusByCode = map[string]int{
	domain.EINVALID:      http.StatusBadRequest,
	domain.EUNAUTHORIZED: http.StatusUnauthorized,
	domain.EPAYMENT:      http.StatusPaymentRequired,
	domain.EFORBIDDEN:    http.StatusForbidden,
	domain.ENOTFOUND:     http.StatusNotFound,
	domain.ECONFLICT:     http.StatusConflict,
	domain.ERATELIMIT:    http.StatusTooManyRequests,
	domain.EINTERNAL:     http.StatusInternalServerError,
	domain.ENOTIMPL:      http.StatusNotImplemented,
	domain.EUNAVAILABLE:  http.StatusServiceUnavailable,
}

// ErrorCodeToHTTPStatus maps a domain error code to its HTTP status.
// Unknown codes are 500s.
func ErrorCodeToHTTPStatus(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// JSONError is the body of every error response.
type JSONError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	} `json:"error"`
}

// ErrorResponse writes err as a JSON error. Only the client-facing message
// of a domain.Error reaches the body; the full chain and operation are
// logged.
func ErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := domain.ErrorCode(err)
	status := ErrorCodeToHTTPStatus(code)

	var body JSONError
	body.Error.Code = code
	body.Error.Message = domain.ErrorMessage(err)
	body.Error.RequestID = w.Header().Get(requestIDHeader)

	attrs := []any{
		"error", err.Error(),
		"code", code,
		"status", status,
		"method", r.Method,
		"path", r.URL.Path,
	}
	if op := domain.ErrorOp(err); op != "" {
		attrs = append(attrs, "op", op)
	}
	if body.Error.RequestID != "" {
		attrs = append(attrs, "request_id", body.Error.RequestID)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("server error", attrs...)
	} else {
		logger.Info("client error", attrs...)
	}

	if status == http.StatusTooManyRequests && w.Header().Get("Retry-After") == "" {
		w.Header().Set("Retry-After", defaultRetryAfter)
	}
	writeJSON(w, status, body)
}

func NotFoundResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

func UnauthorizedResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger) {
	ErrorResponse(w, r, logger, domain.Errorf(domain.EUNAUTHORIZED, "", "Authentication required"))
}

// InternalErrorResponse reports err as a generic 500.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ErrorResponse(w, r, logger, domain.Internal(err, "", "An unexpected error occurred"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
