package server

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"agentcluster/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// APIResponse is the success envelope.
type APIResponse struct {
	Data any          `json:"data"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the error envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta is attached to every response.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
}

// Error codes.
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeConflict     = "CONFLICT"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIResponse{
		Data: data,
		Meta: ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(APIError{
		Error: ErrorDetail{Code: code, Message: message},
		Meta:  ResponseMeta{Timestamp: time.Now().UTC()},
	})
}

// decodeJSON decodes a JSON request body into the target struct.
func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets the WebSocket upgrader take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var httpMeter = otel.GetMeterProvider().Meter("agentcluster/http")

// loggingMiddleware logs each request and counts it on the http meter.
func loggingMiddleware(next http.Handler) http.Handler {
	requests, err := httpMeter.Int64Counter("agentcluster.http.requests",
		metric.WithDescription("HTTP requests served"))
	if err != nil {
		logging.Get(logging.CategoryServer).Warn("Request counter unavailable: %v", err)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if requests != nil {
			requests.Add(r.Context(), 1, metric.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.Int("http.status_code", wrapped.statusCode),
			))
		}

		log := logging.Get(logging.CategoryServer)
		switch {
		case wrapped.statusCode >= 500:
			log.Error("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		case wrapped.statusCode >= 400:
			log.Warn("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		default:
			log.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
		}
	})
}

// recoveryMiddleware turns handler panics into 500 responses.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Get(logging.CategoryServer).Error("panic serving %s %s: %v", r.Method, r.URL.Path, rec)
				writeError(w, http.StatusInternalServerError, ErrCodeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
