package httpapi

import (
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"lokkagw/internal/infra/telemetry"
)

const unmatchedRoute = "unmatched"

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wroteHeader {
		s.status = status
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(p []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	return s.ResponseWriter.Write(p)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// withRequestID attaches request metadata to the context and echoes the id.
func (h *Handler) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, meta := telemetry.EnsureRequestMeta(r.Context(), telemetry.RequestIDFromHTTP(r))
		w.Header().Set(telemetry.RequestIDHeader, meta.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument must wrap the mux directly: the route label comes from the
// pattern the mux records on the request.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(started)

		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		h.metrics.ObserveHTTPRequest(route, rec.status, duration)

		logger := telemetry.LoggerWithRequest(r.Context(), h.logger)
		fields := []zap.Field{
			telemetry.EventField(telemetry.EventHTTPRequest),
			zap.String("httpMethod", r.Method),
			zap.String("path", r.URL.Path),
			telemetry.RouteField(route),
			telemetry.StatusField(rec.status),
			telemetry.DurationField(duration),
		}
		if rec.status >= http.StatusInternalServerError {
			logger.Warn("http request", fields...)
			return
		}
		logger.Info("http request", fields...)
	})
}

func (h *Handler) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			telemetry.LoggerWithRequest(r.Context(), h.logger).Error("http handler panic",
				telemetry.EventField(telemetry.EventHTTPPanic),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}
