package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/databot-labs/core/pkg/logger"
)

// RequestID tags each request with a correlation id and logs it on
// completion. The id is echoed in the X-Request-ID response header.
func RequestID(log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		reqLog := log.WithRequestID(requestID)
		ctx := reqLog.ToContext(r.Context())

		start := time.Now()
		next(w, r.WithContext(ctx))

		reqLog.Debug().
			Str("action", "http_request").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	}
}
