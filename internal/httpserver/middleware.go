package httpserver

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"campaigner/internal/observability"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		observability.APIRequests.WithLabelValues(r.URL.Path, strconv.Itoa(sw.status)).Inc()
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

// RequireSecret guards an endpoint with a shared secret, accepted either
// as the X-Cron-Secret header or a ?secret= query parameter (external
// cron services often cannot set headers). An empty configured secret
// disables the check, for local development.
func RequireSecret(secret string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if secret != "" {
			got := r.Header.Get("X-Cron-Secret")
			if got == "" {
				got = r.URL.Query().Get("secret")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				http.Error(w, ErrForbidden, http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}
