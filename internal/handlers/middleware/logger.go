package middleware

import (
	"net/http"
	"time"
)

type logger interface {
	Info(msg string, args ...any)
}

type responseInfo struct {
	status int
	size   int
}

type captureWriter struct {
	http.ResponseWriter
	info responseInfo
}

func (w *captureWriter) Write(p []byte) (int, error) {
	size, err := w.ResponseWriter.Write(p)
	w.info.size += size
	return size, err
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.ResponseWriter.WriteHeader(statusCode)
	w.info.status = statusCode
}

// LoggerMiddleware logs every served request with its status and timing
func LoggerMiddleware(l logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			cw := &captureWriter{
				ResponseWriter: w,
				info:           responseInfo{status: http.StatusOK},
			}

			next.ServeHTTP(cw, r)

			l.Info(
				"request served",
				"method", r.Method,
				"path", r.URL.Path,
				"duration", time.Since(start),
				"status", cw.info.status,
				"size", cw.info.size,
			)
		})
	}
}
