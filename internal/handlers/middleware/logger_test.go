package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordedLog struct {
	msg    string
	fields map[string]any
}

type logRecorder struct {
	logs []recordedLog
}

func (r *logRecorder) Info(msg string, args ...any) {
	fields := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		fields[args[i].(string)] = args[i+1]
	}
	r.logs = append(r.logs, recordedLog{msg: msg, fields: fields})
}

func TestLoggerMiddleware(t *testing.T) {
	recorder := &logRecorder{}

	h := LoggerMiddleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hi"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Equal(t, "hi", rec.Body.String())

	require.Len(t, recorder.logs, 1, "every request logs exactly once")
	entry := recorder.logs[0]
	require.Equal(t, "request served", entry.msg)
	require.Equal(t, "GET", entry.fields["method"])
	require.Equal(t, "/test", entry.fields["path"])
	require.Equal(t, http.StatusTeapot, entry.fields["status"])
	require.Equal(t, 2, entry.fields["size"])
	require.IsType(t, time.Duration(0), entry.fields["duration"])
}

func TestLoggerMiddleware_DefaultStatus(t *testing.T) {
	// Handlers that never call WriteHeader are logged as 200
	recorder := &logRecorder{}

	h := LoggerMiddleware(recorder)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/implicit", nil))

	require.Len(t, recorder.logs, 1)
	require.Equal(t, http.StatusOK, recorder.logs[0].fields["status"])
}
