package request

import (
	"log/slog"
	"mime"
	"net"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"casereview/internal/platform/privacy"
)

// quietPaths are only logged when they fail.
var quietPaths = []string{"/healthz", "/healthz/live", "/healthz/ready", "/metrics"}

// recorder remembers the status and size of what a handler wrote.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func record(w http.ResponseWriter) *recorder {
	return &recorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *recorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *recorder) Write(p []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}

// writeError answers with the JSON error shape the API uses everywhere.
func writeError(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body)) //nolint:errcheck // headers already sent
}

// Recovery turns a handler panic into a logged 500.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				ctx := r.Context()
				logger.ErrorContext(ctx, "handler panicked",
					"panic", v,
					"method", r.Method,
					"path", r.URL.Path,
					"request_id", RequestID(ctx),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, `{"error":"internal_error"}`)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Logger writes one access log line per request. Server errors log at Warn.
// The client address is truncated to its network prefix.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := record(w)
			next.ServeHTTP(rec, r)

			failed := rec.status >= http.StatusInternalServerError
			if !failed && slices.Contains(quietPaths, r.URL.Path) {
				return
			}
			level := slog.LevelInfo
			if failed {
				level = slog.LevelWarn
			}
			ctx := r.Context()
			logger.Log(ctx, level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", RequestID(ctx),
				"remote_addr_prefix", privacy.AnonymizeIP(hostOf(r.RemoteAddr)),
			)
		})
	}
}

func hostOf(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// BodyLimit makes reads past maxBytes fail with *http.MaxBytesError.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON answers 415 to a request with a body whose declared
// Content-Type is not application/json. An absent header is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if carriesBody(r.Method) && !declaresJSON(r.Header.Get("Content-Type")) {
			writeError(w, http.StatusUnsupportedMediaType,
				`{"error":"bad_request","error_description":"Content-Type must be application/json"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func carriesBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func declaresJSON(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "application/json"
}

// Timeout answers 503 with a JSON error when the handler runs past timeout.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, `{"error":"request_timeout","error_description":"request timed out"}`)
	}
}
