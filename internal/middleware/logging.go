package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// staleResultHeader は後続リクエストに追い越されて破棄された一覧結果を示すレスポンスヘッダー。
const staleResultHeader = "X-Listing-Stale"

// responseRecorder は最初に書き込まれたステータスコードと本文のバイト数を記録する。
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.status == 0 {
		rr.status = code
	}
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// Unwrap はhttp.ResponseControllerが元のWriterに到達できるようにする。
func (rr *responseRecorder) Unwrap() http.ResponseWriter {
	return rr.ResponseWriter
}

// statusCode は記録したステータスを返す。何も書かれていない場合は200。
func (rr *responseRecorder) statusCode() int {
	if rr.status == 0 {
		return http.StatusOK
	}
	return rr.status
}

// NewLoggingMiddleware はリクエストごとに "http_request" ログを1行出力するミドルウェアを返す。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &responseRecorder{ResponseWriter: w}

			next.ServeHTTP(rec, r)

			status := rec.statusCode()
			logger.LogAttrs(r.Context(), levelForStatus(status), "http_request",
				requestAttrs(r, rec, status, time.Since(start))...)
		})
	}
}

// requestAttrs はアクセスログの属性を組み立てる。
// session_id、seq、staleは該当する場合のみ付与する。
func requestAttrs(r *http.Request, rec *responseRecorder, status int, elapsed time.Duration) []slog.Attr {
	attrs := make([]slog.Attr, 0, 9)
	attrs = append(attrs,
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", routePattern(r)),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(elapsed)/float64(time.Millisecond)),
		slog.Int("bytes", rec.bytes),
	)

	if sessionID, err := SessionIDFromContext(r.Context()); err == nil {
		attrs = append(attrs, slog.String("session_id", sessionID))
	}
	if seq := r.URL.Query().Get("seq"); seq != "" {
		attrs = append(attrs, slog.String("seq", seq))
	}
	if rec.Header().Get(staleResultHeader) == "true" {
		attrs = append(attrs, slog.Bool("stale", true))
	}
	return attrs
}

// levelForStatus は5xxをERROR、4xxをWARN、それ以外をINFOにする。
func levelForStatus(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// routePattern はchiが一致させたルートパターンを返す。ルーター外ではパスをそのまま返す。
// /api/listings/{id} のようにIDを含まない形で集計できるようにする。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
