package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/oneshot/internal/metrics"
)

// requestLogInfo は内側のミドルウェアが判明させた情報をアクセスログへ渡す入れ物。
// 認証はロギングより内側で動くため、コンテキストの値では外側に届かない。
type requestLogInfo struct {
	userID string
}

var requestLogInfoKey = contextKey("request_log_info")

// setLoggedUserID は認証済みユーザーIDをアクセスログに載せる。
func setLoggedUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestLogInfoKey).(*requestLogInfo); ok {
		info.userID = userID
	}
}

// NewLoggingMiddleware は1リクエスト1行のアクセスログを出す。
// 5xxはError、4xxはWarn、それ以外はInfoで記録し、ステータスコードをcollectorにも数える。
func NewLoggingMiddleware(logger *slog.Logger, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			info := &requestLogInfo{}

			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), requestLogInfoKey, info)))

			status := ww.Status()
			if status == 0 {
				// 何も書かずに返ったハンドラーはnet/httpが200を送る
				status = http.StatusOK
			}
			collector.RecordHTTPStatus(status)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			}
			if reqID := chimw.GetReqID(r.Context()); reqID != "" {
				attrs = append(attrs, slog.String("request_id", reqID))
			}
			if info.userID != "" {
				attrs = append(attrs, slog.String("user_id", info.userID))
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.LogAttrs(r.Context(), level, "http_request", attrs...)
		})
	}
}
