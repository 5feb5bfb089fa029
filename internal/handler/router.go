package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/oneshot/internal/metrics"
	"github.com/hitoshi/oneshot/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator     middleware.Authenticator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	Logger            *slog.Logger // nilならslog.Default()

	// 運用エンドポイント。Gathererがnilなら/metricsは公開しない
	HealthChecks []HealthCheck
	Gatherer     prometheus.Gatherer

	// 認証
	AuthService    AuthServiceInterface
	ProfileService ProfileServiceInterface

	// アクション・フィード
	ActionService ActionServiceInterface
	ShotService   ShotServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RealIP → RequestID → SecurityHeaders → CORS → Logging
//	  公開ルート:   RateLimit(Auth, IP単位)
//	  認証ルート:   Auth(Bearer) → RateLimit(General, ユーザー単位)
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	// 運用エンドポイントはアクセスログ対象外
	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthChecks...))
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.ProfileService)
	actionHandler := NewActionHandler(deps.ActionService)
	shotHandler := NewShotHandler(deps.ShotService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

		// --- 認証不要のルート ---
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/auth/register", authHandler.Register)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/auth/login", authHandler.Login)
		// ログアウトはトークンが壊れていても成功させるため認証ミドルウェアを通さない
		r.Post("/auth/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.Authenticator))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/auth/me", authHandler.Me)
			r.Get("/shots", shotHandler.List)
			r.Post("/post", actionHandler.Post)

			r.Route("/shot/{id}", func(r chi.Router) {
				r.Post("/like", actionHandler.Like)
				r.Post("/comment", actionHandler.Comment)
			})
		})
	})

	return r
}
