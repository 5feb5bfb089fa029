package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/oneshot/internal/action"
	"github.com/hitoshi/oneshot/internal/auth"
	"github.com/hitoshi/oneshot/internal/config"
	"github.com/hitoshi/oneshot/internal/database"
	"github.com/hitoshi/oneshot/internal/ephemeral"
	"github.com/hitoshi/oneshot/internal/handler"
	"github.com/hitoshi/oneshot/internal/logger"
	"github.com/hitoshi/oneshot/internal/metrics"
	"github.com/hitoshi/oneshot/internal/middleware"
	"github.com/hitoshi/oneshot/internal/ratelimit"
	"github.com/hitoshi/oneshot/internal/repository"
	"github.com/hitoshi/oneshot/internal/security"
	"github.com/hitoshi/oneshot/internal/shot"
	"github.com/hitoshi/oneshot/internal/user"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthcheckTimeout = 5 * time.Second
	startupPingTimeout = 10 * time.Second
)

// Init はグローバルロガーをwへのJSON出力に設定し、環境変数からConfigを読む。
// 設定エラーもJSONで記録できるよう、ログレベルだけはLOG_LEVELを先に直接読む。
func Init(w io.Writer) (*config.Config, error) {
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はos.Args[1:]からサブコマンドを選んで実行する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はDBとRedisの疎通を確かめてからHTTPサーバーを起動する。
// SIGINT/SIGTERMで新規接続を止め、処理中のリクエストを待って終了する。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), startupPingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	store, err := ephemeral.NewRedisStore(cfg.RedisURL, cfg.StoreTimeout)
	if err != nil {
		return fmt.Errorf("failed to open ephemeral store: %w", err)
	}
	defer store.Close()

	if err := store.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to connect to ephemeral store: %w", err)
	}
	slog.Info("ephemeral store connection established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, stopRouter, err := newRouter(cfg, db, store, reg)
	if err != nil {
		return err
	}
	defer stopRouter()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped")
	return nil
}

// newRouter は全依存関係をワイヤリングしてルーターを構築する。
// 返される停止関数はレートリミッタのクリーンアップgoroutineを止める。
func newRouter(cfg *config.Config, db *sql.DB, store ephemeral.Store, reg *prometheus.Registry) (http.Handler, func(), error) {
	userRepo := repository.NewPostgresUserRepo(db)
	shotRepo := repository.NewPostgresShotRepo(db)
	actionRepo := repository.NewPostgresActionRepo(db)

	collector := metrics.NewCollector(reg)

	tokenCfg := auth.TokenConfig{
		Secret:      []byte(cfg.AuthSecretKey),
		Algorithm:   cfg.AuthAlgorithm,
		ExpireAfter: cfg.AccessTokenExpireAfter,
	}
	issuer, err := auth.NewTokenIssuer(tokenCfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token issuer: %w", err)
	}
	revocations := auth.NewRevocationRegistry(store, nil)
	validator, err := auth.NewTokenValidator(tokenCfg, revocations, userRepo, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create token validator: %w", err)
	}
	authService := auth.NewService(userRepo, issuer, validator, revocations, collector)

	orchestrator := action.NewOrchestrator(
		userRepo, shotRepo, actionRepo,
		ratelimit.NewCooldownLock(store, cfg.CooldownTTL),
		security.NewTextSanitizer(),
		collector,
	)

	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitAuth),
	)

	deps := &handler.RouterDeps{
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		Logger:            slog.Default(),
		HealthChecks: []handler.HealthCheck{
			{Name: "database", Ping: db.PingContext},
			{Name: "redis", Ping: store.Ping},
		},
		Gatherer: reg,

		AuthService:    authService,
		ProfileService: user.NewService(userRepo),
		ActionService:  orchestrator,
		ShotService:    shot.NewService(shotRepo),
	}

	return handler.NewRouter(deps), rateLimiter.Stop, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はローカルの/healthに問い合わせ、200以外ならエラーを返す。
func runHealthcheck(port string) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthcheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://localhost:"+port+"/health", nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

// maskDatabaseURL はログ用にパスワードを伏せたURLを返す。解析できない値は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
