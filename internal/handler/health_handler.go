package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout は1回のヘルスチェック全体の制限時間。
const healthCheckTimeout = 3 * time.Second

// HealthCheck は依存先1つ分の疎通確認。
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler は依存先（DB・Redis）の疎通を並行に確認する。
type HealthHandler struct {
	checks []HealthCheck
}

// NewHealthHandler はHealthHandlerを生成する。
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// ServeHTTP はすべての依存先が応答すれば200、1つでも失敗すれば503を返す。
// GET /health
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	results := make([]string, len(h.checks))
	var g errgroup.Group
	for i, check := range h.checks {
		g.Go(func() error {
			if err := check.Ping(ctx); err != nil {
				slog.Warn("health check failed",
					slog.String("check", check.Name),
					slog.String("error", err.Error()),
				)
				results[i] = "unavailable"
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	for i, check := range h.checks {
		resp.Checks[check.Name] = results[i]
	}

	status := http.StatusOK
	if err != nil {
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
