// Package shot はショットのフィード取得を提供する。
package shot

import (
	"context"
	"fmt"

	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/repository"
)

const (
	// DefaultLimit はlimit未指定時の取得件数。
	DefaultLimit = 20
	// MaxLimit は1回で取得できる最大件数。
	MaxLimit = 50
)

// Service はフィードのサービス層。
type Service struct {
	shotRepo repository.ShotRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(shotRepo repository.ShotRepository) *Service {
	return &Service{shotRepo: shotRepo}
}

// ListRecent は新しい順にショットを返す。
// limitが0以下ならDefaultLimit、MaxLimitを超える場合はMaxLimitに丸める。
func (s *Service) ListRecent(ctx context.Context, limit int) ([]model.ShotView, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	shots, err := s.shotRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list shots: %w", err)
	}
	return shots, nil
}
