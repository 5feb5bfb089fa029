// Package user はユーザー情報の参照を提供する。
package user

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/ratelimit"
	"github.com/hitoshi/oneshot/internal/repository"
)

// Profile はユーザーと、各アクションを今日まだ実行できるかの判定結果。
type Profile struct {
	User            *model.User
	CanPostToday    bool
	CanLikeToday    bool
	CanCommentToday bool
}

// Service はユーザー情報のサービス層。
type Service struct {
	userRepo repository.UserRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
		now:      time.Now,
	}
}

// Profile は指定ユーザーのプロフィールを返す。
// 実行可否はクールダウンを考慮しない、日次制限のみの判定。
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := s.now()
	return &Profile{
		User:            user,
		CanPostToday:    ratelimit.CanAct(user.LastPostAt, now),
		CanLikeToday:    ratelimit.CanAct(user.LastLikeAt, now),
		CanCommentToday: ratelimit.CanAct(user.LastCommentAt, now),
	}, nil
}
