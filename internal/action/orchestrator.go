// Package action は1日1回アクション（投稿・いいね・コメント）の実行手順を組み立てる。
//
// 各アクションは次の順で処理し、失敗した段階で打ち切る。
//
//  1. 入力検証
//  2. クールダウンロックの取得（アクション種別を問わずユーザー単位）
//  3. 当日の実行可否の判定（アクション種別ごと、UTC暦日）
//  4. 対象ショットの存在確認（いいね・コメントのみ）
//  5. エンティティ作成と最終実行日時の更新を1トランザクションで永続化
//
// 入力検証はクールダウンより先に行う。不正な入力でクールダウンを消費させないため、
// クールダウン中でも入力が不正なら入力エラーを返す。
// クールダウンは日次制限より先に判定するため、両方に該当するユーザーにはクールダウンのエラーを返す。
// クールダウン取得後に処理が中断されてもロックは解放せず、期限切れで自然に消える。
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/oneshot/internal/ephemeral"
	"github.com/hitoshi/oneshot/internal/metrics"
	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/ratelimit"
	"github.com/hitoshi/oneshot/internal/repository"
	"github.com/hitoshi/oneshot/internal/security"
)

const (
	maxCaptionLength = 50
	maxCommentLength = 100
)

// Cooldown はユーザー単位のクールダウンロック。
type Cooldown interface {
	Acquire(ctx context.Context, userID string) error
}

// PostInput はショット投稿の入力。
type PostInput struct {
	Caption  string
	ImageURL string
}

// Orchestrator はアクションの実行手順を組み立てる。
type Orchestrator struct {
	users     repository.UserRepository
	shots     repository.ShotRepository
	actions   repository.ActionRepository
	cooldown  Cooldown
	sanitizer security.TextSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(
	users repository.UserRepository,
	shots repository.ShotRepository,
	actions repository.ActionRepository,
	cooldown Cooldown,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
) *Orchestrator {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Orchestrator{
		users:     users,
		shots:     shots,
		actions:   actions,
		cooldown:  cooldown,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// Post はショットを投稿する。
func (o *Orchestrator) Post(ctx context.Context, userID string, in PostInput) (*model.Shot, error) {
	var shot *model.Shot
	err := o.run(ctx, model.ActionPost, userID,
		func() error {
			caption := o.sanitizer.Clean(in.Caption)
			if err := validateLength("caption", caption, maxCaptionLength); err != nil {
				return err
			}
			if err := o.sanitizer.ValidateImageURL(in.ImageURL); err != nil {
				return model.NewInvalidInputError(err.Error())
			}
			in.Caption = caption
			return nil
		},
		func(now time.Time) error {
			shot = &model.Shot{
				ID:        uuid.New().String(),
				UserID:    userID,
				Caption:   in.Caption,
				ImageURL:  in.ImageURL,
				CreatedAt: now,
			}
			return o.actions.CreateShot(ctx, shot, now)
		},
	)
	if err != nil {
		return nil, err
	}
	return shot, nil
}

// Like はショットにいいねする。
func (o *Orchestrator) Like(ctx context.Context, userID, shotID string) (*model.Like, error) {
	var like *model.Like
	err := o.run(ctx, model.ActionLike, userID,
		func() error {
			return validateShotID(shotID)
		},
		func(now time.Time) error {
			if err := o.ensureShot(ctx, shotID); err != nil {
				return err
			}
			like = &model.Like{
				ID:        uuid.New().String(),
				UserID:    userID,
				ShotID:    shotID,
				CreatedAt: now,
			}
			return o.actions.CreateLike(ctx, like, now)
		},
	)
	if err != nil {
		return nil, err
	}
	return like, nil
}

// Comment はショットにコメントする。
func (o *Orchestrator) Comment(ctx context.Context, userID, shotID, content string) (*model.Comment, error) {
	var comment *model.Comment
	err := o.run(ctx, model.ActionComment, userID,
		func() error {
			if err := validateShotID(shotID); err != nil {
				return err
			}
			content = o.sanitizer.Clean(content)
			return validateLength("content", content, maxCommentLength)
		},
		func(now time.Time) error {
			if err := o.ensureShot(ctx, shotID); err != nil {
				return err
			}
			comment = &model.Comment{
				ID:        uuid.New().String(),
				UserID:    userID,
				ShotID:    shotID,
				Content:   content,
				CreatedAt: now,
			}
			return o.actions.CreateComment(ctx, comment, now)
		},
	)
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// run は検証・クールダウン・日次制限・永続化の共通手順を実行し、結果をメトリクスとログに残す。
func (o *Orchestrator) run(
	ctx context.Context,
	action model.ActionType,
	userID string,
	validate func() error,
	perform func(now time.Time) error,
) (err error) {
	start := time.Now()
	defer func() {
		o.metrics.RecordAction(string(action), outcomeOf(err))
		o.metrics.RecordActionLatency(string(action), time.Since(start))
	}()

	if err := validate(); err != nil {
		return err
	}

	if err := o.cooldown.Acquire(ctx, userID); err != nil {
		var cdErr *ratelimit.CooldownError
		if errors.As(err, &cdErr) {
			slog.Info("action rejected by cooldown",
				slog.String("user_id", userID),
				slog.String("action", string(action)),
				slog.Int("retry_after", cdErr.RetryAfter),
			)
			return model.NewOnCooldownError(cdErr.RetryAfter)
		}
		return err
	}

	user, err := o.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	now := o.now().UTC()
	if !ratelimit.CanAct(user.LastActionAt(action), now) {
		slog.Info("action rejected by daily limit",
			slog.String("user_id", userID),
			slog.String("action", string(action)),
		)
		return model.NewDailyLimitReachedError(action)
	}

	if err := perform(now); err != nil {
		if errors.Is(err, repository.ErrActionAlreadyStamped) {
			return model.NewDailyLimitReachedError(action)
		}
		return err
	}

	slog.Info("action completed",
		slog.String("user_id", userID),
		slog.String("action", string(action)),
	)
	return nil
}

// ensureShot は対象ショットが存在することを確認する。
func (o *Orchestrator) ensureShot(ctx context.Context, shotID string) error {
	shot, err := o.shots.FindByID(ctx, shotID)
	if err != nil {
		return fmt.Errorf("failed to find shot: %w", err)
	}
	if shot == nil {
		return model.NewShotNotFoundError(shotID)
	}
	return nil
}

func validateShotID(shotID string) error {
	if _, err := uuid.Parse(shotID); err != nil {
		return model.NewInvalidInputError("shot id is malformed")
	}
	return nil
}

// validateLength は文字数（rune数）が1以上limit以下であることを検証する。
func validateLength(field, value string, limit int) error {
	n := utf8.RuneCountInString(value)
	if n == 0 {
		return model.NewInvalidInputError(field + " must not be empty")
	}
	if n > limit {
		return model.NewInvalidInputError(fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return nil
}

// outcomeOf はエラーをメトリクスの結果ラベルに分類する。
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case model.ErrCodeOnCooldown:
			return metrics.OutcomeCooldown
		case model.ErrCodeDailyLimitReached:
			return metrics.OutcomeDailyLimit
		case model.ErrCodeShotNotFound, model.ErrCodeUserNotFound:
			return metrics.OutcomeNotFound
		case model.ErrCodeInvalidInput:
			return metrics.OutcomeInvalid
		}
	}
	if errors.Is(err, ephemeral.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		return metrics.OutcomeUnavailable
	}
	return metrics.OutcomeError
}
