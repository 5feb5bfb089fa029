package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/oneshot/internal/ephemeral"
)

const (
	cooldownKeyPrefix = "cooldown:user:"
	cooldownSentinel  = "locked"
)

// CooldownError はクールダウン中のためアクションを受け付けなかったことを表す。
type CooldownError struct {
	// RetryAfter は再試行までの秒数。1以上、クールダウン期間以下。
	RetryAfter int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("on cooldown: retry after %d seconds", e.RetryAfter)
}

// CooldownLock はユーザー単位の短時間ロック。
// アクションの種類を問わず、ユーザーはttl以内に2回目の許可を得られない。
// 取得成功は使い捨ての入場券として扱い、解放は行わない。エントリはストアの期限で自然に消える。
type CooldownLock struct {
	store ephemeral.Store
	ttl   time.Duration
}

// NewCooldownLock はCooldownLockを生成する。
func NewCooldownLock(store ephemeral.Store, ttl time.Duration) *CooldownLock {
	return &CooldownLock{store: store, ttl: ttl}
}

// TTL はクールダウン期間を返す。
func (l *CooldownLock) TTL() time.Duration {
	return l.ttl
}

// Acquire はuserIDのクールダウンエントリを原子的に作成する。
// 既に存在する場合は残り秒数を持つ*CooldownErrorを返す。
// ストア障害はephemeral.ErrUnavailableをラップしたエラーとして返す。
func (l *CooldownLock) Acquire(ctx context.Context, userID string) error {
	key := cooldownKey(userID)

	ok, err := l.store.SetIfAbsent(ctx, key, cooldownSentinel, l.ttl)
	if err != nil {
		return fmt.Errorf("failed to acquire cooldown: %w", err)
	}
	if ok {
		return nil
	}

	remaining, err := l.store.TTL(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to read cooldown ttl: %w", err)
	}
	return &CooldownError{RetryAfter: l.retryAfterSeconds(remaining)}
}

// retryAfterSeconds は残り期間を切り上げた秒数に変換し、[1, ttl秒]に収める。
// キーが取得直後に失効した場合など残り期間が負のときは1秒とする。
func (l *CooldownLock) retryAfterSeconds(remaining time.Duration) int {
	limit := int((l.ttl + time.Second - 1) / time.Second)
	if limit < 1 {
		limit = 1
	}
	if remaining <= 0 {
		return 1
	}
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	if secs > limit {
		return limit
	}
	return secs
}

func cooldownKey(userID string) string {
	return cooldownKeyPrefix + userID
}
