package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/oneshot/internal/ephemeral"
)

const (
	revocationKeyPrefix = "blacklist:token:"
	revocationSentinel  = "blacklisted"
)

// RevocationRegistry は失効済みかつ未失効期限のトークンを保持する。
// エントリはトークン本来の有効期限で自動的に消えるため、登録数は有効なトークン数を超えない。
type RevocationRegistry struct {
	store ephemeral.Store
	now   func() time.Time
}

// NewRevocationRegistry はRevocationRegistryを生成する。
func NewRevocationRegistry(store ephemeral.Store, now func() time.Time) *RevocationRegistry {
	if now == nil {
		now = time.Now
	}
	return &RevocationRegistry{store: store, now: now}
}

// Revoke はrawをexpiresAtまで失効扱いにする。
// 残り期間はミリ秒単位に切り捨て、0以下なら何もしない。切り捨てによりエントリがexpiresAtを越えて残ることはない。
// その代わりexpiresAt直前の1ミリ秒未満はエントリが消えてトークンが通りうる。この隙間は許容する。
// 登録した場合はtrueを返す。
func (r *RevocationRegistry) Revoke(ctx context.Context, raw string, expiresAt time.Time) (bool, error) {
	ttl := expiresAt.Sub(r.now()).Truncate(time.Millisecond)
	if ttl <= 0 {
		return false, nil
	}
	if err := r.store.SetWithTTL(ctx, revocationKey(raw), revocationSentinel, ttl); err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return true, nil
}

// IsRevoked はrawが失効登録されているかを返す。
func (r *RevocationRegistry) IsRevoked(ctx context.Context, raw string) (bool, error) {
	ok, err := r.store.Exists(ctx, revocationKey(raw))
	if err != nil {
		return false, fmt.Errorf("failed to check revocation: %w", err)
	}
	return ok, nil
}

func revocationKey(raw string) string {
	return revocationKeyPrefix + raw
}
