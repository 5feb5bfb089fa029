package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/oneshot/internal/model"
)

// UserFinder はトークンのsubからユーザーを解決する。
type UserFinder interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
}

// TokenValidator はトークンを検証し、ユーザーに解決する。
type TokenValidator struct {
	parser      *tokenParser
	revocations *RevocationRegistry
	users       UserFinder
	now         func() time.Time
}

// NewTokenValidator はTokenValidatorを生成する。鍵やアルゴリズムが不正な場合はエラーを返す。
func NewTokenValidator(cfg TokenConfig, revocations *RevocationRegistry, users UserFinder, now func() time.Time) (*TokenValidator, error) {
	parser, err := newTokenParser(cfg)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &TokenValidator{
		parser:      parser,
		revocations: revocations,
		users:       users,
		now:         now,
	}, nil
}

// Validate はrawを次の順に検証し、最初に失敗した段階の*Errorを返す。
//
//  1. 失効登録済み → KindRevoked
//  2. 署名不一致・形式不正 → KindInvalid
//  3. now >= exp → KindExpired
//  4. subのユーザーが存在しない → KindUnknownSubject
//
// ストアやDBの障害は*Errorではなく、そのままラップして返す。
func (v *TokenValidator) Validate(ctx context.Context, raw string) (*model.User, error) {
	revoked, err := v.revocations.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, newError(KindRevoked, nil)
	}

	claims, err := v.parser.parse(raw)
	if err != nil {
		return nil, newError(KindInvalid, err)
	}

	if !v.now().Before(claims.ExpiresAt.Time) {
		return nil, newError(KindExpired, fmt.Errorf("expired at %s", claims.ExpiresAt.Time.UTC().Format(time.RFC3339)))
	}

	user, err := v.users.FindByUsername(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token subject: %w", err)
	}
	if user == nil {
		return nil, newError(KindUnknownSubject, nil)
	}
	return user, nil
}

// ExpiryOf は署名を検証したうえでrawのexpを返す。有効期限切れかどうかは問わない。
func (v *TokenValidator) ExpiryOf(raw string) (time.Time, error) {
	claims, err := v.parser.parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return claims.ExpiresAt.Time, nil
}
