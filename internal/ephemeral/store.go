// Package ephemeral は自動失効する短命なキーを扱うキーバリューストアを提供する。
// クールダウンロックとトークン失効レジストリが共有する。
package ephemeral

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable はストアへの到達不能・タイムアウトを表す。
// 呼び出し元はレート制限や認証の失敗ではなく、再試行可能な基盤障害として扱う。
var ErrUnavailable = errors.New("ephemeral store unavailable")

// Store は有効期限付きキーの原子的な操作を提供する。
type Store interface {
	// Exists はキーが存在するかを返す。
	Exists(ctx context.Context, key string) (bool, error)

	// SetWithTTL はキーをttl付きで設定する。既存の値とTTLは上書きされる。
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error

	// SetIfAbsent はキーが存在しない場合のみttl付きで設定し、設定したかを返す。
	// 存在確認と設定は単一の原子操作で行われる。
	SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// TTL はキーの残り有効期間を返す。キーが存在しない、または期限が無い場合は負の値を返す。
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping はストアへの疎通を確認する。
	Ping(ctx context.Context) error

	// Close は接続を閉じる。
	Close() error
}
