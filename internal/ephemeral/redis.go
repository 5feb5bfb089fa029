package ephemeral

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore はRedisをバックエンドとするStore実装。
// 各操作はtimeoutで打ち切られ、失敗はErrUnavailableでラップして返す。
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisStore はREDIS_URL形式の接続URLからRedisStoreを生成する。
// 接続は遅延されるため、疎通確認にはPingを使用すること。
func NewRedisStore(redisURL string, timeout time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if timeout > 0 {
		opts.DialTimeout = timeout
		opts.ReadTimeout = timeout
		opts.WriteTimeout = timeout
	}
	return NewRedisStoreFromClient(redis.NewClient(opts), timeout), nil
}

// NewRedisStoreFromClient は既存のクライアントからRedisStoreを生成する。
func NewRedisStoreFromClient(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout}
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Exists はキーが存在するかを返す。
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrUnavailable, key, err)
	}
	return n > 0, nil
}

// SetWithTTL はキーをttl付きで設定する。
// ttlが秒単位でない場合、go-redisはPXでミリ秒精度の期限を設定する。
func (s *RedisStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %v", ttl)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrUnavailable, key, err)
	}
	return nil
}

// SetIfAbsent はSET NXでキーを原子的に設定する。
func (s *RedisStore) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("ttl must be positive: %v", ttl)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %v", ErrUnavailable, key, err)
	}
	return ok, nil
}

// TTL はPTTLでキーの残り有効期間を返す。
// キーが存在しない場合は-2ns相当、期限が無い場合は-1ns相当の負値になる。
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: pttl %s: %v", ErrUnavailable, key, err)
	}
	return d, nil
}

// Ping はRedisへの疎通を確認する。
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: ping: %v", ErrUnavailable, err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
