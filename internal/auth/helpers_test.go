package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/hitoshi/oneshot/internal/ephemeral"
	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/repository"
)

const testSecret = "test-secret-key-32bytes-long!!!!"

// --- モック定義 ---

// memUserRepo はメモリ上のUserRepository。
type memUserRepo struct {
	mu      sync.Mutex
	byName  map[string]*model.User
	findErr error
}

func newMemUserRepo(users ...*model.User) *memUserRepo {
	r := &memUserRepo{byName: make(map[string]*model.User)}
	for _, u := range users {
		r.byName[u.Username] = u
	}
	return r
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.byName[username], nil
}

func (r *memUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[user.Username]; ok {
		return repository.ErrUsernameTaken
	}
	r.byName[user.Username] = user
	return nil
}

var _ repository.UserRepository = (*memUserRepo)(nil)

// fakeClock は手動で進める時計。
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingCollector は認証関連のメトリクス呼び出しを記録する。
type recordingCollector struct {
	mu           sync.Mutex
	authFailures []string
	revocations  int
}

func (c *recordingCollector) RecordAction(string, string)                {}
func (c *recordingCollector) RecordActionLatency(string, time.Duration) {}
func (c *recordingCollector) RecordHTTPStatus(int)                       {}

func (c *recordingCollector) RecordAuthFailure(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authFailures = append(c.authFailures, reason)
}

func (c *recordingCollector) RecordTokenRevocation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revocations++
}

func testTokenConfig() TokenConfig {
	return TokenConfig{
		Secret:      []byte(testSecret),
		Algorithm:   "HS256",
		ExpireAfter: 30 * time.Minute,
	}
}

// authFixture はminiredisと偽の時計で組み立てた認証部品一式。
type authFixture struct {
	mr          *miniredis.Miniredis
	store       *ephemeral.RedisStore
	clock       *fakeClock
	users       *memUserRepo
	issuer      *TokenIssuer
	validator   *TokenValidator
	revocations *RevocationRegistry
}

func newAuthFixture(t *testing.T, users ...*model.User) *authFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	store, err := ephemeral.NewRedisStore("redis://"+mr.Addr(), time.Second)
	if err != nil {
		t.Fatalf("NewRedisStore returned error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := newFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	repo := newMemUserRepo(users...)
	revocations := NewRevocationRegistry(store, clock.Now)

	issuer, err := NewTokenIssuer(testTokenConfig(), clock.Now)
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	validator, err := NewTokenValidator(testTokenConfig(), revocations, repo, clock.Now)
	if err != nil {
		t.Fatalf("NewTokenValidator returned error: %v", err)
	}

	return &authFixture{
		mr:          mr,
		store:       store,
		clock:       clock,
		users:       repo,
		issuer:      issuer,
		validator:   validator,
		revocations: revocations,
	}
}
