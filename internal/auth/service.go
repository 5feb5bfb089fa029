// Package auth はトークンの発行・検証・失効と、ユーザー登録・ログインを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/oneshot/internal/metrics"
	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/repository"
)

const (
	minPasswordLength = 8
	// bcryptは72バイトを超える入力を扱えない
	maxPasswordLength = 72
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,24}$`)

// Session は登録・ログインで発行したトークンとユーザー。
type Session struct {
	Token *IssuedToken
	User  *model.User
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	issuer      *TokenIssuer
	validator   *TokenValidator
	revocations *RevocationRegistry
	metrics     metrics.MetricsCollector
	now         func() time.Time
	bcryptCost  int

	// dummyHash はユーザーが存在しない場合にも比較を行い、応答時間からの存在推測を防ぐ。
	dummyOnce sync.Once
	dummyHash []byte
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	issuer *TokenIssuer,
	validator *TokenValidator,
	revocations *RevocationRegistry,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NoopCollector{}
	}
	return &Service{
		users:       users,
		issuer:      issuer,
		validator:   validator,
		revocations: revocations,
		metrics:     collector,
		now:         time.Now,
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// Register はユーザーを作成し、トークンを発行する。
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, model.NewUsernameTakenError(username)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issuer.Issue(user.Username)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return &Session{Token: token, User: user}, nil
}

// Login はユーザー名とパスワードを照合し、トークンを発行する。
// ユーザーが存在しない場合とパスワード不一致は同じエラーを返す。
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.fallbackHash(), []byte(password))
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.issuer.Issue(user.Username)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &Session{Token: token, User: user}, nil
}

// Logout はトークンを残りの有効期間だけ失効登録する。
// 署名やペイロードが壊れたトークンは何も登録せず成功扱いとする。
// 失効ストアの障害のみエラーとして返す。
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	expiresAt, err := s.validator.ExpiryOf(raw)
	if err != nil {
		slog.Debug("logout with undecodable token ignored", slog.String("error", err.Error()))
		return nil
	}

	revoked, err := s.revocations.Revoke(ctx, raw, expiresAt)
	if err != nil {
		return err
	}
	if revoked {
		s.metrics.RecordTokenRevocation()
		slog.Info("token revoked", slog.Time("expires_at", expiresAt))
	}
	return nil
}

// Authenticate はトークンを検証してユーザーを返す。
// 検証失敗は*Errorで返し、理由はメトリクスとログにのみ残す。
func (s *Service) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	user, err := s.validator.Validate(ctx, raw)
	if err != nil {
		var authErr *Error
		if errors.As(err, &authErr) {
			s.metrics.RecordAuthFailure(authErr.Kind.String())
			slog.Debug("token rejected", slog.String("reason", authErr.Kind.String()))
		}
		return nil, err
	}
	return user, nil
}

// fallbackHash は存在しないユーザーとの比較に使うハッシュを遅延生成する。
func (s *Service) fallbackHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("oneshot-missing-user"), s.bcryptCost)
	})
	return s.dummyHash
}

// validateCredentials は登録時のユーザー名とパスワードの形式を検証する。
func validateCredentials(username, password string) error {
	if !usernamePattern.MatchString(username) {
		return model.NewInvalidInputError("username must be 3-24 characters of letters, digits or underscore")
	}
	if len(password) < minPasswordLength {
		return model.NewInvalidInputError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if len(password) > maxPasswordLength {
		return model.NewInvalidInputError(fmt.Sprintf("password must be at most %d bytes", maxPasswordLength))
	}
	return nil
}
