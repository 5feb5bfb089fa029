// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/oneshot/internal/auth"
	"github.com/hitoshi/oneshot/internal/middleware"
	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, username, password string) (*auth.Session, error)
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context, raw string) error
}

// ProfileServiceInterface はログインユーザーのプロフィール取得に使う。
type ProfileServiceInterface interface {
	Profile(ctx context.Context, userID string) (*user.Profile, error)
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	profiles ProfileServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, profiles ProfileServiceInterface) *AuthHandler {
	return &AuthHandler{
		service:  service,
		profiles: profiles,
	}
}

// tokenResponse は登録・ログイン成功時のレスポンス。
type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Username    string    `json:"username"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// meResponse はログインユーザー情報のレスポンス。
type meResponse struct {
	ID              string     `json:"id"`
	Username        string     `json:"username"`
	LastPostAt      *time.Time `json:"last_post_at"`
	LastLikeAt      *time.Time `json:"last_like_at"`
	LastCommentAt   *time.Time `json:"last_comment_at"`
	CanPostToday    bool       `json:"can_post_today"`
	CanLikeToday    bool       `json:"can_like_today"`
	CanCommentToday bool       `json:"can_comment_today"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r, "username", "password")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.Register(r.Context(), fields["username"], fields["password"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTokenResponse(session))
}

// Login はユーザー名とパスワードでログインする。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	fields, err := formFields(w, r, "username", "password")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	session, err := h.service.Login(r.Context(), fields["username"], fields["password"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTokenResponse(session))
}

// Logout はBearerトークンを失効させる。
// トークンがない・壊れている場合も成功を返す。失効ストアの障害時のみ503を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.BearerToken(r)); err != nil {
		slog.Error("failed to revoke token", slog.String("error", err.Error()))
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

// Me は現在のログインユーザー情報と当日の実行可否を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profile, err := h.profiles.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	u := profile.User
	writeJSON(w, http.StatusOK, meResponse{
		ID:              u.ID,
		Username:        u.Username,
		LastPostAt:      u.LastPostAt,
		LastLikeAt:      u.LastLikeAt,
		LastCommentAt:   u.LastCommentAt,
		CanPostToday:    profile.CanPostToday,
		CanLikeToday:    profile.CanLikeToday,
		CanCommentToday: profile.CanCommentToday,
	})
}

func toTokenResponse(session *auth.Session) tokenResponse {
	return tokenResponse{
		AccessToken: session.Token.Raw,
		TokenType:   auth.TokenType,
		Username:    session.User.Username,
		ExpiresAt:   session.Token.ExpiresAt.UTC(),
	}
}
