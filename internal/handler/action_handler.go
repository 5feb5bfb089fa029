package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/oneshot/internal/action"
	"github.com/hitoshi/oneshot/internal/middleware"
	"github.com/hitoshi/oneshot/internal/model"
)

// ActionServiceInterface はアクションハンドラーが必要とするサービスインターフェース。
// action.Orchestratorが実装する。
type ActionServiceInterface interface {
	Post(ctx context.Context, userID string, in action.PostInput) (*model.Shot, error)
	Like(ctx context.Context, userID, shotID string) (*model.Like, error)
	Comment(ctx context.Context, userID, shotID, content string) (*model.Comment, error)
}

// ActionHandler は投稿・いいね・コメントのHTTPハンドラー。
type ActionHandler struct {
	service ActionServiceInterface
}

// NewActionHandler はActionHandlerを生成する。
func NewActionHandler(service ActionServiceInterface) *ActionHandler {
	return &ActionHandler{service: service}
}

type shotResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Caption   string    `json:"caption"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type likeResponse struct {
	ID        string    `json:"id"`
	ShotID    string    `json:"shot_id"`
	CreatedAt time.Time `json:"created_at"`
}

type commentResponse struct {
	ID        string    `json:"id"`
	ShotID    string    `json:"shot_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Post はショットを投稿する。
// POST /post
func (h *ActionHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	fields, err := formFields(w, r, "caption", "image_url")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	shot, err := h.service.Post(r.Context(), userID, action.PostInput{
		Caption:  fields["caption"],
		ImageURL: fields["image_url"],
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, shotResponse{
		ID:        shot.ID,
		UserID:    shot.UserID,
		Caption:   shot.Caption,
		ImageURL:  shot.ImageURL,
		CreatedAt: shot.CreatedAt,
	})
}

// Like はショットにいいねする。
// POST /shot/{id}/like
func (h *ActionHandler) Like(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	like, err := h.service.Like(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, likeResponse{
		ID:        like.ID,
		ShotID:    like.ShotID,
		CreatedAt: like.CreatedAt,
	})
}

// Comment はショットにコメントする。
// POST /shot/{id}/comment
func (h *ActionHandler) Comment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	fields, err := formFields(w, r, "content")
	if err != nil {
		handleServiceError(w, err)
		return
	}

	comment, err := h.service.Comment(r.Context(), userID, chi.URLParam(r, "id"), fields["content"])
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, commentResponse{
		ID:        comment.ID,
		ShotID:    comment.ShotID,
		Content:   comment.Content,
		CreatedAt: comment.CreatedAt,
	})
}

// requireUserID はコンテキストから認証済みユーザーIDを取り出す。
// 取り出せない場合は401を書き込んでfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}
