package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/oneshot/internal/model"
)

// ShotServiceInterface はフィード取得に使う。
type ShotServiceInterface interface {
	ListRecent(ctx context.Context, limit int) ([]model.ShotView, error)
}

// ShotHandler はフィードのHTTPハンドラー。
type ShotHandler struct {
	service ShotServiceInterface
}

// NewShotHandler はShotHandlerを生成する。
func NewShotHandler(service ShotServiceInterface) *ShotHandler {
	return &ShotHandler{service: service}
}

type feedCommentResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type feedShotResponse struct {
	ID        string                `json:"id"`
	Username  string                `json:"username"`
	Caption   string                `json:"caption"`
	ImageURL  string                `json:"image_url"`
	LikeCount int                   `json:"like_count"`
	Comments  []feedCommentResponse `json:"comments"`
	CreatedAt time.Time             `json:"created_at"`
}

// List は新しい順にショットを返す。
// GET /shots?limit=20
func (h *ShotHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("limit must be a positive integer"))
			return
		}
		limit = n
	}

	shots, err := h.service.ListRecent(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]feedShotResponse, 0, len(shots))
	for _, s := range shots {
		comments := make([]feedCommentResponse, 0, len(s.Comments))
		for _, c := range s.Comments {
			comments = append(comments, feedCommentResponse{
				ID:        c.ID,
				Username:  c.Username,
				Content:   c.Content,
				CreatedAt: c.CreatedAt,
			})
		}
		resp = append(resp, feedShotResponse{
			ID:        s.ID,
			Username:  s.Username,
			Caption:   s.Caption,
			ImageURL:  s.ImageURL,
			LikeCount: s.LikeCount,
			Comments:  comments,
			CreatedAt: s.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"shots": resp})
}
