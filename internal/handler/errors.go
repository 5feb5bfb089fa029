package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/oneshot/internal/ephemeral"
	"github.com/hitoshi/oneshot/internal/middleware"
	"github.com/hitoshi/oneshot/internal/model"
)

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// ストアの到達不能・タイムアウトは再試行可能な503、それ以外の想定外エラーは500とする。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	if errors.Is(err, ephemeral.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		slog.Error("backing store unavailable", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, model.NewServiceUnavailableError())
		return
	}

	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeOnCooldown, model.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case model.ErrCodeDailyLimitReached:
		// 翌日まで再試行できないため、数秒で解消する429とは分ける
		return http.StatusForbidden
	case model.ErrCodeUnauthorized, model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	case model.ErrCodeShotNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case model.ErrCodeUsernameTaken:
		return http.StatusConflict
	case model.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
