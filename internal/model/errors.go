package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, limit, shot, system
	Action   string // ユーザー向け対処方法

	// RetryAfter は再試行までの秒数。0の場合はRetry-Afterヘッダーを付与しない。
	RetryAfter int
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeOnCooldown         = "ON_COOLDOWN"
	ErrCodeDailyLimitReached  = "DAILY_LIMIT_REACHED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUsernameTaken      = "USERNAME_TAKEN"
	ErrCodeShotNotFound       = "SHOT_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
)

// NewOnCooldownError はクールダウン中エラーを生成する。
// retryAfterSecondsは残りTTL（秒）。
func NewOnCooldownError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:       ErrCodeOnCooldown,
		Message:    fmt.Sprintf("Whoa, slow down! Try again in %d seconds.", retryAfterSeconds),
		Category:   "limit",
		Action:     "Wait a few seconds before trying again.",
		RetryAfter: retryAfterSeconds,
	}
}

// NewDailyLimitReachedError は1日1回の上限到達エラーを生成する。
// 翌日（UTC）まで再試行できない。
func NewDailyLimitReachedError(action ActionType) *APIError {
	return &APIError{
		Code:     ErrCodeDailyLimitReached,
		Message:  dailyLimitMessage(action),
		Category: "limit",
		Action:   "Come back tomorrow (UTC).",
	}
}

func dailyLimitMessage(action ActionType) string {
	switch action {
	case ActionPost:
		return "You have already made your post for the day."
	case ActionLike:
		return "You have already used your like for the day."
	case ActionComment:
		return "You have already made your comment for the day."
	default:
		return "You have already reached today's limit for this action."
	}
}

// NewUnauthorizedError は認証エラーを生成する。
// 失効・期限切れ・署名不正などの内部的な理由はクライアントに開示しない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Could not validate credentials.",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー名の存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Incorrect username or password.",
		Category: "auth",
		Action:   "Check your username and password.",
	}
}

// NewUsernameTakenError はユーザー名重複エラーを生成する。
func NewUsernameTakenError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameTaken,
		Message:  fmt.Sprintf("Username is already registered: %s", username),
		Category: "auth",
		Action:   "Choose a different username.",
	}
}

// NewShotNotFoundError はショット未検出エラーを生成する。
func NewShotNotFoundError(shotID string) *APIError {
	return &APIError{
		Code:     ErrCodeShotNotFound,
		Message:  fmt.Sprintf("Shot not found: %s", shotID),
		Category: "shot",
		Action:   "Refresh the feed and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewInvalidInputError は入力値不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("Invalid input: %s", reason),
		Category: "validation",
		Action:   "Fix the request and try again.",
	}
}

// NewServiceUnavailableError はストア到達不能・タイムアウト時のエラーを生成する。
// 呼び出し側での再試行を想定する。
func NewServiceUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeServiceUnavailable,
		Message:  "The service is temporarily unavailable.",
		Category: "system",
		Action:   "Retry shortly.",
	}
}

// NewInternalError は内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Retry later.",
	}
}

// NewRateLimitExceededError はリクエストレート超過エラーを生成する。
// クールダウンとは独立した、HTTP層での流量制限に使う。
func NewRateLimitExceededError(retryAfterSeconds int) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimitExceeded,
		Message:    "Too many requests. Please try again later.",
		Category:   "system",
		Action:     "Please wait and retry after the specified time.",
		RetryAfter: retryAfterSeconds,
	}
}
