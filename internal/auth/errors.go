package auth

import "fmt"

// ErrorKind はトークン検証失敗の内部分類。
// クライアントには区別せず、ログとメトリクスでのみ使う。
type ErrorKind int

const (
	// KindRevoked はログアウト等で失効登録済みのトークン。
	KindRevoked ErrorKind = iota + 1
	// KindInvalid は署名不一致、形式不正、必須クレーム欠落。
	KindInvalid
	// KindExpired は有効期限切れ。
	KindExpired
	// KindUnknownSubject は該当ユーザーが存在しない。
	KindUnknownSubject
)

func (k ErrorKind) String() string {
	switch k {
	case KindRevoked:
		return "revoked"
	case KindInvalid:
		return "invalid"
	case KindExpired:
		return "expired"
	case KindUnknownSubject:
		return "unknown_subject"
	default:
		return "unknown"
	}
}

// Error はトークン検証の失敗を表す。
// HTTP境界では種別に関わらず単一のUNAUTHORIZEDに変換される。
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth %s: %v", e.Kind, e.Err)
	}
	return "auth " + e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
