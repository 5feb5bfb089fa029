// Package security はユーザー入力の無害化と検証を提供する。
//
// キャプションとコメントはプレーンテキストとして保存する。
// bluemondayのStrictPolicyで全てのタグを除去し、文字参照を戻したうえで
// NFCに正規化するため、同じ見た目の文字列は同じ長さとして数えられる。
package security

import (
	"errors"
	"html"
	"net/url"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

// maxImageURLLength は画像URLの最大長。
const maxImageURLLength = 2048

// TextSanitizer はユーザー入力テキストのサニタイズ機能のインターフェース。
type TextSanitizer interface {
	// Clean はHTMLタグと制御文字を除去し、前後の空白を落としたNFC正規化済みテキストを返す。
	// 同一入力に対して常に同一出力を返す。
	Clean(raw string) string

	// ValidateImageURL は画像URLがhttpsの絶対URLであることを検証する。空文字は許可する。
	ValidateImageURL(raw string) error
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Clean はHTMLタグと制御文字を除去したプレーンテキストを返す。
func (s *textSanitizer) Clean(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := html.UnescapeString(s.policy.Sanitize(raw))
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' {
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(norm.NFC.String(stripped))
}

// ValidateImageURL は画像URLがhttpsの絶対URLであることを検証する。
func (s *textSanitizer) ValidateImageURL(raw string) error {
	if raw == "" {
		return nil
	}
	if len(raw) > maxImageURLLength {
		return errors.New("image_url is too long")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return errors.New("image_url is not a valid URL")
	}
	if u.Scheme != "https" || u.Host == "" {
		return errors.New("image_url must be an absolute https URL")
	}
	if u.User != nil {
		return errors.New("image_url must not contain credentials")
	}
	return nil
}

// compile-time interface check
var _ TextSanitizer = (*textSanitizer)(nil)
