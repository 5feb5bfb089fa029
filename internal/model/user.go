// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 3種類のアクションそれぞれについて最終実行日時を保持する。
// 一度もアクションしていない場合はnil。
type User struct {
	ID            string
	Username      string
	PasswordHash  string
	LastPostAt    *time.Time
	LastLikeAt    *time.Time
	LastCommentAt *time.Time
	CreatedAt     time.Time
}

// LastActionAt は指定アクション種別の最終実行日時を返す。
func (u *User) LastActionAt(action ActionType) *time.Time {
	switch action {
	case ActionPost:
		return u.LastPostAt
	case ActionLike:
		return u.LastLikeAt
	case ActionComment:
		return u.LastCommentAt
	default:
		return nil
	}
}

// ActionType は1日1回に制限されるアクションの種別を表す。
type ActionType string

const (
	// ActionPost はショットの投稿。
	ActionPost ActionType = "post"
	// ActionLike はショットへのいいね。
	ActionLike ActionType = "like"
	// ActionComment はショットへのコメント。
	ActionComment ActionType = "comment"
)

// Column はアクション種別に対応するusersテーブルの最終実行日時カラム名を返す。
func (a ActionType) Column() (string, bool) {
	switch a {
	case ActionPost:
		return "last_post_at", true
	case ActionLike:
		return "last_like_at", true
	case ActionComment:
		return "last_comment_at", true
	default:
		return "", false
	}
}
