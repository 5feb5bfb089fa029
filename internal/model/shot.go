package model

import "time"

// Shot はユーザーが1日1回だけ投稿できる投稿を表す。
type Shot struct {
	ID        string
	UserID    string
	Caption   string
	ImageURL  string // 空文字は画像なし
	CreatedAt time.Time
}

// Like はショットへのいいねを表す。
type Like struct {
	ID        string
	UserID    string
	ShotID    string
	CreatedAt time.Time
}

// Comment はショットへのコメントを表す。
type Comment struct {
	ID        string
	UserID    string
	ShotID    string
	Content   string
	CreatedAt time.Time
}

// CommentView はフィード表示用に投稿者名を結合したコメント。
type CommentView struct {
	Comment
	Username string
}

// ShotView はフィード表示用に投稿者名、いいね数、コメントを結合したショット。
type ShotView struct {
	Shot
	Username  string
	LikeCount int
	Comments  []CommentView
}
