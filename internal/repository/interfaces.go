// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/oneshot/internal/model"
)

// ErrUsernameTaken はユーザー名のユニーク制約違反を表す。
var ErrUsernameTaken = errors.New("username already taken")

// ErrActionAlreadyStamped は同一UTC日付に同種アクションの最終実行日時が既に
// 記録されていたため、トランザクションをロールバックしたことを表す。
var ErrActionAlreadyStamped = errors.New("action already stamped for the day")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create はユーザーを作成する。ユーザー名が重複する場合はErrUsernameTakenを返す。
	Create(ctx context.Context, user *model.User) error
}

// ShotRepository はショットの参照系インターフェース。
type ShotRepository interface {
	// FindByID は指定IDのショットを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Shot, error)

	// ListRecent は新しい順にショットを取得し、投稿者名・いいね数・コメントを結合して返す。
	ListRecent(ctx context.Context, limit int) ([]model.ShotView, error)
}

// ActionRepository は1日1回アクションの永続化インターフェース。
// いずれのメソッドもエンティティの作成とユーザーの最終実行日時の更新を
// 同一トランザクションで行い、どちらか一方だけが反映されることはない。
type ActionRepository interface {
	// CreateShot はショットを作成し、last_post_atをatで更新する。
	CreateShot(ctx context.Context, shot *model.Shot, at time.Time) error

	// CreateLike はいいねを作成し、last_like_atをatで更新する。
	CreateLike(ctx context.Context, like *model.Like, at time.Time) error

	// CreateComment はコメントを作成し、last_comment_atをatで更新する。
	CreateComment(ctx context.Context, comment *model.Comment, at time.Time) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
