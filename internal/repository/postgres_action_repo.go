package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/oneshot/internal/model"
)

// PostgresActionRepo はPostgreSQLを使用した1日1回アクションのリポジトリ。
//
// 最終実行日時の更新は「未設定、または記録済みのUTC日付が今回より前」の場合のみ行う条件付きUPDATEで、
// 更新行数が0なら同日に別リクエストが先に記録したとみなしてロールバックする。
// これにより最終実行日時は単調に進み、同一UTC日付での二重実行も防がれる。
type PostgresActionRepo struct {
	db TxBeginner
}

// NewPostgresActionRepo はPostgresActionRepoを生成する。
func NewPostgresActionRepo(db TxBeginner) *PostgresActionRepo {
	return &PostgresActionRepo{db: db}
}

// CreateShot はショットを作成し、last_post_atをatで更新する。
func (r *PostgresActionRepo) CreateShot(ctx context.Context, shot *model.Shot, at time.Time) error {
	return r.withStamp(ctx, model.ActionPost, shot.UserID, at, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO shots (id, user_id, caption, image_url, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			shot.ID, shot.UserID, shot.Caption, shot.ImageURL, shot.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert shot: %w", err)
		}
		return nil
	})
}

// CreateLike はいいねを作成し、last_like_atをatで更新する。
func (r *PostgresActionRepo) CreateLike(ctx context.Context, like *model.Like, at time.Time) error {
	return r.withStamp(ctx, model.ActionLike, like.UserID, at, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO likes (id, user_id, shot_id, created_at)
			 VALUES ($1, $2, $3, $4)`,
			like.ID, like.UserID, like.ShotID, like.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert like: %w", err)
		}
		return nil
	})
}

// CreateComment はコメントを作成し、last_comment_atをatで更新する。
func (r *PostgresActionRepo) CreateComment(ctx context.Context, comment *model.Comment, at time.Time) error {
	return r.withStamp(ctx, model.ActionComment, comment.UserID, at, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO comments (id, user_id, shot_id, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			comment.ID, comment.UserID, comment.ShotID, comment.Content, comment.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		return nil
	})
}

// withStamp はトランザクション内で最終実行日時を更新してからinsertを実行する。
// ユーザー行を先に更新することで、同一ユーザーの並行リクエストは行ロックで直列化される。
func (r *PostgresActionRepo) withStamp(ctx context.Context, action model.ActionType, userID string, at time.Time, insert func(tx *sql.Tx) error) error {
	column, ok := action.Column()
	if !ok {
		return fmt.Errorf("unknown action type: %q", action)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE users SET `+column+` = $1
		 WHERE id = $2
		   AND (`+column+` IS NULL
		        OR (`+column+` AT TIME ZONE 'UTC')::date < ($1::timestamptz AT TIME ZONE 'UTC')::date)`,
		at.UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to stamp %s: %w", column, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrActionAlreadyStamped
	}

	if err := insert(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ActionRepository = (*PostgresActionRepo)(nil)
