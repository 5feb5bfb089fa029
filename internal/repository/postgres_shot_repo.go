package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/oneshot/internal/model"
)

// PostgresShotRepo はPostgreSQLを使用したショット参照リポジトリ。
type PostgresShotRepo struct {
	db *sql.DB
}

// NewPostgresShotRepo はPostgresShotRepoを生成する。
func NewPostgresShotRepo(db *sql.DB) *PostgresShotRepo {
	return &PostgresShotRepo{db: db}
}

// FindByID は指定IDのショットを取得する。見つからない場合はnilを返す。
func (r *PostgresShotRepo) FindByID(ctx context.Context, id string) (*model.Shot, error) {
	shot := &model.Shot{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, caption, image_url, created_at FROM shots WHERE id = $1`,
		id,
	).Scan(&shot.ID, &shot.UserID, &shot.Caption, &shot.ImageURL, &shot.CreatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shot by ID: %w", err)
	}
	return shot, nil
}

// ListRecent は新しい順にショットを取得し、投稿者名・いいね数・コメントを結合して返す。
// コメントはショットごとに古い順で並ぶ。
func (r *PostgresShotRepo) ListRecent(ctx context.Context, limit int) ([]model.ShotView, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.caption, s.image_url, s.created_at, u.username,
		        (SELECT count(*) FROM likes l WHERE l.shot_id = s.id)
		 FROM shots s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shots: %w", err)
	}
	defer rows.Close()

	shots := []model.ShotView{}
	index := make(map[string]int)
	for rows.Next() {
		var v model.ShotView
		if err := rows.Scan(&v.ID, &v.UserID, &v.Caption, &v.ImageURL, &v.CreatedAt, &v.Username, &v.LikeCount); err != nil {
			return nil, fmt.Errorf("failed to scan shot: %w", err)
		}
		v.Comments = []model.CommentView{}
		index[v.ID] = len(shots)
		shots = append(shots, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shots: %w", err)
	}

	if len(shots) == 0 {
		return shots, nil
	}

	ids := make([]string, len(shots))
	for i, s := range shots {
		ids[i] = s.ID
	}

	crows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.shot_id, c.content, c.created_at, u.username
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.shot_id = ANY($1)
		 ORDER BY c.created_at ASC`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var c model.CommentView
		if err := crows.Scan(&c.ID, &c.UserID, &c.ShotID, &c.Content, &c.CreatedAt, &c.Username); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if i, ok := index[c.ShotID]; ok {
			shots[i].Comments = append(shots[i].Comments, c)
		}
	}
	if err := crows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return shots, nil
}

// compile-time interface check
var _ ShotRepository = (*PostgresShotRepo)(nil)
