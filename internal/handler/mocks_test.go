package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/oneshot/internal/action"
	"github.com/hitoshi/oneshot/internal/auth"
	"github.com/hitoshi/oneshot/internal/model"
	"github.com/hitoshi/oneshot/internal/repository"
	"github.com/hitoshi/oneshot/internal/user"
)

// --- サービスのモック ---

type mockAuthService struct {
	registerFn func(ctx context.Context, username, password string) (*auth.Session, error)
	loginFn    func(ctx context.Context, username, password string) (*auth.Session, error)
	logoutFn   func(ctx context.Context, raw string) error
}

func (m *mockAuthService) Register(ctx context.Context, username, password string) (*auth.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password string) (*auth.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, raw string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, raw)
	}
	return nil
}

type mockProfileService struct {
	profileFn func(ctx context.Context, userID string) (*user.Profile, error)
}

func (m *mockProfileService) Profile(ctx context.Context, userID string) (*user.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return nil, model.NewUserNotFoundError()
}

type mockActionService struct {
	postFn    func(ctx context.Context, userID string, in action.PostInput) (*model.Shot, error)
	likeFn    func(ctx context.Context, userID, shotID string) (*model.Like, error)
	commentFn func(ctx context.Context, userID, shotID, content string) (*model.Comment, error)
}

func (m *mockActionService) Post(ctx context.Context, userID string, in action.PostInput) (*model.Shot, error) {
	if m.postFn != nil {
		return m.postFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockActionService) Like(ctx context.Context, userID, shotID string) (*model.Like, error) {
	if m.likeFn != nil {
		return m.likeFn(ctx, userID, shotID)
	}
	return nil, nil
}

func (m *mockActionService) Comment(ctx context.Context, userID, shotID, content string) (*model.Comment, error) {
	if m.commentFn != nil {
		return m.commentFn(ctx, userID, shotID, content)
	}
	return nil, nil
}

type mockShotService struct {
	listRecentFn func(ctx context.Context, limit int) ([]model.ShotView, error)
}

func (m *mockShotService) ListRecent(ctx context.Context, limit int) ([]model.ShotView, error) {
	if m.listRecentFn != nil {
		return m.listRecentFn(ctx, limit)
	}
	return nil, nil
}

// --- 統合テスト用のメモリ上リポジトリ ---

// memRepo はユーザー・ショット・いいね・コメントを保持し、
// repository.ActionRepositoryの「同一UTC日付なら更新しない」条件を再現する。
type memRepo struct {
	mu       sync.Mutex
	users    map[string]*model.User
	shots    map[string]*model.Shot
	likes    map[string]int
	comments map[string][]model.CommentView
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]*model.User),
		shots:    make(map[string]*model.Shot),
		likes:    make(map[string]int),
		comments: make(map[string][]model.CommentView),
	}
}

type memUsers struct{ *memRepo }
type memShots struct{ *memRepo }
type memActions struct{ *memRepo }

func (r memUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r memUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memUsers) Create(_ context.Context, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return repository.ErrUsernameTaken
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r memShots) FindByID(_ context.Context, id string) (*model.Shot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.shots[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r memShots) ListRecent(_ context.Context, limit int) ([]model.ShotView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]model.ShotView, 0, len(r.shots))
	for _, s := range r.shots {
		comments := append([]model.CommentView{}, r.comments[s.ID]...)
		views = append(views, model.ShotView{
			Shot:      *s,
			Username:  r.users[s.UserID].Username,
			LikeCount: r.likes[s.ID],
			Comments:  comments,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].CreatedAt.After(views[j].CreatedAt) })
	if len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

// stamp は最終実行日時がatと同じUTC日付でなければ更新する。
func (r memActions) stamp(userID string, kind model.ActionType, at time.Time) error {
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrActionAlreadyStamped
	}
	last := u.LastActionAt(kind)
	if last != nil && last.UTC().Format(time.DateOnly) == at.UTC().Format(time.DateOnly) {
		return repository.ErrActionAlreadyStamped
	}
	t := at
	switch kind {
	case model.ActionPost:
		u.LastPostAt = &t
	case model.ActionLike:
		u.LastLikeAt = &t
	case model.ActionComment:
		u.LastCommentAt = &t
	}
	return nil
}

func (r memActions) CreateShot(_ context.Context, shot *model.Shot, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stamp(shot.UserID, model.ActionPost, at); err != nil {
		return err
	}
	cp := *shot
	r.shots[shot.ID] = &cp
	return nil
}

func (r memActions) CreateLike(_ context.Context, like *model.Like, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stamp(like.UserID, model.ActionLike, at); err != nil {
		return err
	}
	r.likes[like.ShotID]++
	return nil
}

func (r memActions) CreateComment(_ context.Context, c *model.Comment, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stamp(c.UserID, model.ActionComment, at); err != nil {
		return err
	}
	r.comments[c.ShotID] = append(r.comments[c.ShotID], model.CommentView{
		Comment:  *c,
		Username: r.users[c.UserID].Username,
	})
	return nil
}

// compile-time interface check
var (
	_ repository.UserRepository   = memUsers{}
	_ repository.ShotRepository   = memShots{}
	_ repository.ActionRepository = memActions{}
)
