package seed

import (
	"context"
	"fmt"
	"log/slog"

	"xplore/internal/middleware"
	"xplore/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summary counts what one run inserted.
type Summary struct {
	Users    int
	Follows  int
	Posts    int
	Comments int
	Likes    int
}

// Seeder fills the database according to a preset.
type Seeder struct {
	db      *gorm.DB
	factory *Factory
}

// NewSeeder creates a seeder. A non-zero seed makes runs reproducible.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	return &Seeder{db: db, factory: NewFactory(db, seed)}
}

func onConflictDoNothing() clause.OnConflict {
	return clause.OnConflict{DoNothing: true}
}

// ClearAll removes every row the content core owns, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	middleware.Logger.InfoContext(ctx, "clearing existing data")
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Post{}, &models.User{}} {
		if err := db.Delete(model).Error; err != nil {
			return fmt.Errorf("clear %T: %w", model, err)
		}
	}
	return nil
}

// Run generates the data set described by p.
func (s *Seeder) Run(ctx context.Context, p Preset) (Summary, error) {
	var sum Summary
	if err := p.Validate(); err != nil {
		return sum, err
	}
	f := s.factory
	f.db = s.db.WithContext(ctx)

	users := make([]*models.User, 0, p.Users)
	for i := 0; i < p.Users; i++ {
		u, err := f.CreateUser(ctx)
		if err != nil {
			return sum, fmt.Errorf("create user: %w", err)
		}
		users = append(users, u)
	}
	sum.Users = len(users)

	follows := s.followMesh(users, p.FollowsPerUser)
	if err := f.CreateFollows(follows); err != nil {
		return sum, fmt.Errorf("create follows: %w", err)
	}
	sum.Follows = len(follows)

	var roots []*models.Post
	for _, u := range users {
		for i := 0; i < p.PostsPerUser; i++ {
			kind := models.MediaKindTextImage
			if f.rng.Float64() < p.ShortsRatio {
				kind = models.MediaKindVideoShort
			}
			roots = append(roots, f.BuildPost(u, kind, p.MaxDays))
		}
	}
	if err := f.CreatePosts(roots); err != nil {
		return sum, fmt.Errorf("create posts: %w", err)
	}
	sum.Posts = len(roots)

	all := append([]*models.Post(nil), roots...)
	level := roots
	for depth := 1; depth <= p.MaxCommentDepth && len(level) > 0; depth++ {
		var next []*models.Post
		for _, parent := range level {
			// replies thin out with depth
			n := f.rng.Intn(p.CommentsPerPost/depth + 1)
			for i := 0; i < n; i++ {
				next = append(next, f.BuildComment(users[f.rng.Intn(len(users))], parent))
			}
		}
		if err := f.CreatePosts(next); err != nil {
			return sum, fmt.Errorf("create comments at depth %d: %w", depth, err)
		}
		sum.Comments += len(next)
		all = append(all, next...)
		level = next
	}

	likes := s.likes(users, all, p.LikesPerPost)
	if err := f.CreateLikes(likes); err != nil {
		return sum, fmt.Errorf("create likes: %w", err)
	}
	sum.Likes = len(likes)

	middleware.Logger.InfoContext(ctx, "seeding complete",
		slog.String("preset", p.Name),
		slog.Int("users", sum.Users),
		slog.Int("follows", sum.Follows),
		slog.Int("posts", sum.Posts),
		slog.Int("comments", sum.Comments),
		slog.Int("likes", sum.Likes),
	)
	return sum, nil
}

// followMesh picks perUser distinct followees for each user.
func (s *Seeder) followMesh(users []*models.User, perUser int) []models.Follow {
	if len(users) < 2 || perUser <= 0 {
		return nil
	}
	perUser = min(perUser, len(users)-1)
	var out []models.Follow
	for i, u := range users {
		picked := 0
		for _, j := range s.factory.rng.Perm(len(users)) {
			if picked == perUser {
				break
			}
			if j == i {
				continue
			}
			out = append(out, models.Follow{FollowerID: u.ID, FolloweeID: users[j].ID})
			picked++
		}
	}
	return out
}

// likes picks up to perPost distinct likers for each post.
func (s *Seeder) likes(users []*models.User, posts []*models.Post, perPost int) []models.Like {
	if perPost <= 0 {
		return nil
	}
	var out []models.Like
	for _, p := range posts {
		n := s.factory.rng.Intn(min(perPost, len(users)) + 1)
		for _, j := range s.factory.rng.Perm(len(users))[:n] {
			out = append(out, models.Like{UserID: users[j].ID, PostID: p.ID})
		}
	}
	return out
}
