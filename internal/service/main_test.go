package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"xplore/internal/featureflags"
	"xplore/internal/models"
	"xplore/internal/repository"
	"xplore/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// harness wires the services against a private sqlite database and in-memory
// collaborators.
type harness struct {
	db      *gorm.DB
	posts   *countingPosts
	likes   repository.LikeRepository
	follows repository.FollowRepository
	users   repository.UserRepository
	blobs   *testutil.BlobStoreStub
	notes   *testutil.NotifierStub
	media   *MediaIngest
	ranker  *FeedRanker
	svc     *PostService
	follow  *FollowService
	now     time.Time
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	flags *featureflags.Manager
}

func withFlags(raw string) harnessOption {
	return func(c *harnessConfig) { c.flags = featureflags.NewManager(raw) }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	var cfg harnessConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	db := testutil.NewTestDB(t)
	h := &harness{
		db:      db,
		posts:   &countingPosts{PostRepository: repository.NewPostRepository(db)},
		likes:   repository.NewLikeRepository(db),
		follows: repository.NewFollowRepository(db, time.Minute),
		users:   repository.NewUserRepository(db),
		blobs:   testutil.NewBlobStoreStub(),
		notes:   &testutil.NotifierStub{},
		now:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h.media = NewMediaIngest(h.blobs, NewAdmissionGate(0), cfg.flags, MediaConfig{})
	h.ranker = NewFeedRanker(h.posts, h.follows,
		WithClock(func() time.Time { return h.now }),
		WithFlags(cfg.flags),
	)
	h.svc = NewPostService(h.posts, h.likes, h.follows, h.users, h.ranker, h.media, h.notes)
	h.follow = NewFollowService(h.follows, h.users, h.notes)
	return h
}

func (h *harness) user(t *testing.T, name string) *models.User {
	t.Helper()
	return testutil.CreateUser(t, h.db, name)
}

// post inserts a top-level text post created age before h.now.
func (h *harness) post(t *testing.T, author *models.User, content string, age time.Duration) *models.Post {
	t.Helper()
	return testutil.CreatePost(t, h.db, &models.Post{
		Content:   content,
		AuthorID:  author.ID,
		Depth:     models.IntPtr(0),
		CreatedAt: h.now.Add(-age),
	})
}

func (h *harness) followEdge(t *testing.T, follower, followee *models.User) {
	t.Helper()
	_, err := h.follows.Follow(context.Background(), follower.ID, followee.ID)
	require.NoError(t, err)
}

func (h *harness) countPosts(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Post{}).Count(&n).Error)
	return n
}

func (h *harness) countLikes(t *testing.T, postID uint) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Like{}).Where("post_id = ?", postID).Count(&n).Error)
	return n
}

// countingPosts records how often the per-item and per-level calls run.
type countingPosts struct {
	repository.PostRepository
	getByID      atomic.Int32
	listChildren atomic.Int32
}

func (c *countingPosts) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	c.getByID.Add(1)
	return c.PostRepository.GetByID(ctx, id)
}

func (c *countingPosts) ListChildren(ctx context.Context, parentIDs []uint) ([]*models.Post, error) {
	c.listChildren.Add(1)
	return c.PostRepository.ListChildren(ctx, parentIDs)
}

func (c *countingPosts) reset() {
	c.getByID.Store(0)
	c.listChildren.Store(0)
}

func ids(posts []*models.Post) []uint {
	out := make([]uint, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func responseIDs(items []models.PostResponse) []uint {
	out := make([]uint, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
