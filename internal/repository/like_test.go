package repository

import (
	"context"
	"testing"
	"time"

	"xplore/internal/models"
	"xplore/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeRepository_LikeUsesOnConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "likes" .* ON CONFLICT DO NOTHING`).
		WithArgs(3, 9, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	created, err := repo.Like(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.False(t, created, "a conflicting insert returns no row")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikeRepository_LikeUnlikeIdempotent(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "liker")
	post := testutil.CreatePost(t, db, &models.Post{Content: "p", AuthorID: user.ID})

	created, err := repo.Like(ctx, user.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Like(ctx, user.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := repo.Exists(ctx, user.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	var rows int64
	require.NoError(t, db.Model(&models.Like{}).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	removed, err := repo.Unlike(ctx, user.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Unlike(ctx, user.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)
	_, err = repo.Like(ctx, user.ID, 9999)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestLikeRepository_CountByPostsCoversBatch(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	u1 := testutil.CreateUser(t, db, "u1")
	u2 := testutil.CreateUser(t, db, "u2")
	p1 := testutil.CreatePost(t, db, &models.Post{Content: "p1", AuthorID: u1.ID})
	p2 := testutil.CreatePost(t, db, &models.Post{Content: "p2", AuthorID: u1.ID})
	outside := testutil.CreatePost(t, db, &models.Post{Content: "outside", AuthorID: u1.ID})

	for _, pair := range [][2]uint{{u1.ID, p1.ID}, {u2.ID, p1.ID}, {u2.ID, outside.ID}} {
		_, err := repo.Like(ctx, pair[0], pair[1])
		require.NoError(t, err)
	}

	counts, err := repo.CountByPosts(ctx, []uint{p1.ID, p2.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{p1.ID: 2, p2.ID: 0}, counts)

	liked, err := repo.LikedPostIDs(ctx, u2.ID, []uint{p1.ID, p2.ID})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{p1.ID}, liked)

	empty, err := repo.CountByPosts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLikeRepository_ListLikedPostsNewestLikeFirst(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "fan")
	author := testutil.CreateUser(t, db, "creator")
	older := testutil.CreatePost(t, db, &models.Post{Content: "older", AuthorID: author.ID})
	newer := testutil.CreatePost(t, db, &models.Post{Content: "newer", AuthorID: author.ID})
	testutil.CreatePost(t, db, &models.Post{Content: "unliked", AuthorID: author.ID})

	now := time.Now().UTC()
	require.NoError(t, db.Create(&models.Like{UserID: user.ID, PostID: newer.ID, CreatedAt: now.Add(-time.Hour)}).Error)
	require.NoError(t, db.Create(&models.Like{UserID: user.ID, PostID: older.ID, CreatedAt: now}).Error)

	posts, total, err := repo.ListLikedPosts(ctx, user.ID, models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, posts, 2)
	assert.Equal(t, []uint{older.ID, newer.ID}, postIDs(posts))
	assert.Equal(t, "creator", posts[0].Author.Username)
}
