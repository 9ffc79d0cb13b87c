package seed

import (
	"context"
	"strings"
	"testing"

	"xplore/internal/models"
	"xplore/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPresets_Builtins(t *testing.T) {
	t.Parallel()
	presets, err := LoadPresets("")
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "populated", "tiny"}, PresetNames(presets))
	assert.Equal(t, "tiny", presets["tiny"].Name)
	assert.Equal(t, 5, presets["tiny"].Users)
}

func TestParsePresets_Rejects(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"unknown field": "presets:\n  x:\n    users: 1\n    groups: 3\n",
		"no users":      "presets:\n  x:\n    users: 0\n",
		"bad ratio":     "presets:\n  x:\n    users: 2\n    shorts_ratio: 1.5\n",
		"no depth":      "presets:\n  x:\n    users: 2\n    comments_per_post: 2\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePresets(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestSeeder_RunKeepsInvariants(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	preset := Preset{
		Name:            "test",
		Users:           6,
		PostsPerUser:    3,
		ShortsRatio:     0.3,
		CommentsPerPost: 4,
		MaxCommentDepth: 3,
		LikesPerPost:    4,
		FollowsPerUser:  2,
		MaxDays:         2,
	}

	sum, err := NewSeeder(db, 42).Run(ctx, preset)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.Users)
	assert.Equal(t, 12, sum.Follows)
	assert.Equal(t, 18, sum.Posts)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	assert.Len(t, posts, sum.Posts+sum.Comments)

	byID := make(map[uint]models.Post, len(posts))
	for _, p := range posts {
		byID[p.ID] = p
	}
	for _, p := range posts {
		require.NotNil(t, p.Depth)
		if p.ParentID == nil {
			assert.Equal(t, 0, *p.Depth)
			continue
		}
		parent, ok := byID[*p.ParentID]
		require.True(t, ok, "comment %d has a stored parent", p.ID)
		assert.Equal(t, *parent.Depth+1, *p.Depth)
		assert.LessOrEqual(t, *p.Depth, preset.MaxCommentDepth)
		assert.False(t, p.CreatedAt.Before(parent.CreatedAt))
		assert.Equal(t, models.MediaKindTextImage, p.MediaKind)
	}
	for _, p := range posts {
		if p.MediaKind == models.MediaKindVideoShort {
			assert.NotNil(t, p.VideoURL)
			assert.Empty(t, p.ImageURLs)
		}
	}

	var likes, follows int64
	require.NoError(t, db.Model(&models.Like{}).Count(&likes).Error)
	require.NoError(t, db.Model(&models.Follow{}).Count(&follows).Error)
	assert.Equal(t, int64(sum.Likes), likes)
	assert.Equal(t, int64(sum.Follows), follows)

	var selfFollows int64
	require.NoError(t, db.Model(&models.Follow{}).Where("follower_id = followee_id").Count(&selfFollows).Error)
	assert.Zero(t, selfFollows)
}

func TestSeeder_ClearAll(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	s := NewSeeder(db, 7)

	_, err := s.Run(ctx, Preset{Users: 3, PostsPerUser: 1, LikesPerPost: 2, FollowsPerUser: 1})
	require.NoError(t, err)
	require.NoError(t, s.ClearAll(ctx))

	for _, model := range []any{&models.Like{}, &models.Follow{}, &models.Post{}, &models.User{}} {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		assert.Zero(t, n, "%T", model)
	}
}
