package repository

import (
	"context"
	"time"

	"xplore/internal/cache"
	"xplore/internal/models"
	"xplore/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository persists directed follow edges.
type FollowRepository interface {
	FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error)
	FollowingAmong(ctx context.Context, followerID uint, candidateIDs []uint) ([]uint, error)
	Follow(ctx context.Context, followerID, followeeID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error)
}

type followRepository struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewFollowRepository creates a follow repository whose followee sets are
// cached in Redis for ttl. A non-positive ttl uses cache.FolloweesTTL.
func NewFollowRepository(db *gorm.DB, ttl time.Duration) FollowRepository {
	if ttl <= 0 {
		ttl = cache.FolloweesTTL
	}
	return &followRepository{db: db, ttl: ttl}
}

// FolloweeIDs returns every account followerID follows.
func (r *followRepository) FolloweeIDs(ctx context.Context, followerID uint) ([]uint, error) {
	var ids []uint
	err := cache.Aside(ctx, cache.FolloweesKey(followerID), &ids, r.ttl, func() error {
		defer observability.TrackQuery("select", "follows")()
		return r.db.WithContext(ctx).
			Model(&models.Follow{}).
			Where("follower_id = ?", followerID).
			Order("followee_id").
			Pluck("followee_id", &ids).Error
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FollowingAmong returns the subset of candidateIDs that followerID follows.
func (r *followRepository) FollowingAmong(ctx context.Context, followerID uint, candidateIDs []uint) ([]uint, error) {
	if len(candidateIDs) == 0 {
		return []uint{}, nil
	}
	defer observability.TrackQuery("select", "follows")()
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id IN ?", followerID, candidateIDs).
		Pluck("followee_id", &ids).Error
	return ids, err
}

// Follow creates the edge and reports whether it did not exist before.
func (r *followRepository) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	defer observability.TrackQuery("insert", "follows")()
	edge := models.Follow{FollowerID: followerID, FolloweeID: followeeID}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&edge)
	if res.Error != nil {
		return false, res.Error
	}
	cache.InvalidateFollowees(ctx, followerID)
	return res.RowsAffected > 0, nil
}

// Unfollow removes the edge and reports whether one existed.
func (r *followRepository) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	defer observability.TrackQuery("delete", "follows")()
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	cache.InvalidateFollowees(ctx, followerID)
	return res.RowsAffected > 0, nil
}
