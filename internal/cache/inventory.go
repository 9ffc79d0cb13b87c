package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix      = "user:%d"
	FolloweesKeyPrefix = "user:%d:followees"
)

const (
	UserTTL = 5 * time.Minute
	// FolloweesTTL is the fallback when no TTL is configured.
	FolloweesTTL = time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func FolloweesKey(userID uint) string {
	return fmt.Sprintf(FolloweesKeyPrefix, userID)
}

// Invalidate drops key; a no-op without Redis.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidateFollowees must run after every follow or unfollow by userID.
func InvalidateFollowees(ctx context.Context, userID uint) {
	Invalidate(ctx, FolloweesKey(userID))
}
