package service

import (
	"context"

	"xplore/internal/models"
	"xplore/internal/repository"
)

// Engagement holds like data for one batch of posts.
type Engagement struct {
	Counts map[uint]int64
	Liked  map[uint]bool
}

// LikeCount returns the like total of a post, 0 when it is not in the batch.
func (e Engagement) LikeCount(postID uint) int64 {
	return e.Counts[postID]
}

// LikedByViewer reports whether the viewer liked the post.
func (e Engagement) LikedByViewer(postID uint) bool {
	return e.Liked[postID]
}

// EngagementAggregator computes like counts and viewer like status for a
// batch of posts with a constant number of store calls.
type EngagementAggregator struct {
	likes repository.LikeRepository
}

func NewEngagementAggregator(likes repository.LikeRepository) *EngagementAggregator {
	return &EngagementAggregator{likes: likes}
}

// Aggregate answers for exactly the ids of posts. viewerID 0 is anonymous and
// yields an empty liked set.
func (a *EngagementAggregator) Aggregate(ctx context.Context, posts []*models.Post, viewerID uint) (Engagement, error) {
	ids := postIDs(posts)
	out := Engagement{
		Counts: make(map[uint]int64, len(ids)),
		Liked:  make(map[uint]bool),
	}
	if len(ids) == 0 {
		return out, nil
	}

	counts, err := a.likes.CountByPosts(ctx, ids)
	if err != nil {
		return Engagement{}, err
	}
	for _, id := range ids {
		out.Counts[id] = counts[id]
	}

	if viewerID == 0 {
		return out, nil
	}
	liked, err := a.likes.LikedPostIDs(ctx, viewerID, ids)
	if err != nil {
		return Engagement{}, err
	}
	for _, id := range liked {
		out.Liked[id] = true
	}
	return out, nil
}

// postIDs returns the distinct ids of posts in input order.
func postIDs(posts []*models.Post) []uint {
	ids := make([]uint, 0, len(posts))
	seen := make(map[uint]struct{}, len(posts))
	for _, p := range posts {
		if p == nil {
			continue
		}
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		ids = append(ids, p.ID)
	}
	return ids
}
