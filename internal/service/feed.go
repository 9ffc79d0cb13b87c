package service

import (
	"context"
	"sort"
	"time"

	"xplore/internal/featureflags"
	"xplore/internal/models"
	"xplore/internal/observability"
	"xplore/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// DefaultFreshWindow is how long a followee's post stays boosted.
const DefaultFreshWindow = 24 * time.Hour

// FeedRanker selects one page of the home feed.
type FeedRanker struct {
	posts   repository.PostRepository
	follows repository.FollowRepository
	flags   *featureflags.Manager
	now     func() time.Time
	window  time.Duration
}

// FeedOption customizes a FeedRanker.
type FeedOption func(*FeedRanker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) FeedOption {
	return func(r *FeedRanker) { r.now = now }
}

// WithFreshWindow sets the boost window. Non-positive values are ignored.
func WithFreshWindow(d time.Duration) FeedOption {
	return func(r *FeedRanker) {
		if d > 0 {
			r.window = d
		}
	}
}

// WithFlags attaches the feature-flag manager.
func WithFlags(m *featureflags.Manager) FeedOption {
	return func(r *FeedRanker) { r.flags = m }
}

func NewFeedRanker(posts repository.PostRepository, follows repository.FollowRepository, opts ...FeedOption) *FeedRanker {
	r := &FeedRanker{
		posts:   posts,
		follows: follows,
		now:     time.Now,
		window:  DefaultFreshWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank returns the posts of the requested page in ranking order together with
// the total number of rankable posts. Fresh posts by accounts the viewer
// follows come first; everything else is newest first. viewerID 0 is anonymous.
func (r *FeedRanker) Rank(ctx context.Context, viewerID uint, page models.PageRequest) (posts []*models.Post, total int64, err error) {
	span, ctx := observability.NewSpan(ctx, "feed.rank", attribute.Int("page", page.Page))
	defer span.Finish(&err)

	mode := "ranked"
	start := time.Now()
	defer func() {
		observability.FeedRankLatency.WithLabelValues(mode).Observe(time.Since(start).Seconds())
	}()

	var followees []uint
	if viewerID != 0 && !r.flags.Enabled(featureflags.RecencyFeed, viewerID) {
		followees, err = r.follows.FolloweeIDs(ctx, viewerID)
		if err != nil {
			return nil, 0, err
		}
	}
	if len(followees) == 0 {
		mode = "recency"
	}
	span.AddAttributes(attribute.String("feed.mode", mode), attribute.Int("feed.followees", len(followees)))

	since := r.now().UTC().Add(-r.window)
	ids, total, err := r.posts.RankedFeedIDs(ctx, followees, since, page)
	if err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return []*models.Post{}, total, nil
	}

	loaded, err := r.posts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	return orderByIDs(loaded, ids), total, nil
}

// orderByIDs arranges posts in the order of ids, dropping rows that vanished
// between the two queries.
func orderByIDs(posts []*models.Post, ids []uint) []*models.Post {
	rank := make(map[uint]int, len(ids))
	for i, id := range ids {
		rank[id] = i
	}
	out := make([]*models.Post, 0, len(posts))
	for _, p := range posts {
		if _, ok := rank[p.ID]; ok {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return rank[out[i].ID] < rank[out[j].ID] })
	return out
}
