package service

import (
	"errors"

	"xplore/internal/models"
)

var errIncompleteRender = errors.New("render context requires depths, forest and engagement")

// renderContext is everything renderPost reads besides the post itself.
type renderContext struct {
	depths     map[uint]int
	forest     *Forest
	engagement Engagement
	maxDepth   int
}

func newRenderContext(depths map[uint]int, forest *Forest, eng Engagement, maxDepth int) (renderContext, error) {
	if depths == nil || forest == nil || eng.Counts == nil || eng.Liked == nil {
		return renderContext{}, errIncompleteRender
	}
	return renderContext{depths: depths, forest: forest, engagement: eng, maxDepth: maxDepth}, nil
}

// embeds reports whether posts rendered at level get their children inlined.
func (rc renderContext) embeds(level int) bool {
	return rc.maxDepth == Unbounded || level < rc.maxDepth
}

// renderPost maps a post and its loaded subtree to the wire shape. level is
// the distance from the post the render started at.
func renderPost(rc renderContext, p *models.Post, level int) models.PostResponse {
	resp := models.PostResponse{
		ID:              p.ID,
		UUID:            p.UUID,
		Content:         p.Content,
		ImageURLs:       append([]string{}, p.ImageURLs...),
		VideoURL:        p.VideoURL,
		MediaKind:       p.MediaKind,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		AuthorID:        p.AuthorID,
		AuthorUsername:  p.Author.Username,
		AuthorAvatarURL: p.Author.AvatarURL,
		ParentID:        p.ParentID,
		Comments:        []models.PostResponse{},
		CommentCount:    rc.forest.CountDescendants(p.ID),
		ShareCount:      p.ShareCount,
		LikeCount:       rc.engagement.LikeCount(p.ID),
		LikedByViewer:   rc.engagement.LikedByViewer(p.ID),
		Depth:           rc.depths[p.ID],
	}
	if !rc.embeds(level) {
		return resp
	}
	for _, child := range rc.forest.Children(p.ID) {
		resp.Comments = append(resp.Comments, renderPost(rc, child, level+1))
	}
	return resp
}

// visiblePosts lists the roots and every descendant renderPost will inline.
func visiblePosts(f *Forest, roots []*models.Post, maxDepth int) []*models.Post {
	out := make([]*models.Post, 0, len(roots))
	level := roots
	for depth := 0; len(level) > 0; depth++ {
		out = append(out, level...)
		if maxDepth != Unbounded && depth >= maxDepth {
			break
		}
		var next []*models.Post
		for _, p := range level {
			next = append(next, f.Children(p.ID)...)
		}
		level = next
	}
	return out
}
