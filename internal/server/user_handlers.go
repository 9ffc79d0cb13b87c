package server

import (
	"context"

	"xplore/internal/models"
	"xplore/internal/service"

	"github.com/gofiber/fiber/v2"
)

type likeFunc func(ctx context.Context, postID, userID uint) (*models.LikeResult, error)

type followFunc func(ctx context.Context, followerID, followeeID uint) (*service.FollowResult, error)

// GetUserPosts handles GET /api/users/:id/posts
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.posts.ListByAuthor(c.UserContext(), userID, viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetUserLikes handles GET /api/users/:id/likes
func (s *Server) GetUserLikes(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	page, err := s.posts.ListLiked(c.UserContext(), userID, viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// FollowUser handles PUT /api/users/:id/follow
func (s *Server) FollowUser(c *fiber.Ctx) error {
	return s.followAction(c, s.follows.Follow)
}

// UnfollowUser handles DELETE /api/users/:id/follow
func (s *Server) UnfollowUser(c *fiber.Ctx) error {
	return s.followAction(c, s.follows.Unfollow)
}

func (s *Server) followAction(c *fiber.Ctx, action followFunc) error {
	targetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := action(c.UserContext(), viewerID(c), targetID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// GetFollowingStatus handles GET /api/users/following-status?ids=1,2,3
func (s *Server) GetFollowingStatus(c *fiber.Ctx) error {
	ids, err := parseIDList(c.Query("ids"))
	if err != nil {
		return respondError(c, err)
	}
	status, err := s.follows.FollowStatus(c.UserContext(), viewerID(c), ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"following": status})
}
