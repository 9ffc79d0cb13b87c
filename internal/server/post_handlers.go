package server

import (
	"xplore/internal/models"
	"xplore/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/posts/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	page, err := s.posts.Feed(c.UserContext(), viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPosts handles GET /api/posts
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.posts.ListAll(c.UserContext(), viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetShorts handles GET /api/posts/shorts
func (s *Server) GetShorts(c *fiber.Ctx) error {
	page, err := s.posts.ListShorts(c.UserContext(), viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetFollowing handles GET /api/posts/following
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	page, err := s.posts.ListFollowing(c.UserContext(), viewerID(c), parsePage(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.posts.GetPost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// GetPostByUUID handles GET /api/posts/uuid/:uuid
func (s *Server) GetPostByUUID(c *fiber.Ctx) error {
	post, err := s.posts.GetPostByUUID(c.UserContext(), c.Params("uuid"), viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts
func (s *Server) CreatePost(c *fiber.Ctx) error {
	content, media, done, err := parseContentRequest(c)
	defer done()
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.posts.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: viewerID(c),
		Content:  content,
		Media:    media,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// CreateComment handles POST /api/posts/:id/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	parentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	content, media, done, err := parseContentRequest(c)
	defer done()
	if err != nil {
		return respondError(c, err)
	}

	comment, err := s.posts.AddComment(c.UserContext(), service.AddCommentInput{
		AuthorID: viewerID(c),
		ParentID: parentID,
		Content:  content,
		Media:    media,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// updatePostRequest is the JSON body of PUT /api/posts/:id. An absent
// retainedImageUrls keeps every image; an empty array removes them all.
type updatePostRequest struct {
	Content           *string  `json:"content"`
	RetainedImageURLs []string `json:"retainedImageUrls"`
	NewImages         []string `json:"newImages"`
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req updatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, models.NewValidationError("Invalid request body"))
	}
	if len(req.NewImages) > maxImagesPerPost {
		return respondError(c, tooManyImages())
	}

	post, err := s.posts.UpdatePost(c.UserContext(), service.UpdatePostInput{
		PostID:            id,
		RequesterID:       viewerID(c),
		Content:           req.Content,
		RetainedImageURLs: req.RetainedImageURLs,
		NewImages:         req.NewImages,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	removed, err := s.posts.DeletePost(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

// ToggleLike handles POST /api/posts/:id/like/toggle
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	return s.likeAction(c, s.posts.ToggleLike)
}

// LikePost handles PUT /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.likeAction(c, s.posts.Like)
}

// UnlikePost handles DELETE /api/posts/:id/like
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.likeAction(c, s.posts.Unlike)
}

func (s *Server) likeAction(c *fiber.Ctx, action likeFunc) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	res, err := action(c.UserContext(), id, viewerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(res)
}

// SharePost handles POST /api/posts/:id/share
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.posts.IncrementShareCount(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
