package server

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"xplore/internal/models"
	"xplore/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePost_JSON(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")

	resp := env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{
		"content": "hello",
		"images":  []string{testutil.TinyPNGBase64(t, 2, 2)},
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	post := decode[models.PostResponse](t, resp)
	assert.Equal(t, "hello", post.Content)
	assert.Equal(t, models.MediaKindTextImage, post.MediaKind)
	assert.Equal(t, []string{"https://blobs.test/image/png/1"}, post.ImageURLs)
	assert.Equal(t, ann.ID, post.AuthorID)
	assert.Equal(t, "ann", post.AuthorUsername)
	assert.NotEmpty(t, post.UUID)
	assert.Equal(t, 0, post.Depth)
	assert.Empty(t, post.Comments)
}

func TestCreatePost_RequiresAuth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/posts", nil, fiber.Map{"content": "hi"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthorized, decode[models.ErrorResponse](t, resp).Code)
}

func TestCreatePost_Validation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")

	tests := []struct {
		name string
		body any
	}{
		{"empty", fiber.Map{"content": "   "}},
		{"bad image", fiber.Map{"images": []string{"bm90IGFuIGltYWdl"}}},
		{"too many images", fiber.Map{"content": "x", "images": make([]string, maxImagesPerPost+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/posts", ann, tt.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, resp).Code)
		})
	}
	assert.Empty(t, env.blobs.Objects())
}

func TestCreatePost_UploadFailureIs502(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	env.blobs.UploadErr = testutil.FailUpload(1)

	resp := env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{
		"content": "x",
		"images":  []string{testutil.TinyPNGBase64(t, 2, 2)},
	})
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, models.CodeMediaUploadFailed, decode[models.ErrorResponse](t, resp).Code)

	var count int64
	require.NoError(t, env.db.Model(&models.Post{}).Count(&count).Error)
	assert.Zero(t, count)
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files func(w *multipart.Writer)) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if files != nil {
		files(w)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func filePart(t *testing.T, w *multipart.Writer, field, name, contentType string, data []byte) {
	t.Helper()
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
}

func TestCreatePost_Multipart(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")

	t.Run("image files", func(t *testing.T) {
		req := multipartRequest(t, "/api/posts", map[string]string{"content": "pics"}, func(w *multipart.Writer) {
			filePart(t, w, "images", "a.png", "image/png", testutil.TinyPNG(t, 3, 3))
			filePart(t, w, "images", "b.png", "image/png", testutil.TinyPNG(t, 3, 3))
		})
		resp := env.send(t, req, ann)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		post := decode[models.PostResponse](t, resp)
		assert.Equal(t, "pics", post.Content)
		assert.Len(t, post.ImageURLs, 2)
		assert.Nil(t, post.VideoURL)
	})

	t.Run("video", func(t *testing.T) {
		req := multipartRequest(t, "/api/posts", nil, func(w *multipart.Writer) {
			filePart(t, w, "video", "clip.mp4", "video/mp4", []byte("frames"))
		})
		resp := env.send(t, req, ann)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)

		post := decode[models.PostResponse](t, resp)
		assert.Equal(t, models.MediaKindVideoShort, post.MediaKind)
		require.NotNil(t, post.VideoURL)
		assert.True(t, env.blobs.Has(*post.VideoURL))
		assert.Empty(t, post.ImageURLs)
	})
}

func TestGetPost_Errors(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/posts/abc", nil, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid ID", decode[models.ErrorResponse](t, resp).Error)

	resp = env.do(t, http.MethodGet, "/api/posts/404", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.CodeNotFound, decode[models.ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodGet, "/api/posts/uuid/missing", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCommentThread(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	ben := env.user(t, "ben")

	root := decode[models.PostResponse](t, env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{"content": "root"}))

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", root.ID), ben, fiber.Map{"content": "first"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	first := decode[models.PostResponse](t, resp)
	assert.Equal(t, 1, first.Depth)
	require.NotNil(t, first.ParentID)
	assert.Equal(t, root.ID, *first.ParentID)

	resp = env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", first.ID), ann, fiber.Map{"content": "second"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, 2, decode[models.PostResponse](t, resp).Depth)

	detail := decode[models.PostResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", root.ID), nil, nil))
	assert.Equal(t, 2, detail.CommentCount)
	require.Len(t, detail.Comments, 1)
	require.Len(t, detail.Comments[0].Comments, 1)
	assert.Equal(t, "second", detail.Comments[0].Comments[0].Content)

	byUUID := decode[models.PostResponse](t, env.do(t, http.MethodGet, "/api/posts/uuid/"+root.UUID, nil, nil))
	assert.Equal(t, root.ID, byUUID.ID)

	comments := env.notes.OfType(models.NotificationNewComment)
	require.Len(t, comments, 2)
	assert.Equal(t, ann.ID, comments[0].RecipientID)
	assert.Equal(t, ben.ID, comments[1].RecipientID)

	resp = env.do(t, http.MethodPost, "/api/posts/999/comments", ben, fiber.Map{"content": "orphan"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestLikeEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	ben := env.user(t, "ben")
	post := decode[models.PostResponse](t, env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{"content": "like me"}))
	path := fmt.Sprintf("/api/posts/%d/like", post.ID)

	res := decode[models.LikeResult](t, env.do(t, http.MethodPost, path+"/toggle", ben, nil))
	assert.Equal(t, models.LikeStatusLiked, res.Status)
	assert.Equal(t, int64(1), res.LikeCount)

	res = decode[models.LikeResult](t, env.do(t, http.MethodPost, path+"/toggle", ben, nil))
	assert.Equal(t, models.LikeStatusUnliked, res.Status)
	assert.Equal(t, int64(0), res.LikeCount)

	for i := 0; i < 2; i++ {
		res = decode[models.LikeResult](t, env.do(t, http.MethodPut, path, ben, nil))
		assert.Equal(t, int64(1), res.LikeCount)
	}

	viewed := decode[models.PostResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), ben, nil))
	assert.True(t, viewed.LikedByViewer)
	assert.Equal(t, int64(1), viewed.LikeCount)
	anon := decode[models.PostResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil, nil))
	assert.False(t, anon.LikedByViewer)

	res = decode[models.LikeResult](t, env.do(t, http.MethodDelete, path, ben, nil))
	assert.Equal(t, models.LikeStatusUnliked, res.Status)
	assert.Equal(t, int64(0), res.LikeCount)

	assert.Len(t, env.notes.OfType(models.NotificationPostLike), 2)

	resp := env.do(t, http.MethodPost, path+"/toggle", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestUpdateAndDeletePost(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	ben := env.user(t, "ben")

	post := decode[models.PostResponse](t, env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{
		"content": "draft",
		"images":  []string{testutil.TinyPNGBase64(t, 2, 2), testutil.TinyPNGBase64(t, 2, 2)},
	}))
	require.Len(t, post.ImageURLs, 2)
	path := fmt.Sprintf("/api/posts/%d", post.ID)

	resp := env.do(t, http.MethodPut, path, ben, fiber.Map{"content": "hijack"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, models.CodeAccessDenied, decode[models.ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodPut, path, ann, fiber.Map{
		"content":           "final",
		"retainedImageUrls": []string{post.ImageURLs[1]},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	updated := decode[models.PostResponse](t, resp)
	assert.Equal(t, "final", updated.Content)
	assert.Equal(t, []string{post.ImageURLs[1]}, updated.ImageURLs)
	assert.Equal(t, []string{post.ImageURLs[0]}, env.blobs.Deleted())

	comment := decode[models.PostResponse](t, env.do(t, http.MethodPost, path+"/comments", ben, fiber.Map{"content": "reply"}))

	resp = env.do(t, http.MethodDelete, path, ben, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, path, ann, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), decode[map[string]any](t, resp)["removed"])

	assert.Equal(t, fiber.StatusNotFound, env.do(t, http.MethodGet, path, nil, nil).StatusCode)
	assert.Equal(t, fiber.StatusNotFound, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", comment.ID), nil, nil).StatusCode)
	assert.Empty(t, env.blobs.Objects())
}

func TestSharePost(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	post := decode[models.PostResponse](t, env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{"content": "share"}))

	for i := 0; i < 3; i++ {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/share", post.ID), nil, nil)
		require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
	got := decode[models.PostResponse](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), nil, nil))
	assert.Equal(t, int64(3), got.ShareCount)

	resp := env.do(t, http.MethodPost, "/api/posts/999/share", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestListings(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	ann := env.user(t, "ann")
	ben := env.user(t, "ben")

	for i := 0; i < 3; i++ {
		env.do(t, http.MethodPost, "/api/posts", ann, fiber.Map{"content": fmt.Sprintf("ann %d", i)})
	}
	benPost := decode[models.PostResponse](t, env.do(t, http.MethodPost, "/api/posts", ben, fiber.Map{"content": "ben"}))

	page := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, "/api/posts?page=1&size=3", nil, nil))
	assert.Equal(t, 1, page.PageNumber)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(4), page.TotalItems)
	assert.True(t, page.IsLastPage)
	assert.Len(t, page.Items, 1)

	feed := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, "/api/posts/feed?size=500", ann, nil))
	assert.Len(t, feed.Items, 4)

	byAuthor := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/posts", ann.ID), nil, nil))
	assert.Equal(t, int64(3), byAuthor.TotalItems)

	resp := env.do(t, http.MethodGet, "/api/users/999/posts", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	env.do(t, http.MethodPut, fmt.Sprintf("/api/posts/%d/like", benPost.ID), ann, nil)
	liked := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/likes", ann.ID), nil, nil))
	require.Len(t, liked.Items, 1)
	assert.Equal(t, benPost.ID, liked.Items[0].ID)

	shorts := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, "/api/posts/shorts", nil, nil))
	assert.Empty(t, shorts.Items)
	assert.Zero(t, shorts.TotalItems)

	assert.Equal(t, fiber.StatusUnauthorized, env.do(t, http.MethodGet, "/api/posts/following", nil, nil).StatusCode)
	following := decode[models.Page[models.PostResponse]](t, env.do(t, http.MethodGet, "/api/posts/following", ben, nil))
	assert.Empty(t, following.Items)
}
