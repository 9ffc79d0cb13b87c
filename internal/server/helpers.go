package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"strconv"
	"strings"
	"unicode"

	"xplore/internal/middleware"
	"xplore/internal/models"
	"xplore/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

// retryAfterSeconds is sent with 429 answers from the upload admission gate.
const retryAfterSeconds = 5

// maxImagesPerPost bounds the images one create or update request may carry.
const maxImagesPerPost = 10

// respondError writes err with the status its code maps to. Internal errors
// are logged here because their details never reach the client.
func respondError(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	switch status {
	case fiber.StatusTooManyRequests:
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds))
	case fiber.StatusInternalServerError:
		middleware.Logger.ErrorContext(c.UserContext(), "request failed",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	return models.RespondWithError(c, status, err)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
// Callers should check: if err != nil { return nil }
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam converts a route param name into a human-readable label.
// Examples: "id" -> "ID", "postId" -> "post ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if prefix, ok := strings.CutSuffix(param, "Id"); ok {
		return strings.ToLower(strings.Join(splitCamel(prefix), " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parsePage reads the zero-based `page` and `size` query parameters.
// Out-of-range values are clamped rather than rejected.
func parsePage(c *fiber.Ctx) models.PageRequest {
	return models.PageRequest{
		Page: c.QueryInt("page", 0),
		Size: c.QueryInt("size", models.DefaultPageSize),
	}.Normalize()
}

// viewerID is the authenticated user or 0 for anonymous requests.
func viewerID(c *fiber.Ctx) uint {
	if id := middleware.ViewerID(c); id != nil {
		return *id
	}
	return 0
}

// parseIDList parses a comma-separated list of positive ids.
func parseIDList(raw string) ([]uint, error) {
	var ids []uint
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil || n == 0 {
			return nil, models.NewValidationError(fmt.Sprintf("Invalid user ID %q", part))
		}
		ids = append(ids, uint(n))
	}
	return ids, nil
}

// contentRequest is the JSON body of create and comment requests.
type contentRequest struct {
	Content string   `json:"content"`
	Images  []string `json:"images"`
}

// parseContentRequest accepts either a JSON body or a multipart form. In a
// form, `images` may be files or base64 values and `video` is a single file.
// The returned closer releases the open video file and must always be called.
func parseContentRequest(c *fiber.Ctx) (string, service.MediaInput, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		var req contentRequest
		if err := c.BodyParser(&req); err != nil {
			return "", service.MediaInput{}, noop, models.NewValidationError("Invalid request body")
		}
		if len(req.Images) > maxImagesPerPost {
			return "", service.MediaInput{}, noop, tooManyImages()
		}
		return req.Content, service.MediaInput{Images: req.Images}, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return "", service.MediaInput{}, noop, models.NewValidationError("Invalid multipart form")
	}

	content := strings.Join(form.Value["content"], "")
	in := service.MediaInput{Images: form.Value["images"]}
	if len(in.Images)+len(form.File["images"]) > maxImagesPerPost {
		return "", service.MediaInput{}, noop, tooManyImages()
	}
	for _, fh := range form.File["images"] {
		data, err := readFormFile(fh)
		if err != nil {
			return "", service.MediaInput{}, noop, err
		}
		in.Files = append(in.Files, data)
	}

	videos := form.File["video"]
	if len(videos) == 0 {
		return content, in, noop, nil
	}
	if len(videos) > 1 {
		return "", service.MediaInput{}, noop, models.NewValidationError("Only one video may be attached")
	}
	fh := videos[0]
	f, err := fh.Open()
	if err != nil {
		return "", service.MediaInput{}, noop, models.NewValidationError("Unreadable video upload")
	}
	in.Video = &service.VideoUpload{
		Reader:      f,
		Size:        fh.Size,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
	}
	return content, in, func() { _ = f.Close() }, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Unreadable image upload")
	}
	defer func() { _ = f.Close() }()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, models.NewValidationError("Unreadable image upload")
	}
	return data, nil
}

func tooManyImages() error {
	return models.NewValidationError(fmt.Sprintf("At most %d images may be attached", maxImagesPerPost))
}
