package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"xplore/internal/models"
	"xplore/internal/notifications"
	"xplore/internal/observability"
	"xplore/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// MaxContentRunes is the longest post or comment body accepted.
const MaxContentRunes = 5000

// listingDepth is how many comment levels listings embed under each post.
const listingDepth = 1

type PostService struct {
	postRepo   repository.PostRepository
	likeRepo   repository.LikeRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	tree       *TreeAssembler
	engagement *EngagementAggregator
	ranker     *FeedRanker
	media      *MediaIngest
	notifier   notifications.Notifier
	now        func() time.Time
}

type CreatePostInput struct {
	AuthorID uint
	Content  string
	Media    MediaInput
}

type AddCommentInput struct {
	AuthorID uint
	ParentID uint
	Content  string
	Media    MediaInput
}

// UpdatePostInput patches a post. A nil Content leaves the body alone. A nil
// RetainedImageURLs keeps every current image; a non-nil one is the complete
// set of current images to keep.
type UpdatePostInput struct {
	PostID            uint
	RequesterID       uint
	Content           *string
	RetainedImageURLs []string
	NewImages         []string
}

func NewPostService(
	postRepo repository.PostRepository,
	likeRepo repository.LikeRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	ranker *FeedRanker,
	media *MediaIngest,
	notifier notifications.Notifier,
) *PostService {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &PostService{
		postRepo:   postRepo,
		likeRepo:   likeRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
		tree:       NewTreeAssembler(postRepo),
		engagement: NewEngagementAggregator(likeRepo),
		ranker:     ranker,
		media:      media,
		notifier:   notifier,
		now:        time.Now,
	}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (resp *models.PostResponse, err error) {
	span, ctx := observability.NewSpan(ctx, "posts.create", attribute.Int("author_id", int(in.AuthorID)))
	defer span.Finish(&err)

	if err := validateBody(in.Content, in.Media); err != nil {
		return nil, err
	}
	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Content:  in.Content,
		AuthorID: author.ID,
		Depth:    models.IntPtr(0),
	}
	if err := s.persistWithMedia(ctx, post, in.Media); err != nil {
		return nil, err
	}
	post.Author = *author

	s.notify(ctx, models.NotificationPostCreated, author.ID, author.ID, post.ID, "")
	return s.renderOne(ctx, post, author.ID, listingDepth)
}

func (s *PostService) AddComment(ctx context.Context, in AddCommentInput) (resp *models.PostResponse, err error) {
	span, ctx := observability.NewSpan(ctx, "posts.comment", attribute.Int("parent_id", int(in.ParentID)))
	defer span.Finish(&err)

	if err := validateBody(in.Content, in.Media); err != nil {
		return nil, err
	}
	parent, err := s.postRepo.GetByID(ctx, in.ParentID)
	if err != nil {
		return nil, mapRepoError(err, "Post", in.ParentID)
	}
	author, err := s.userRepo.GetByID(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}

	parentDepth := 0
	if parent.Depth != nil {
		parentDepth = *parent.Depth
	} else {
		depths, err := s.tree.ComputeDepths(ctx, []*models.Post{parent})
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		parentDepth = depths[parent.ID]
	}

	comment := &models.Post{
		Content:  in.Content,
		AuthorID: author.ID,
		ParentID: &parent.ID,
		Depth:    models.IntPtr(parentDepth + 1),
	}
	if err := s.persistWithMedia(ctx, comment, in.Media); err != nil {
		return nil, err
	}
	comment.Author = *author

	if parent.AuthorID != author.ID {
		s.notify(ctx, models.NotificationNewComment, author.ID, parent.AuthorID, parent.ID, snippet(in.Content))
	}
	return s.renderOne(ctx, comment, author.ID, listingDepth)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (resp *models.PostResponse, err error) {
	span, ctx := observability.NewSpan(ctx, "posts.update", attribute.Int("post_id", int(in.PostID)))
	defer span.Finish(&err)

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, mapRepoError(err, "Post", in.PostID)
	}
	if post.AuthorID != in.RequesterID {
		return nil, models.NewAccessDeniedError("Only the author can edit this post")
	}

	if in.Content != nil {
		if utf8.RuneCountInString(*in.Content) > MaxContentRunes {
			return nil, models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", MaxContentRunes))
		}
		post.Content = *in.Content
	}

	var upd ImageUpdate
	if post.MediaKind == models.MediaKindVideoShort {
		if len(in.NewImages) > 0 {
			return nil, models.NewValidationError("Video posts cannot carry images")
		}
	} else if in.RetainedImageURLs != nil || len(in.NewImages) > 0 {
		retained := in.RetainedImageURLs
		if retained == nil {
			retained = post.ImageURLs
		}
		upd, err = s.media.UpdateImages(ctx, post.AuthorID, post.ImageURLs, retained, in.NewImages)
		if err != nil {
			return nil, err
		}
		post.ImageURLs = upd.Final
	}
	if strings.TrimSpace(post.Content) == "" && len(post.MediaURLs()) == 0 {
		s.media.Discard(ctx, upd.Added)
		return nil, models.NewValidationError("Post must have content or media")
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		s.media.Discard(ctx, upd.Added)
		return nil, models.NewInternalError(err)
	}
	s.media.RemoveDetached(ctx, upd.Removed)

	return s.renderOne(ctx, post, in.RequesterID, Unbounded)
}

// DeletePost removes a post with every reply below it and returns how many
// posts were deleted.
func (s *PostService) DeletePost(ctx context.Context, postID, requesterID uint) (removed int64, err error) {
	span, ctx := observability.NewSpan(ctx, "posts.delete", attribute.Int("post_id", int(postID)))
	defer span.Finish(&err)

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return 0, mapRepoError(err, "Post", postID)
	}
	if post.AuthorID != requesterID {
		return 0, models.NewAccessDeniedError("Only the author can delete this post")
	}

	forest, err := s.tree.Collect(ctx, []*models.Post{post})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	subtree := forest.All()
	removed, err = s.postRepo.DeleteTree(ctx, postIDs(subtree))
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	s.media.RemovePostMedia(ctx, subtree)
	return removed, nil
}

// ToggleLike flips the like of userID on a post.
func (s *PostService) ToggleLike(ctx context.Context, postID, userID uint) (*models.LikeResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err, "Post", postID)
	}
	liked, err := s.likeRepo.Exists(ctx, userID, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if liked {
		return s.unlike(ctx, post, userID)
	}
	return s.like(ctx, post, userID)
}

// Like records a like; repeating it changes nothing.
func (s *PostService) Like(ctx context.Context, postID, userID uint) (*models.LikeResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err, "Post", postID)
	}
	return s.like(ctx, post, userID)
}

// Unlike removes a like; repeating it changes nothing.
func (s *PostService) Unlike(ctx context.Context, postID, userID uint) (*models.LikeResult, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err, "Post", postID)
	}
	return s.unlike(ctx, post, userID)
}

func (s *PostService) like(ctx context.Context, post *models.Post, userID uint) (*models.LikeResult, error) {
	created, err := s.likeRepo.Like(ctx, userID, post.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if created && post.AuthorID != userID {
		s.notify(ctx, models.NotificationPostLike, userID, post.AuthorID, post.ID, "")
	}
	return s.likeResult(ctx, post.ID, models.LikeStatusLiked)
}

func (s *PostService) unlike(ctx context.Context, post *models.Post, userID uint) (*models.LikeResult, error) {
	if _, err := s.likeRepo.Unlike(ctx, userID, post.ID); err != nil {
		return nil, models.NewInternalError(err)
	}
	return s.likeResult(ctx, post.ID, models.LikeStatusUnliked)
}

func (s *PostService) likeResult(ctx context.Context, postID uint, status models.LikeStatus) (*models.LikeResult, error) {
	counts, err := s.likeRepo.CountByPosts(ctx, []uint{postID})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.LikeResult{PostID: postID, Status: status, LikeCount: counts[postID]}, nil
}

// IncrementShareCount records one share. It needs no viewer.
func (s *PostService) IncrementShareCount(ctx context.Context, postID uint) error {
	if err := s.postRepo.IncrementShareCount(ctx, postID); err != nil {
		return mapRepoError(err, "Post", postID)
	}
	return nil
}

// GetPost returns the detail view: the post with its entire reply tree.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.PostResponse, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err, "Post", postID)
	}
	return s.renderOne(ctx, post, viewerID, Unbounded)
}

func (s *PostService) GetPostByUUID(ctx context.Context, uuid string, viewerID uint) (*models.PostResponse, error) {
	post, err := s.postRepo.GetByUUID(ctx, uuid)
	if err != nil {
		return nil, mapRepoError(err, "Post", uuid)
	}
	return s.renderOne(ctx, post, viewerID, Unbounded)
}

// Feed returns the ranked home feed.
func (s *PostService) Feed(ctx context.Context, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	posts, total, err := s.ranker.Rank(ctx, viewerID, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// ListAll returns every top-level post, newest first.
func (s *PostService) ListAll(ctx context.Context, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	posts, total, err := s.postRepo.ListTopLevel(ctx, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// ListByAuthor returns the top-level posts of one account.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	if _, err := s.userRepo.GetByID(ctx, authorID); err != nil {
		return models.Page[models.PostResponse]{}, err
	}
	posts, total, err := s.postRepo.ListByAuthor(ctx, authorID, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// ListLiked returns the posts userID liked, most recent like first.
func (s *PostService) ListLiked(ctx context.Context, userID, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return models.Page[models.PostResponse]{}, err
	}
	posts, total, err := s.likeRepo.ListLikedPosts(ctx, userID, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// ListShorts returns top-level video posts, newest first.
func (s *PostService) ListShorts(ctx context.Context, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	posts, total, err := s.postRepo.ListShorts(ctx, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// ListFollowing returns top-level posts by the accounts viewerID follows.
func (s *PostService) ListFollowing(ctx context.Context, viewerID uint, page models.PageRequest) (models.Page[models.PostResponse], error) {
	followees, err := s.followRepo.FolloweeIDs(ctx, viewerID)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	posts, total, err := s.postRepo.ListByAuthors(ctx, followees, page)
	if err != nil {
		return models.Page[models.PostResponse]{}, models.NewInternalError(err)
	}
	return s.renderPage(ctx, posts, total, page, viewerID)
}

// persistWithMedia uploads the attachments, then saves post. If the save
// fails the uploads are discarded.
func (s *PostService) persistWithMedia(ctx context.Context, post *models.Post, in MediaInput) error {
	media, err := s.media.Ingest(ctx, post.AuthorID, in)
	if err != nil {
		return err
	}
	post.MediaKind = media.Kind
	post.ImageURLs = media.ImageURLs
	post.VideoURL = media.VideoURL

	if err := s.postRepo.Create(ctx, post); err != nil {
		s.media.Discard(ctx, media.Uploaded())
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (s *PostService) renderOne(ctx context.Context, post *models.Post, viewerID uint, maxDepth int) (*models.PostResponse, error) {
	rc, err := s.prepareRender(ctx, []*models.Post{post}, viewerID, maxDepth)
	if err != nil {
		return nil, err
	}
	resp := renderPost(rc, post, 0)
	return &resp, nil
}

func (s *PostService) renderPage(ctx context.Context, posts []*models.Post, total int64, page models.PageRequest, viewerID uint) (models.Page[models.PostResponse], error) {
	if len(posts) == 0 {
		return models.NewPage([]models.PostResponse{}, page, total), nil
	}
	rc, err := s.prepareRender(ctx, posts, viewerID, listingDepth)
	if err != nil {
		return models.Page[models.PostResponse]{}, err
	}
	items := make([]models.PostResponse, 0, len(posts))
	for _, p := range posts {
		items = append(items, renderPost(rc, p, 0))
	}
	return models.NewPage(items, page, total), nil
}

// prepareRender loads everything renderPost needs for roots: their reply
// trees, depths, and engagement for every post that will be rendered.
func (s *PostService) prepareRender(ctx context.Context, roots []*models.Post, viewerID uint, maxDepth int) (renderContext, error) {
	forest, err := s.tree.Collect(ctx, roots)
	if err != nil {
		return renderContext{}, models.NewInternalError(err)
	}
	depths, err := s.tree.ComputeDepths(ctx, forest.All())
	if err != nil {
		return renderContext{}, models.NewInternalError(err)
	}
	eng, err := s.engagement.Aggregate(ctx, visiblePosts(forest, roots, maxDepth), viewerID)
	if err != nil {
		return renderContext{}, models.NewInternalError(err)
	}
	rc, err := newRenderContext(depths, forest, eng, maxDepth)
	if err != nil {
		return renderContext{}, models.NewInternalError(err)
	}
	return rc, nil
}

func (s *PostService) notify(ctx context.Context, typ models.NotificationType, sender, recipient, related uint, note string) {
	s.notifier.Notify(ctx, models.Notification{
		Type:        typ,
		SenderID:    sender,
		RecipientID: recipient,
		RelatedID:   related,
		Context:     note,
		CreatedAt:   s.now().UTC(),
	})
}

func validateBody(content string, media MediaInput) error {
	if strings.TrimSpace(content) == "" && media.Empty() {
		return models.NewValidationError("Post must have content or media")
	}
	if utf8.RuneCountInString(content) > MaxContentRunes {
		return models.NewValidationError(fmt.Sprintf("Content too long (max %d characters)", MaxContentRunes))
	}
	return nil
}

// mapRepoError turns store errors into AppErrors.
func mapRepoError(err error, resource string, id interface{}) error {
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.NewNotFoundError(resource, id)
	default:
		return models.NewInternalError(err)
	}
}

func snippet(content string) string {
	const limit = 140
	if utf8.RuneCountInString(content) <= limit {
		return content
	}
	return string([]rune(content)[:limit])
}
