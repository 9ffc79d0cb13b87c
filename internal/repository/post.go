// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"time"

	"xplore/internal/models"
	"xplore/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations.
// Lookups return gorm.ErrRecordNotFound for missing rows; paged listings
// return the page items together with the total row count of the query.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Update(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetByUUID(ctx context.Context, uuid string) (*models.Post, error)
	ListByIDs(ctx context.Context, ids []uint) ([]*models.Post, error)
	ListChildren(ctx context.Context, parentIDs []uint) ([]*models.Post, error)
	ListTopLevel(ctx context.Context, page models.PageRequest) ([]*models.Post, int64, error)
	ListByAuthor(ctx context.Context, authorID uint, page models.PageRequest) ([]*models.Post, int64, error)
	ListByAuthors(ctx context.Context, authorIDs []uint, page models.PageRequest) ([]*models.Post, int64, error)
	ListShorts(ctx context.Context, page models.PageRequest) ([]*models.Post, int64, error)
	RankedFeedIDs(ctx context.Context, followeeIDs []uint, since time.Time, page models.PageRequest) ([]uint, int64, error)
	DeleteTree(ctx context.Context, ids []uint) (int64, error)
	IncrementShareCount(ctx context.Context, id uint) error
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("insert", "posts")()
	err := r.db.WithContext(ctx).Omit("Author", "Parent").Create(post).Error
	if isForeignKeyError(err) {
		if post.ParentID != nil {
			return models.NewNotFoundError("Post", *post.ParentID)
		}
		return models.NewNotFoundError("User", post.AuthorID)
	}
	return err
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("update", "posts")()
	return r.db.WithContext(ctx).Omit("Author", "Parent").Save(post).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").First(&post, id).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUUID(ctx context.Context, uuid string) (*models.Post, error) {
	defer observability.TrackQuery("select", "posts")()
	var post models.Post
	if err := r.db.WithContext(ctx).Preload("Author").Where("uuid = ?", uuid).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) ListByIDs(ctx context.Context, ids []uint) ([]*models.Post, error) {
	if len(ids) == 0 {
		return []*models.Post{}, nil
	}
	defer observability.TrackQuery("select", "posts")()
	var posts []*models.Post
	err := r.db.WithContext(ctx).Preload("Author").Where("id IN ?", ids).Find(&posts).Error
	return posts, err
}

// ListChildren returns the direct children of every given parent in one query,
// oldest first.
func (r *postRepository) ListChildren(ctx context.Context, parentIDs []uint) ([]*models.Post, error) {
	if len(parentIDs) == 0 {
		return []*models.Post{}, nil
	}
	defer observability.TrackQuery("select", "posts")()
	var posts []*models.Post
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("parent_id IN ?", parentIDs).
		Order("created_at ASC").
		Order("id ASC").
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) ListTopLevel(ctx context.Context, page models.PageRequest) ([]*models.Post, int64, error) {
	return r.listPage(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id IS NULL")
	})
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID uint, page models.PageRequest) ([]*models.Post, int64, error) {
	return r.listPage(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id IS NULL AND author_id = ?", authorID)
	})
}

func (r *postRepository) ListByAuthors(ctx context.Context, authorIDs []uint, page models.PageRequest) ([]*models.Post, int64, error) {
	if len(authorIDs) == 0 {
		return []*models.Post{}, 0, nil
	}
	return r.listPage(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id IS NULL AND author_id IN ?", authorIDs)
	})
}

func (r *postRepository) ListShorts(ctx context.Context, page models.PageRequest) ([]*models.Post, int64, error) {
	return r.listPage(ctx, page, func(db *gorm.DB) *gorm.DB {
		return db.Where("parent_id IS NULL AND media_kind = ?", models.MediaKindVideoShort)
	})
}

// listPage counts the scoped rows and loads one page of them, newest first.
func (r *postRepository) listPage(ctx context.Context, page models.PageRequest, scope func(*gorm.DB) *gorm.DB) ([]*models.Post, int64, error) {
	defer observability.TrackQuery("select", "posts")()

	var total int64
	if err := scope(r.db.WithContext(ctx).Model(&models.Post{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []*models.Post{}, 0, nil
	}

	var posts []*models.Post
	err := scope(r.db.WithContext(ctx)).
		Preload("Author").
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit()).
		Offset(page.Offset()).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

// RankedFeedIDs returns one page of top-level text/image post ids. Posts by
// followeeIDs created at or after since come first; everything else follows.
// Both groups are ordered newest first with id as the tie-break. An empty
// followee set degrades to plain recency order.
func (r *postRepository) RankedFeedIDs(ctx context.Context, followeeIDs []uint, since time.Time, page models.PageRequest) ([]uint, int64, error) {
	defer observability.TrackQuery("rank", "posts")()

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).
			Model(&models.Post{}).
			Where("parent_id IS NULL AND media_kind = ?", models.MediaKindTextImage)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []uint{}, 0, nil
	}

	q := base()
	if len(followeeIDs) > 0 {
		q = q.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN author_id IN (?) AND created_at >= ? THEN 0 ELSE 1 END, created_at DESC, id DESC",
			Vars: []interface{}{followeeIDs, since.UTC()},
		}})
	} else {
		q = q.Order("created_at DESC").Order("id DESC")
	}

	var ids []uint
	if err := q.Limit(page.Limit()).Offset(page.Offset()).Pluck("id", &ids).Error; err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

// DeleteTree removes the given posts and every like on them in one transaction.
// The caller supplies the complete subtree; the number of posts removed is returned.
func (r *postRepository) DeleteTree(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	defer observability.TrackQuery("delete", "posts")()

	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id IN ?", ids).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		res := tx.Where("id IN ?", ids).Delete(&models.Post{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return removed, err
}

// IncrementShareCount bumps the counter in place so concurrent shares never lose an update.
func (r *postRepository) IncrementShareCount(ctx context.Context, id uint) error {
	defer observability.TrackQuery("update", "posts")()
	res := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("share_count", gorm.Expr("share_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
