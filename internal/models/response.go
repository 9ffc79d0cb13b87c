package models

import "time"

// PostResponse is the wire shape of a post together with its derived data.
type PostResponse struct {
	ID              uint           `json:"id"`
	UUID            string         `json:"uuid"`
	Content         string         `json:"content"`
	ImageURLs       []string       `json:"imageUrls"`
	VideoURL        *string        `json:"videoUrl"`
	MediaKind       MediaKind      `json:"mediaKind"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	AuthorID        uint           `json:"authorId"`
	AuthorUsername  string         `json:"authorUsername"`
	AuthorAvatarURL string         `json:"authorAvatarUrl"`
	ParentID        *uint          `json:"parentId,omitempty"`
	Comments        []PostResponse `json:"comments"`
	CommentCount    int            `json:"commentCount"`
	ShareCount      int64          `json:"shareCount"`
	LikeCount       int64          `json:"likeCount"`
	LikedByViewer   bool           `json:"likedByViewer"`
	Depth           int            `json:"depth"`
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a zero-based page number and a page size.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the request into valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the row offset of the page.
func (p PageRequest) Offset() int {
	n := p.Normalize()
	return n.Page * n.Size
}

// Limit returns the page size after normalization.
func (p PageRequest) Limit() int {
	return p.Normalize().Size
}

// Page is the pagination envelope returned by every listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	PageNumber int   `json:"pageNumber"`
	TotalPages int   `json:"totalPages"`
	TotalItems int64 `json:"totalItems"`
	IsLastPage bool  `json:"isLastPage"`
}

// NewPage builds the envelope from the items of one page and the total count
// reported by the query that selected them.
func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if total > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Items:      items,
		PageNumber: req.Page,
		TotalPages: totalPages,
		TotalItems: total,
		IsLastPage: req.Page+1 >= totalPages,
	}
}
