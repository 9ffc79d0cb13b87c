// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MediaKind classifies the attachment shape of a post.
type MediaKind string

const (
	MediaKindTextImage  MediaKind = "TEXT_IMAGE"
	MediaKindVideoShort MediaKind = "VIDEO_SHORT"
)

// Post is a content node. Top-level posts have no parent; comments point at
// their parent through ParentID. Children are never stored on the parent.
type Post struct {
	ID         uint                       `gorm:"primaryKey" json:"id"`
	UUID       string                     `gorm:"type:varchar(36);uniqueIndex;not null" json:"uuid"`
	Content    string                     `gorm:"type:text" json:"content"`
	MediaKind  MediaKind                  `gorm:"type:varchar(16);not null;default:TEXT_IMAGE;index:idx_post_kind_parent" json:"media_kind"`
	ImageURLs  datatypes.JSONSlice[string] `json:"image_urls"`
	VideoURL   *string                    `json:"video_url,omitempty"`
	ShareCount int64                      `gorm:"not null;default:0" json:"share_count"`
	AuthorID   uint                       `gorm:"not null;index" json:"author_id"`
	Author     User                       `gorm:"foreignKey:AuthorID" json:"author"`
	ParentID   *uint                      `gorm:"index;index:idx_post_kind_parent" json:"parent_id,omitempty"`
	// Parent exists for the foreign key only; removing a post removes its replies.
	Parent *Post `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
	// Depth is cached at creation; nil means it has to be derived from the parent chain.
	Depth     *int      `json:"depth,omitempty"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns the external identifier.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return nil
}

// MediaURLs returns every blob URL attached to the post.
func (p *Post) MediaURLs() []string {
	urls := make([]string, 0, len(p.ImageURLs)+1)
	urls = append(urls, p.ImageURLs...)
	if p.VideoURL != nil && *p.VideoURL != "" {
		urls = append(urls, *p.VideoURL)
	}
	return urls
}

// IntPtr is a small helper for optional integer columns.
func IntPtr(v int) *int {
	return &v
}
