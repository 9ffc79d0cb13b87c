package models

import "time"

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique; likes are hard deleted.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_like_user_post;index" json:"post_id"`
	Post      *Post     `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeStatus is the outcome of a like toggle.
type LikeStatus string

const (
	LikeStatusLiked   LikeStatus = "liked"
	LikeStatusUnliked LikeStatus = "unliked"
)

// LikeResult is returned by like mutations.
type LikeResult struct {
	PostID    uint       `json:"post_id"`
	Status    LikeStatus `json:"status"`
	LikeCount int64      `json:"like_count"`
}
