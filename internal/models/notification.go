package models

import "time"

// NotificationType names the event a notification is about.
type NotificationType string

const (
	NotificationPostCreated NotificationType = "POST_CREATED"
	NotificationNewComment  NotificationType = "NEW_COMMENT"
	NotificationPostLike    NotificationType = "POST_LIKE"
	NotificationNewFollower NotificationType = "NEW_FOLLOWER"
)

// Notification is the fire-and-forget payload handed to the delivery layer.
type Notification struct {
	Type        NotificationType `json:"type"`
	SenderID    uint             `json:"sender_id"`
	RecipientID uint             `json:"recipient_id"`
	RelatedID   uint             `json:"related_id"`
	Context     string           `json:"context,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}
