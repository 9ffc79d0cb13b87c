package service

import (
	"context"
	"time"

	"xplore/internal/models"
	"xplore/internal/notifications"
	"xplore/internal/repository"
)

// MaxFollowStatusIDs bounds one following-status lookup.
const MaxFollowStatusIDs = 100

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   notifications.Notifier
	now        func() time.Time
}

// FollowResult reports the edge state after a follow mutation.
type FollowResult struct {
	FolloweeID uint `json:"followee_id"`
	Following  bool `json:"following"`
	Changed    bool `json:"changed"`
}

func NewFollowService(followRepo repository.FollowRepository, userRepo repository.UserRepository, notifier notifications.Notifier) *FollowService {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &FollowService{followRepo: followRepo, userRepo: userRepo, notifier: notifier, now: time.Now}
}

// Follow makes followerID follow followeeID. Following twice is a no-op and
// notifies only the first time.
func (s *FollowService) Follow(ctx context.Context, followerID, followeeID uint) (*FollowResult, error) {
	if followerID == followeeID {
		return nil, models.NewValidationError("You cannot follow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return nil, err
	}

	created, err := s.followRepo.Follow(ctx, followerID, followeeID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if created {
		s.notifier.Notify(ctx, models.Notification{
			Type:        models.NotificationNewFollower,
			SenderID:    followerID,
			RecipientID: followeeID,
			RelatedID:   followerID,
			CreatedAt:   s.now().UTC(),
		})
	}
	return &FollowResult{FolloweeID: followeeID, Following: true, Changed: created}, nil
}

func (s *FollowService) Unfollow(ctx context.Context, followerID, followeeID uint) (*FollowResult, error) {
	if followerID == followeeID {
		return nil, models.NewValidationError("You cannot unfollow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return nil, err
	}
	removed, err := s.followRepo.Unfollow(ctx, followerID, followeeID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &FollowResult{FolloweeID: followeeID, Following: false, Changed: removed}, nil
}

// FollowStatus reports, for every id in userIDs, whether viewerID follows it.
func (s *FollowService) FollowStatus(ctx context.Context, viewerID uint, userIDs []uint) (map[uint]bool, error) {
	if len(userIDs) > MaxFollowStatusIDs {
		return nil, models.NewValidationError("Too many ids (max 100)")
	}
	status := make(map[uint]bool, len(userIDs))
	for _, id := range userIDs {
		status[id] = false
	}
	following, err := s.followRepo.FollowingAmong(ctx, viewerID, userIDs)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range following {
		status[id] = true
	}
	return status, nil
}
