// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"xplore/internal/models"
	"xplore/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// sampleVideos are public clips used for seeded shorts.
var sampleVideos = []string{
	"https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerBlazes.mp4",
	"https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerEscapes.mp4",
	"https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerFun.mp4",
	"https://storage.googleapis.com/gtv-videos-bucket/sample/ForBiggerJoyrides.mp4",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db    *gorm.DB
	faker *gofakeit.Faker
	rng   *rand.Rand
	now   time.Time
}

// NewFactory creates a Factory. A non-zero seed makes the generated data
// reproducible.
func NewFactory(db *gorm.DB, seed int64) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Factory{
		db:    db,
		faker: gofakeit.New(seed),
		// #nosec G404: acceptable for seeding
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now().UTC(),
	}
}

// CreateUser persists a fake user. Overrides run before the insert; a
// generated username that collides is regenerated a few times.
func (f *Factory) CreateUser(ctx context.Context, overrides ...func(*models.User)) (*models.User, error) {
	users := repository.NewUserRepository(f.db)
	for attempt := 0; ; attempt++ {
		user := &models.User{
			Username: fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(100, 99999)),
			Email:    f.faker.Email(),
		}
		user.AvatarURL = fmt.Sprintf("https://i.pravatar.cc/150?u=%s", user.Username)
		for _, override := range overrides {
			override(user)
		}
		err := users.Create(ctx, user)
		if err == nil {
			return user, nil
		}
		if attempt == 2 || !models.IsCode(err, models.CodeValidation) {
			return nil, err
		}
	}
}

// BuildPost constructs an unsaved top-level post created within the last maxDays.
func (f *Factory) BuildPost(author *models.User, kind models.MediaKind, maxDays int) *models.Post {
	post := &models.Post{
		AuthorID:  author.ID,
		MediaKind: kind,
		ImageURLs: []string{},
		Depth:     models.IntPtr(0),
		CreatedAt: f.pastTime(maxDays),
	}
	switch kind {
	case models.MediaKindVideoShort:
		video := sampleVideos[f.rng.Intn(len(sampleVideos))]
		post.VideoURL = &video
		post.Content = f.faker.Sentence(6)
	default:
		post.Content = f.faker.Paragraph(1, 3, 8, "\n")
		for i := f.rng.Intn(4); i > 0; i-- {
			post.ImageURLs = append(post.ImageURLs, fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID()))
		}
	}
	return post
}

// BuildComment constructs an unsaved reply to parent, created after it.
func (f *Factory) BuildComment(author *models.User, parent *models.Post) *models.Post {
	depth := 1
	if parent.Depth != nil {
		depth = *parent.Depth + 1
	}
	created := parent.CreatedAt.Add(time.Duration(1+f.rng.Intn(180)) * time.Minute)
	if created.After(f.now) {
		created = f.now
	}
	return &models.Post{
		AuthorID:  author.ID,
		ParentID:  &parent.ID,
		Depth:     models.IntPtr(depth),
		MediaKind: models.MediaKindTextImage,
		ImageURLs: []string{},
		Content:   f.faker.Sentence(10),
		CreatedAt: created,
	}
}

// CreatePosts persists posts in batches.
func (f *Factory) CreatePosts(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return f.db.CreateInBatches(posts, 200).Error
}

// CreateLikes persists one like per (user, post) pair, skipping duplicates.
func (f *Factory) CreateLikes(likes []models.Like) error {
	if len(likes) == 0 {
		return nil
	}
	return f.db.Clauses(onConflictDoNothing()).CreateInBatches(likes, 500).Error
}

// CreateFollows persists follow edges, skipping duplicates.
func (f *Factory) CreateFollows(follows []models.Follow) error {
	if len(follows) == 0 {
		return nil
	}
	return f.db.Clauses(onConflictDoNothing()).CreateInBatches(follows, 500).Error
}

func (f *Factory) pastTime(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 30
	}
	back := time.Duration(f.rng.Int63n(int64(maxDays) * int64(24*time.Hour)))
	return f.now.Add(-back)
}
