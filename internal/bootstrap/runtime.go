// Package bootstrap wires the process-wide dependencies shared by the
// server and the operational commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"xplore/internal/cache"
	"xplore/internal/config"
	"xplore/internal/database"
	"xplore/internal/featureflags"
	"xplore/internal/middleware"
	"xplore/internal/notifications"
	"xplore/internal/repository"
	"xplore/internal/service"
	"xplore/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// ApplySchema runs AutoMigrate before anything else touches the database.
	ApplySchema bool
	// SkipBlobStore leaves Runtime.Blobs nil. The seeder never uploads media.
	SkipBlobStore bool
}

// Runtime is everything a process needs once configuration is loaded.
type Runtime struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Blobs    storage.BlobStore
	Notifier notifications.Notifier
	Flags    *featureflags.Manager
	Posts    *service.PostService
	Follows  *service.FollowService

	closers []func() error
}

// InitRuntime connects to the database, Redis and the blob store, picks the
// notification transport and builds the services.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{Config: cfg, DB: db, Flags: featureflags.NewManager(cfg.FeatureFlags)}
	rt.closers = append(rt.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	// Redis is optional: a nil client disables caching, rate limits and the
	// Redis notification transport.
	rdb, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "redis unavailable, continuing without cache",
			slog.String("error", err.Error()))
	}
	cache.SetClient(rdb)
	rt.Redis = cache.GetClient()
	if rt.Redis != nil {
		rt.closers = append(rt.closers, rt.Redis.Close)
	}

	if !opts.SkipBlobStore {
		blobs, err := newBlobStore(ctx, cfg)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		rt.Blobs = blobs
	}

	rt.Notifier = rt.newNotifier(cfg)
	rt.Posts, rt.Follows = NewServices(cfg, db, rt.Blobs, rt.Notifier, rt.Flags)
	return rt, nil
}

// NewServices builds the post and follow services over db.
func NewServices(
	cfg *config.Config,
	db *gorm.DB,
	blobs storage.BlobStore,
	notifier notifications.Notifier,
	flags *featureflags.Manager,
) (*service.PostService, *service.FollowService) {
	postRepo := repository.NewPostRepository(db)
	likeRepo := repository.NewLikeRepository(db)
	followRepo := repository.NewFollowRepository(db, time.Duration(cfg.FolloweeCacheTTLSeconds)*time.Second)
	userRepo := repository.NewUserRepository(db)

	ranker := service.NewFeedRanker(postRepo, followRepo,
		service.WithFreshWindow(cfg.FeedFreshWindow()),
		service.WithFlags(flags),
	)
	media := service.NewMediaIngest(blobs, service.NewAdmissionGate(cfg.LargeUploadThreshold()), flags, service.MediaConfig{
		MaxVideoBytes:     int64(cfg.MediaMaxUploadMB) << 20,
		MaxImageDimension: cfg.MediaMaxImageDimension,
		TranscodeWebP:     cfg.MediaTranscodeWebP,
	})

	posts := service.NewPostService(postRepo, likeRepo, followRepo, userRepo, ranker, media, notifier)
	follows := service.NewFollowService(followRepo, userRepo, notifier)
	return posts, follows
}

func newBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	store, err := storage.NewMinioStore(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		return nil, fmt.Errorf("blob store: %w", err)
	}

	ensureCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.EnsureBucket(ensureCtx); err != nil {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("ensure bucket %q: %w", cfg.S3Bucket, err)
		}
		middleware.Logger.WarnContext(ctx, "blob store not reachable, uploads will fail until it is",
			slog.String("bucket", cfg.S3Bucket), slog.String("error", err.Error()))
	}
	return storage.NewBreakerStore(store, storage.DefaultBreakerSettings()), nil
}

func (rt *Runtime) newNotifier(cfg *config.Config) notifications.Notifier {
	switch cfg.NotifyTransport {
	case "kafka":
		k := notifications.NewKafkaNotifier(cfg.KafkaBrokerList(), cfg.KafkaTopic, cfg.KafkaAsync)
		rt.closers = append(rt.closers, k.Close)
		return k
	default:
		if rt.Redis == nil {
			middleware.Logger.Warn("redis unavailable, notifications are dropped")
			return notifications.Nop{}
		}
		return notifications.NewRedisNotifier(rt.Redis)
	}
}

// Close releases connections in reverse order of acquisition.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
