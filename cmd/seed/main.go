// Command main runs the database seeder.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"xplore/internal/bootstrap"
	"xplore/internal/config"
	"xplore/internal/seed"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	preset := flag.String("preset", "demo", "Seeder preset to apply")
	presetFile := flag.String("presets", "", "Optional YAML file with extra presets")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible data (0 = time based)")
	flag.Parse()

	presets, err := seed.LoadPresets(*presetFile)
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	p, ok := presets[strings.ToLower(*preset)]
	if !ok {
		return fmt.Errorf("unknown preset %q (available: %s)", *preset, strings.Join(seed.PresetNames(presets), ", "))
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{ApplySchema: true, SkipBlobStore: true})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	s := seed.NewSeeder(rt.DB, *randSeed)
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			return fmt.Errorf("cleanup failed: %w", err)
		}
	}

	sum, err := s.Run(ctx, p)
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	log.Printf("Seeded preset %s: %d users, %d follows, %d posts, %d comments, %d likes",
		p.Name, sum.Users, sum.Follows, sum.Posts, sum.Comments, sum.Likes)
	return nil
}
