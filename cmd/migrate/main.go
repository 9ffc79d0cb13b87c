// Command migrate applies the database schema.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"xplore/internal/config"
	"xplore/internal/database"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: migrate <up|status>")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "up":
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return err
		}
		log.Println("schema applied")
	case "status":
		for _, model := range database.PersistentModels() {
			state := "present"
			if !db.Migrator().HasTable(model) {
				state = "missing"
			}
			log.Printf("%T: %s", model, state)
		}
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
	return nil
}
