package main

// Manage the database schema:
//   go run ./cmd/migrate [up|down|version]

import (
	"context"
	"log"
	"os"
	"strings"

	"script-backend/internal/shared/config"
	"script-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	action := "up"
	if len(os.Args) > 1 {
		action = strings.ToLower(os.Args[1])
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		log.Fatal("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.OptionsFor(db.RoleMigrate, 0)))
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer sqlDB.Close()

	switch action {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackMigration(ctx, sqlDB)
	case "version":
		var version int64
		version, err = db.SchemaVersion(ctx, sqlDB)
		if err == nil {
			log.Printf("schema version %d", version)
		}
	default:
		log.Fatalf("unknown action %q (want up, down or version)", action)
	}
	if err != nil {
		log.Printf("migrate %s: %v", action, err)
		sqlDB.Close()
		os.Exit(1)
	}
}
