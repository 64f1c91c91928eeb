package main

import (
	"errors"
	"flag"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/noah-isme/sales-api/internal/db"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	steps := flag.Int("steps", 0, "number of migrations to roll back with down (0 means all)")
	flag.Parse()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "up"
	}

	m, err := db.NewMigrator(dbURL)
	if err != nil {
		log.Fatalf("Failed to create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		if *steps > 0 {
			err = m.Steps(-*steps)
		} else {
			err = m.Down()
		}
	case "version":
		version, dirty, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			log.Println("No migrations applied")
			return
		}
		if verr != nil {
			log.Fatalf("Failed to read version: %v", verr)
		}
		log.Printf("Version %d (dirty=%t)", version, dirty)
		return
	default:
		log.Fatalf("Unknown command %q (want up, down or version)", cmd)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("Migration %s failed: %v", cmd, err)
	}
	log.Printf("Migration %s completed", cmd)
}
