package main

import (
	"flag"
	"fmt"
	"log"

	"hazardcam/internal/config"
	"hazardcam/internal/logger"
	"hazardcam/internal/repository/sqlite"
	"hazardcam/internal/service/storage"
)

func main() {
	cfg := config.Load()
	capturesDir := flag.String("captures", cfg.CaptureDirectory, "Directory containing captures")
	dbPath := flag.String("db", cfg.DatabasePath, "Database path")
	schema := flag.String("schema", "", "Schema action only: up, down or version")
	flag.Parse()

	l := logger.Nop()

	switch *schema {
	case "":
	case "up", "down", "version":
		runSchema(*dbPath, *schema)
		return
	default:
		log.Fatalf("Unknown schema action %q", *schema)
	}

	fmt.Printf("Indexing captures from %s into database %s\n", *capturesDir, *dbPath)

	db, err := sqlite.New(*dbPath, l)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewCaptureRepository(db)
	if err := repo.DeleteAll(); err != nil {
		log.Fatalf("Failed to clear index: %v", err)
	}

	store, err := storage.New(*capturesDir, repo, storage.WithLogger(l))
	if err != nil {
		log.Fatalf("Failed to open capture directory: %v", err)
	}

	n, err := store.Reindex()
	if err != nil {
		log.Fatalf("Failed to index captures after %d files: %v", n, err)
	}
	fmt.Printf("Indexed %d captures\n", n)

	stats, err := store.Stats()
	if err == nil {
		fmt.Printf("\nCapture statistics:\n")
		fmt.Printf("   Total captures: %d\n", stats.TotalCaptures)
		fmt.Printf("   Total size: %d bytes\n", stats.TotalSizeBytes)
		for class, count := range stats.ClassCounts {
			fmt.Printf("      - %s: %d captures\n", class, count)
		}
	}
}

func runSchema(dbPath, action string) {
	db, err := sqlite.Open(dbPath, migrateLogger{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch action {
	case "up":
		err = db.MigrateUp()
	case "down":
		err = db.MigrateDown()
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", action, err)
	}

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		log.Fatalf("Failed to read schema version: %v", err)
	}
	fmt.Printf("Schema version %d (dirty=%v)\n", version, dirty)
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf(format, v...)
}
