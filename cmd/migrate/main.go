package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nflow-health/nflow/internal/config"
	"github.com/nflow-health/nflow/internal/db"
	"github.com/nflow-health/nflow/migrations"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDatabase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Connect to database
	conn, err := db.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s database successfully\n", cfg.Driver)

	files, err := migrations.ForDriver(cfg.Driver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load migrations: %v\n", err)
		os.Exit(1)
	}

	ran, err := db.RunMigrations(conn, files)
	for _, name := range ran {
		fmt.Printf("✓ Migration %s completed successfully\n", name)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}

	if len(ran) == 0 {
		fmt.Println("Database is up to date")
		return
	}
	fmt.Println("\nAll migrations completed successfully!")
}
