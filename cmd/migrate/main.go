package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"propmarket-be/internal/config"
	"propmarket-be/internal/db"
	"propmarket-be/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	logger.Init(os.Getenv("APP_ENV"))
	defer logger.Sync()

	mode := flag.String("mode", "up", "migration mode: up, down or status")
	dir := flag.String("dir", "./migrations", "directory holding *.sql migrations")
	flag.Parse()

	database, err := open()
	if err != nil {
		logger.L().Fatal("failed to connect db", zap.Error(err))
	}
	defer database.Close()

	if err := run(database, *mode, *dir); err != nil {
		logger.L().Fatal("migration failed", zap.Error(err))
	}
}

// open prefers DB_URL and falls back to the DB_* variables the server uses.
func open() (*sql.DB, error) {
	if dbURL := os.Getenv("DB_URL"); dbURL != "" {
		return sql.Open("postgres", dbURL)
	}
	return db.NewDatabase(config.LoadConfig())
}

func run(database *sql.DB, mode, migrationsDir string) error {
	_, err := database.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	// file names start with a timestamp
	sort.Strings(files)

	switch mode {
	case "up":
		return runMigrationsUp(database, files)
	case "down":
		return runMigrationsDown(database, files)
	case "status":
		return printStatus(database, files)
	default:
		return fmt.Errorf("unknown mode: %s (use 'up', 'down' or 'status')", mode)
	}
}

func isApplied(database *sql.DB, version string) (bool, error) {
	var exists bool
	err := database.QueryRow(`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check migration status: %w", err)
	}
	return exists, nil
}

func runMigrationsUp(database *sql.DB, files []string) error {
	log := logger.L()

	for _, file := range files {
		version := filepath.Base(file)

		applied, err := isApplied(database, version)
		if err != nil {
			return err
		}
		if applied {
			log.Info("skipping applied migration", zap.String("version", version))
			continue
		}

		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		upSQL := extractMigrationPart(string(content), "Up")
		if strings.TrimSpace(upSQL) == "" {
			return fmt.Errorf("migration %s has no '-- +migrate Up' section", version)
		}

		log.Info("applying migration", zap.String("version", version))
		if err := applyInTx(database, upSQL, `INSERT INTO schema_migrations (version) VALUES ($1)`, version); err != nil {
			return fmt.Errorf("migration %s: %w", version, err)
		}
	}

	log.Info("all migrations applied")
	return nil
}

func runMigrationsDown(database *sql.DB, files []string) error {
	log := logger.L()

	var lastVersion string
	err := database.QueryRow(`SELECT version FROM schema_migrations ORDER BY applied_at DESC, version DESC LIMIT 1`).Scan(&lastVersion)
	if errors.Is(err, sql.ErrNoRows) {
		log.Info("no migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	filePath := ""
	for _, f := range files {
		if filepath.Base(f) == lastVersion {
			filePath = f
			break
		}
	}
	if filePath == "" {
		return fmt.Errorf("migration file not found for version: %s", lastVersion)
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	downSQL := extractMigrationPart(string(content), "Down")
	log.Info("rolling back migration", zap.String("version", lastVersion))

	if err := applyInTx(database, downSQL, `DELETE FROM schema_migrations WHERE version = $1`, lastVersion); err != nil {
		return fmt.Errorf("rollback %s: %w", lastVersion, err)
	}

	log.Info("rollback successful", zap.String("version", lastVersion))
	return nil
}

func printStatus(database *sql.DB, files []string) error {
	for _, file := range files {
		version := filepath.Base(file)
		applied, err := isApplied(database, version)
		if err != nil {
			return err
		}
		state := "pending"
		if applied {
			state = "applied"
		}
		fmt.Printf("%-8s %s\n", state, version)
	}
	return nil
}

// applyInTx runs a migration body and its bookkeeping statement atomically.
func applyInTx(database *sql.DB, body, bookkeeping, version string) error {
	tx, err := database.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(body); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(bookkeeping, version); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to record migration version: %w", err)
	}
	return tx.Commit()
}

func extractMigrationPart(content string, section string) string {
	var part strings.Builder
	var inPart bool

	for _, line := range strings.Split(content, "\n") {
		if strings.Contains(line, "-- +migrate "+section) {
			inPart = true
			continue
		}
		if inPart && strings.HasPrefix(line, "-- +migrate") {
			break
		}
		if inPart {
			part.WriteString(line + "\n")
		}
	}
	return part.String()
}
