package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"leblingo/internal/logger"

	_ "github.com/sijms/go-ora/v2" // Pure-Go Oracle driver for the migrate CLI
	"go.uber.org/zap"
)

// NewMigrateOracleDB opens an Oracle connection with the pure-Go go-ora
// driver, so the migrate CLI runs without an Oracle client installation.
// The DSN is the oracle:// URL form from config.GetDSN.
func NewMigrateOracleDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not ping database: %w", err)
	}

	return db, nil
}

// RunMigrations executes every *.up.sql file in migrationsDir in filename
// order. Each file holds a single statement; Oracle rejects multi-statement
// batches over this driver.
func RunMigrations(db *sql.DB, migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("could not read migrations directory: %w", err)
	}

	log := logger.Get()
	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".up.sql") {
			continue
		}

		content, err := os.ReadFile(filepath.Join(migrationsDir, file.Name()))
		if err != nil {
			return fmt.Errorf("could not read migration file %s: %w", file.Name(), err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			// ORA-00955: name is already used by an existing object.
			// Re-running migrations against an existing schema is fine.
			if strings.Contains(err.Error(), "ORA-00955") {
				log.Info("Migration already applied", zap.String("file", file.Name()))
				continue
			}
			return fmt.Errorf("could not execute migration %s: %w", file.Name(), err)
		}

		log.Info("Executed migration", zap.String("file", file.Name()))
	}

	log.Info("Migrations completed successfully")
	return nil
}
