package database

import (
	"fmt"

	"leblingo/internal/config"
	"leblingo/internal/logger"

	_ "github.com/godror/godror" // Oracle driver for the main connection
	"github.com/jmoiron/sqlx"
)

// NewSQLXOracleDB opens the main Oracle connection pool using the godror
// driver.
func NewSQLXOracleDB(dbCfg config.DBConfig) (*sqlx.DB, error) {
	connectString := fmt.Sprintf("%s:%d/%s", dbCfg.Host, dbCfg.Port, dbCfg.Name)
	dsn := fmt.Sprintf("user=%q password=%q connectString=%q", dbCfg.User, dbCfg.Password, connectString)

	db, err := sqlx.Connect("godror", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Oracle database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping Oracle database: %w", err)
	}

	logger.Get().Info("Connected to Oracle database")
	return db, nil
}
