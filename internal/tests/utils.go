package tests

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/sqlite"
	"github.com/rhinofi/ampleforth-wrapper/internal/sqlite/migrations"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func GetConfig() *config.Config {
	return config.NewConfig()
}

func GenerateTestDbName() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("test_%s", strings.ReplaceAll(id.String(), "-", "")), nil
}

// GetDbConfigFromEnv reads postgres connection details for tests that need a live database.
// It returns nil when TEST_DB_HOST is unset.
func GetDbConfigFromEnv() *config.DatabaseConfig {
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		return nil
	}
	port, err := strconv.Atoi(os.Getenv("TEST_DB_PORT"))
	if err != nil {
		port = 5432
	}
	return &config.DatabaseConfig{
		Driver:   string(config.DbDriver_Postgres),
		Host:     host,
		Port:     port,
		User:     os.Getenv("TEST_DB_USER"),
		Password: os.Getenv("TEST_DB_PASSWORD"),
	}
}

// GetInMemorySqliteDatabaseConnection returns a migrated, private in-memory database.
func GetInMemorySqliteDatabaseConnection(l *zap.Logger) (*gorm.DB, error) {
	name, err := GenerateTestDbName()
	if err != nil {
		return nil, err
	}
	grm, err := sqlite.NewGormSqliteFromSqlite(sqlite.NewSqlite(sqlite.InMemoryPath(name)))
	if err != nil {
		return nil, err
	}
	if err := migrations.NewSqliteMigrator(grm, l).MigrateAll(); err != nil {
		return nil, err
	}
	return grm, nil
}

func CloseDatabase(grm *gorm.DB) {
	if rawDb, err := grm.DB(); err == nil {
		_ = rawDb.Close()
	}
}
