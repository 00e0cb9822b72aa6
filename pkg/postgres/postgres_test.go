package postgres

import (
	"os"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rhinofi/ampleforth-wrapper/internal/config"
	"github.com/rhinofi/ampleforth-wrapper/internal/logger"
	"github.com/rhinofi/ampleforth-wrapper/internal/tests"
	"github.com/rhinofi/ampleforth-wrapper/pkg/ledgerStore"
	"github.com/rhinofi/ampleforth-wrapper/pkg/postgres/migrations"
	"github.com/stretchr/testify/assert"
)

func Test_PostgresConnectionString(t *testing.T) {
	t.Run("Should build a connection string with auth and schema", func(t *testing.T) {
		s, err := getPostgresConnectionString(&PostgresConfig{
			Host:       "localhost",
			Port:       5432,
			Username:   "wrapper",
			Password:   "secret",
			DbName:     "ledger",
			SchemaName: "wrapper",
		})
		assert.Nil(t, err)
		assert.Contains(t, s, "host=localhost")
		assert.Contains(t, s, "user=wrapper")
		assert.Contains(t, s, "password=secret")
		assert.Contains(t, s, "dbname=ledger")
		assert.Contains(t, s, "sslmode=disable")
		assert.True(t, strings.HasSuffix(s, "search_path=wrapper"))
	})
	t.Run("Should omit auth fields that are not set", func(t *testing.T) {
		s, err := getPostgresConnectionString(&PostgresConfig{Host: "db", Port: 5433, DbName: "ledger"})
		assert.Nil(t, err)
		assert.NotContains(t, s, "user=")
		assert.NotContains(t, s, "password=")
		assert.NotContains(t, s, "search_path")
	})
	t.Run("Should reject an unknown ssl mode", func(t *testing.T) {
		_, err := getPostgresConnectionString(&PostgresConfig{Host: "db", SSLMode: "sometimes"})
		assert.NotNil(t, err)

		s, err := getPostgresConnectionString(&PostgresConfig{Host: "db", SSLMode: "verify-full"})
		assert.Nil(t, err)
		assert.Contains(t, s, "sslmode=verify-full")
	})
	t.Run("Should map the database config", func(t *testing.T) {
		pg := PostgresConfigFromDbConfig(&config.DatabaseConfig{
			Host:       "db",
			Port:       6543,
			User:       "u",
			Password:   "p",
			DbName:     "n",
			SchemaName: "s",
			SSLMode:    "require",
		})
		assert.Equal(t, &PostgresConfig{
			Host:       "db",
			Port:       6543,
			Username:   "u",
			Password:   "p",
			DbName:     "n",
			SchemaName: "s",
			SSLMode:    "require",
		}, pg)
	})
	t.Run("Should recognise duplicate key errors", func(t *testing.T) {
		assert.True(t, IsDuplicateKeyError(errors.New(`pq: duplicate key value violates unique constraint "used_authorizations_pkey"`)))
		assert.False(t, IsDuplicateKeyError(errors.New("connection refused")))
	})
}

func Test_Postgres(t *testing.T) {
	dbCfg := tests.GetDbConfigFromEnv()
	if dbCfg == nil {
		t.Skip("TEST_DB_HOST not set")
	}
	cfg := tests.GetConfig()
	cfg.Debug = os.Getenv(config.Debug) == "true"
	cfg.DatabaseConfig = *dbCfg

	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})

	dbName, sqlDb, grm, err := GetTestPostgresDatabase(cfg.DatabaseConfig, l)
	if err != nil {
		t.Fatalf("Failed to setup postgres: %v", err)
	}
	defer TeardownTestDatabase(dbName, cfg, grm, l)

	t.Run("Should skip migrations that already ran", func(t *testing.T) {
		assert.Nil(t, migrations.NewMigrator(sqlDb, grm, l).MigrateAll())

		var count int64
		grm.Model(&migrations.Migrations{}).Count(&count)
		assert.Equal(t, int64(1), count)
	})
	t.Run("Should create the ledger tables", func(t *testing.T) {
		for _, table := range []interface{}{
			&ledgerStore.HolderShare{},
			&ledgerStore.LedgerConfig{},
			&ledgerStore.Proxy{},
			&ledgerStore.UsedAuthorization{},
		} {
			assert.True(t, grm.Migrator().HasTable(table))
		}
	})
}
