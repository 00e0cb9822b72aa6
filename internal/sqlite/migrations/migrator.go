package migrations

import (
	"fmt"
	"time"

	_202610010900_ledgerTables "github.com/rhinofi/ampleforth-wrapper/internal/sqlite/migrations/202610010900_ledgerTables"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ISqliteMigration interface {
	Up(grm *gorm.DB) error
	GetName() string
}

type SqliteMigrator struct {
	GDb    *gorm.DB
	Logger *zap.Logger
}

func NewSqliteMigrator(gDb *gorm.DB, l *zap.Logger) *SqliteMigrator {
	return &SqliteMigrator{
		GDb:    gDb,
		Logger: l,
	}
}

func (m *SqliteMigrator) MigrateAll() error {
	err := m.CreateMigrationTablesIfNotExists()
	if err != nil {
		return err
	}

	migrations := []ISqliteMigration{
		&_202610010900_ledgerTables.SqliteMigration{},
	}

	m.Logger.Sugar().Debug("Running migrations")
	for _, migration := range migrations {
		if err := m.Migrate(migration); err != nil {
			return err
		}
	}
	return nil
}

func (m *SqliteMigrator) CreateMigrationTablesIfNotExists() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS migrations (
			name TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT NULL
		)`,
	}

	for _, query := range queries {
		res := m.GDb.Exec(query)
		if res.Error != nil {
			m.Logger.Sugar().Errorw("Failed to create migration table", zap.Error(res.Error))
			return res.Error
		}
	}
	return nil
}

func (m *SqliteMigrator) Migrate(migration ISqliteMigration) error {
	name := migration.GetName()

	var migrationRecord Migrations
	result := m.GDb.Find(&migrationRecord, "name = ?", name).Limit(1)

	if result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to find migration '%s'", name), zap.Error(result.Error))
		return result.Error
	}
	if result.RowsAffected > 0 {
		m.Logger.Sugar().Debugf("Migration %s already run", name)
		return nil
	}

	m.Logger.Sugar().Infof("Running migration '%s'", name)
	if err := migration.Up(m.GDb); err != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to run migration '%s'", name), zap.Error(err))
		return err
	}

	migrationRecord = Migrations{
		Name: name,
	}
	if result = m.GDb.Create(&migrationRecord); result.Error != nil {
		m.Logger.Sugar().Errorw(fmt.Sprintf("Failed to record migration '%s'", name), zap.Error(result.Error))
		return result.Error
	}
	return nil
}

type Migrations struct {
	Name      string `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
