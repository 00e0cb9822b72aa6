package _202610010900_ledgerTables

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS holder_shares (
			holder varchar not null primary key,
			shares numeric not null,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_config (
			key varchar not null primary key,
			value varchar not null,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS proxies (
			address varchar not null primary key,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS used_authorizations (
			digest varchar not null primary key,
			holder varchar not null,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_used_authorizations_holder ON used_authorizations (holder)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202610010900_ledgerTables"
}
