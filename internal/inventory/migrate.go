package inventory

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Migrate creates the inventory tables.
func Migrate(db *sql.DB, log zerolog.Logger) error {
	log.Info().Msg("Running migration: inventory schema")

	statements := []struct {
		label string
		sql   string
	}{
		{"pc_info", `
			CREATE TABLE IF NOT EXISTS pc_info (
				id            INTEGER  PRIMARY KEY AUTOINCREMENT,
				uuid          TEXT     NOT NULL UNIQUE,
				mac_address   TEXT     NOT NULL DEFAULT '',
				network_type  TEXT     NOT NULL DEFAULT '',
				user_name     TEXT     NOT NULL DEFAULT '',
				ip_address    TEXT     NOT NULL DEFAULT '',
				os            TEXT     NOT NULL DEFAULT '',
				os_version    TEXT     NOT NULL DEFAULT '',
				model_name    TEXT     NOT NULL DEFAULT '',
				agent_version TEXT     NOT NULL DEFAULT '',
				created_at    TEXT     NOT NULL,
				updated_at    TEXT     NOT NULL
			);`},
		{"pc_info indexes", `
			CREATE INDEX IF NOT EXISTS idx_pc_info_user_name  ON pc_info(user_name);
			CREATE INDEX IF NOT EXISTS idx_pc_info_ip_address ON pc_info(ip_address);
			CREATE INDEX IF NOT EXISTS idx_pc_info_updated_at ON pc_info(updated_at);`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.sql); err != nil {
			return fmt.Errorf("migration failed at [%s]: %w", s.label, err)
		}
		log.Debug().Str("step", s.label).Msg("Migration step applied")
	}

	log.Info().Msg("Migration completed: inventory tables ready")
	return nil
}
