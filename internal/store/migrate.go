package store

import (
	"database/sql"
	"fmt"

	"github.com/TobiSchelling/MeduzaReader/internal/logging"
)

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// isLegacyDB reports whether the database holds an articles table from
// the flat single-table layout that predates the migration system. That
// layout has no published_at column.
func isLegacyDB(conn *sql.DB) (bool, error) {
	var tables int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='articles'",
	).Scan(&tables)
	if err != nil {
		return false, fmt.Errorf("checking for legacy tables: %w", err)
	}
	if tables == 0 {
		return false, nil
	}

	var cols int
	err = conn.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('articles') WHERE name='published_at'",
	).Scan(&cols)
	if err != nil {
		return false, fmt.Errorf("inspecting legacy table: %w", err)
	}
	return cols == 0, nil
}

// migrate brings the database schema up to the latest version.
// It uses PRAGMA user_version to track which migrations have been applied.
func migrate(conn *sql.DB) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	// A legacy table is moved aside so migration 1 can create the current
	// layout and migration 2 can import its rows.
	if current == 0 {
		legacy, err := isLegacyDB(conn)
		if err != nil {
			return err
		}
		if legacy {
			logging.Infof("detected legacy articles table, moving it to %s", legacyTable)
			if _, err := conn.Exec("ALTER TABLE articles RENAME TO " + legacyTable); err != nil {
				return fmt.Errorf("renaming legacy table: %w", err)
			}
		}
	}

	latest := latestVersion()
	if current >= latest {
		return nil
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}

		logging.Infof("applying migration %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// Set user_version outside the transaction (modernc/sqlite requirement).
		// Safe: if we crash here, the idempotent DDL lets the migration re-run.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting version %d: %w", m.Version, err)
		}
	}

	return nil
}
