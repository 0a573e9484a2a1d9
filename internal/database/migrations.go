package database

import (
	"database/sql"
	"fmt"
)

type migration struct {
	name       string
	statements []string
}

var migrations = []migration{
	{
		name: "2025_01_01_create_submissions_table",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS submissions (
				work_uid TEXT PRIMARY KEY,
				app_name TEXT NOT NULL,
				app_uid TEXT NOT NULL,
				cmdline TEXT NOT NULL DEFAULT '',
				stdin_uid TEXT NOT NULL DEFAULT '',
				tag TEXT NOT NULL DEFAULT '',
				status TEXT NOT NULL DEFAULT 'UNAVAILABLE',
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		name: "2025_01_02_add_submissions_result_columns",
		statements: []string{
			`ALTER TABLE submissions ADD COLUMN result_path TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE submissions ADD COLUMN error TEXT NOT NULL DEFAULT ''`,
		},
	},
	{
		name: "2025_01_03_create_submissions_indexes",
		statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
			`CREATE INDEX IF NOT EXISTS idx_submissions_app_name ON submissions(app_name)`,
			`CREATE INDEX IF NOT EXISTS idx_submissions_created_at ON submissions(created_at)`,
		},
	},
}

func createMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS migrations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		migration TEXT UNIQUE NOT NULL,
		batch INTEGER NOT NULL,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	return err
}

func hasMigrationRun(db *sql.DB, name string) (bool, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM migrations WHERE migration = ?", name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordMigration(db *sql.DB, name string, batch int) error {
	_, err := db.Exec("INSERT INTO migrations (migration, batch) VALUES (?, ?)", name, batch)
	return err
}

func nextBatch(db *sql.DB) (int, error) {
	var batch sql.NullInt64
	if err := db.QueryRow("SELECT MAX(batch) FROM migrations").Scan(&batch); err != nil {
		return 0, err
	}
	return int(batch.Int64) + 1, nil
}

func runMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return err
	}

	batch, err := nextBatch(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		done, err := hasMigrationRun(db, m.name)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %s: %w", m.name, err)
			}
		}
		if _, err := tx.Exec("INSERT INTO migrations (migration, batch) VALUES (?, ?)", m.name, batch); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
