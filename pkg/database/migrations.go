package database

import (
	"database/sql"
	"fmt"
)

// Migration is one versioned schema change.
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// Builtin migrations, applied in order. The realtime server owns a read
// model of the product's users, projects, and membership roles; the REST
// backend writes the same schema.
var builtinMigrations = []Migration{
	{
		Version:     "001",
		Description: "users",
		SQL: `
			CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				email      TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
		`,
	},
	{
		Version:     "002",
		Description: "projects",
		SQL: `
			CREATE TABLE IF NOT EXISTS projects (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				created_by TEXT NOT NULL REFERENCES users(id),
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_projects_created_by ON projects(created_by);
		`,
	},
	{
		Version:     "003",
		Description: "project_members",
		SQL: `
			CREATE TABLE IF NOT EXISTS project_members (
				project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				role       TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (project_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_project_members_user ON project_members(user_id);
		`,
	},
}

// MigrationManager applies builtin migrations and tracks applied versions.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager for the given database.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// ApplyMigrations applies all pending migrations. Each migration runs in
// its own transaction; a failure leaves earlier migrations applied.
func (m *MigrationManager) ApplyMigrations() error {
	if err := m.createMigrationTable(); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range builtinMigrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s (%s): %w",
				migration.Version, migration.Description, err)
		}
	}

	return nil
}

func (m *MigrationManager) createMigrationTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (m *MigrationManager) appliedVersions() (map[string]bool, error) {
	rows, err := m.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *MigrationManager) apply(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(migration.SQL); err != nil {
		tx.Rollback()
		return err
	}

	if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, migration.Version); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}
