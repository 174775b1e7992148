package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	dbconfig "fireside/pkg/database"
	"fireside/pkg/interfaces"
	"fireside/pkg/types"
)

// Manager implements the interfaces.Store surface on SQLite. All mutations
// flow through a single write goroutine; reads run concurrently against
// the pool with WAL enabled.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	logger       *zap.Logger
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas, and starts the write
// goroutine. The caller is responsible for running migrations.
func NewManager(config *dbconfig.Config, logger *zap.Logger) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		logger:       logger,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop serializes all writes. SQLite allows one writer at a time;
// funneling mutations through one goroutine avoids lock contention.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				m.logger.Warn("database write failed, retrying once",
					zap.Error(err))
				time.Sleep(5 * time.Second)
				err = op.operation(m.db)
			}
			op.result <- err

		case <-m.shutdown:
			return
		}
	}
}

func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("store is shutting down")
	}
}

// CreateUser inserts a user record.
func (m *Manager) CreateUser(ctx context.Context, user *types.User) error {
	if !types.IsValidUserID(user.ID) {
		return types.ErrInvalidUserID
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
			user.ID, user.Name, user.Email, orNow(user.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		return nil
	})
}

// GetUser retrieves a user by ID.
func (m *Manager) GetUser(ctx context.Context, userID string) (*types.User, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, userID)

	var user types.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// CreateProject inserts a project record.
func (m *Manager) CreateProject(ctx context.Context, project *types.Project) error {
	if !types.IsValidProjectID(project.ID) {
		return types.ErrInvalidProjectID
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO projects (id, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
			project.ID, project.Name, project.CreatedBy, orNow(project.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to insert project: %w", err)
		}
		return nil
	})
}

// GetProject retrieves a project by ID.
func (m *Manager) GetProject(ctx context.Context, projectID string) (*types.Project, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, name, created_by, created_at FROM projects WHERE id = ?`, projectID)

	var project types.Project
	err := row.Scan(&project.ID, &project.Name, &project.CreatedBy, &project.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to query project: %w", err)
	}
	return &project, nil
}

// AddProjectMember grants a role on a project, replacing any prior role
// for the same pair.
func (m *Manager) AddProjectMember(ctx context.Context, projectID, userID, role string) error {
	if !types.IsValidRole(role) {
		return types.ErrInvalidRole
	}
	return m.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)
			 ON CONFLICT (project_id, user_id) DO UPDATE SET role = excluded.role`,
			projectID, userID, role,
		)
		if err != nil {
			return fmt.Errorf("failed to insert membership: %w", err)
		}
		return nil
	})
}

// RemoveProjectMember revokes a user's role on a project.
func (m *Manager) RemoveProjectMember(ctx context.Context, projectID, userID string) error {
	return m.executeWrite(func(db *sql.DB) error {
		result, err := db.ExecContext(ctx,
			`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
			projectID, userID,
		)
		if err != nil {
			return fmt.Errorf("failed to delete membership: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return interfaces.ErrMemberNotFound
		}
		return nil
	})
}

// HasProjectRole reports whether any role record exists for the pair.
func (m *Manager) HasProjectRole(ctx context.Context, userID, projectID string) (bool, error) {
	var count int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to query membership: %w", err)
	}
	return count > 0, nil
}

// HealthCheck validates connectivity and that the schema is queryable.
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var count int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users LIMIT 1`).Scan(&count); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB exposes the pool for migrations and schema validation.
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close stops the write goroutine and closes the database. Safe to call
// more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
