package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	dbconfig "fireside/pkg/database"
	"fireside/pkg/interfaces"
	"fireside/pkg/types"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test.db")

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	require.NoError(t, dbconfig.NewMigrationManager(manager.GetDB()).ApplyMigrations())

	return manager
}

func seedUser(t *testing.T, m *Manager, id, name string) {
	t.Helper()
	require.NoError(t, m.CreateUser(context.Background(), &types.User{ID: id, Name: name}))
}

func TestCreateAndGetUser(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	created := &types.User{
		ID:        "u1",
		Name:      "Rosa",
		Email:     "rosa@example.com",
		CreatedAt: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, manager.CreateUser(ctx, created))

	user, err := manager.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Rosa", user.Name)
	assert.Equal(t, "rosa@example.com", user.Email)
}

func TestGetUser_NotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, interfaces.ErrUserNotFound)
}

func TestCreateUser_InvalidID(t *testing.T) {
	manager := newTestManager(t)

	err := manager.CreateUser(context.Background(), &types.User{ID: "bad id!", Name: "X"})
	assert.ErrorIs(t, err, types.ErrInvalidUserID)
}

func TestCreateAndGetProject(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	seedUser(t, manager, "u1", "Rosa")

	require.NoError(t, manager.CreateProject(ctx, &types.Project{
		ID:        "p1",
		Name:      "Family Archive",
		CreatedBy: "u1",
	}))

	project, err := manager.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Family Archive", project.Name)
	assert.Equal(t, "u1", project.CreatedBy)

	_, err = manager.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrProjectNotFound)
}

func TestProjectMembership(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	seedUser(t, manager, "u1", "Rosa")
	seedUser(t, manager, "u2", "Marco")
	require.NoError(t, manager.CreateProject(ctx, &types.Project{ID: "p1", Name: "Archive", CreatedBy: "u1"}))

	require.NoError(t, manager.AddProjectMember(ctx, "p1", "u2", types.RoleContributor))

	allowed, err := manager.HasProjectRole(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = manager.HasProjectRole(ctx, "u1", "p1")
	require.NoError(t, err)
	assert.False(t, allowed, "creating a project grants no implicit role record")

	// Re-granting replaces the role instead of failing.
	require.NoError(t, manager.AddProjectMember(ctx, "p1", "u2", types.RoleViewer))

	require.NoError(t, manager.RemoveProjectMember(ctx, "p1", "u2"))
	allowed, err = manager.HasProjectRole(ctx, "u2", "p1")
	require.NoError(t, err)
	assert.False(t, allowed)

	err = manager.RemoveProjectMember(ctx, "p1", "u2")
	assert.ErrorIs(t, err, interfaces.ErrMemberNotFound)
}

func TestAddProjectMember_InvalidRole(t *testing.T) {
	manager := newTestManager(t)

	err := manager.AddProjectMember(context.Background(), "p1", "u1", "superuser")
	assert.ErrorIs(t, err, types.ErrInvalidRole)
}

func TestHealthCheck(t *testing.T) {
	manager := newTestManager(t)

	assert.NoError(t, manager.HealthCheck(context.Background()))
}

func TestClose_Idempotent(t *testing.T) {
	manager := newTestManager(t)

	require.NoError(t, manager.Close())
	assert.NoError(t, manager.Close())

	err := manager.CreateUser(context.Background(), &types.User{ID: "u1", Name: "Rosa"})
	assert.Error(t, err, "writes after close are refused")
}

func TestSchemaAfterMigrations(t *testing.T) {
	manager := newTestManager(t)

	validator := dbconfig.NewSchemaValidator(manager.GetDB())
	assert.NoError(t, validator.ValidateTablesExist())
	assert.NoError(t, validator.ValidateIndexes())

	// Running migrations again is a no-op.
	assert.NoError(t, dbconfig.NewMigrationManager(manager.GetDB()).ApplyMigrations())
}
