package interfaces

import (
	"context"

	"fireside/pkg/types"
)

// UserStore resolves user records for handshake authentication.
type UserStore interface {
	// GetUser retrieves a user by ID, returning ErrUserNotFound when no
	// such user exists.
	GetUser(ctx context.Context, userID string) (*types.User, error)
}

// MembershipStore answers project membership lookups for the
// authorization gate. Lookups are re-evaluated on every join attempt;
// callers must not cache results.
type MembershipStore interface {
	// HasProjectRole reports whether any role record exists for the
	// (user, project) pair. An error means the lookup itself failed, not
	// that the user lacks access; callers decide how to fail.
	HasProjectRole(ctx context.Context, userID, projectID string) (bool, error)
}

// Store is the full persistence surface the realtime server consumes.
// The write operations exist so the surrounding product (and tests) can
// seed users, projects, and role grants.
type Store interface {
	UserStore
	MembershipStore

	CreateUser(ctx context.Context, user *types.User) error
	CreateProject(ctx context.Context, project *types.Project) error
	GetProject(ctx context.Context, projectID string) (*types.Project, error)
	AddProjectMember(ctx context.Context, projectID, userID, role string) error
	RemoveProjectMember(ctx context.Context, projectID, userID string) error

	// HealthCheck verifies the store is queryable; the health surface
	// derives its boolean status from it.
	HealthCheck(ctx context.Context) error

	// Close flushes pending writes and releases the underlying database.
	Close() error
}
