package types

import (
	"time"
)

// User is a member of the storytelling product. The realtime layer never
// creates users; it only resolves them while authenticating connections.
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email,omitempty" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Project is a family's shared story collection. Project CRUD belongs to
// the REST backend; this layer reads projects only to authorize room joins.
type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Membership is one role record binding a user to a project. Holding any
// role at all grants access to the project's realtime room.
type Membership struct {
	ProjectID string    `json:"project_id" db:"project_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Project roles recognized by the membership store.
const (
	RoleOwner       = "owner"
	RoleContributor = "contributor"
	RoleViewer      = "viewer"
)

// RegistryStats is the registry's slice of a statistics snapshot.
type RegistryStats struct {
	TotalConnections int            `json:"total_connections"`
	ActiveProjects   int            `json:"active_projects"`
	ProjectCounts    map[string]int `json:"project_counts"`
	UniqueUsers      int            `json:"unique_users"`
}

// RateLimiterStats describes the limiter's current load and configuration.
type RateLimiterStats struct {
	TrackedUsers int           `json:"tracked_users"`
	Window       time.Duration `json:"window"`
	MaxEvents    int           `json:"max_events"`
}

// Stats is the full point-in-time snapshot served on the health surface.
// It is derived on demand; nothing stores it as independent state.
type Stats struct {
	Registry    RegistryStats    `json:"registry"`
	RateLimiter RateLimiterStats `json:"rate_limiter"`
}
