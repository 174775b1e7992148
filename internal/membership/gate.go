package membership

import (
	"context"

	"go.uber.org/zap"

	"fireside/pkg/interfaces"
)

// Gate authorizes room joins. Every join attempt re-asks the membership
// store; membership can change between joins and a lookup is cheap next
// to a human-driven join action, so there is no cache to invalidate.
type Gate struct {
	store  interfaces.MembershipStore
	logger *zap.Logger
}

// NewGate creates an authorization gate backed by the membership store.
func NewGate(store interfaces.MembershipStore, logger *zap.Logger) *Gate {
	return &Gate{
		store:  store,
		logger: logger,
	}
}

// Authorize reports whether the user holds any role on the project. A
// failing lookup denies: clients see the same access-denied answer
// whether the role record is absent or the store is unreachable.
func (g *Gate) Authorize(ctx context.Context, userID, projectID string) bool {
	allowed, err := g.store.HasProjectRole(ctx, userID, projectID)
	if err != nil {
		g.logger.Warn("membership lookup failed, denying join",
			zap.String("userID", userID),
			zap.String("projectID", projectID),
			zap.Error(err))
		return false
	}
	return allowed
}
