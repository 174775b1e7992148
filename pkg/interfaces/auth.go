package interfaces

import (
	"context"

	"fireside/pkg/types"
)

// CredentialVerifier validates a bearer credential presented during the
// connection handshake and resolves it to an existing user. A non-nil
// error means the connection must be rejected; no registry state may
// exist for it.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (*types.User, error)
}
