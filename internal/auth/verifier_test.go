package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fireside/pkg/interfaces"
	"fireside/pkg/types"
)

const testSecret = "test-secret"

// fakeUserStore resolves users from a fixed map.
type fakeUserStore struct {
	users map[string]*types.User
}

func (s *fakeUserStore) GetUser(_ context.Context, id string) (*types.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, interfaces.ErrUserNotFound
	}
	return user, nil
}

func newTestVerifier() *Verifier {
	return NewVerifier(testSecret, &fakeUserStore{
		users: map[string]*types.User{
			"u1": {ID: "u1", Name: "Rosa", Email: "rosa@example.com"},
		},
	}, zap.NewNop())
}

func TestVerify(t *testing.T) {
	verifier := newTestVerifier()

	token, err := Sign(testSecret, "u1", "Rosa", time.Hour)
	require.NoError(t, err)

	user, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "Rosa", user.Name)
}

func TestVerify_MissingToken(t *testing.T) {
	verifier := newTestVerifier()

	_, err := verifier.Verify(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestVerify_Garbage(t *testing.T) {
	verifier := newTestVerifier()

	_, err := verifier.Verify(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	verifier := newTestVerifier()

	token, err := Sign("some-other-secret", "u1", "Rosa", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	verifier := newTestVerifier()

	token, err := Sign(testSecret, "u1", "Rosa", -time.Minute)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MissingSubject(t *testing.T) {
	verifier := newTestVerifier()

	token, err := Sign(testSecret, "", "Rosa", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_UnknownUser(t *testing.T) {
	verifier := newTestVerifier()

	token, err := Sign(testSecret, "deleted-user", "Ghost", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsUnsignedAlgorithm(t *testing.T) {
	verifier := newTestVerifier()

	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = verifier.Verify(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
