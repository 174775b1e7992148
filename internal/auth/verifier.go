package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"fireside/pkg/interfaces"
	"fireside/pkg/types"
)

// Claims is the JWT payload minted by the REST backend when a client logs
// in. The subject is the user ID.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks bearer credentials with HMAC signing and resolves the
// subject against the user store. A token naming a user that no longer
// exists is invalid.
type Verifier struct {
	secret []byte
	users  interfaces.UserStore
	logger *zap.Logger
}

// NewVerifier creates a credential verifier.
func NewVerifier(secret string, users interfaces.UserStore, logger *zap.Logger) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		users:  users,
		logger: logger,
	}
}

// Verify parses and validates a bearer token, then resolves its subject
// to a live user record.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*types.User, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		v.logger.Debug("token validation failed", zap.Error(err))
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	user, err := v.users.GetUser(ctx, claims.Subject)
	if err != nil {
		v.logger.Debug("token subject lookup failed",
			zap.String("userID", claims.Subject), zap.Error(err))
		return nil, ErrInvalidToken
	}

	return user, nil
}

// Sign mints a token for the given user, valid for ttl. The REST backend
// owns credential issuance in production; this exists for tooling and
// tests.
func Sign(secret, userID, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
