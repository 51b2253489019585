package driving

import (
	"context"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

// AuthService handles the credential and token lifecycle.
// Expected outcomes (denied, invalid, not found) are typed results;
// the error return is reserved for infrastructure faults.
type AuthService interface {
	// Authenticate verifies a password and issues an access token
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)

	// Refresh rotates a refresh token into a new token pair
	Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.RefreshResult, error)

	// Revoke clears an access credential so it can no longer authenticate
	Revoke(ctx context.Context, req domain.RevokeRequest) (*domain.RevokeResult, error)

	// ValidateToken resolves a bearer token (JWT or API key) to an auth context
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)
}
