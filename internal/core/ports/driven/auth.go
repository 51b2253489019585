package driven

import (
	"time"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

// PasswordVerifier checks a plaintext password against a stored hash.
// It never fails: a malformed hash is reported as a mismatch.
type PasswordVerifier interface {
	VerifyPassword(password, hash string) bool
}

// PasswordHasher produces hashes accepted by PasswordVerifier
type PasswordHasher interface {
	HashPassword(password string) (string, error)
}

// TokenIssuer mints and verifies signed access tokens
type TokenIssuer interface {
	// IssueToken signs a token for subject that expires ttl from now
	IssueToken(subject string, ttl time.Duration) (domain.IssuedToken, error)

	// ParseToken verifies the signature and expiry of a token
	ParseToken(token string) (*domain.TokenClaims, error)
}

// AuthAdapter handles authentication cryptographic operations.
// This does NOT handle storage - use CredentialStore for persistence.
type AuthAdapter interface {
	PasswordVerifier
	PasswordHasher
	TokenIssuer
}
