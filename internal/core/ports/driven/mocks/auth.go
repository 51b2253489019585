package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Ensure MockAuthAdapter implements AuthAdapter
var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

// MockAuthAdapter is a mock implementation of AuthAdapter for testing.
// It uses plain text password comparison and unsigned three-segment tokens
// carrying base64url-encoded JSON claims.
// NOT secure - only for testing.
type MockAuthAdapter struct {
	// VerifyCalls counts VerifyPassword invocations
	VerifyCalls int
	// IssueErr, when set, is returned by IssueToken
	IssueErr error
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

// HashPassword returns the password as-is (for testing only)
func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	return password, nil
}

// VerifyPassword compares password with hash directly (for testing only)
func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	m.VerifyCalls++
	return hash != "" && password == hash
}

// IssueToken creates a base64-encoded JSON token from claims
func (m *MockAuthAdapter) IssueToken(subject string, ttl time.Duration) (domain.IssuedToken, error) {
	if m.IssueErr != nil {
		return domain.IssuedToken{}, m.IssueErr
	}
	now := time.Now()
	claims := domain.TokenClaims{
		Subject:   subject,
		TokenID:   fmt.Sprintf("%d", now.UnixNano()),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	}
	data, err := json.Marshal(claims)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("failed to marshal claims: %w", err)
	}
	return domain.IssuedToken{
		Token:     "mock." + base64.RawURLEncoding.EncodeToString(data) + ".unsigned",
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}

// ParseToken decodes a base64-encoded JSON token and returns claims
func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[0] != "mock" {
		return nil, domain.ErrTokenInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}

	return &claims, nil
}
