package domain

import (
	"encoding/json"
	"time"
)

// TokenTypeBearer is the token type marker returned with every access token
const TokenTypeBearer = "bearer"

// Revocation messages
const (
	RevokeMessageSuccess  = "Token successfully revoked."
	RevokeMessageNotFound = "Token not found or already revoked."
)

// LoginRequest represents a login attempt. Username is the user's email.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh attempt
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RevokeRequest represents a revocation of an access credential
type RevokeRequest struct {
	AccessToken string `json:"access_token"`
}

// AuthOutcome is the typed outcome of the authentication flow
type AuthOutcome int

const (
	AuthDenied AuthOutcome = iota
	AuthSuccess
)

// AuthResult is returned by the authentication flow.
// A denied result always has the same shape regardless of the cause.
type AuthResult struct {
	Outcome     AuthOutcome `json:"-"`
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int64       `json:"expires_in"`
}

// Denied returns the single denied shape used for unknown users and wrong passwords
func Denied() *AuthResult {
	return &AuthResult{
		Outcome:   AuthDenied,
		TokenType: TokenTypeBearer,
	}
}

// RefreshOutcome is the typed outcome of the refresh flow
type RefreshOutcome int

const (
	RefreshInvalid RefreshOutcome = iota
	RefreshSuccess
)

// OptionalToken holds a token that may be absent.
// Callers must go through Get to read it.
type OptionalToken struct {
	value   string
	present bool
}

// SomeToken wraps a present token value
func SomeToken(v string) OptionalToken {
	return OptionalToken{value: v, present: true}
}

// NoToken is the absent value
func NoToken() OptionalToken {
	return OptionalToken{}
}

// Get returns the value and whether it is present
func (o OptionalToken) Get() (string, bool) {
	return o.value, o.present
}

// MarshalJSON encodes the token as a string, or null when absent
func (o OptionalToken) MarshalJSON() ([]byte, error) {
	if !o.present {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// RefreshResult is returned by the refresh flow
type RefreshResult struct {
	Outcome      RefreshOutcome `json:"-"`
	AccessToken  string         `json:"access_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	RefreshToken OptionalToken  `json:"refresh_token"`
}

// InvalidRefresh returns the result for an unknown or already rotated refresh token
func InvalidRefresh() *RefreshResult {
	return &RefreshResult{
		Outcome:      RefreshInvalid,
		TokenType:    TokenTypeBearer,
		RefreshToken: NoToken(),
	}
}

// RevokeOutcome is the typed outcome of the revocation flow
type RevokeOutcome int

const (
	RevokeNotFound RevokeOutcome = iota
	RevokeSuccess
)

// RevokeResult is returned by the revocation flow
type RevokeResult struct {
	Outcome RevokeOutcome `json:"-"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
}

// Revoked returns the success result
func Revoked() *RevokeResult {
	return &RevokeResult{Outcome: RevokeSuccess, Status: "success", Message: RevokeMessageSuccess}
}

// RevokeMiss returns the idempotent not-found result
func RevokeMiss() *RevokeResult {
	return &RevokeResult{Outcome: RevokeNotFound, Status: "error", Message: RevokeMessageNotFound}
}

// IssuedToken is a freshly signed access token
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
	ExpiresIn int64 // seconds
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	Subject   string `json:"sub"`
	TokenID   string `json:"jti"`
	Issuer    string `json:"iss"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// AuthMethod records how a request was authenticated
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID       string     `json:"user_id"`
	Email        string     `json:"email,omitempty"`
	Method       AuthMethod `json:"method"`
	CredentialID string     `json:"credential_id,omitempty"`
}
