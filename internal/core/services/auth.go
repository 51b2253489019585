package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
	"github.com/custodia-labs/credgate/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

const (
	// DefaultAccessTokenTTL is the validity window of login-issued tokens
	DefaultAccessTokenTTL = 30 * time.Minute

	// DefaultRefreshedAccessTokenTTL is the validity window of refresh-issued tokens
	DefaultRefreshedAccessTokenTTL = time.Hour

	// refreshKeyBytes is the entropy of generated bearer keys
	refreshKeyBytes = 32
)

// AuthConfig holds token lifetimes for the auth flows
type AuthConfig struct {
	AccessTokenTTL          time.Duration
	RefreshedAccessTokenTTL time.Duration
}

// DefaultAuthConfig returns the reference lifetimes (1800s / 3600s)
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenTTL:          DefaultAccessTokenTTL,
		RefreshedAccessTokenTTL: DefaultRefreshedAccessTokenTTL,
	}
}

// authService implements the AuthService interface
type authService struct {
	userStore       driven.UserStore
	credentialStore driven.CredentialStore
	passwords       driven.PasswordVerifier
	tokens          driven.TokenIssuer
	cfg             AuthConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(
	userStore driven.UserStore,
	credentialStore driven.CredentialStore,
	passwords driven.PasswordVerifier,
	tokens driven.TokenIssuer,
	cfg AuthConfig,
) driving.AuthService {
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = DefaultAccessTokenTTL
	}
	if cfg.RefreshedAccessTokenTTL <= 0 {
		cfg.RefreshedAccessTokenTTL = DefaultRefreshedAccessTokenTTL
	}
	return &authService{
		userStore:       userStore,
		credentialStore: credentialStore,
		passwords:       passwords,
		tokens:          tokens,
		cfg:             cfg,
	}
}

// Authenticate verifies credentials and issues an access token.
// Unknown users and wrong passwords produce the same Denied result.
func (s *authService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	if req.Username == "" || req.Password == "" {
		return domain.Denied(), nil
	}

	user, err := s.userStore.GetByEmail(ctx, req.Username)
	if errors.Is(err, domain.ErrNotFound) {
		// Burn the same hashing effort as a real comparison
		s.passwords.VerifyPassword(req.Password, "")
		return domain.Denied(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		return domain.Denied(), nil
	}

	issued, err := s.tokens.IssueToken(user.ID, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &domain.AuthResult{
		Outcome:     domain.AuthSuccess,
		AccessToken: issued.Token,
		TokenType:   domain.TokenTypeBearer,
		ExpiresIn:   issued.ExpiresIn,
	}, nil
}

// Refresh rotates a refresh token and issues a new access token.
// The presented token stops resolving as soon as the rotation is written.
func (s *authService) Refresh(ctx context.Context, req domain.RefreshRequest) (*domain.RefreshResult, error) {
	if req.RefreshToken == "" {
		return domain.InvalidRefresh(), nil
	}

	oldHash := domain.HashKey(req.RefreshToken)
	cred, err := s.credentialStore.FindByKey(ctx, domain.CredentialKindRefresh, oldHash)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.InvalidRefresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	newRefresh, err := generateKey()
	if err != nil {
		return nil, err
	}

	// Conditional write: only one concurrent caller can move the key off oldHash
	err = s.credentialStore.RotateKey(ctx, cred.ID, oldHash, domain.HashKey(newRefresh))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.InvalidRefresh(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}

	issued, err := s.tokens.IssueToken(cred.UserID, s.cfg.RefreshedAccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	return &domain.RefreshResult{
		Outcome:      domain.RefreshSuccess,
		AccessToken:  issued.Token,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    issued.ExpiresIn,
		RefreshToken: domain.SomeToken(newRefresh),
	}, nil
}

// Revoke clears an access credential. Revoking twice reports NotFound.
func (s *authService) Revoke(ctx context.Context, req domain.RevokeRequest) (*domain.RevokeResult, error) {
	if req.AccessToken == "" {
		return domain.RevokeMiss(), nil
	}

	keyHash := domain.HashKey(req.AccessToken)
	cred, err := s.credentialStore.FindByKey(ctx, domain.CredentialKindAccess, keyHash)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RevokeMiss(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup access token: %w", err)
	}

	err = s.credentialStore.ClearKey(ctx, cred.ID, keyHash)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RevokeMiss(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("revoke access token: %w", err)
	}

	return domain.Revoked(), nil
}

// ValidateToken resolves a bearer token to an auth context.
// Signed tokens are checked locally; anything else is looked up as an API key
// whose owner must still exist.
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	if looksLikeJWT(token) {
		claims, err := s.tokens.ParseToken(token)
		if err != nil {
			if errors.Is(err, domain.ErrTokenExpired) {
				return nil, domain.ErrTokenExpired
			}
			return nil, domain.ErrTokenInvalid
		}
		return &domain.AuthContext{
			UserID: claims.Subject,
			Method: domain.AuthMethodJWT,
		}, nil
	}

	cred, err := s.credentialStore.FindByKey(ctx, domain.CredentialKindAccess, domain.HashKey(token))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	owner := cred.Owner
	if owner == nil || owner.Email == "" {
		owner, err = s.userStore.Get(ctx, cred.UserID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrTokenInvalid
		}
		if err != nil {
			return nil, fmt.Errorf("lookup key owner: %w", err)
		}
	}

	return &domain.AuthContext{
		UserID:       cred.UserID,
		Email:        owner.Email,
		Method:       domain.AuthMethodAPIKey,
		CredentialID: cred.ID,
	}, nil
}

// Helper functions

// looksLikeJWT reports whether token has the three-segment compact form.
// Generated keys are base64url without dots, so the two never collide.
func looksLikeJWT(token string) bool {
	return strings.Count(token, ".") == 2
}

func generateKey() (string, error) {
	b := make([]byte, refreshKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
