package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
	"github.com/custodia-labs/credgate/internal/core/ports/driving"
)

// Ensure provisioningService implements ProvisioningService
var _ driving.ProvisioningService = (*provisioningService)(nil)

// minPasswordLength applies to newly provisioned users only
const minPasswordLength = 8

// provisioningService implements the ProvisioningService interface
type provisioningService struct {
	userStore       driven.UserStore
	credentialStore driven.CredentialStore
	hasher          driven.PasswordHasher
}

// NewProvisioningService creates a new ProvisioningService
func NewProvisioningService(
	userStore driven.UserStore,
	credentialStore driven.CredentialStore,
	hasher driven.PasswordHasher,
) driving.ProvisioningService {
	return &provisioningService{
		userStore:       userStore,
		credentialStore: credentialStore,
		hasher:          hasher,
	}
}

// CreateUser stores a new user with a hashed password
func (s *provisioningService) CreateUser(ctx context.Context, req driving.CreateUserRequest) (*domain.UserSummary, error) {
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.userStore.Save(ctx, user); err != nil {
		return nil, err
	}

	return user.ToSummary(), nil
}

// IssueCredential mints a random key for the user and stores its digest
func (s *provisioningService) IssueCredential(ctx context.Context, req driving.IssueCredentialRequest) (*domain.IssuedCredential, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown credential kind %q", domain.ErrInvalidInput, req.Kind)
	}

	user, err := s.userStore.GetByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: no user with email %s", domain.ErrNotFound, req.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	key, err := generateKey()
	if err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		ID:      uuid.NewString(),
		UserID:  user.ID,
		Kind:    req.Kind,
		KeyHash: domain.HashKey(key),
		Owner:   user,
	}
	if err := s.credentialStore.Create(ctx, cred); err != nil {
		return nil, fmt.Errorf("store credential: %w", err)
	}

	return &domain.IssuedCredential{
		ID:     cred.ID,
		UserID: user.ID,
		Kind:   cred.Kind,
		Key:    key,
	}, nil
}
