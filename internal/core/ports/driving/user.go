package driving

import (
	"context"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

// CreateUserRequest represents a request to create a new user
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// IssueCredentialRequest asks for a new bearer key for an existing user
type IssueCredentialRequest struct {
	Email string                `json:"email"`
	Kind  domain.CredentialKind `json:"kind"`
}

// ProvisioningService creates users and credentials out of band.
// It is driven by the admin subcommands, never by the auth flows.
type ProvisioningService interface {
	// CreateUser hashes the password and stores a new user
	CreateUser(ctx context.Context, req CreateUserRequest) (*domain.UserSummary, error)

	// IssueCredential mints a new key; the plaintext is only returned here
	IssueCredential(ctx context.Context, req IssueCredentialRequest) (*domain.IssuedCredential, error)
}
