package driven

import (
	"context"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

// CredentialStore persists bearer credentials (SQL or Redis).
// Keys are addressed by their digest, never by plaintext.
type CredentialStore interface {
	// Create stores a new credential record
	Create(ctx context.Context, cred *domain.Credential) error

	// FindByKey resolves an active credential of the given kind. Owner is set
	// only by backends that join the user row in the same lookup.
	// Returns domain.ErrNotFound when nothing matches.
	FindByKey(ctx context.Context, kind domain.CredentialKind, keyHash string) (*domain.Credential, error)

	// RotateKey replaces the key of record id, but only while it still
	// holds oldHash. Returns domain.ErrNotFound if another writer got there first.
	RotateKey(ctx context.Context, id, oldHash, newHash string) error

	// ClearKey revokes record id if it still holds keyHash.
	// Returns domain.ErrNotFound if it was already cleared or rotated.
	ClearKey(ctx context.Context, id, keyHash string) error

	// Ping checks if the backend is healthy
	Ping(ctx context.Context) error
}
