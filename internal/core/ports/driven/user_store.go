package driven

import (
	"context"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

// UserStore handles user persistence (PostgreSQL or SQLite)
type UserStore interface {
	// Save creates a user. Returns domain.ErrAlreadyExists on a duplicate email.
	Save(ctx context.Context, user *domain.User) error

	// Get retrieves a user by ID
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by email
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}
