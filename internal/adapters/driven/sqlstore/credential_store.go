package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore implements driven.CredentialStore over the api_keys table.
// Rotation and revocation are single UPDATEs guarded by the expected digest.
type CredentialStore struct {
	db *DB
}

// NewCredentialStore creates a new CredentialStore
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// Create inserts a new credential record
func (s *CredentialStore) Create(ctx context.Context, cred *domain.Credential) error {
	query := s.db.rebind(`
		INSERT INTO api_keys (id, user_id, kind, key_hash)
		VALUES (?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query, cred.ID, cred.UserID, string(cred.Kind), cred.KeyHash)
	if s.db.isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	return nil
}

// FindByKey resolves an active credential and its owner in one query
func (s *CredentialStore) FindByKey(ctx context.Context, kind domain.CredentialKind, keyHash string) (*domain.Credential, error) {
	if keyHash == "" {
		return nil, domain.ErrNotFound
	}

	query := s.db.rebind(`
		SELECT k.id, k.user_id, k.kind, k.key_hash, u.email
		FROM api_keys k
		JOIN users u ON u.id = k.user_id
		WHERE k.kind = ? AND k.key_hash = ?
	`)

	var (
		cred  domain.Credential
		kindS string
		email string
	)
	err := s.db.QueryRowContext(ctx, query, string(kind), keyHash).Scan(
		&cred.ID,
		&cred.UserID,
		&kindS,
		&cred.KeyHash,
		&email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find credential: %w", err)
	}

	cred.Kind = domain.CredentialKind(kindS)
	cred.Owner = &domain.User{ID: cred.UserID, Email: email}
	return &cred, nil
}

// RotateKey replaces oldHash with newHash if the record still holds oldHash
func (s *CredentialStore) RotateKey(ctx context.Context, id, oldHash, newHash string) error {
	if oldHash == "" {
		return domain.ErrNotFound
	}

	query := s.db.rebind(`
		UPDATE api_keys
		SET key_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND key_hash = ?
	`)

	result, err := s.db.ExecContext(ctx, query, newHash, id, oldHash)
	if s.db.isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("rotate credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rotate credential: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearKey revokes the credential if it still holds keyHash.
// The record is kept with an empty digest.
func (s *CredentialStore) ClearKey(ctx context.Context, id, keyHash string) error {
	return s.RotateKey(ctx, id, keyHash, "")
}

// Ping checks if the database is reachable
func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}
