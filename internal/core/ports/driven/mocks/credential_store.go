package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Ensure MockCredentialStore implements CredentialStore
var _ driven.CredentialStore = (*MockCredentialStore)(nil)

// MockCredentialStore is an in-memory CredentialStore for testing.
// Rotation and revocation are conditional on the current key, like the real stores.
type MockCredentialStore struct {
	mu      sync.Mutex
	records map[string]*domain.Credential
	users   *MockUserStore
	err     error
}

// NewMockCredentialStore creates a new MockCredentialStore.
// Owners are resolved through users when it is non-nil.
func NewMockCredentialStore(users *MockUserStore) *MockCredentialStore {
	return &MockCredentialStore{
		records: make(map[string]*domain.Credential),
		users:   users,
	}
}

func (m *MockCredentialStore) Create(ctx context.Context, cred *domain.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.records[cred.ID]; ok {
		return domain.ErrAlreadyExists
	}
	for _, r := range m.records {
		if r.Kind == cred.Kind && r.KeyHash != "" && r.KeyHash == cred.KeyHash {
			return domain.ErrAlreadyExists
		}
	}
	c := *cred
	c.Owner = nil
	m.records[cred.ID] = &c
	return nil
}

func (m *MockCredentialStore) FindByKey(ctx context.Context, kind domain.CredentialKind, keyHash string) (*domain.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if keyHash == "" {
		return nil, domain.ErrNotFound
	}
	for _, r := range m.records {
		if r.Kind == kind && r.KeyHash == keyHash {
			c := *r
			c.Owner = m.owner(r.UserID)
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockCredentialStore) RotateKey(ctx context.Context, id, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r, ok := m.records[id]
	if !ok || oldHash == "" || r.KeyHash != oldHash {
		return domain.ErrNotFound
	}
	r.KeyHash = newHash
	return nil
}

func (m *MockCredentialStore) ClearKey(ctx context.Context, id, keyHash string) error {
	return m.RotateKey(ctx, id, keyHash, "")
}

func (m *MockCredentialStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *MockCredentialStore) owner(userID string) *domain.User {
	if m.users != nil {
		if u, err := m.users.Get(context.Background(), userID); err == nil {
			return u
		}
	}
	return &domain.User{ID: userID}
}

// Helper methods for testing

// SetError makes every subsequent call fail with err (nil clears it)
func (m *MockCredentialStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Get returns a copy of the record with the given ID
func (m *MockCredentialStore) Get(id string) (*domain.Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return nil, false
	}
	c := *r
	return &c, true
}
