package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.CredentialStore = (*CredentialStore)(nil)

const (
	// Key prefixes for Redis
	credentialPrefix    = "credgate:credential:"
	credentialKeyPrefix = "credgate:credential:key:"
)

// Hash fields of a credential record
const (
	fieldUserID    = "user_id"
	fieldKind      = "kind"
	fieldKeyHash   = "key_hash"
	fieldUpdatedAt = "updated_at"
)

// CredentialStore implements driven.CredentialStore using Redis.
// Each record is a hash; an index key maps kind+digest to the record ID.
// Mutations run as Lua scripts so the record and its index change together.
// Owners live in the SQL user store, so FindByKey leaves Credential.Owner nil.
type CredentialStore struct {
	client *redis.Client
}

// NewCredentialStore creates a new Redis-backed CredentialStore
func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

func recordKey(id string) string {
	return credentialPrefix + id
}

func indexKey(kind, keyHash string) string {
	return credentialKeyPrefix + kind + ":" + keyHash
}

// createScript inserts a record and its index unless either already exists.
// KEYS[1] record, KEYS[2] index; ARGV: id, user_id, kind, key_hash, updated_at
var createScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return 0
	end
	if ARGV[4] ~= "" then
		if redis.call("exists", KEYS[2]) == 1 then
			return 0
		end
		redis.call("set", KEYS[2], ARGV[1])
	end
	redis.call("hset", KEYS[1],
		"user_id", ARGV[2], "kind", ARGV[3], "key_hash", ARGV[4],
		"updated_at", ARGV[5])
	return 1
`)

// Create stores a new credential record
func (s *CredentialStore) Create(ctx context.Context, cred *domain.Credential) error {
	keys := []string{recordKey(cred.ID), indexKey(string(cred.Kind), cred.KeyHash)}
	created, err := createScript.Run(ctx, s.client, keys,
		cred.ID, cred.UserID, string(cred.Kind), cred.KeyHash, now(),
	).Int64()
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	if created == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// FindByKey resolves an active credential by kind and digest
func (s *CredentialStore) FindByKey(ctx context.Context, kind domain.CredentialKind, keyHash string) (*domain.Credential, error) {
	if keyHash == "" {
		return nil, domain.ErrNotFound
	}

	id, err := s.client.Get(ctx, indexKey(string(kind), keyHash)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}

	fields, err := s.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	// Rotated or cleared between the two reads
	if fields[fieldKeyHash] != keyHash || fields[fieldKind] != string(kind) {
		return nil, domain.ErrNotFound
	}

	return &domain.Credential{
		ID:      id,
		UserID:  fields[fieldUserID],
		Kind:    kind,
		KeyHash: keyHash,
	}, nil
}

// rotateScript moves a record from one digest to another if it still holds the old one.
// KEYS[1] record, KEYS[2] old index, KEYS[3] new index; ARGV: id, old_hash, new_hash, updated_at
// Returns 1 on success, 0 if the record no longer holds old_hash, -1 if new_hash is taken.
var rotateScript = redis.NewScript(`
	if redis.call("hget", KEYS[1], "key_hash") ~= ARGV[2] then
		return 0
	end
	if ARGV[3] ~= "" then
		if redis.call("exists", KEYS[3]) == 1 then
			return -1
		end
		redis.call("set", KEYS[3], ARGV[1])
	end
	redis.call("del", KEYS[2])
	redis.call("hset", KEYS[1], "key_hash", ARGV[3], "updated_at", ARGV[4])
	return 1
`)

// RotateKey replaces oldHash with newHash if the record still holds oldHash
func (s *CredentialStore) RotateKey(ctx context.Context, id, oldHash, newHash string) error {
	if oldHash == "" {
		return domain.ErrNotFound
	}

	// Kind never changes after creation
	kind, err := s.client.HGet(ctx, recordKey(id), fieldKind).Result()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get credential: %w", err)
	}

	keys := []string{recordKey(id), indexKey(kind, oldHash), indexKey(kind, newHash)}
	result, err := rotateScript.Run(ctx, s.client, keys, id, oldHash, newHash, now()).Int64()
	if err != nil {
		return fmt.Errorf("failed to rotate credential: %w", err)
	}

	switch result {
	case 1:
		return nil
	case -1:
		return domain.ErrAlreadyExists
	default:
		return domain.ErrNotFound
	}
}

// ClearKey revokes the credential if it still holds keyHash.
// The record is kept with an empty digest.
func (s *CredentialStore) ClearKey(ctx context.Context, id, keyHash string) error {
	return s.RotateKey(ctx, id, keyHash, "")
}

// Ping checks if the Redis backend is healthy
func (s *CredentialStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
