package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CredentialKind separates the namespaces of persisted bearer keys.
// A key of one kind never resolves as the other.
type CredentialKind string

const (
	CredentialKindAccess  CredentialKind = "access"  // API key, revocable via logout
	CredentialKindRefresh CredentialKind = "refresh" // rotated on every refresh
)

// Valid reports whether k is a known credential kind
func (k CredentialKind) Valid() bool {
	return k == CredentialKindAccess || k == CredentialKindRefresh
}

// Credential is a persisted association between a bearer key and its owner.
// Only the digest of the key is stored. An empty KeyHash means the record
// was revoked; the row is kept for audit but can no longer authenticate.
type Credential struct {
	ID      string         `json:"id"`
	UserID  string         `json:"user_id"`
	Kind    CredentialKind `json:"kind"`
	KeyHash string         `json:"-"`

	// Owner is set when the store reads the user row in the same lookup
	Owner *User `json:"owner,omitempty"`
}

// IsActive reports whether the record can still authenticate
func (c *Credential) IsActive() bool {
	return c.KeyHash != ""
}

// IssuedCredential is returned once when a credential is provisioned.
// Key is the plaintext bearer value and is not recoverable afterwards.
type IssuedCredential struct {
	ID     string         `json:"id"`
	UserID string         `json:"user_id"`
	Kind   CredentialKind `json:"kind"`
	Key    string         `json:"key"`
}

// HashKey returns the hex SHA-256 digest under which a bearer key is stored
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
