package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

// Ensure Adapter implements AuthAdapter
var _ driven.AuthAdapter = (*Adapter)(nil)

// MinSecretLength is the shortest accepted HMAC signing secret, in bytes
const MinSecretLength = 32

// Config configures the auth adapter
type Config struct {
	JWTSecret  string
	Issuer     string
	BcryptCost int
}

// Adapter handles authentication operations using bcrypt/argon2id and JWT
type Adapter struct {
	jwtSecret  []byte
	issuer     string
	bcryptCost int
	decoyHash  []byte
}

// NewAdapter creates a new auth adapter. The secret is required.
func NewAdapter(cfg Config) (*Adapter, error) {
	if len(cfg.JWTSecret) < MinSecretLength {
		return nil, fmt.Errorf("%w: jwt secret must be at least %d bytes", domain.ErrMisconfigured, MinSecretLength)
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%w: bcrypt cost %d out of range", domain.ErrMisconfigured, cost)
	}

	// Decoy for comparisons against missing or unusable hashes, same cost as real ones
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("seed decoy hash: %w", err)
	}
	decoy, err := bcrypt.GenerateFromPassword(seed, cost)
	if err != nil {
		return nil, fmt.Errorf("generate decoy hash: %w", err)
	}

	return &Adapter{
		jwtSecret:  []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		bcryptCost: cost,
		decoyHash:  decoy,
	}, nil
}

// HashPassword generates a bcrypt hash from a plaintext password
func (a *Adapter) HashPassword(password string) (string, error) {
	return HashPassword(password, a.bcryptCost)
}

// HashPassword hashes password with bcrypt at cost, or the default cost when zero.
// It needs no signing secret, so offline tooling can call it directly.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks a password against a bcrypt or argon2id hash.
// Empty or malformed hashes never match but still cost one bcrypt comparison.
func (a *Adapter) VerifyPassword(password, hash string) bool {
	if strings.HasPrefix(hash, "$"+argon2idID+"$") {
		phc, err := parseArgon2id(hash)
		if err != nil {
			a.burn(password)
			return false
		}
		return phc.matches(password)
	}

	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		a.burn(password)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (a *Adapter) burn(password string) {
	_ = bcrypt.CompareHashAndPassword(a.decoyHash, []byte(password))
}

// IssueToken creates a signed JWT for subject valid for ttl
func (a *Adapter) IssueToken(subject string, ttl time.Duration) (domain.IssuedToken, error) {
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        uuid.NewString(),
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtSecret)
	if err != nil {
		return domain.IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.IssuedToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(ttl / time.Second),
	}, nil
}

// ParseToken validates a JWT and extracts domain claims
func (a *Adapter) ParseToken(tokenString string) (*domain.TokenClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, domain.ErrTokenInvalid
	}

	parsed := &domain.TokenClaims{
		Subject:   claims.Subject,
		TokenID:   claims.ID,
		Issuer:    claims.Issuer,
		ExpiresAt: claims.ExpiresAt.Unix(),
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Unix()
	}
	return parsed, nil
}
