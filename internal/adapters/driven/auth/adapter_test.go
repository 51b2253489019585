package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/argon2"

	"github.com/custodia-labs/credgate/internal/core/domain"
)

const testSecret = "test-jwt-secret-with-at-least-32-bytes"

func newTestAdapter(t testing.TB) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(Config{JWTSecret: testSecret, Issuer: "credgate-test", BcryptCost: 4}) // Low cost for faster tests
	if err != nil {
		t.Fatalf("failed to create adapter: %v", err)
	}
	return adapter
}

func argon2idPHC(password string, salt []byte) string {
	key := argon2.IDKey([]byte(password), salt, 1, 8*1024, 1, 32)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, 8*1024, 1, 1,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key))
}

func TestNewAdapter(t *testing.T) {
	adapter := newTestAdapter(t)
	if string(adapter.jwtSecret) != testSecret {
		t.Error("expected jwt secret to be set")
	}
	if adapter.bcryptCost != 4 {
		t.Errorf("expected bcrypt cost 4, got %d", adapter.bcryptCost)
	}
	if len(adapter.decoyHash) == 0 {
		t.Error("expected decoy hash to be generated")
	}
}

func TestNewAdapter_Misconfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing secret", Config{}},
		{"short secret", Config{JWTSecret: "too-short"}},
		{"cost too high", Config{JWTSecret: testSecret, BcryptCost: 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAdapter(tt.cfg)
			if !errors.Is(err, domain.ErrMisconfigured) {
				t.Errorf("expected ErrMisconfigured, got %v", err)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	adapter := newTestAdapter(t)

	hash, err := adapter.HashPassword("mypassword")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if hash == "mypassword" {
		t.Error("hash should not equal plaintext password")
	}
	if !strings.HasPrefix(hash, "$2a$04$") {
		t.Errorf("expected bcrypt hash with cost 4, got %q", hash)
	}

	other, _ := adapter.HashPassword("mypassword")
	if hash == other {
		t.Error("expected different hashes for same password (due to salt)")
	}
}

func TestHashPassword_WithoutAdapter(t *testing.T) {
	hash, err := HashPassword("offline-password", 5)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$05$") {
		t.Errorf("expected cost 5, got %q", hash)
	}
	if !newTestAdapter(t).VerifyPassword("offline-password", hash) {
		t.Error("adapter should verify an offline hash")
	}

	if _, err := HashPassword("x", 99); err == nil {
		t.Error("expected error for invalid cost")
	}
}

func TestVerifyPassword(t *testing.T) {
	adapter := newTestAdapter(t)
	bcryptHash, _ := adapter.HashPassword("correct-password")
	argonHash := argon2idPHC("correct-password", []byte("0123456789abcdef"))

	tests := []struct {
		name     string
		password string
		hash     string
		want     bool
	}{
		{"bcrypt match", "correct-password", bcryptHash, true},
		{"bcrypt mismatch", "wrong", bcryptHash, false},
		{"argon2id match", "correct-password", argonHash, true},
		{"argon2id mismatch", "wrong", argonHash, false},
		{"empty hash", "correct-password", "", false},
		{"garbage hash", "correct-password", "not-a-valid-hash", false},
		{"truncated argon2id", "correct-password", "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA", false},
		{"argon2id bad params", "correct-password", "$argon2id$v=19$m=0,t=1,p=1$c2FsdHNhbHQ$aGFzaA", false},
		{"argon2id wrong version", "correct-password", strings.Replace(argonHash, "v=19", "v=16", 1), false},
		{"empty password", "", bcryptHash, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.VerifyPassword(tt.password, tt.hash); got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseArgon2id_Padding(t *testing.T) {
	salt := []byte("0123456789abcdef")
	raw := argon2idPHC("pw", salt)
	parts := strings.Split(raw, "$")
	parts[4] = base64.StdEncoding.EncodeToString(salt)

	phc, err := parseArgon2id(strings.Join(parts, "$"))
	if err != nil {
		t.Fatalf("expected padded salt to parse: %v", err)
	}
	if string(phc.salt) != string(salt) {
		t.Error("salt mismatch")
	}
	if !phc.matches("pw") {
		t.Error("expected password to match")
	}
}

func TestIssueToken(t *testing.T) {
	adapter := newTestAdapter(t)

	issued, err := adapter.IssueToken("user-123", 30*time.Minute)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	if issued.ExpiresIn != 1800 {
		t.Errorf("expected expires_in 1800, got %d", issued.ExpiresIn)
	}
	// JWT tokens have 3 parts separated by dots
	if strings.Count(issued.Token, ".") != 2 {
		t.Errorf("expected compact JWT, got %q", issued.Token)
	}

	// The signed window matches the advertised one
	var claims jwt.RegisteredClaims
	if _, err := jwt.ParseWithClaims(issued.Token, &claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"})); err != nil {
		t.Fatalf("failed to decode issued token: %v", err)
	}
	if window := claims.ExpiresAt.Unix() - claims.IssuedAt.Unix(); window != 1800 {
		t.Errorf("expected exp - iat = 1800, got %d", window)
	}
	if claims.Subject != "user-123" {
		t.Errorf("expected sub user-123, got %q", claims.Subject)
	}

	again, _ := adapter.IssueToken("user-123", 30*time.Minute)
	if again.Token == issued.Token {
		t.Error("expected unique token IDs per issue")
	}
}

func TestParseToken_ValidToken(t *testing.T) {
	adapter := newTestAdapter(t)

	issued, _ := adapter.IssueToken("user-123", time.Hour)

	claims, err := adapter.ParseToken(issued.Token)
	if err != nil {
		t.Fatalf("failed to parse token: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("expected subject user-123, got %s", claims.Subject)
	}
	if claims.Issuer != "credgate-test" {
		t.Errorf("expected issuer credgate-test, got %s", claims.Issuer)
	}
	if claims.TokenID == "" {
		t.Error("expected jti to be set")
	}
	if claims.ExpiresAt != issued.ExpiresAt.Unix() {
		t.Errorf("expected exp %d, got %d", issued.ExpiresAt.Unix(), claims.ExpiresAt)
	}
}

func TestParseToken_ExpiredToken(t *testing.T) {
	adapter := newTestAdapter(t)

	issued, _ := adapter.IssueToken("user-123", -2*time.Hour)

	_, err := adapter.ParseToken(issued.Token)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	adapter1 := newTestAdapter(t)
	adapter2, _ := NewAdapter(Config{JWTSecret: strings.Repeat("x", 32), Issuer: "credgate-test", BcryptCost: 4})

	issued, _ := adapter1.IssueToken("user-123", time.Hour)

	_, err := adapter2.ParseToken(issued.Token)
	if !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_WrongIssuer(t *testing.T) {
	other, _ := NewAdapter(Config{JWTSecret: testSecret, Issuer: "someone-else", BcryptCost: 4})
	adapter := newTestAdapter(t)

	issued, _ := other.IssueToken("user-123", time.Hour)

	if _, err := adapter.ParseToken(issued.Token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	adapter := newTestAdapter(t)

	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "credgate-test",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := adapter.ParseToken(none); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for alg=none, got %v", err)
	}

	hs512, _ := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if _, err := adapter.ParseToken(hs512); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for HS512, got %v", err)
	}
}

func TestParseToken_MissingExpiry(t *testing.T) {
	adapter := newTestAdapter(t)

	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-123",
		Issuer:  "credgate-test",
	}).SignedString([]byte(testSecret))

	if _, err := adapter.ParseToken(token); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestParseToken_MalformedToken(t *testing.T) {
	adapter := newTestAdapter(t)

	testCases := []string{
		"",
		"not-a-jwt",
		"invalid.token.here",
		"only.two.parts.missing",
		"header.payload", // missing signature
	}

	for _, tc := range testCases {
		if _, err := adapter.ParseToken(tc); !errors.Is(err, domain.ErrTokenInvalid) {
			t.Errorf("expected ErrTokenInvalid for malformed token %q, got %v", tc, err)
		}
	}
}

// Benchmark tests
func BenchmarkVerifyPassword(b *testing.B) {
	adapter := newTestAdapter(b)
	hash, _ := adapter.HashPassword("testpassword")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = adapter.VerifyPassword("testpassword", hash)
	}
}

func BenchmarkVerifyPassword_UnknownUser(b *testing.B) {
	adapter := newTestAdapter(b)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = adapter.VerifyPassword("testpassword", "")
	}
}

func BenchmarkParseToken(b *testing.B) {
	adapter := newTestAdapter(b)
	issued, _ := adapter.IssueToken("user-123", time.Hour)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = adapter.ParseToken(issued.Token)
	}
}
