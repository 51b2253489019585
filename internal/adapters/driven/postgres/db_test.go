package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/custodia-labs/credgate/internal/adapters/driven/sqlstore"
	"github.com/custodia-labs/credgate/internal/core/domain"
)

func newStoresWithMock(t *testing.T) (*sqlstore.UserStore, *sqlstore.CredentialStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := sqlstore.New(db, Dialect)
	return sqlstore.NewUserStore(store), sqlstore.NewCredentialStore(store), mock
}

func TestConnect_RequiresURL(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); err == nil {
		t.Fatal("expected error for empty url")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("postgres://localhost/credgate")
	if cfg.URL != "postgres://localhost/credgate" {
		t.Errorf("unexpected url %q", cfg.URL)
	}
	if cfg.MaxOpenConns != 25 || cfg.MaxIdleConns != 5 {
		t.Errorf("unexpected pool sizes %d/%d", cfg.MaxOpenConns, cfg.MaxIdleConns)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"unique violation", &pq.Error{Code: "23505"}, true},
		{"wrapped unique violation", errors.Join(errors.New("ctx"), &pq.Error{Code: "23505"}), true},
		{"foreign key violation", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("db down"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUserStore_GetByEmail_DollarPlaceholders(t *testing.T) {
	users, _, mock := newStoresWithMock(t)

	q := `(?s)^\s*SELECT\s+id,\s*email,\s*password_hash\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}).
			AddRow("user-1", "alice@example.com", "$2a$10$hash"))

	user, err := users.GetByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("unexpected user %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserStore_Get_NotFound(t *testing.T) {
	users, _, mock := newStoresWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := users.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want domain.ErrNotFound, got %v", err)
	}
}

func TestUserStore_Save_Duplicate(t *testing.T) {
	users, _, mock := newStoresWithMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+users.*VALUES\s*\(\$1,\s*\$2,\s*\$3\)`).
		WithArgs("user-2", "alice@example.com", "hash").
		WillReturnError(&pq.Error{Code: "23505"})

	err := users.Save(context.Background(), &domain.User{ID: "user-2", Email: "alice@example.com", PasswordHash: "hash"})
	if !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("want domain.ErrAlreadyExists, got %v", err)
	}
}

func TestCredentialStore_FindByKey(t *testing.T) {
	_, creds, mock := newStoresWithMock(t)

	q := `(?s)SELECT\s+k\.id.*FROM\s+api_keys\s+k\s+JOIN\s+users\s+u.*WHERE\s+k\.kind\s*=\s*\$1\s+AND\s+k\.key_hash\s*=\s*\$2`
	mock.ExpectQuery(q).
		WithArgs("refresh", "digest").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "kind", "key_hash", "email"}).
			AddRow("cred-1", "user-1", "refresh", "digest", "alice@example.com"))

	cred, err := creds.FindByKey(context.Background(), domain.CredentialKindRefresh, "digest")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cred.ID != "cred-1" || cred.Owner == nil || cred.Owner.Email != "alice@example.com" {
		t.Fatalf("unexpected credential %+v", cred)
	}
}

func TestCredentialStore_RotateKey(t *testing.T) {
	q := `(?s)^\s*UPDATE\s+api_keys\s+SET\s+key_hash\s*=\s*\$1,\s*updated_at\s*=\s*CURRENT_TIMESTAMP\s+WHERE\s+id\s*=\s*\$2\s+AND\s+key_hash\s*=\s*\$3\s*$`

	tests := []struct {
		name    string
		result  sql.Result
		err     error
		wantErr error
	}{
		{name: "rotated", result: sqlmock.NewResult(0, 1)},
		{name: "lost race", result: sqlmock.NewResult(0, 0), wantErr: domain.ErrNotFound},
		{name: "db error", err: errors.New("db down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, creds, mock := newStoresWithMock(t)

			exp := mock.ExpectExec(q).WithArgs("new", "cred-1", "old")
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := creds.RotateKey(context.Background(), "cred-1", "old", "new")
			switch {
			case tt.err != nil:
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected wrapped db error, got %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
			case err != nil:
				t.Fatalf("unexpected error: %v", err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestCredentialStore_ClearKey_EmptyHashSkipsQuery(t *testing.T) {
	_, creds, mock := newStoresWithMock(t)

	if err := creds.ClearKey(context.Background(), "cred-1", ""); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want domain.ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected queries: %v", err)
	}
}
