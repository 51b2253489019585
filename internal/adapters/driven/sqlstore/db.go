// Package sqlstore implements the user and credential stores over database/sql.
// The same queries run on PostgreSQL and SQLite; a Dialect supplies the
// placeholder style, the goose dialect and unique-violation detection.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/custodia-labs/credgate/internal/core/ports/driven"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PlaceholderStyle selects how bind parameters are written
type PlaceholderStyle int

const (
	// PlaceholderQuestion keeps "?" placeholders (SQLite)
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar rewrites to "$1, $2, ..." (PostgreSQL)
	PlaceholderDollar
)

// Dialect describes the differences between supported databases
type Dialect struct {
	// Name is the goose dialect name
	Name        string
	Placeholder PlaceholderStyle
	// IsUniqueViolation reports whether err is a unique constraint failure
	IsUniqueViolation func(err error) bool
}

// DB wraps a sql.DB connection pool with its dialect
type DB struct {
	*sql.DB
	dialect Dialect
}

// New wraps an open connection pool
func New(db *sql.DB, dialect Dialect) *DB {
	return &DB{DB: db, dialect: dialect}
}

// Dialect returns the dialect this DB was opened with
func (db *DB) Dialect() Dialect {
	return db.dialect
}

// goose keeps its dialect and filesystem in package state
var migrateMu sync.Mutex

// Migrate applies the embedded migrations. Safe to run on every start.
func (db *DB) Migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(db.dialect.Name); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	goose.SetLogger(goose.NopLogger())

	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

const (
	migrationLockName = "migrate"
	migrationLockTTL  = 30 * time.Second
)

// errMigrationLockLost marks a migration aborted because the lock could not be extended
var errMigrationLockLost = errors.New("migration lock lost")

var (
	// migrationLockPoll is how long to wait between lock attempts
	migrationLockPoll = 500 * time.Millisecond

	// migrationLockRenew is how often a held lock is extended
	migrationLockRenew = migrationLockTTL / 3
)

// MigrateLocked runs Migrate while holding the shared migration lock,
// waiting for other instances to finish first. A nil lock migrates directly.
// The lock is extended for as long as migrations run; if an extension fails
// the migration context is cancelled.
func (db *DB) MigrateLocked(ctx context.Context, lock driven.DistributedLock) (err error) {
	if lock == nil {
		return db.Migrate(ctx)
	}

	for {
		acquired, err := lock.Acquire(ctx, migrationLockName, migrationLockTTL)
		if err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if acquired {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(migrationLockPoll):
		}
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx), migrationLockName); rerr != nil {
			err = errors.Join(err, fmt.Errorf("release migration lock: %w", rerr))
		}
	}()

	migrateCtx, cancel := context.WithCancelCause(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		keepLock(migrateCtx, cancel, lock, migrationLockRenew)
	}()

	err = db.Migrate(migrateCtx)
	cancel(nil)
	wg.Wait()

	if cause := context.Cause(migrateCtx); err != nil && errors.Is(cause, errMigrationLockLost) {
		return cause
	}
	return err
}

// keepLock extends the migration lock every interval until ctx ends.
// A failed extension cancels ctx with an errMigrationLockLost cause.
func keepLock(ctx context.Context, cancel context.CancelCauseFunc, lock driven.DistributedLock, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx, migrationLockName, migrationLockTTL); err != nil {
				cancel(fmt.Errorf("%w: %w", errMigrationLockLost, err))
				return
			}
		}
	}
}

// Ping checks if the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// rebind rewrites "?" placeholders for the dialect
func (db *DB) rebind(query string) string {
	if db.dialect.Placeholder != PlaceholderDollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (db *DB) isUniqueViolation(err error) bool {
	return err != nil && db.dialect.IsUniqueViolation != nil && db.dialect.IsUniqueViolation(err)
}
