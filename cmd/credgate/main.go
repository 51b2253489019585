package main

// @title           Credgate API
// @version         1.0
// @description     Credential lifecycle service: password login, refresh token rotation and API key revocation.

// @contact.name   Credgate OSS
// @contact.url    https://github.com/custodia-labs/credgate/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT or API key. Format: "Bearer {token}"

//go:generate swag init -g main.go -d .,../../internal/adapters/driving/http,../../internal/core/domain -o ../../internal/docs --outputTypes go

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/term"

	"github.com/custodia-labs/credgate/internal/adapters/driven/auth"
	"github.com/custodia-labs/credgate/internal/adapters/driven/postgres"
	redisadapter "github.com/custodia-labs/credgate/internal/adapters/driven/redis"
	"github.com/custodia-labs/credgate/internal/adapters/driven/sqlite"
	"github.com/custodia-labs/credgate/internal/adapters/driven/sqlstore"
	"github.com/custodia-labs/credgate/internal/adapters/driving/http"
	"github.com/custodia-labs/credgate/internal/config"
	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven"
	"github.com/custodia-labs/credgate/internal/core/ports/driving"
	"github.com/custodia-labs/credgate/internal/core/services"
)

var version = "dev"

const usage = "use: serve, hash-password, create-user, issue-credential or version"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		slog.Error("credgate failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run dispatches on the mode taken from the first argument or RUN_MODE
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	mode := cfg.RunMode
	if len(args) > 0 {
		mode, args = args[0], args[1:]
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	switch mode {
	case "serve":
		return serve(ctx, cfg, logger)
	case "hash-password":
		return hashPassword(cfg, stdin, stdout)
	case "create-user":
		return createUser(ctx, cfg, logger, args, stdin, stdout)
	case "issue-credential":
		return issueCredential(ctx, cfg, logger, args, stdout)
	case "version":
		_, err := fmt.Fprintln(stdout, version)
		return err
	default:
		return fmt.Errorf("unknown mode %q (%s)", mode, usage)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("credgate starting", "version", version, "store", cfg.StoreBackend, "redis", cfg.RedisURL != "")

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close(logger)

	authAdapter, err := newAuthAdapter(cfg)
	if err != nil {
		return err
	}

	authService := services.NewAuthService(st.users, st.credentials, authAdapter, authAdapter, services.AuthConfig{
		AccessTokenTTL:          cfg.AccessTokenTTL,
		RefreshedAccessTokenTTL: cfg.RefreshAccessTokenTTL,
	})

	server := http.NewServer(http.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		Version:         version,
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, authService, st.checks)

	return server.Start(ctx)
}

// hashPassword prints a bcrypt hash for seeding users by hand
func hashPassword(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	password, err := readPassword(stdin)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("password is required")
	}

	hash, err := auth.HashPassword(password, cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = fmt.Fprintln(stdout, hash)
	return err
}

func createUser(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	email := fs.String("email", "", "email address the user logs in with")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := readPassword(stdin)
	if err != nil {
		return err
	}

	provisioning, closeStores, err := openProvisioning(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	user, err := provisioning.CreateUser(ctx, driving.CreateUserRequest{Email: *email, Password: password})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	logger.Info("user created", "user_id", user.ID)
	return printJSON(stdout, user)
}

func issueCredential(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("issue-credential", flag.ContinueOnError)
	email := fs.String("email", "", "owner of the new key")
	kind := fs.String("kind", string(domain.CredentialKindAccess), "credential kind: access or refresh")
	if err := fs.Parse(args); err != nil {
		return err
	}

	provisioning, closeStores, err := openProvisioning(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	issued, err := provisioning.IssueCredential(ctx, driving.IssueCredentialRequest{
		Email: *email,
		Kind:  domain.CredentialKind(*kind),
	})
	if err != nil {
		return fmt.Errorf("issue credential: %w", err)
	}
	logger.Info("credential issued", "credential_id", issued.ID, "kind", issued.Kind)
	return printJSON(stdout, issued)
}

func openProvisioning(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driving.ProvisioningService, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	authAdapter, err := newAuthAdapter(cfg)
	if err != nil {
		st.close(logger)
		return nil, nil, err
	}
	return services.NewProvisioningService(st.users, st.credentials, authAdapter), func() { st.close(logger) }, nil
}

func newAuthAdapter(cfg *config.Config) (*auth.Adapter, error) {
	adapter, err := auth.NewAdapter(auth.Config{
		JWTSecret:  cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		BcryptCost: cfg.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("auth adapter: %w", err)
	}
	return adapter, nil
}

// stores holds the driven adapters selected by configuration
type stores struct {
	users       driven.UserStore
	credentials driven.CredentialStore
	checks      map[string]http.Pinger
	closers     []io.Closer
}

// openStores connects the SQL store and, when REDIS_URL is set, moves
// credentials to Redis. PostgreSQL migrations always run under a shared lock.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	st := &stores{checks: make(map[string]http.Pinger)}

	var redisClient *goredis.Client
	if cfg.RedisURL != "" {
		client, err := redisadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient = client
		st.closers = append(st.closers, client)
		logger.Info("redis connected")
	}

	var db *sqlstore.DB
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		opened, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			st.close(logger)
			return nil, err
		}
		db = opened
	default:
		opened, err := postgres.Connect(ctx, postgres.Config{
			URL:             cfg.DatabaseURL,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			st.close(logger)
			return nil, err
		}
		db = opened

		if err := db.MigrateLocked(ctx, migrationLock(db, redisClient, logger)); err != nil {
			db.Close()
			st.close(logger)
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	st.closers = append(st.closers, db)
	st.checks["database"] = db
	logger.Info("database ready", "backend", db.Dialect().Name)

	st.users = sqlstore.NewUserStore(db)
	if redisClient != nil {
		credentials := redisadapter.NewCredentialStore(redisClient)
		st.credentials = credentials
		st.checks["redis"] = credentials
	} else {
		st.credentials = sqlstore.NewCredentialStore(db)
	}

	return st, nil
}

// migrationLock picks the lock that serializes PostgreSQL migrations:
// Redis when configured, otherwise a session advisory lock on the database.
func migrationLock(db *sqlstore.DB, redisClient *goredis.Client, logger *slog.Logger) driven.DistributedLock {
	if redisClient != nil {
		logger.Debug("using redis migration lock")
		return redisadapter.NewLock(redisClient)
	}
	logger.Debug("using postgres advisory migration lock")
	return postgres.NewAdvisoryLock(db)
}

// close releases connections in reverse order of opening
func (s *stores) close(logger *slog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			logger.Warn("close failed", "error", err)
		}
	}
	s.closers = nil
}

// readPassword reads without echo from a terminal, or one line otherwise
func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
