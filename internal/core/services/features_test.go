package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/cucumber/godog"
	"github.com/google/uuid"

	"github.com/custodia-labs/credgate/internal/core/domain"
	"github.com/custodia-labs/credgate/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/credgate/internal/core/ports/driving"
)

// lifecycleWorld carries state between steps of a single scenario
type lifecycleWorld struct {
	users       *mocks.MockUserStore
	credentials *mocks.MockCredentialStore
	svc         driving.AuthService

	login   *domain.AuthResult
	refresh *domain.RefreshResult
	revoke  *domain.RevokeResult
}

func newLifecycleWorld() *lifecycleWorld {
	users := mocks.NewMockUserStore()
	credentials := mocks.NewMockCredentialStore(users)
	adapter := mocks.NewMockAuthAdapter()
	return &lifecycleWorld{
		users:       users,
		credentials: credentials,
		svc:         NewAuthService(users, credentials, adapter, adapter, DefaultAuthConfig()),
	}
}

func (w *lifecycleWorld) aUserWithPassword(email, password string) error {
	return w.users.Save(context.Background(), &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: password,
	})
}

func (w *lifecycleWorld) holdsCredential(kind domain.CredentialKind) func(email, key string) error {
	return func(email, key string) error {
		user, err := w.users.GetByEmail(context.Background(), email)
		if err != nil {
			return err
		}
		return w.credentials.Create(context.Background(), &domain.Credential{
			ID:      uuid.NewString(),
			UserID:  user.ID,
			Kind:    kind,
			KeyHash: domain.HashKey(key),
		})
	}
}

func (w *lifecycleWorld) logsIn(email, password string) error {
	res, err := w.svc.Authenticate(context.Background(), domain.LoginRequest{Username: email, Password: password})
	w.login = res
	return err
}

func (w *lifecycleWorld) loginSucceeds(seconds int) error {
	if w.login.Outcome != domain.AuthSuccess {
		return fmt.Errorf("expected success, got denied")
	}
	if w.login.ExpiresIn != int64(seconds) {
		return fmt.Errorf("expected expires_in %d, got %d", seconds, w.login.ExpiresIn)
	}
	return nil
}

func (w *lifecycleWorld) loginDenied() error {
	if *w.login != *domain.Denied() {
		return fmt.Errorf("expected the denied shape, got %+v", w.login)
	}
	return nil
}

func (w *lifecycleWorld) refreshPresented(token string) error {
	res, err := w.svc.Refresh(context.Background(), domain.RefreshRequest{RefreshToken: token})
	w.refresh = res
	return err
}

func (w *lifecycleWorld) refreshSucceeds(seconds int) error {
	if w.refresh.Outcome != domain.RefreshSuccess {
		return fmt.Errorf("expected refresh success")
	}
	if w.refresh.ExpiresIn != int64(seconds) {
		return fmt.Errorf("expected expires_in %d, got %d", seconds, w.refresh.ExpiresIn)
	}
	return nil
}

func (w *lifecycleWorld) newRefreshToken(old string) error {
	next, ok := w.refresh.RefreshToken.Get()
	if !ok {
		return fmt.Errorf("no refresh token returned")
	}
	if next == old {
		return fmt.Errorf("refresh token was not rotated")
	}
	return nil
}

func (w *lifecycleWorld) refreshRejected() error {
	if w.refresh.Outcome != domain.RefreshInvalid {
		return fmt.Errorf("expected the refresh to be rejected")
	}
	return nil
}

func (w *lifecycleWorld) accessKeyRevoked(key string) error {
	res, err := w.svc.Revoke(context.Background(), domain.RevokeRequest{AccessToken: key})
	w.revoke = res
	return err
}

func (w *lifecycleWorld) revocationReports(message string) error {
	if w.revoke.Message != message {
		return fmt.Errorf("expected %q, got %q", message, w.revoke.Message)
	}
	return nil
}

func initializeLifecycleScenario(sc *godog.ScenarioContext) {
	w := newLifecycleWorld()

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		*w = *newLifecycleWorld()
		return ctx, nil
	})

	sc.Step(`^a user "([^"]*)" with password "([^"]*)"$`, w.aUserWithPassword)
	sc.Step(`^"([^"]*)" holds the refresh token "([^"]*)"$`, w.holdsCredential(domain.CredentialKindRefresh))
	sc.Step(`^"([^"]*)" holds the access key "([^"]*)"$`, w.holdsCredential(domain.CredentialKindAccess))
	sc.Step(`^"([^"]*)" logs in with password "([^"]*)"$`, w.logsIn)
	sc.Step(`^the login succeeds with a token valid for (\d+) seconds$`, w.loginSucceeds)
	sc.Step(`^the login is denied$`, w.loginDenied)
	sc.Step(`^the refresh token "([^"]*)" is presented$`, w.refreshPresented)
	sc.Step(`^the refresh succeeds with a token valid for (\d+) seconds$`, w.refreshSucceeds)
	sc.Step(`^a new refresh token different from "([^"]*)" is returned$`, w.newRefreshToken)
	sc.Step(`^the refresh is rejected$`, w.refreshRejected)
	sc.Step(`^the access key "([^"]*)" is revoked$`, w.accessKeyRevoked)
	sc.Step(`^the revocation reports "([^"]*)"$`, w.revocationReports)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "credential-lifecycle",
		ScenarioInitializer: initializeLifecycleScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
