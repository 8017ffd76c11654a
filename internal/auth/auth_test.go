package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loudcat/loudcat/internal/database"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := database.OpenAndMigrate(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewService(db)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id, err := svc.Register(ctx, "  barney ", "grindcore-forever")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, userID, err := svc.Login(ctx, "barney", "grindcore-forever")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if userID != id {
		t.Errorf("Login user id = %q, want %q", userID, id)
	}

	got, err := svc.ValidateSession(ctx, token)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if got != id {
		t.Errorf("ValidateSession = %q, want %q", got, id)
	}

	name, err := svc.Username(ctx, id)
	if err != nil {
		t.Fatalf("Username: %v", err)
	}
	if name != "barney" {
		t.Errorf("Username = %q, want barney", name)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "shane", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := svc.Register(ctx, "Shane", "password456")
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("duplicate Register error = %v, want ErrUsernameTaken", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	tests := []struct {
		name     string
		username string
		password string
		field    string
	}{
		{"empty username", "   ", "password123", "username"},
		{"long username", strings.Repeat("x", 65), "password123", "username"},
		{"short password", "mitch", "short", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "danny", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "danny", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLongPasswordsAreDistinct(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := strings.Repeat("a", 80)
	if _, err := svc.Register(ctx, "long", base+"1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, _, err := svc.Login(ctx, "long", base+"2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("login with different 81-byte password error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLogoutAndExpiry(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "john", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, _, err := svc.Login(ctx, "john", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := svc.Logout(ctx, token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ValidateSession(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("after logout error = %v, want ErrInvalidSession", err)
	}

	token, _, err = svc.Login(ctx, "john", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(sessionDuration + time.Hour) }
	if _, err := svc.ValidateSession(ctx, token); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expired session error = %v, want ErrInvalidSession", err)
	}
}

func TestCleanExpiredSessions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "jesse", "password123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	for range 2 {
		if _, _, err := svc.Login(ctx, "jesse", "password123"); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}

	n, err := svc.CleanExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredSessions: %v", err)
	}
	if n != 0 {
		t.Errorf("removed %d fresh sessions, want 0", n)
	}

	svc.now = func() time.Time { return time.Now().Add(sessionDuration + time.Hour) }
	n, err = svc.CleanExpiredSessions(ctx)
	if err != nil {
		t.Fatalf("CleanExpiredSessions: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d sessions, want 2", n)
	}
}

func TestIdentity(t *testing.T) {
	if _, ok := Anonymous.CurrentUserID(); ok {
		t.Error("Anonymous should not be signed in")
	}
	id, ok := Identity{UserID: "u-1"}.CurrentUserID()
	if !ok || id != "u-1" {
		t.Errorf("CurrentUserID = (%q, %v), want (u-1, true)", id, ok)
	}
}
