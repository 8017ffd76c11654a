// Package auth manages local listener accounts and their sessions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	sessionDuration   = 7 * 24 * time.Hour
	minPasswordLength = 8
	maxUsernameLength = 64
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidSession is returned for unknown or expired session tokens.
	ErrInvalidSession = errors.New("invalid session")
	// ErrUsernameTaken is returned by Register when the username exists.
	ErrUsernameTaken = errors.New("username already taken")
)

// Session exposes the signed-in identity of a caller, if any.
type Session interface {
	CurrentUserID() (string, bool)
}

// Identity is the Session of one request. The zero value is anonymous.
type Identity struct {
	UserID string
}

// CurrentUserID implements Session.
func (i Identity) CurrentUserID() (string, bool) {
	return i.UserID, i.UserID != ""
}

// Anonymous is the session of a caller that is not signed in.
var Anonymous Session = Identity{}

// Service provides account and session operations.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates an auth service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// Register creates a listener account and returns its ID.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword(prehashPassword(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash)
		VALUES (?, ?, ?)
	`, id, username, string(hash))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", ErrUsernameTaken
		}
		return "", fmt.Errorf("creating user: %w", err)
	}

	return id, nil
}

// Login authenticates a user and returns a new session token with the user ID.
func (s *Service) Login(ctx context.Context, username, password string) (token, userID string, err error) {
	var hash string
	err = s.db.QueryRowContext(ctx, `
		SELECT id, password_hash FROM users WHERE username = ?
	`, strings.TrimSpace(username)).Scan(&userID, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrInvalidCredentials
	}
	if err != nil {
		return "", "", fmt.Errorf("querying user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), prehashPassword(password)); err != nil {
		return "", "", ErrInvalidCredentials
	}

	token, err = generateToken()
	if err != nil {
		return "", "", fmt.Errorf("generating session token: %w", err)
	}

	expiresAt := s.now().Add(sessionDuration).UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES (?, ?, ?)
	`, token, userID, expiresAt)
	if err != nil {
		return "", "", fmt.Errorf("creating session: %w", err)
	}

	return token, userID, nil
}

// ValidateSession checks a session token and returns the owning user ID.
// Expired sessions are deleted.
func (s *Service) ValidateSession(ctx context.Context, token string) (string, error) {
	var userID, expiresAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, expires_at FROM sessions WHERE id = ?
	`, token).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("querying session: %w", err)
	}

	expires, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", fmt.Errorf("parsing expiry: %w", err)
	}

	if s.now().UTC().After(expires) {
		_ = s.Logout(ctx, token)
		return "", ErrInvalidSession
	}

	return userID, nil
}

// Logout deletes a session.
func (s *Service) Logout(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions and returns how many were removed.
func (s *Service) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE expires_at < ?
	`, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Username returns the username for a user ID.
func (s *Service) Username(ctx context.Context, userID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT username FROM users WHERE id = ?", userID).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidSession
	}
	if err != nil {
		return "", fmt.Errorf("querying user: %w", err)
	}
	return name, nil
}

// ValidationError describes a rejected username or password.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + " " + e.Reason
}

func validateCredentials(username, password string) error {
	switch {
	case username == "":
		return &ValidationError{Field: "username", Reason: "is required"}
	case len(username) > maxUsernameLength:
		return &ValidationError{Field: "username", Reason: fmt.Sprintf("must be at most %d characters", maxUsernameLength)}
	case len(password) < minPasswordLength:
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	return nil
}

// prehashPassword hashes the password with SHA-256 before bcrypt so that
// passwords longer than bcrypt's 72-byte limit stay significant.
func prehashPassword(password string) []byte {
	h := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(h[:]))
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
