package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/intel-workbench/internal/core/domain"
	"github.com/avolkov/intel-workbench/internal/core/ports"
)

// AuthUseCase implements login-or-register and bearer token resolution.
//
// Credentials are compared in plaintext: this service is a demo stand-in
// for a managed platform, not an identity provider. The token handed to
// clients is an opaque session credential with its own expiry, never the
// user's primary key.
type AuthUseCase struct {
	users      ports.UserStore
	sessions   ports.SessionStore
	sessionTTL time.Duration
	now        func() time.Time
}

func NewAuthUseCase(users ports.UserStore, sessions ports.SessionStore, sessionTTL time.Duration) *AuthUseCase {
	if sessionTTL <= 0 {
		sessionTTL = 30 * 24 * time.Hour
	}
	return &AuthUseCase{
		users:      users,
		sessions:   sessions,
		sessionTTL: sessionTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *AuthUseCase) Login(ctx context.Context, email, password, name string) (*domain.LoginResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "login", errors.New("email and password are required"))
	}

	now := uc.now()
	user, err := uc.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if user.Password != password {
			return nil, domain.WrapError(domain.ErrUnauthorized, "login", errors.New("password mismatch"))
		}
	case domain.IsKind(err, domain.ErrNotFound):
		user = &domain.User{
			ID:        uuid.NewString(),
			Email:     email,
			Password:  password,
			Name:      displayName(name, email),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := uc.users.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	default:
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	session := domain.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(uc.sessionTTL),
	}
	if err := uc.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &domain.LoginResult{Token: session.Token, User: user.Profile()}, nil
}

func (uc *AuthUseCase) Resolve(ctx context.Context, token string) (*domain.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "resolve token", errors.New("missing token"))
	}

	session, err := uc.sessions.GetSession(ctx, token)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "resolve token", errors.New("unknown token"))
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if session.Expired(uc.now()) {
		_ = uc.sessions.DeleteSession(ctx, token)
		return nil, domain.WrapError(domain.ErrUnauthorized, "resolve token", errors.New("session expired"))
	}

	user, err := uc.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "resolve token", errors.New("session user no longer exists"))
		}
		return nil, fmt.Errorf("lookup session user: %w", err)
	}
	return user, nil
}

func displayName(name, email string) string {
	name = strings.TrimSpace(name)
	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
