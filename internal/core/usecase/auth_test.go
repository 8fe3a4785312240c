package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

func TestLoginCreatesUserOnFirstVisit(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	result, err := uc.Login(context.Background(), "Alice@Example.com", "secret", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected a session token")
	}
	if result.User.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", result.User.Email)
	}
	if result.User.Name != "Alice" && result.User.Name != "alice" {
		t.Fatalf("expected local-part display name, got %q", result.User.Name)
	}
}

func TestLoginSecondVisitReturnsSameUser(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	first, err := uc.Login(context.Background(), "bob@example.com", "secret", "Bob")
	if err != nil {
		t.Fatalf("first Login() error = %v", err)
	}
	second, err := uc.Login(context.Background(), "bob@example.com", "secret", "")
	if err != nil {
		t.Fatalf("second Login() error = %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Fatalf("expected same user id, got %q and %q", first.User.ID, second.User.ID)
	}
	if first.Token == second.Token {
		t.Fatalf("expected distinct session tokens per login")
	}
}

func TestLoginWrongPasswordIsUnauthorized(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	if _, err := uc.Login(context.Background(), "bob@example.com", "secret", ""); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	_, err := uc.Login(context.Background(), "bob@example.com", "wrong", "")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestLoginMissingFieldsIsInvalidInput(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	for _, tc := range []struct{ email, password string }{
		{"", "secret"},
		{"bob@example.com", ""},
		{"", ""},
	} {
		_, err := uc.Login(context.Background(), tc.email, tc.password, "")
		if !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("email=%q password=%q: expected ErrInvalidInput, got %v", tc.email, tc.password, err)
		}
	}
}

func TestResolveRejectsMissingAndUnknownTokens(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	if _, err := uc.Resolve(context.Background(), ""); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("missing token: expected ErrUnauthorized, got %v", err)
	}
	if _, err := uc.Resolve(context.Background(), "nope"); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("unknown token: expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveRejectsExpiredSession(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	result, err := uc.Login(context.Background(), "carol@example.com", "secret", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	uc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	if _, err := uc.Resolve(context.Background(), result.Token); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expired session: expected ErrUnauthorized, got %v", err)
	}
}

func TestResolveReturnsUser(t *testing.T) {
	store := newMemStore()
	uc := NewAuthUseCase(store, store, time.Hour)

	result, err := uc.Login(context.Background(), "dave@example.com", "secret", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	user, err := uc.Resolve(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if user.ID != result.User.ID {
		t.Fatalf("expected user %q, got %q", result.User.ID, user.ID)
	}
}
