package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/internal/testutil"
	"github.com/devnovate/api/types"
	"golang.org/x/crypto/bcrypt"
)

func newTestUserService() *UserService {
	return NewUserService(testutil.NewUserRepo(), WithHashCost(bcrypt.MinCost))
}

func TestSignupCreatesUserWithDefaultRole(t *testing.T) {
	svc := newTestUserService()
	user, err := svc.Signup(context.Background(), SignupInput{Name: " Ada ", Email: "Ada@Example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.Role != types.RoleUser || user.Email != "ada@example.com" || user.Name != "Ada" {
		t.Fatalf("unexpected user %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "secret" {
		t.Fatalf("password must be stored hashed")
	}
}

func TestSignupRejectsDuplicateEmailInAnyCase(t *testing.T) {
	svc := newTestUserService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.io", Password: "p"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	_, err := svc.Signup(ctx, SignupInput{Name: "B", Email: "A@X.IO", Password: "q"})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc := newTestUserService()
	cases := []SignupInput{
		{Email: "a@x.io", Password: "p"},
		{Name: "A", Password: "p"},
		{Name: "A", Email: "a@x.io"},
		{Name: "A", Email: "not-an-email", Password: "p"},
		{Name: "A", Email: "a@x.io", Password: strings.Repeat("p", MaxPasswordBytes+1)},
	}
	for _, in := range cases {
		if _, err := svc.Signup(context.Background(), in); !errors.Is(err, ErrValidation) {
			t.Fatalf("input %+v: expected validation error, got %v", in, err)
		}
	}
}

func TestSignupAcceptsLongestPassword(t *testing.T) {
	svc := newTestUserService()
	password := strings.Repeat("p", MaxPasswordBytes)
	if _, err := svc.Signup(context.Background(), SignupInput{Name: "A", Email: "a@x.io", Password: password}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "a@x.io", password); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc := newTestUserService()
	ctx := context.Background()
	created, err := svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.io", Password: "right"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	user, err := svc.Authenticate(ctx, "A@x.io", "right")
	if err != nil || user.ID != created.ID {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "a@x.io", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "nobody@x.io", "right"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected invalid credentials, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	svc := newTestUserService()
	ctx := context.Background()
	if _, err := svc.Signup(ctx, SignupInput{Name: "A", Email: "a@x.io", Password: "p"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	user, err := svc.Promote(ctx, "A@X.io")
	if err != nil || user.Role != types.RoleAdmin {
		t.Fatalf("expected admin, got %+v, %v", user, err)
	}
	if _, err := svc.Promote(ctx, "missing@x.io"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
