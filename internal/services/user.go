package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/devnovate/api/internal/store"
	"github.com/devnovate/api/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	SetRole(ctx context.Context, email string, role types.Role) (types.User, error)
}

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// SignupInput is the validated payload of a signup request.
type SignupInput struct {
	Name     string
	Email    string
	Password string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	hashCost int
}

// UserOption customizes a UserService.
type UserOption func(*UserService)

// WithHashCost sets the bcrypt cost used for new passwords.
func WithHashCost(cost int) UserOption {
	return func(s *UserService) {
		s.hashCost = cost
	}
}

func NewUserService(repo UserRepository, opts ...UserOption) *UserService {
	s := &UserService{repo: repo, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *UserService) GetByID(ctx context.Context, id string) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Signup creates a user with the default role. A taken email, in any case,
// fails with store.ErrConflict.
func (s *UserService) Signup(ctx context.Context, in SignupInput) (types.User, error) {
	name := strings.TrimSpace(in.Name)
	email := types.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		return types.User{}, validationError("missing fields")
	}
	if !strings.Contains(email, "@") {
		return types.User{}, validationError("invalid email")
	}
	if len(in.Password) > MaxPasswordBytes {
		return types.User{}, validationError("password must be at most %d bytes", MaxPasswordBytes)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, store.ErrConflict
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.repo.Create(ctx, types.User{
		Email:        email,
		Name:         name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
}

// Authenticate verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = types.NormalizeEmail(email)
	if email == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Promote grants the admin role to the user with email.
func (s *UserService) Promote(ctx context.Context, email string) (types.User, error) {
	email = types.NormalizeEmail(email)
	if email == "" {
		return types.User{}, validationError("email is required")
	}
	return s.repo.SetRole(ctx, email, types.RoleAdmin)
}
