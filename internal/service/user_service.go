package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bchfaucet/internal/cache"
	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/model"
	"bchfaucet/internal/repository"
)

const userCacheTTL = 5 * time.Minute

// UpdateUserInput holds the fields a caller may change. Nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string `json:"email,omitempty"`
	Password *string `json:"password,omitempty"`
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Type     *string `json:"type,omitempty"`
}

// UserService exposes domain operations.
type UserService interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, actor *model.User, id uuid.UUID, in UpdateUserInput) (*model.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
	Promote(ctx context.Context, id uuid.UUID) error
}

type userService struct {
	repo  repository.UserRepository
	cache *cache.Client
}

// NewUserService builds a UserService with repository and cache.
func NewUserService(repo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{repo: repo, cache: cache}
}

func (s *userService) cacheKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s", id)
}

// GetUser serves from cache when possible. Cached copies never carry the password hash.
func (s *userService) GetUser(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if data, _ := s.cache.Get(ctx, s.cacheKey(id)); data != nil {
		var cached model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			cached.ID = id
			return &cached, nil
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(user); err == nil {
		_ = s.cache.Set(ctx, s.cacheKey(id), payload, userCacheTTL)
	}
	return user, nil
}

func (s *userService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.List(ctx)
}

// UpdateUser applies in to the user named by id. Only an admin actor may change the type.
func (s *userService) UpdateUser(ctx context.Context, actor *model.User, id uuid.UUID, in UpdateUserInput) (*model.User, error) {
	if in.Email != nil && !IsEmail(*in.Email) {
		return nil, apperrors.NewValidationError("Property 'email' must be email format!")
	}
	if in.Password != nil && *in.Password == "" {
		return nil, apperrors.NewValidationError("Property 'password' must be a string!")
	}
	if in.Type != nil {
		if !actor.IsAdmin() {
			return nil, apperrors.NewValidationError("Property 'type' can only be changed by Admin user")
		}
		switch model.UserType(*in.Type) {
		case model.UserTypeUser, model.UserTypeAdmin:
		default:
			return nil, apperrors.NewValidationError("Property 'type' must be 'user' or 'admin'!")
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Email != nil {
		user.Email = *in.Email
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Type != nil {
		user.Type = model.UserType(*in.Type)
	}
	if in.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return user, nil
}

func (s *userService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return nil
}

// Promote grants the admin role directly in the store.
func (s *userService) Promote(ctx context.Context, id uuid.UUID) error {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	user.Type = model.UserTypeAdmin
	if err := s.repo.Update(ctx, user); err != nil {
		return fmt.Errorf("promote user: %w", err)
	}
	_ = s.cache.Delete(ctx, s.cacheKey(id))
	return nil
}
