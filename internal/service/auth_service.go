package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"bchfaucet/internal/auth"
	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/model"
	"bchfaucet/internal/repository"
)

const bcryptCost = 10

// SignupInput is the payload of a public registration.
type SignupInput struct {
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
}

// LoginInput identifies a user by email. Usernames are display data and may repeat.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Signup(ctx context.Context, in SignupInput) (*model.User, string, error)
	Login(ctx context.Context, in LoginInput) (*model.User, string, error)
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

// NewAuthService creates a new authentication service.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Signup creates a regular user and returns it with a fresh token. Any type supplied by the
// caller is ignored.
func (s *authService) Signup(ctx context.Context, in SignupInput) (*model.User, string, error) {
	if in.Email == nil || *in.Email == "" {
		return nil, "", apperrors.NewValidationError("Property 'email' must be a string!")
	}
	if !IsEmail(*in.Email) {
		return nil, "", apperrors.NewValidationError("Property 'email' must be email format!")
	}
	if in.Password == nil || *in.Password == "" {
		return nil, "", apperrors.NewValidationError("Property 'password' must be a string!")
	}

	existing, err := s.userRepo.FindByEmail(ctx, *in.Email)
	if err == nil && existing != nil {
		return nil, "", apperrors.ErrUserAlreadyExists
	}
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, "", fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Type:         model.UserTypeUser,
		Email:        *in.Email,
		PasswordHash: string(hashedPassword),
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Username != nil {
		user.Username = *in.Username
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Login authenticates by email and password.
func (s *authService) Login(ctx context.Context, in LoginInput) (*model.User, string, error) {
	if in.Email == "" {
		return nil, "", apperrors.ErrInvalidCredentials
	}
	user, err := s.userRepo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, "", apperrors.ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, "", apperrors.ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}
