// Package admin maintains the privileged system account that other tools on the host use to
// reach admin-only routes. The account is recreated with a fresh password on every start.
package admin

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"bchfaucet/internal/config"
	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/service"
)

const (
	passwordLength   = 20
	passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// Credentials is the content of the system user file.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	ID       string `json:"id"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Bootstrapper creates the system account.
type Bootstrapper struct {
	auth  service.AuthService
	users service.UserService
	cfg   config.AdminConfig
	env   string
	log   *zap.Logger

	password func() (string, error)
}

func NewBootstrapper(auth service.AuthService, users service.UserService, cfg config.AdminConfig, env string, log *zap.Logger) *Bootstrapper {
	return &Bootstrapper{
		auth:     auth,
		users:    users,
		cfg:      cfg,
		env:      env,
		log:      log,
		password: RandomPassword,
	}
}

// Path is where the credentials are written.
func (b *Bootstrapper) Path() string {
	return filepath.Join(b.cfg.CredentialsDir, fmt.Sprintf("system-user-%s.json", b.env))
}

// Run creates the system account. When it already exists the previous incarnation is logged
// into with the stored credentials, deleted, and creation is retried once.
func (b *Bootstrapper) Run(ctx context.Context) (*Credentials, error) {
	creds, err := b.create(ctx)
	if err == nil {
		return creds, nil
	}
	if !errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return nil, err
	}

	b.log.Info("system user exists, reclaiming", zap.String("path", b.Path()))
	if err := b.reclaim(ctx); err != nil {
		return nil, fmt.Errorf("reclaim system user: %w", err)
	}
	return b.create(ctx)
}

func (b *Bootstrapper) create(ctx context.Context) (*Credentials, error) {
	password, err := b.password()
	if err != nil {
		return nil, fmt.Errorf("generate password: %w", err)
	}

	user, token, err := b.auth.Signup(ctx, service.SignupInput{
		Email:    &b.cfg.Email,
		Password: &password,
		Username: &b.cfg.Username,
	})
	if err != nil {
		return nil, err
	}
	if err := b.users.Promote(ctx, user.ID); err != nil {
		return nil, err
	}

	creds := &Credentials{
		Username: user.Username,
		Email:    user.Email,
		ID:       user.ID.String(),
		Password: password,
		Token:    token,
	}
	if err := b.write(creds); err != nil {
		return nil, err
	}
	b.log.Info("system user created", zap.String("id", creds.ID), zap.String("path", b.Path()))
	return creds, nil
}

func (b *Bootstrapper) reclaim(ctx context.Context) error {
	stored, err := b.read()
	if err != nil {
		return err
	}
	user, _, err := b.auth.Login(ctx, service.LoginInput{
		Email:    stored.Email,
		Password: stored.Password,
	})
	if err != nil {
		return err
	}
	return b.users.DeleteUser(ctx, user.ID)
}

func (b *Bootstrapper) write(creds *Credentials) error {
	if err := os.MkdirAll(b.cfg.CredentialsDir, 0o755); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(b.Path(), data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func (b *Bootstrapper) read() (*Credentials, error) {
	data, err := os.ReadFile(b.Path())
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}
	return &creds, nil
}

// RandomPassword returns a random alphanumeric password.
func RandomPassword() (string, error) {
	out := make([]byte, passwordLength)
	limit := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
