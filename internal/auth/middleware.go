package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/model"
)

const (
	tokenContextKey = "user"
	userContextKey  = "currentUser"
)

// UserLoader resolves the user referenced by a token.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// Middleware enforces bearer-token authentication and role rules.
type Middleware struct {
	jwt   *JWTService
	users UserLoader
	log   *zap.Logger
}

// NewMiddleware builds the auth middleware set.
func NewMiddleware(jwtService *JWTService, users UserLoader, log *zap.Logger) *Middleware {
	return &Middleware{jwt: jwtService, users: users, log: log}
}

// RequireUser verifies the bearer token and loads the user it names.
func (m *Middleware) RequireUser() echo.MiddlewareFunc {
	parse := echojwt.WithConfig(echojwt.Config{
		SigningKey:    m.jwt.Secret(),
		ContextKey:    tokenContextKey,
		TokenLookup:   "header:" + echo.HeaderAuthorization + ":Bearer ",
		NewClaimsFunc: func(echo.Context) jwt.Claims { return new(Claims) },
		ParseTokenFunc: func(_ echo.Context, auth string) (interface{}, error) {
			claims, err := m.jwt.ValidateToken(auth)
			if err != nil {
				return nil, err
			}
			return claims, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			m.log.Debug("token rejected", zap.Error(err), zap.String("path", c.Path()))
			return apperrors.ErrUnauthorized
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return parse(m.loadUser(next))
	}
}

func (m *Middleware) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(tokenContextKey).(*Claims)
		if !ok {
			return apperrors.ErrUnauthorized
		}
		id, err := uuid.Parse(claims.UserID)
		if err != nil {
			return apperrors.ErrUnauthorized
		}

		user, err := m.users.GetUser(c.Request().Context(), id)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrUnauthorized
			}
			return err
		}

		c.Set(userContextKey, user)
		return next(c)
	}
}

// RequireAdmin rejects non-admin users. Must run after RequireUser.
func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !CurrentUser(c).IsAdmin() {
			return apperrors.ErrNotAdmin
		}
		return next(c)
	}
}

// RequireSelfOrAdmin allows the request when the path parameter names the current user,
// or the current user is an admin. Must run after RequireUser.
func (m *Middleware) RequireSelfOrAdmin(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := CurrentUser(c)
			if user == nil {
				return apperrors.ErrUnauthorized
			}
			if user.IsAdmin() || user.ID.String() == c.Param(param) {
				return next(c)
			}
			return apperrors.ErrUnauthorized
		}
	}
}

// CurrentUser returns the user attached by RequireUser, or nil.
func CurrentUser(c echo.Context) *model.User {
	user, _ := c.Get(userContextKey).(*model.User)
	return user
}
