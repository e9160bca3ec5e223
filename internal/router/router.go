package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"bchfaucet/docs"
	"bchfaucet/internal/auth"
	"bchfaucet/internal/config"
	apperrors "bchfaucet/internal/errors"
	"bchfaucet/internal/handler"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Coins   *handler.CoinHandler
	Contact *handler.ContactHandler
	Logs    *handler.LogHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, cfg *config.Config, log *zap.Logger, mw *auth.Middleware, h Handlers) {
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}
	e.HTTPErrorHandler = ErrorHandler(log)
	e.IPExtractor = ipExtractor(cfg.Server.TrustedProxies, log)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				zap.String("method", v.Method),
				zap.String("URI", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: corsOrigins(cfg.Server.CORSOrigins),
	}))

	if cfg.Server.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.Server.SwaggerHost
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	perMinute := cfg.Server.RateLimitPerMinute

	e.POST("/auth", h.Auth.Login, rateLimit(perMinute)...)

	e.POST("/users", h.Auth.Signup)
	users := e.Group("/users", mw.RequireUser())
	users.GET("", h.Users.ListUsers)
	users.GET("/:id", h.Users.GetUser)
	users.PUT("/:id", h.Users.UpdateUser, mw.RequireSelfOrAdmin("id"))
	users.DELETE("/:id", h.Users.DeleteUser, mw.RequireSelfOrAdmin("id"))

	e.GET("/coins", h.Coins.GetBalance)
	e.GET("/coins/:bchaddr", h.Coins.GetCoins, rateLimit(perMinute)...)

	adminGroup := e.Group("/admin", mw.RequireUser(), mw.RequireAdmin)
	adminGroup.POST("/ips/sweep", h.Coins.SweepIPs)

	e.POST("/contact/email", h.Contact.SendEmail)
	e.POST("/logapi", h.Logs.GetLogs)
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// ipExtractor uses the peer address unless proxies are trusted, in which case the first
// untrusted hop of X-Forwarded-For is the client.
func ipExtractor(proxies []string, log *zap.Logger) echo.IPExtractor {
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	trusted := 0
	for _, p := range proxies {
		ipNet, err := parseProxy(p)
		if err != nil {
			log.Warn("ignoring trusted proxy", zap.String("proxy", p), zap.Error(err))
			continue
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
		trusted++
	}
	if trusted == 0 {
		return echo.ExtractIPDirect()
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

func parseProxy(s string) (*net.IPNet, error) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "/") {
		ip := net.ParseIP(s)
		if ip == nil {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		if ip.To4() != nil {
			s += "/32"
		} else {
			s += "/128"
		}
	}
	_, ipNet, err := net.ParseCIDR(s)
	return ipNet, err
}

type clientIPKey struct{}

// withClientIP hands echo's extracted address to net/http middleware through the request context.
func withClientIP(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		c.SetRequest(req.WithContext(context.WithValue(req.Context(), clientIPKey{}, c.RealIP())))
		return next(c)
	}
}

func keyByClientIP(r *http.Request) (string, error) {
	if ip, ok := r.Context().Value(clientIPKey{}).(string); ok && ip != "" {
		return ip, nil
	}
	return httprate.KeyByIP(r)
}

// rateLimit limits per client IP per minute. A non-positive limit disables it.
func rateLimit(perMinute int) []echo.MiddlewareFunc {
	if perMinute <= 0 {
		return nil
	}
	limiter := httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByClientIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(apperrors.ErrorResponse{
				Error: "too many requests",
				Code:  "RATE_LIMITED",
			})
		}),
	)
	return []echo.MiddlewareFunc{withClientIP, echo.WrapMiddleware(limiter)}
}

// ErrorHandler renders domain errors through MapErrorToHTTP. Errors raised by echo itself keep
// their status code.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var status int
		var body apperrors.ErrorResponse

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			status = echoErr.Code
			body = apperrors.ErrorResponse{
				Error: fmt.Sprint(echoErr.Message),
				Code:  http.StatusText(echoErr.Code),
			}
		} else {
			mapped := apperrors.MapErrorToHTTP(err)
			status = mapped.StatusCode
			body = mapped.ToErrorResponse()
		}

		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.Error(err),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Warn("write error response", zap.Error(err))
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
