package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"bchfaucet/internal/admin"
	"bchfaucet/internal/auth"
	"bchfaucet/internal/cache"
	"bchfaucet/internal/config"
	"bchfaucet/internal/db"
	"bchfaucet/internal/handler"
	"bchfaucet/internal/logger"
	"bchfaucet/internal/mailer"
	"bchfaucet/internal/repository"
	"bchfaucet/internal/router"
	"bchfaucet/internal/service"
	"bchfaucet/internal/wallet"
)

// @title BCH Testnet Faucet API
// @version 1.0
// @description Testnet faucet with user accounts, contact email and log retrieval.
// @host localhost:7654
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	l, flush, err := logger.New(cfg.Log, cfg.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer flush()

	if err := run(cfg, l); err != nil {
		l.Error("server stopped", zap.Error(err))
		flush()
		os.Exit(1)
	}
}

func run(cfg *config.Config, l *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	var cacheClient *cache.Client
	if cfg.Redis.Addr != "" {
		cacheClient = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer cacheClient.Close()
		if err := cacheClient.Ping(ctx); err != nil {
			l.Warn("redis unavailable, continuing without cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
	}

	userRepo := repository.NewUserRepository(gormDB)
	ipRepo := repository.NewIPRepository(gormDB)
	addrRepo := repository.NewAddressRepository(gormDB)

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.TTL)
	authService := service.NewAuthService(userRepo, jwtService)
	userService := service.NewUserService(userRepo, cacheClient)

	faucetWallet, err := openWallet(cfg.Faucet, l)
	if err != nil {
		return err
	}

	counter, err := spendCounter(cfg, cacheClient)
	if err != nil {
		return err
	}
	faucetService := service.NewFaucetService(cfg.Faucet, faucetWallet, ipRepo, addrRepo, counter, l.Named("faucet"))

	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		faucetService.RunSweeper(ctx)
	}()

	contactService := service.NewContactService(mailer.NewSMTPSender(cfg.Mail), cfg.Mail.DefaultRecipient, l.Named("contact"))
	logService := service.NewLogService(cfg.Log, cfg.Env)

	e := echo.New()
	router.Register(e, cfg, l, auth.NewMiddleware(jwtService, userService, l), router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Users:   handler.NewUserHandler(userService),
		Coins:   handler.NewCoinHandler(faucetService),
		Contact: handler.NewContactHandler(contactService),
		Logs:    handler.NewLogHandler(logService),
	})

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		l.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	bootstrap := admin.NewBootstrapper(authService, userService, cfg.Admin, cfg.Env, l.Named("admin"))
	if _, err := bootstrap.Run(ctx); err != nil {
		stop()
		shutdown(e, cfg.Server.ShutdownTimeout, l)
		<-sweeperDone
		return fmt.Errorf("create system user: %w", err)
	}

	select {
	case <-ctx.Done():
		l.Info("shutdown signal received")
	case err := <-serverErr:
		stop()
		<-sweeperDone
		return fmt.Errorf("server start: %w", err)
	}

	shutdown(e, cfg.Server.ShutdownTimeout, l)
	<-sweeperDone
	return nil
}

func openWallet(cfg config.FaucetConfig, l *zap.Logger) (*wallet.Wallet, error) {
	params, err := wallet.Params(cfg.Network)
	if err != nil {
		return nil, err
	}
	info, err := wallet.LoadInfo(cfg.WalletFile)
	if err != nil {
		return nil, err
	}
	chain := wallet.NewRESTClient(cfg.APIServer, cfg.APIToken, cfg.APITimeout)
	w, err := wallet.New(info, params, chain, cfg.SatsPerByte)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	if cfg.AppAddress != "" && !w.IsOwn(cfg.AppAddress) {
		l.Warn("configured app address differs from wallet address",
			zap.String("appAddress", cfg.AppAddress),
			zap.String("wallet", w.Address()),
		)
	}
	l.Info("wallet loaded", zap.String("address", w.Address()), zap.String("network", params.Name))
	return w, nil
}

func spendCounter(cfg *config.Config, c *cache.Client) (service.SpendCounter, error) {
	switch cfg.Faucet.CounterBackend {
	case "", "memory":
		return service.NewMemorySpendCounter(time.Hour, nil), nil
	case "redis":
		if c == nil {
			return nil, errors.New("counter backend redis requires redis.addr")
		}
		return service.NewRedisSpendCounter(c, "faucet:spent:"+cfg.Env, time.Hour), nil
	default:
		return nil, fmt.Errorf("unknown counter backend %q", cfg.Faucet.CounterBackend)
	}
}

func shutdown(e *echo.Echo, timeout time.Duration, l *zap.Logger) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		l.Error("graceful shutdown failed", zap.Error(err))
	}
}
