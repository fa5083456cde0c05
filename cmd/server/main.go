package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"noteful-auth/internal/config"
	"noteful-auth/internal/health"
	apphttp "noteful-auth/internal/http"
	"noteful-auth/internal/password"
	"noteful-auth/internal/repository"
	"noteful-auth/internal/repository/memory"
	"noteful-auth/internal/repository/postgres"
	"noteful-auth/internal/repository/sqlite"
	"noteful-auth/internal/service"
	"noteful-auth/internal/token"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.Log.Level)
	logger.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, closeStore, err := openUserRepository(ctx, cfg)
	if err != nil {
		logger.Fatalf("open user store: %v", err)
	}
	defer closeStore()

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	hasher, err := password.NewBcryptHasher(password.Config{
		Cost:          cfg.Auth.BcryptCost,
		MaxConcurrent: cfg.Auth.HashWorkers,
	})
	if err != nil {
		logger.Fatalf("setup password hasher: %v", err)
	}

	issuer, err := token.NewIssuer(token.Config{
		Secret: []byte(cfg.Auth.JWTSecret),
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		logger.Fatalf("setup token issuer: %v", err)
	}

	userService := service.NewUserService(userRepo, hasher, issuer)
	readiness := health.NewService(health.NewPingChecker("user store", userRepo))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(userService, readiness, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("driver", cfg.Database.Driver).Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func openUserRepository(ctx context.Context, cfg config.Config) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		return sqlite.NewUserRepository(db), closer(db), nil
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewUserRepository(db), closer(db), nil
	case config.DriverMemory:
		return memory.NewUserRepository(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func closer(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
