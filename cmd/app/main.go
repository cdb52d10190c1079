package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/wichananm65/userd/internal/auth"
	"github.com/wichananm65/userd/internal/config"
	"github.com/wichananm65/userd/internal/logging"
	"github.com/wichananm65/userd/internal/user"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "userd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := closeStore(closeCtx); err != nil {
			logger.Error(closeCtx, "close store", "error", err)
		}
	}()

	tokens, err := auth.NewTokenService(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return err
	}
	service := user.NewService(repo, auth.NewBcryptHasher(auth.BcryptCost), tokens,
		user.WithMaxLimit(cfg.SearchMaxLimit))

	app := newApp(cfg, user.NewHandler(service, logger), tokens, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "listening", "addr", cfg.Addr, "store", cfg.StoreDriver)
		errCh <- app.Listen(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

func newApp(cfg config.Config, handler *user.Handler, tokens *auth.TokenService, logger logging.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "userd",
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	setupCORS(app, cfg)
	app.Use(requestLogger(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	users := app.Group("/users")
	handler.RegisterPublicRoutes(users)
	handler.RegisterProtectedRoutes(users, auth.Guard(tokens))

	return app
}

func setupCORS(app *fiber.App, cfg config.Config) {
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     "GET,HEAD,PUT,PATCH,POST,DELETE",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: !cfg.WildcardOrigin(),
	}))
}

// openStore returns the repository selected by cfg and a func releasing it.
func openStore(ctx context.Context, cfg config.Config) (user.Repository, func(context.Context) error, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		repo, err := user.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = repo.Close(ctx)
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case config.DriverPostgres:
		db, err := user.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := user.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return user.NewPostgresRepository(db), func(context.Context) error { return db.Close() }, nil
	case config.DriverMemory:
		return user.NewInMemoryRepository(nil), func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func requestLogger(logger logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info(c.UserContext(), "request",
			"method", c.Method(),
			"path", c.OriginalURL(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start).String(),
		)
		return err
	}
}
