package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/candidate-identity-service/internal/api/http"
	"github.com/spec-kit/candidate-identity-service/internal/api/http/handlers"
	"github.com/spec-kit/candidate-identity-service/internal/auth"
	"github.com/spec-kit/candidate-identity-service/internal/config"
	"github.com/spec-kit/candidate-identity-service/internal/events"
	"github.com/spec-kit/candidate-identity-service/internal/observability"
	"github.com/spec-kit/candidate-identity-service/internal/persistence"
	"github.com/spec-kit/candidate-identity-service/internal/repository"
	"github.com/spec-kit/candidate-identity-service/internal/service"
	"github.com/spec-kit/candidate-identity-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	candidateRepo := repository.NewCandidateRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	transactor := repository.NewTransactor(pool)

	dispatcher := events.NewInMemoryDispatcher()
	mailer := service.NewMailerService(logger, cfg.Mail)
	tokenMgr := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	identityService := service.NewIdentityService(cfg.Auth, cfg.Mail, service.IdentityDependencies{
		Candidates: candidateRepo,
		Tokens:     tokenRepo,
		Tx:         transactor,
		Hasher:     auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		TokenMgr:   tokenMgr,
		Codes:      auth.NewSecureCodeGenerator(),
		Mailer:     mailer,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	auditService := service.NewAuditService(dispatcher, logger)
	worker.StartAuditWorker(auditService)

	authMiddleware := auth.NewAuthMiddleware(tokenMgr, candidateRepo)
	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	candidatesHandler := handlers.NewCandidatesHandler(identityService)
	rateLimiter := httptransport.NewRateLimiter(redis.Client, cfg.RateLimit, logger)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Candidates:     candidatesHandler,
		AuthMiddleware: authMiddleware,
		RateLimiter:    rateLimiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
