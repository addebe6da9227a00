package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"cardapi/internal/card"
	"cardapi/internal/cardpdf"
	"cardapi/internal/config"
	"cardapi/internal/database"
	"cardapi/internal/database/migration"
	"cardapi/internal/events"
	handlers "cardapi/internal/http/handler"
	"cardapi/internal/http/middleware"
	"cardapi/internal/logging"
	"cardapi/internal/otel"
	"cardapi/internal/repository/postgres"
	"cardapi/internal/service"
	"cardapi/internal/storage"
)

const (
	bodyLimit       = 64 * 1024
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	log := logging.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("cardapi stopped")
	}
}

func run(cfg *config.AppConfig, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Init(ctx, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := migration.EnsureMigrated(ctx, db, log, cfg.Database.Host); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	generator, err := newGenerator(cfg.Card, objStore, log, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	policy, err := card.ParsePolicy(cfg.Card.PrefixPolicy)
	if err != nil {
		return err
	}
	tiers := card.DefaultTiers(policy)
	numbers := postgres.NewNumberPostgres(db)

	bus, err := events.Connect(cfg.NATS, log)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer bus.Close()

	cardSvc := service.NewCardService(service.CardDeps{
		Cards:      postgres.NewCardPostgres(db),
		Sources:    postgres.NewSourcePostgres(db),
		Numbers:    numbers,
		Allocator:  card.NewAllocator(tiers, numbers, card.WithMaxAttempts(cfg.Card.MaxAllocationAttempts)),
		Tiers:      tiers,
		Pipeline:   generator,
		Store:      objStore,
		Events:     bus,
		PathPrefix: cfg.Card.PathPrefix,
		Log:        log,
	})

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
	})

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	app.Use(middleware.RequestID())
	app.Use(middleware.Logger(log))
	app.Use(promMiddleware.Handler())
	app.Use(otelfiber.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + middleware.RequestIDHeader,
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case "/metrics", "/health", "/healthz":
				return true
			}
			return false
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	var auth fiber.Handler
	if cfg.Auth.JWTSecret != "" {
		auth = middleware.RequireRole(cfg.Auth.JWTSecret, cfg.Auth.RequiredRole)
	} else {
		log.Warn("SECRET_KEY not set, /api/financial routes are unauthenticated")
	}
	handlers.RegisterRoutes(app, db, cardSvc, handlers.RouteOptions{Auth: auth})

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", ":"+cfg.Port).Info("cardapi listening")
		errCh <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// newGenerator builds the card document pipeline and fails when any
// registered template is unusable.
func newGenerator(cfg config.CardConfig, store storage.Storage, log logrus.FieldLogger, reg prometheus.Registerer) (*cardpdf.Generator, error) {
	registry, err := cardpdf.LoadRegistry(cfg.RegistryFile, cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("load card registry: %w", err)
	}
	if err := registry.Check(); err != nil {
		return nil, fmt.Errorf("card templates: %w", err)
	}

	fonts, err := cardpdf.LoadFonts(registry.Fonts())
	if err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	renderer, err := cardpdf.NewRenderer(fonts, cardpdf.WithVerifyURL(cfg.VerifyURLBase))
	if err != nil {
		return nil, err
	}
	metrics, err := cardpdf.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register card metrics: %w", err)
	}

	log.WithField("card_types", registry.CardTypes()).Info("card templates loaded")
	publisher := cardpdf.NewPublisher(store, cfg.PathPrefix, log)
	return cardpdf.NewGenerator(registry, renderer, publisher,
		cardpdf.WithMetrics(metrics),
		cardpdf.WithLogger(log),
	), nil
}
