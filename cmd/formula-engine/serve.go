package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/formula-engine/internal/config"
	"github.com/ehr/formula-engine/internal/domain/formula"
	"github.com/ehr/formula-engine/internal/domain/indicator"
	"github.com/ehr/formula-engine/internal/domain/metadata"
	"github.com/ehr/formula-engine/internal/domain/predictor"
	"github.com/ehr/formula-engine/internal/domain/validationrule"
	"github.com/ehr/formula-engine/internal/expression"
	"github.com/ehr/formula-engine/internal/platform/auth"
	"github.com/ehr/formula-engine/internal/platform/db"
	"github.com/ehr/formula-engine/internal/platform/middleware"
)

const version = "0.1.0"

func runServer(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	eval, err := expression.NewEvaluator(cfg.Evaluator)
	if err != nil {
		return err
	}

	e, err := newServer(cfg, logger, pool, eval)
	if err != nil {
		return err
	}

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("evaluator", cfg.Evaluator).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// newServer builds the echo instance with every route registered.
func newServer(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, eval expression.Evaluator) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.ImportBodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader, "X-Tenant-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})

	authMW := auth.DevAuthMiddleware()
	if cfg.ResolvedAuthMode() != config.AuthModeDevelopment {
		authMW = auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	tenantMW := db.TenantMiddleware(pool, cfg.DefaultTenant)

	metadataSvc := metadata.NewService(metadata.NewObjectRepoPG(pool))
	var source metadata.SnapshotSource = metadataSvc
	if cfg.MetadataCatalog != "" {
		catalog, err := metadata.LoadCatalog(cfg.MetadataCatalog)
		if err != nil {
			return nil, err
		}
		snap, err := catalog.Snapshot()
		if err != nil {
			return nil, err
		}
		source = metadata.StaticSource{S: snap}
		logger.Info().Str("catalog", cfg.MetadataCatalog).Int("objects", snap.Len()).Msg("serving metadata from catalog file")
	}

	e.GET("/health/db", db.HealthHandler(pool, map[string]db.Check{
		"metadata": func(ctx context.Context) error {
			_, err := source.Snapshot(ctx)
			return err
		},
	}), tenantMW)

	rateMW := middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	})
	api := e.Group("/api/v1", authMW, rateMW, tenantMW)
	metadata.NewHandler(metadataSvc).RegisterRoutes(api)
	formula.NewHandler(formula.NewService(source, eval, logger)).RegisterRoutes(api)
	indicator.NewHandler(indicator.NewService(indicator.NewIndicatorRepoPG(pool), source, eval, logger)).RegisterRoutes(api)
	validationrule.NewHandler(validationrule.NewService(validationrule.NewRuleRepoPG(pool), source, eval, logger)).RegisterRoutes(api)
	predictor.NewHandler(predictor.NewService(predictor.NewPredictorRepoPG(pool), source, eval, logger)).RegisterRoutes(api)

	return e, nil
}
