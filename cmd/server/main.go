package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"casereview/internal/audit"
	auditmetrics "casereview/internal/audit/metrics"
	casehandler "casereview/internal/cases/handler"
	casemetrics "casereview/internal/cases/metrics"
	"casereview/internal/cases/service"
	"casereview/internal/cases/tracer"
	"casereview/internal/cases/workers/expiry"
	"casereview/internal/compliance"
	"casereview/internal/platform/config"
	"casereview/internal/platform/health"
	"casereview/internal/platform/logger"
	"casereview/internal/platform/metrics"
	"casereview/internal/platform/tracing"
	"casereview/internal/query"
	httptransport "casereview/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing casereview",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"local_jurisdiction", cfg.Review.LocalJurisdiction,
		"required_local_percentage", cfg.Review.RequiredLocalPercentage.String(),
	)

	reg := metrics.NewRegistry(health.Version, cfg.Environment)
	healthHandler := health.New(cfg.Environment)

	infra, err := buildInfra(ctx, cfg, reg, healthHandler, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	caseTracer := tracer.Tracer(tracer.NewNoop())
	if cfg.Tracing.Enabled {
		provider, err := tracing.Setup(ctx, cfg.Tracing, health.Version, cfg.Environment)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Error("tracer shutdown failed", "error", err)
			}
		}()
		caseTracer = tracer.NewOTel(tracer.WithTracerProvider(provider.TracerProvider()))
	}

	exprs, err := query.NewExprCompiler()
	if err != nil {
		return err
	}

	recorder := audit.NewRecorder(infra.auditStore,
		audit.WithLogger(log),
		audit.WithMetrics(auditmetrics.New(reg)),
	)
	registry := service.New(infra.caseStore, recorder,
		service.WithLogger(log),
		service.WithMetrics(casemetrics.New(reg)),
		service.WithTracer(caseTracer),
		service.WithStoreTx(infra.storeTx),
		service.WithLocker(infra.locker),
		service.WithLockTimeout(cfg.Review.LockTimeout),
		service.WithEvaluator(compliance.New(compliance.WithLocalJurisdiction(cfg.Review.LocalJurisdiction))),
		service.WithRequiredLocalPercentage(cfg.Review.RequiredLocalPercentage),
		service.WithExprCompiler(exprs),
	)

	expirySvc, err := expiry.New(registry,
		expiry.WithInterval(cfg.Review.ExpiryInterval),
		expiry.WithLogger(log),
	)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Cases:   casehandler.New(registry, log),
		Health:  healthHandler,
		Metrics: reg,
		Logger:  log,
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := expirySvc.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if infra.outbox != nil {
		infra.outbox.Start()
		log.Info("outbox relay started", "topic", cfg.Kafka.Topic)
	}
	if infra.redis != nil {
		g.Go(func() error {
			infra.recordRedisStats(gctx, 15*time.Second)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		if infra.outbox != nil {
			if err := infra.outbox.Stop(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("outbox shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
