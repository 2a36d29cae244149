// Package main запускает HTTP-шлюз клиента витрины.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/cart"
	"github.com/mmeshcher/storefront/internal/config"
	"github.com/mmeshcher/storefront/internal/handler"
	"github.com/mmeshcher/storefront/internal/metrics"
	"github.com/mmeshcher/storefront/internal/middleware"
	"github.com/mmeshcher/storefront/internal/notify"
	"github.com/mmeshcher/storefront/internal/pipeline"
	"github.com/mmeshcher/storefront/internal/query"
	"github.com/mmeshcher/storefront/internal/repository"
	"github.com/mmeshcher/storefront/internal/service"
	"github.com/mmeshcher/storefront/internal/session"
	"github.com/mmeshcher/storefront/internal/storefront"
	"github.com/mmeshcher/storefront/internal/tracing"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(ctx, cfg.StateStorageURI)
	if err != nil {
		sugar.Fatalw("state storage initialization error", "error", err.Error())
	}
	defer repo.Close()

	sessions := session.NewStore(repo, repository.Key(cfg.StateRootKey, "auth"), logger)
	if err := sessions.Rehydrate(ctx); err != nil {
		sugar.Warnw("session rehydration failed", "error", err.Error())
	}
	cartStore := cart.NewStore(repo, repository.Key(cfg.StateRootKey, "cart"), logger)
	if err := cartStore.Rehydrate(ctx); err != nil {
		sugar.Warnw("cart rehydration failed", "error", err.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	feed := notify.NewFeed(0, logger)

	pipelineOpts := []pipeline.Option{
		pipeline.WithRateLimit(cfg.RateLimit, 1),
		pipeline.WithMetrics(m),
	}
	if cfg.TraceSpans {
		tp := tracing.NewProvider(logger)
		otel.SetTracerProvider(tp)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				sugar.Warnw("tracer provider shutdown error", "error", err.Error())
			}
		}()
		pipelineOpts = append(pipelineOpts, pipeline.WithTracer(tp.Tracer("github.com/mmeshcher/storefront/internal/pipeline")))
	}

	client, err := pipeline.New(pipeline.Config{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.RequestTimeout,
	}, sessions, feed, logger, pipelineOpts...)
	if err != nil {
		sugar.Fatalw("request pipeline initialization error", "error", err.Error())
	}

	layer := query.NewLayer(client, logger, query.WithMetrics(m), query.WithKeepUnusedFor(cfg.CacheKeepUnused))
	api := storefront.New(layer)

	svc := service.NewService(api, layer, sessions, cartStore, logger)

	guard := middleware.NewSessionGuard(sessions)
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	h := handler.NewHandler(svc, feed, logger, guard, metricsHandler)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Удаление неиспользуемых записей кеша
	g.Go(func() error {
		layer.StartJanitor(ctx, cfg.CacheKeepUnused/2)
		return nil
	})

	// Запуск HTTP-шлюза
	g.Go(func() error {
		sugar.Infow("starting storefront gateway",
			"addr", cfg.RunAddress,
			"api", cfg.APIBaseURL,
			"authenticated", sessions.Session().Authenticated(),
			"cart_items", cartStore.State().TotalItemCount,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
