package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"thealttext/internal/adapter/repo"
	"thealttext/internal/bulk"
	"thealttext/internal/generation"
	"thealttext/internal/http/handlers"
	"thealttext/internal/http/httpapi"
	"thealttext/internal/infra"
	"thealttext/internal/infra/geoip"
	"thealttext/internal/middleware"
	"thealttext/internal/providers/vision"
	"thealttext/internal/scan"
	"thealttext/internal/storage"
	"thealttext/internal/usage"
	"thealttext/internal/webhook"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, language detection degraded")
	}
	var lookup middleware.CountryLookup
	if resolver != nil {
		lookup = resolver.CountryCode
		defer resolver.Close()
	}

	files, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize file store")
	}

	chain, err := vision.LoadChain()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load provider chain")
	}

	client, err := vision.NewClient(vision.Options{
		APIKey:  cfg.OpenRouterAPIKey,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.SiteReferer,
		Title:   cfg.SiteTitle,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize vision client")
	}

	webhookRepo := repo.NewWebhookRepository(dbpool)
	eventRepo := repo.NewEventRepository(dbpool)
	usageRepo := repo.NewUsageRepository(dbpool)
	keyRepo := repo.NewAPIKeyRepository(dbpool)

	accountant := usage.NewAccountant(usageRepo, logger)
	dispatcher := webhook.NewDispatcher(webhookRepo, eventRepo, logger)
	gateway := vision.NewGateway(client, logger)
	executor := generation.NewExecutor(gateway, accountant, dispatcher, logger)
	coordinator := bulk.NewCoordinator(executor, chain, dispatcher, logger, bulk.Options{
		Workers:   int64(cfg.BulkWorkers),
		MaxImages: cfg.BulkMaxImages,
	})
	auditor := scan.NewAuditor(logger, scan.Options{Events: dispatcher, Recorder: accountant})

	app := &handlers.App{
		Logger:     logger,
		Config:     cfg,
		Executor:   executor,
		Chain:      chain,
		Bulk:       coordinator,
		Auditor:    auditor,
		Dispatcher: dispatcher,
		Accountant: accountant,
		Webhooks:   webhookRepo,
		Events:     eventRepo,
		Keys:       keyRepo,
		Files:      files,
		Validate:   validator.New(),
	}

	router := httpapi.NewRouter(app, lookup)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("bulk jobs did not drain")
	}
	// Give queued webhook deliveries a bounded chance to flush.
	dispatchCtx, cancelDispatch := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelDispatch()
	if err := dispatcher.Shutdown(dispatchCtx); err != nil {
		logger.Error().Err(err).Msg("webhook deliveries did not drain")
	}
	logger.Info().Msg("server stopped")
}
