package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/XI0X-Dev/wan-animate-airtable/internal/airtable"
	httpapi "github.com/XI0X-Dev/wan-animate-airtable/internal/http"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/http/handlers"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/infra"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/orchestrator"
	"github.com/XI0X-Dev/wan-animate-airtable/internal/wavespeed"
)

func main() {
	// .env is optional; real deployments use the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	store, err := airtable.NewClient(airtable.Options{
		APIKey: cfg.AirtableAPIKey,
		BaseID: cfg.AirtableBaseID,
		Table:  cfg.AirtableTable,
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure airtable client")
	}

	generator, err := wavespeed.NewClient(wavespeed.Options{
		APIKey:     cfg.WavespeedAPIKey,
		BaseURL:    cfg.WavespeedBaseURL,
		SubmitPath: cfg.WavespeedSubmitPath,
		ResultPath: cfg.WavespeedResultPath,
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure wavespeed client")
	}

	runner := orchestrator.New(orchestrator.Options{
		Store:              store,
		Generator:          generator,
		Logger:             &logger,
		Mode:               cfg.Mode,
		Resolution:         cfg.Resolution,
		SettingsFromRecord: cfg.SettingsSource == infra.SettingsRecord,
		OutputAsAttachment: cfg.OutputFieldStyle == infra.OutputStyleAttachment,
		PollInterval:       cfg.PollInterval,
		PollMaxAttempts:    cfg.PollMaxAttempts,
	})

	app := handlers.NewApp(runner, logger, cfg.AirtableTable, cfg.SettingsSource)
	router := httpapi.NewRouter(app, logger, cfg.CORSAllowedOrigins)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("webhook server listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

	// Runs have no cancellation; give in-flight ones a grace window before
	// the process exits. Their state is recoverable from the records.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelDrain()
	if err := app.DrainRuns(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("exiting with runs still in flight")
	}
	logger.Info().Msg("server stopped")
}
