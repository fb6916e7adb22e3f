package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jiaming2012/optionprisma/src/cache"
	"github.com/jiaming2012/optionprisma/src/config"
	"github.com/jiaming2012/optionprisma/src/eventpubsub"
	"github.com/jiaming2012/optionprisma/src/logger"
	"github.com/jiaming2012/optionprisma/src/ratefetcher"
	"github.com/jiaming2012/optionprisma/src/router"
	"github.com/jiaming2012/optionprisma/src/service"
	"github.com/jiaming2012/optionprisma/src/store"
	"github.com/jiaming2012/optionprisma/src/telemetry"
	"github.com/jiaming2012/optionprisma/src/utils"
)

func main() {
	configPath := flag.String("config", utils.GetEnvOrDefault("OPTIONPRISMA_CONFIG", ""), "path to the YAML config file")
	envDir := flag.String("env-dir", utils.GetEnvOrDefault("ENV_DIR", "."), "directory holding the .env files")
	flag.Parse()

	if err := run(*configPath, *envDir); err != nil {
		log.Fatal(err)
	}
}

func run(configPath, envDir string) (err error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	goEnv := utils.GetEnvOrDefault("GO_ENV", "development")
	if envErr := utils.InitEnvironmentVariables(envDir, goEnv); envErr != nil {
		log.Warnf("skipping .env file: %v", envErr)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCloser, err := logger.Setup(cfg.Logging, cfg.Telemetry.Enabled)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	// Set up OpenTelemetry.
	if cfg.Telemetry.Enabled {
		otelShutdown, otelErr := telemetry.SetupOTelSDK(ctx, cfg.Telemetry.ServiceName, cfg.App.Version)
		if otelErr != nil {
			return fmt.Errorf("failed to setup otel sdk: %w", otelErr)
		}

		// Handle shutdown properly so nothing leaks.
		defer func() {
			err = errors.Join(err, otelShutdown(context.Background()))
		}()
	}

	log.Infof("%s %s starting (%s)", cfg.App.Name, cfg.App.Version, goEnv)

	// setup storage
	resultStore, err := store.NewJSONFileStore(cfg.Storage.ResultsFile, cfg.Storage.QueueSize)
	if err != nil {
		return err
	}
	defer resultStore.Close()

	// setup pubsub
	bus := eventpubsub.New()
	if err := bus.Subscribe("main", eventpubsub.SimulationCreatedEvent, func(ev eventpubsub.SimulationCreated) {
		log.WithField("simulation_id", ev.Result.SimulationID).Debug("simulation stored")
	}); err != nil {
		return err
	}

	opts := []service.Option{service.WithEventBus(bus)}
	if cfg.Cache.Enabled {
		opts = append(opts, service.WithCache(cache.NewResultCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)))
	}

	rates := ratefetcher.NewStubFetcher(cfg.Simulation.RateFetchDelay, cfg.Simulation.DefaultRiskFreeRate)
	svc, err := service.NewSimulationService(resultStore, rates, opts...)
	if err != nil {
		return err
	}

	// setup router
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = router.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	r := mux.NewRouter()
	router.SetupHandler(r, router.NewHandler(svc, cfg.Simulation.Limits(), cfg.App.Version, cfg.Server.RequestTimeout), limiter)

	// start the http server
	srv := &http.Server{
		Handler: r,
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
	}

	go func() {
		log.Infof("listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http: failed to listen and serve: %v", err)
		}
	}()

	// Create channel for shutdown signals.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error shutting down server %s", err)
	} else {
		log.Info("Server gracefully stopped")
	}

	bus.WaitAsync()
	return nil
}
