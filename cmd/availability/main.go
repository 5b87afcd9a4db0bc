package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/imsoft/Holistia-sub011/internal/api"
	"github.com/imsoft/Holistia-sub011/internal/cache"
	"github.com/imsoft/Holistia-sub011/internal/calsync"
	"github.com/imsoft/Holistia-sub011/internal/config"
	"github.com/imsoft/Holistia-sub011/internal/db"
	"github.com/imsoft/Holistia-sub011/internal/metrics"
	"github.com/imsoft/Holistia-sub011/internal/wallclock"
)

func main() {
	// Initialize logger
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	// .env feeds the ${ENV_VAR} placeholders in the YAML config.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("AVAILABILITY_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	zone, err := wallclock.LoadZone(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid operating timezone")
	}

	database, err := db.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var previewCache *cache.Cache
	if cfg.Redis.Enabled && cfg.Redis.Address != "" {
		previewCache, err = cache.New(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.CacheTTL())
		if err != nil {
			logger.Error().Err(err).Msg("redis unavailable, serving without cache")
			previewCache = nil
		} else {
			defer previewCache.Close()
		}
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		metrics.Register()
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	if cfg.Backup.Enabled {
		backup := db.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	if cfg.CalendarSync.Enabled {
		fetcher, err := calsync.NewGoogleFetcher(ctx, cfg.CalendarSync.CredentialsPath, cfg.CalendarSync.TokenPath, zone)
		if err != nil {
			logger.Error().Err(err).Msg("calendar sync disabled: google client setup failed")
		} else {
			sync := calsync.NewService(database, fetcher, zone, cfg.SyncInterval(), cfg.SyncWindowDays(), &logger)
			if previewCache != nil {
				sync.OnBlocksChanged(func(ctx context.Context, professionalID string) {
					previewCache.Invalidate(ctx, "preview:"+professionalID+":*")
				})
			}
			go sync.Run(ctx)
		}
	}

	server := api.NewHTTPServer(database, previewCache, zone, &logger, api.Options{
		Addr:                   fmt.Sprintf(":%d", cfg.APIPort()),
		APIKey:                 cfg.API.APIKey,
		SlotMinutes:            cfg.SlotMinutes(),
		DefaultDurationMinutes: cfg.DefaultDurationMinutes(),
		MaxRangeDays:           cfg.MaxRangeDays(),
	})

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctxShutdown)
	}()

	logger.Info().Str("timezone", zone.Name()).Msg("availability engine started")
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("http server error")
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
