package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/dispatch"
	"github.com/example/ride-dispatch/internal/geo"
	httpapi "github.com/example/ride-dispatch/internal/http"
	"github.com/example/ride-dispatch/internal/ingest"
	"github.com/example/ride-dispatch/internal/location"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/match"
	"github.com/example/ride-dispatch/internal/payments"
	"github.com/example/ride-dispatch/internal/ride"
	"github.com/example/ride-dispatch/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// The store handle is constructed here and handed to every
	// component explicitly; nothing reaches for a global.
	var store storage.Store
	if cfg.PGDSN != "" {
		db, err := sql.Open("postgres", cfg.PGDSN)
		if err != nil {
			logger.Error("open postgres", "error", err)
			os.Exit(1)
		}
		if err := db.Ping(); err != nil {
			logger.Error("ping postgres", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			if err := applyMigrations(db); err != nil {
				logger.Error("migrations failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		defer db.Close()
		store = storage.NewPostgresStoreWithDB(db)
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	engine := &match.Engine{Rides: store, Drivers: store}
	facade := &dispatch.Facade{
		Rides:     &ride.Service{Store: store},
		Match:     engine,
		Locations: &location.Service{Locations: store, Users: store},
		Logger:    logger,
	}

	if cfg.RedisAddr != "" {
		idx := geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer idx.Close()
		engine.Index = idx
		facade.Index = idx
	}
	if cfg.StripeAPIKey != "" {
		facade.Payments = payments.NewStripeEscrow(cfg.StripeAPIKey, cfg.DepositCents, cfg.DepositCurrency)
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(facade, producer, logger, cfg.DefaultRadiusKm),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("ride-dispatch listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("ride-dispatch stopped")
}

func applyMigrations(db *sql.DB) error {
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
