// The consumer drains the driver-location topic and applies each
// update to the store through the same location service the gateway
// uses, then mirrors the position into the Redis GEO index. It is the
// asynchronous half of the tracking pipeline.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/ride-dispatch/internal/config"
	"github.com/example/ride-dispatch/internal/geo"
	"github.com/example/ride-dispatch/internal/location"
	"github.com/example/ride-dispatch/internal/logging"
	"github.com/example/ride-dispatch/internal/models"
	"github.com/example/ride-dispatch/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_consumed_total",
		Help: "Total driver location messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	msgsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_messages_rejected_total",
		Help: "Total messages rejected by the role check",
	})
	storeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_store_errors_total",
		Help: "Total store write failures",
	})
	indexUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_index_updates_total",
		Help: "Total successful geo index updates",
	})
	indexErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "consumer_index_errors_total",
		Help: "Total geo index errors",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, msgsRejected, storeErrors, indexUpdates, indexErrors)
}

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.PGDSN == "" {
		logger.Error("PG_DSN is required for the consumer")
		os.Exit(1)
	}
	brokers := cfg.KafkaBrokers
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}

	store, err := storage.NewPostgresStore(cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	locations := &location.Service{Locations: store, Users: store}

	var index *geo.RedisIndex
	if cfg.RedisAddr != "" {
		index = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer index.Close()
	}

	metricsAddr := os.Getenv("METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":2112"
	}
	go serveMetrics(metricsAddr, index, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer r.Close()

	logger.Info("consumer listening", "topic", cfg.KafkaTopic, "brokers", brokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down consumer")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
		msgsConsumed.Inc()

		var u models.LocationUpdate
		if err := json.Unmarshal(m.Value, &u); err != nil {
			msgsInvalid.Inc()
			logger.Warn("invalid message", "error", err)
			continue
		}

		applied, err := locations.UpdateDriverLocation(ctx, u.DriverID, models.Coord{Lat: u.Lat, Lng: u.Lng})
		if err != nil {
			storeErrors.Inc()
			logger.Error("store update failed", "driver_id", u.DriverID, "error", err)
			continue
		}
		if !applied {
			msgsRejected.Inc()
			logger.Warn("update rejected, not a driver", "driver_id", u.DriverID)
			continue
		}

		if index != nil {
			if err := updateIndexWithRetry(ctx, index, u, 3, 200*time.Millisecond); err != nil {
				indexErrors.Inc()
				logger.Warn("geo index update failed", "driver_id", u.DriverID, "error", err)
				continue
			}
			indexUpdates.Inc()
		}
	}
}

func serveMetrics(addr string, index *geo.RedisIndex, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if index != nil {
			if err := index.Ping(r.Context()); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	logger.Info("metrics/health listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
	}
}

// GeoUpserter is the slice of the index the retry loop needs; tests
// substitute a fake.
type GeoUpserter interface {
	Upsert(ctx context.Context, driverID int64, loc models.Coord, online bool) error
}

// updateIndexWithRetry retries transient index failures with doubling
// backoff before giving up.
func updateIndexWithRetry(ctx context.Context, idx GeoUpserter, u models.LocationUpdate, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = idx.Upsert(ctx, u.DriverID, models.Coord{Lat: u.Lat, Lng: u.Lng}, true)
		if err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
