package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"assetdex/pkg/bus"
	"assetdex/pkg/db"
	"assetdex/pkg/retry"
	gos3 "assetdex/pkg/s3"
	"assetdex/pkg/telemetry"
	"assetdex/services/activity"
	"assetdex/services/api"
	"assetdex/services/catalog"
	"assetdex/services/inventory"
)

const defaultAuditSource = "assetdex-portal"

func main() {
	if err := run("assetdex-api"); err != nil {
		log.New(os.Stderr, "", log.LstdFlags).Fatal(err)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, middleware, logger, err := telemetry.Init(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: telemetry shutdown error: %v\n", serviceName, err)
		}
	}()

	s3Client, err := gos3.NewClientFromEnv()
	if err != nil {
		return fmt.Errorf("init s3 client: %w", err)
	}

	bucket := strings.TrimSpace(os.Getenv("S3_BUCKET"))
	if bucket == "" {
		return errors.New("S3_BUCKET is required")
	}

	store, err := catalog.NewS3Store(s3Client, bucket, retry.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("init durable store: %w", err)
	}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}

	pool, err := db.Open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	orm, err := db.OpenGorm(dsn)
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}

	lister, err := inventory.NewLister(orm)
	if err != nil {
		return fmt.Errorf("init asset lister: %w", err)
	}

	cache, err := catalog.NewService(store, lister, logger)
	if err != nil {
		return fmt.Errorf("init cache service: %w", err)
	}

	reader, err := activity.NewPGAuditReader(pool)
	if err != nil {
		return fmt.Errorf("init audit reader: %w", err)
	}

	source := getEnv("AUDIT_SOURCE", defaultAuditSource)
	compactor, err := activity.NewCompactor(source)
	if err != nil {
		return fmt.Errorf("init compactor: %w", err)
	}

	var events *bus.Bus
	if natsURL := strings.TrimSpace(os.Getenv("NATS_URL")); natsURL != "" {
		events, err = bus.Connect(natsURL, serviceName)
		if err != nil {
			return fmt.Errorf("connect bus: %w", err)
		}
		defer events.Close()
	}

	auditGate := rate.NewLimiter(rate.Limit(getEnvInt("AUDIT_RATE_PER_SEC", 10)), getEnvInt("AUDIT_RATE_BURST", 10))

	aggregator, err := activity.NewAggregator(cache, reader, compactor, auditGate, events, logger)
	if err != nil {
		return fmt.Errorf("init aggregator: %w", err)
	}

	if events != nil {
		closer, err := aggregator.SubscribeRefreshRequests(ctx)
		if err != nil {
			return fmt.Errorf("subscribe refresh requests: %w", err)
		}
		defer closer.Close()
	}

	handlers, err := api.New(cache, aggregator, s3Client, api.Config{ExportBucket: bucket}, logger)
	if err != nil {
		return fmt.Errorf("init api: %w", err)
	}

	routes, err := handlers.Routes()
	if err != nil {
		return fmt.Errorf("build routes: %w", err)
	}

	// Periodic flush bounds the job index's durability gap.
	persistEvery := time.Duration(getEnvInt("JOB_INDEX_PERSIST_SECONDS", 60)) * time.Second
	go persistJobIndexLoop(ctx, cache, persistEvery, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/readyz", readyHandler(pool))
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", routes)

	server := &http.Server{
		Addr:    getEnv("LISTEN_ADDR", ":8080"),
		Handler: middleware(mux),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "%s: server shutdown error: %v\n", serviceName, err)
		}
	}()

	logger.Printf("INFO listening on %s", server.Addr)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("ERROR server failed: %v", err)
		return err
	}

	return nil
}

func persistJobIndexLoop(ctx context.Context, cache *catalog.Service, every time.Duration, logger *log.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			flushCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := cache.PersistJobIndex(flushCtx); err != nil {
				logger.Printf("WARN persist job index: %v", err)
			}
			cancel()
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyHandler(pool interface {
	Ping(ctx context.Context) error
}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
