package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"

	jwttoken "podium/internal/jwt_token"
	"podium/internal/platform/config"
	"podium/internal/platform/httpserver"
	"podium/internal/platform/kafka"
	httpmetrics "podium/internal/platform/metrics"
	"podium/internal/platform/postgres"
	"podium/internal/platform/redis"
	"podium/internal/platform/telemetry"
	ratelimitmw "podium/internal/ratelimit/middleware"
	"podium/internal/ratelimit/store/bucket"
	"podium/internal/registration/handler"
	"podium/internal/registration/idempotency"
	"podium/internal/registration/metrics"
	"podium/internal/registration/notify"
	"podium/internal/registration/roster"
	"podium/internal/registration/service"
	"podium/internal/registration/store"
	"podium/pkg/platform/circuit"
	"podium/pkg/platform/httputil"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := commonRun()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

// app holds the wired process and everything that must be closed on exit.
type app struct {
	router  http.Handler
	closers []func(context.Context) error
}

func (a *app) close(ctx context.Context, log *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.WarnContext(ctx, "shutdown step failed", "error", err)
		}
	}
}

func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	a, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server, a.router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting podium", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	a.close(shutdownCtx, log)
	return nil
}

// build wires stores, services and routes from cfg. Backing services are
// optional: without a database URL everything runs in memory.
func build(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	domainMetrics := metrics.New(registry)
	httpMetrics := httpmetrics.New(registry)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdownTracing)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(domainMetrics),
		service.WithRoster(roster.New(cfg.Roster.MaxMembers)),
		service.WithBatchLimits(cfg.Listing.BatchMax, cfg.Listing.BatchParallelism),
		service.WithListLimits(cfg.Listing.DefaultLimit, cfg.Listing.MaxLimit),
		service.WithIdempotencyPendingTTL(cfg.Server.RequestTimeout + cfg.Server.TxTimeout),
	}

	var (
		registrationStore service.Store
		db                *sql.DB
	)
	if cfg.Database.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { return db.Close() })
		registrationStore = store.NewPostgres(db)
		opts = append(opts, service.WithStoreTx(newSubmissionPostgresTx(db, cfg.Server.TxTimeout)))
		log.Info("using postgres store")
	} else {
		registrationStore = store.NewMemory()
		opts = append(opts, service.WithStoreTx(service.NewInMemoryTx(cfg.Server.TxTimeout)))
		log.Info("using in-memory store")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
		opts = append(opts, service.WithIdempotency(idempotency.NewRedis(redisClient.Client), cfg.RateLimit.IdempotencyTTL))
	} else {
		opts = append(opts, service.WithIdempotency(idempotency.NewMemory(), cfg.RateLimit.IdempotencyTTL))
	}

	notifiers := notify.Multi{notify.NewLog(log)}
	kafkaClient, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("connect kafka: %w", err)
	}
	if kafkaClient != nil {
		publisher := notify.NewKafka(kafkaClient, cfg.Kafka.Topic,
			notify.WithLogger(log),
			notify.WithMetrics(domainMetrics),
			notify.WithBreaker(circuit.New("kafka-notify")),
		)
		notifiers = append(notifiers, publisher)
		a.closers = append(a.closers, func(ctx context.Context) error {
			err := publisher.Flush(ctx)
			kafkaClient.Close()
			return err
		})
	}
	opts = append(opts, service.WithNotifier(notifiers))

	svc := service.New(registrationStore, opts...)

	buckets := bucket.New()
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go sweepBuckets(sweepCtx, buckets, cfg.RateLimit.Window)
	a.closers = append(a.closers, func(context.Context) error { stopSweep(); return nil })
	limiter := ratelimitmw.New(buckets, log,
		ratelimitmw.WithLimit(cfg.RateLimit.SubmitPerMinute, cfg.RateLimit.Window),
		ratelimitmw.WithMetrics(httpMetrics),
	)

	tokens := jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience))
	h := handler.New(svc.Gateway, svc.Engine, svc.Admin, tokens, log,
		handler.WithMetrics(httpMetrics),
		handler.WithSubmitMiddleware(limiter.RateLimitSubmit),
		handler.WithTimeout(cfg.Server.RequestTimeout),
	)

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler(db, redisClient, kafkaClient))
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	h.Register(r)
	a.router = r
	return a, nil
}

func sweepBuckets(ctx context.Context, buckets *bucket.InMemoryBucketStore, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			buckets.Sweep()
		}
	}
}

func healthHandler(db *sql.DB, redisClient *redis.Client, kafkaClient *kgo.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true
		record := func(name string, err error) {
			if err != nil {
				checks[name] = err.Error()
				healthy = false
				return
			}
			checks[name] = "ok"
		}
		if db != nil {
			record("postgres", postgres.Health(ctx, db))
		}
		if redisClient != nil {
			record("redis", redisClient.Health(ctx))
		}
		if kafkaClient != nil {
			record("kafka", kafka.Health(ctx, kafkaClient))
		}

		status := http.StatusOK
		state := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		httputil.WriteJSON(w, status, map[string]any{"status": state, "checks": checks})
	}
}
