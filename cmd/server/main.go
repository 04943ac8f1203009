// Command server wires the narrowing engine, its stores, the oracle
// client, and the workflow materializer behind an HTTP API. Business logic
// lives in the internal service packages; main only selects
// implementations from configuration and manages lifecycle.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	interviewhandler "visaflow/internal/interview/handler"
	interviewmetrics "visaflow/internal/interview/metrics"
	"visaflow/internal/interview/events"
	"visaflow/internal/interview/oracle"
	"visaflow/internal/interview/service"
	interviewstore "visaflow/internal/interview/store"
	interviewmemory "visaflow/internal/interview/store/memory"
	interviewpostgres "visaflow/internal/interview/store/postgres"
	"visaflow/internal/platform/config"
	"visaflow/internal/platform/httpserver"
	"visaflow/internal/platform/kafka/consumer"
	"visaflow/internal/platform/kafka/producer"
	"visaflow/internal/platform/logger"
	"visaflow/internal/platform/metrics"
	"visaflow/internal/platform/middleware"
	platformredis "visaflow/internal/platform/redis"
	workflowhandler "visaflow/internal/workflow/handler"
	"visaflow/internal/workflow/materializer"
	workflowstore "visaflow/internal/workflow/store"
	workflowmemory "visaflow/internal/workflow/store/memory"
	workflowpostgres "visaflow/internal/workflow/store/postgres"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appMetrics := metrics.New()
	engineMetrics := interviewmetrics.New()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		stateStore interviewstore.Store
		planStore  workflowstore.Store
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("failed to ping postgres", "error", err)
			os.Exit(1)
		}

		interviewPG := interviewpostgres.New(db)
		workflowPG := workflowpostgres.New(db)
		if err := interviewPG.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure interview schema", "error", err)
			os.Exit(1)
		}
		if err := workflowPG.EnsureSchema(ctx); err != nil {
			log.Error("failed to ensure workflow schema", "error", err)
			os.Exit(1)
		}
		stateStore = interviewPG
		planStore = workflowPG
	} else {
		log.Info("no POSTGRES_DSN configured, using in-memory stores")
		stateStore = interviewmemory.New()
		planStore = workflowmemory.New()
	}

	// Oracle: real endpoint when configured, deterministic mock otherwise.
	var oracleClient oracle.Client
	if cfg.Oracle.BaseURL != "" {
		oracleClient = oracle.NewHTTPClient(cfg.Oracle)
	} else {
		log.Info("no ORACLE_URL configured, using deterministic mock oracle")
		oracleClient = oracle.MockClient{Latency: 50 * time.Millisecond}
	}

	engineOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(engineMetrics),
		service.WithForcingThreshold(cfg.Narrower.ForcingThreshold),
	}

	// Per-user locking: distributed with Redis, in-process otherwise.
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		engineOpts = append(engineOpts,
			service.WithLocker(service.NewRedisLocker(redisClient.Client, cfg.Narrower.LockTTL)))
	}

	materializerSvc, err := materializer.New(planStore, log)
	if err != nil {
		log.Error("failed to build materializer", "error", err)
		os.Exit(1)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// Completion events: Kafka when brokers are configured, an in-process
	// worker otherwise. Either way the engine publishes and forgets.
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := producer.New(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("failed to connect kafka producer", "error", err)
			os.Exit(1)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = kafkaProducer.Close(closeCtx)
		}()
		engineOpts = append(engineOpts,
			service.WithPublisher(events.NewKafkaPublisher(kafkaProducer, log)))

		kafkaConsumer, err := consumer.New(cfg.KafkaBrokers, "workflow-materializer", cfg.KafkaTopic,
			materializer.NewKafkaHandler(materializerSvc), log)
		if err != nil {
			log.Error("failed to connect kafka consumer", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			err := kafkaConsumer.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		log.Info("no KAFKA_BROKERS configured, materializing in-process")
		channelPublisher := materializer.NewChannelPublisher(128, log)
		engineOpts = append(engineOpts, service.WithPublisher(channelPublisher))
		worker := materializer.NewWorker(materializerSvc, channelPublisher, log)
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	engine, err := service.New(stateStore, oracleClient, engineOpts...)
	if err != nil {
		log.Error("failed to build narrowing engine", "error", err)
		os.Exit(1)
	}

	jwtValidator := middleware.NewHS256Validator(cfg.JWTSigningKey)

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	interviewhandler.New(engine, log, appMetrics, jwtValidator).Register(router)
	workflowhandler.New(planStore, log, jwtValidator).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	group.Go(func() error {
		log.Info("starting visaflow", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
