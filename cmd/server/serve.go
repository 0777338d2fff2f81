package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	auditquery "ezclaim/internal/audit"
	"ezclaim/internal/audit/capture"
	audithandler "ezclaim/internal/audit/handler"
	"ezclaim/internal/auth"
	claimhandler "ezclaim/internal/claims/handler"
	"ezclaim/internal/claims/lockout"
	lockoutstore "ezclaim/internal/claims/lockout/store"
	claims "ezclaim/internal/claims/models"
	claimservice "ezclaim/internal/claims/service"
	jwttoken "ezclaim/internal/jwt_token"
	photohandler "ezclaim/internal/photos/handler"
	photos "ezclaim/internal/photos/models"
	photoservice "ezclaim/internal/photos/service"
	"ezclaim/internal/platform/config"
	"ezclaim/internal/platform/httpserver"
	platformkafka "ezclaim/internal/platform/kafka"
	"ezclaim/internal/platform/metrics"
	"ezclaim/internal/platform/objectstore"
	"ezclaim/internal/platform/postgres"
	platformredis "ezclaim/internal/platform/redis"
	"ezclaim/internal/storage"
	"ezclaim/internal/storage/memory"
	pgstorage "ezclaim/internal/storage/postgres"
	taghandler "ezclaim/internal/tags/handler"
	tags "ezclaim/internal/tags/models"
	tagservice "ezclaim/internal/tags/service"
	httptransport "ezclaim/internal/transport/http"
	"ezclaim/pkg/platform/audit"
	"ezclaim/pkg/platform/audit/channel"
	auditkafka "ezclaim/pkg/platform/audit/kafka"
	auditmemory "ezclaim/pkg/platform/audit/store/memory"
	auditpostgres "ezclaim/pkg/platform/audit/store/postgres"
	"ezclaim/pkg/platform/audit/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the audit pipeline",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.close()
	return app.run(ctx)
}

// application holds the long-running parts of the process.
type application struct {
	cfg      config.Config
	logger   *slog.Logger
	server   *http.Server
	sink     *worker.Worker
	events   *channel.Channel
	producer *platformkafka.Producer
	consumer *platformkafka.Consumer
	closers  []func()
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// run serves until ctx is cancelled or a component fails, then shuts the
// server down and drains the audit pipeline.
func (a *application) run(ctx context.Context) error {
	sinkCtx, cancelSink := context.WithCancel(context.Background())
	defer cancelSink()
	sinkDone := make(chan struct{})
	go func() {
		defer close(sinkDone)
		if a.events != nil {
			_ = a.sink.Run(sinkCtx)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.consumer != nil {
		g.Go(func() error {
			if err := a.consumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("audit consumer: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	err := g.Wait()

	a.drain(sinkDone, cancelSink)
	return err
}

// drain gives queued audit events a bounded chance to reach the store.
func (a *application) drain(sinkDone <-chan struct{}, cancelSink context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Audit.DrainTimeout)
	defer cancel()

	if a.producer != nil {
		if err := a.producer.Flush(ctx); err != nil {
			a.logger.Warn("audit producer flush incomplete", "error", err)
		}
	}
	if a.events != nil {
		a.events.Close()
	}
	select {
	case <-sinkDone:
	case <-ctx.Done():
		a.logger.Warn("audit drain timed out", "pending", a.pendingEvents())
		cancelSink()
		<-sinkDone
	}
}

func (a *application) pendingEvents() int {
	if a.events == nil {
		return 0
	}
	return a.events.Len()
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *application, err error) {
	app := &application{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(reg)
	auditMetrics := audit.NewMetrics(reg)
	health := map[string]httptransport.HealthCheck{}

	var db *sql.DB
	if cfg.Store.Backend == config.StorePostgres {
		if db, err = postgres.Open(ctx, postgresConfig(cfg)); err != nil {
			return nil, err
		}
		app.closers = append(app.closers, func() { _ = db.Close() })
		applied, err := postgres.Migrate(ctx, db, logger)
		if err != nil {
			return nil, err
		}
		logger.InfoContext(ctx, "database ready", "migrations_applied", applied)
		health["postgres"] = db.PingContext
	}

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if db != nil {
		auditStore = auditpostgres.New(db)
	}
	publisher, err := app.auditTransport(ctx, auditStore, auditMetrics)
	if err != nil {
		return nil, err
	}

	hook := storage.WithHook(capture.NewListener(publisher, capture.WithLogger(logger), capture.WithMetrics(auditMetrics)))
	timeout := storage.WithTimeout(cfg.Store.Timeout)
	claimStore := newCollection[claims.Claim](db, "claims", claims.EntityType,
		hook, timeout, storage.WithRedactedFields("passwordHash"))
	photoStore := newCollection[photos.Photo](db, "photos", photos.EntityType, hook, timeout)
	tagStore := newCollection[tags.Tag](db, "tags", tags.EntityType, hook, timeout)

	var lockStore lockout.Store = lockoutstore.NewMemory()
	rdb, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	switch {
	case rdb != nil:
		app.closers = append(app.closers, func() { _ = rdb.Close() })
		lockStore = lockoutstore.NewRedis(rdb.Client)
		health["redis"] = rdb.Health
	case db != nil:
		lockStore = lockoutstore.NewPostgres(db)
	}
	locks := lockout.New(lockStore, cfg.Lockout, lockout.WithLogger(logger))

	objects, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBucket(ctx, cfg.ObjectStore.Bucket); err != nil {
		logger.WarnContext(ctx, "photo bucket unavailable, presigned URLs may fail",
			"bucket", cfg.ObjectStore.Bucket,
			"error", err,
		)
	}

	jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)
	users, err := auth.DemoUsers(cfg.Auth.AdminPassword, cfg.Auth.ReaderPassword)
	if err != nil {
		return nil, err
	}

	claimSvc := claimservice.New(claimStore, photoStore, tagStore,
		claimservice.WithLogger(logger),
		claimservice.WithMetrics(appMetrics),
		claimservice.WithLockout(locks),
		claimservice.WithDefaultCurrency(cfg.Claims.DefaultCurrency),
	)
	photoSvc := photoservice.New(photoStore, objects, cfg.ObjectStore.Bucket,
		photoservice.WithLogger(logger),
		photoservice.WithDefaultTTL(cfg.ObjectStore.PresignTTL),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Metrics:        appMetrics,
		Gatherer:       reg,
		Validator:      jwttoken.NewJWTServiceAdapter(jwt),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsToken:   cfg.Server.MetricsToken,
		HealthChecks:   health,
		Handlers: []httptransport.Registrar{
			auth.NewHandler(auth.NewService(users, jwt, cfg.Auth.TokenTTL, logger), logger),
			claimhandler.New(claimSvc, logger),
			photohandler.New(photoSvc, logger),
			taghandler.New(tagservice.New(tagStore), logger),
			audithandler.New(auditquery.NewService(auditStore), logger),
		},
	})
	app.server = httpserver.New(cfg.Server, router, logger)

	logger.InfoContext(ctx, "ezclaim configured",
		"store", cfg.Store.Backend,
		"audit_transport", cfg.Audit.Transport,
		"lockout_store", fmt.Sprintf("%T", lockStore),
	)
	return app, nil
}

// auditTransport connects the listener side to the sink: either the
// in-process channel or a Kafka topic with a consumer group feeding the
// sink directly.
func (a *application) auditTransport(ctx context.Context, store audit.Store, m *audit.Metrics) (audit.Publisher, error) {
	newSink := func(inbox <-chan audit.Event) *worker.Worker {
		return worker.NewWorker(store, inbox,
			worker.WithLogger(a.logger),
			worker.WithMetrics(m),
			worker.WithCircuitBreaker(worker.NewCircuitBreaker(a.cfg.Audit.BreakerThreshold, a.cfg.Audit.BreakerCooldown)),
			worker.WithPersistTimeout(a.cfg.Audit.PersistTimeout),
		)
	}
	if a.cfg.Audit.Transport != config.TransportKafka {
		a.events = channel.New(a.cfg.Audit.BufferSize)
		a.sink = newSink(a.events.Events())
		return a.events, nil
	}
	a.sink = newSink(nil)

	kcfg := a.cfg.Kafka
	producerClient, err := platformkafka.NewClient(ctx, kcfg, platformkafka.ProducerOpts(kcfg.MaxBufferedEvents)...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, producerClient.Close)
	if err := platformkafka.EnsureTopic(ctx, producerClient, kcfg.Topic, kcfg.Partitions, kcfg.ReplicationFactor); err != nil {
		return nil, err
	}
	a.producer = platformkafka.NewProducer(producerClient, kcfg.MaxBufferedEvents, a.logger)

	consumerOpts := append(platformkafka.ConsumerOpts(kcfg.Group, kcfg.Topic), kgo.ClientID(kcfg.ClientID+"-sink"))
	consumerClient, err := platformkafka.NewClient(ctx, kcfg, consumerOpts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, consumerClient.Close)
	a.consumer = platformkafka.NewConsumer(consumerClient, auditkafka.NewHandler(a.sink, a.logger, m), a.logger)

	return auditkafka.NewPublisher(a.producer, kcfg.Topic), nil
}

func newCollection[T storage.Entity](db *sql.DB, name, entityType string, opts ...storage.Option) storage.Collection[T] {
	if db != nil {
		return pgstorage.New[T](db, name, entityType, opts...)
	}
	return memory.New[T](name, entityType, opts...)
}

func postgresConfig(cfg config.Config) postgres.Config {
	return postgres.Config{
		URL:             cfg.Postgres.URL,
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	}
}
