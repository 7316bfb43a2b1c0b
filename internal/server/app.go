// Package server builds the application's dependencies and runs the HTTP
// server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/smartlink-preview/internal/analytics"
	"github.com/JakeFAU/smartlink-preview/internal/analytics/sinks"
	"github.com/JakeFAU/smartlink-preview/internal/api"
	"github.com/JakeFAU/smartlink-preview/internal/auth"
	"github.com/JakeFAU/smartlink-preview/internal/bot"
	"github.com/JakeFAU/smartlink-preview/internal/clock/system"
	"github.com/JakeFAU/smartlink-preview/internal/config"
	"github.com/JakeFAU/smartlink-preview/internal/id/uuid"
	"github.com/JakeFAU/smartlink-preview/internal/metrics"
	"github.com/JakeFAU/smartlink-preview/internal/migrations"
	"github.com/JakeFAU/smartlink-preview/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/smartlink-preview/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/smartlink-preview/internal/publisher/pubsub"
	"github.com/JakeFAU/smartlink-preview/internal/render"
	"github.com/JakeFAU/smartlink-preview/internal/resolver"
	"github.com/JakeFAU/smartlink-preview/internal/resolver/remote"
	"github.com/JakeFAU/smartlink-preview/internal/sitemap"
	"github.com/JakeFAU/smartlink-preview/internal/smartlink"
	gcsstorage "github.com/JakeFAU/smartlink-preview/internal/storage/gcs"
	localstorage "github.com/JakeFAU/smartlink-preview/internal/storage/local"
	memorystorage "github.com/JakeFAU/smartlink-preview/internal/storage/memory"
	pgstore "github.com/JakeFAU/smartlink-preview/internal/storage/postgres"
)

// defaultEventsTopic names the in-memory topic when Pub/Sub is not configured.
const defaultEventsTopic = "smartlink-events"

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	registerer   prometheus.Registerer
	apiServer    *api.Server
	pool         *pgxpool.Pool
	hub          *analytics.Hub
	pubsubClient *pubsub.Client
	pubsubPub    *gcppublisher.Publisher
	storage      *storage.Client

	links         smartlink.LinkStore
	events        smartlink.EventStore
	subscriptions smartlink.SubscriptionStore
	blobStore     smartlink.BlobStore
	publisher     smartlink.Publisher
	sitemap       *sitemap.Builder
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return build(ctx, cfg, logger, prometheus.DefaultRegisterer)
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	app := &App{cfg: cfg, logger: logger, registerer: reg}
	app.logger.Info("building application dependencies",
		zap.Int("port", cfg.Server.Port),
		zap.String("strategy", cfg.Resolver.Strategy),
		zap.String("storage_backend", cfg.Storage.Backend),
	)

	if err := app.setupDatabase(ctx); err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	if err := app.setupStores(); err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	if err := app.setupStorage(ctx); err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	if err := app.setupPublisher(ctx); err != nil {
		app.closeInfrastructure(ctx)
		return nil, err
	}
	if err := app.setupServer(); err != nil {
		_ = app.Close(ctx)
		return nil, err
	}
	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// PublishSitemap builds a fresh sitemap and writes it to the configured
// blob store at sitemap.object_path.
func (a *App) PublishSitemap(ctx context.Context) (string, error) {
	location, err := a.sitemap.Publish(ctx, a.blobStore, a.cfg.Sitemap.ObjectPath)
	if err != nil {
		return "", err
	}
	a.logger.Info("sitemap published", zap.String("location", location))
	return location, nil
}

// Run starts the HTTP server and blocks until ctx is canceled or a signal
// arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      a.cfg.RequestTimeout() + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close flushes analytics and releases every client.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close analytics hub: %w", err))
		}
	}
	a.closeInfrastructure(ctx)
	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeInfrastructure(_ context.Context) {
	if a.pubsubPub != nil {
		a.pubsubPub.Close()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func (a *App) setupDatabase(ctx context.Context) error {
	if a.cfg.Database.DSN == "" {
		a.logger.Warn("no database.dsn configured, using in-memory stores")
		return nil
	}
	if a.cfg.Database.AutoMigrate {
		if err := Migrate(a.cfg.Database.DSN, a.logger); err != nil {
			return err
		}
	}
	pool, err := pgstore.NewPool(ctx, pgstore.Config{
		DSN:             a.cfg.Database.DSN,
		MaxConns:        a.cfg.Database.MaxConns,
		MinConns:        a.cfg.Database.MinConns,
		MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("postgres pool init failed: %w", err)
	}
	a.pool = pool
	a.logger.Info("postgres pool initialized", zap.Int32("max_conns", a.cfg.Database.MaxConns))
	return nil
}

// Migrate applies every pending migration to dsn.
func Migrate(dsn string, logger *zap.Logger) error {
	runner, err := migrations.NewRunner(dsn, logger)
	if err != nil {
		return fmt.Errorf("migrations init failed: %w", err)
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.Warn("migration runner close failed", zap.Error(cerr))
		}
	}()
	if err := runner.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (a *App) setupStores() error {
	if a.pool != nil {
		links, err := pgstore.NewLinkStore(a.pool)
		if err != nil {
			return fmt.Errorf("link store init failed: %w", err)
		}
		events, err := pgstore.NewEventStore(a.pool)
		if err != nil {
			return fmt.Errorf("event store init failed: %w", err)
		}
		subs, err := pgstore.NewSubscriptionStore(a.pool)
		if err != nil {
			return fmt.Errorf("subscription store init failed: %w", err)
		}
		a.links, a.events, a.subscriptions = links, events, subs
		return nil
	}
	if a.cfg.Resolver.Strategy == config.StrategyPostgres {
		return fmt.Errorf("postgres strategy requires database.dsn")
	}
	links := memorystorage.NewLinkStore()
	if path := a.cfg.Resolver.FixturePath; path != "" {
		loaded, err := memorystorage.LoadLinkStore(path)
		if err != nil {
			return fmt.Errorf("load link fixture: %w", err)
		}
		links = loaded
		a.logger.Info("loaded link fixture", zap.String("path", path))
	}
	a.links = links
	a.events = memorystorage.NewEventStore()
	a.subscriptions = memorystorage.NewSubscriptionStore()
	return nil
}

func (a *App) setupStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.blobStore = store
		a.logger.Info("using GCS storage backend", zap.String("bucket", a.cfg.Storage.Bucket))
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.Local.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.blobStore = store
		a.logger.Info("using local storage backend", zap.String("path", a.cfg.Storage.Local.BaseDir))
	default:
		a.blobStore = memorystorage.NewBlobStore()
		a.logger.Info("using in-memory storage backend")
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" || a.cfg.PubSub.ProjectID == "" {
		a.logger.Warn("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New(1000)
		return nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	pub, err := gcppublisher.New(client, a.cfg.PubSub.TopicName)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsubPub = pub
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupResolver() (*resolver.Service, error) {
	var strategy smartlink.MetadataResolver
	switch a.cfg.Resolver.Strategy {
	case config.StrategyRemote:
		client, err := remote.New(remote.Config{
			BaseURL:   a.cfg.Resolver.Remote.BaseURL,
			Token:     a.cfg.Resolver.Remote.Token,
			Mode:      a.cfg.Resolver.Remote.Mode,
			UserAgent: a.cfg.Resolver.Remote.UserAgent,
			Timeout:   a.cfg.ResolverTimeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("remote resolver init failed: %w", err)
		}
		strategy = client
	default:
		store, err := resolver.NewStoreStrategy(a.links)
		if err != nil {
			return nil, fmt.Errorf("store resolver init failed: %w", err)
		}
		strategy = store
	}
	svc, err := resolver.New(strategy, resolver.Config{
		Strategy: a.cfg.Resolver.Strategy,
		Origin:   a.cfg.Site.Origin,
		Timeout:  a.cfg.ResolverTimeout(),
		Retry: resolver.NewExponentialRetryPolicy(
			a.cfg.Resolver.MaxAttempts,
			time.Duration(a.cfg.Resolver.BackoffInitialMs)*time.Millisecond,
			time.Duration(a.cfg.Resolver.BackoffMaxMs)*time.Millisecond,
		),
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("resolver init failed: %w", err)
	}
	a.logger.Info("metadata resolver initialized",
		zap.String("strategy", a.cfg.Resolver.Strategy),
		zap.Duration("timeout", a.cfg.ResolverTimeout()),
		zap.Int("max_attempts", a.cfg.Resolver.MaxAttempts),
	)
	return svc, nil
}

func (a *App) setupAnalytics(bots *bot.Classifier, ids smartlink.IDGenerator, clock smartlink.Clock) (*analytics.Recorder, error) {
	if !a.cfg.Analytics.Enabled {
		a.logger.Info("analytics disabled")
		return nil, nil
	}
	promSink, err := sinks.NewPrometheusSink(a.registerer)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	topic := a.cfg.PubSub.TopicName
	if topic == "" {
		topic = defaultEventsTopic
	}
	sinkList := []analytics.Sink{
		sinks.NewStoreSink(a.events),
		promSink,
		sinks.NewPublisherSink(a.publisher, topic),
	}
	if a.cfg.Analytics.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(a.logger.Named("analytics_log")))
	}
	hubCfg := analytics.Config{
		BufferSize:     a.cfg.Analytics.BufferSize,
		MaxBatchEvents: a.cfg.Analytics.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(a.cfg.Analytics.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(a.cfg.Analytics.SinkTimeoutMs) * time.Millisecond,
		Logger:         a.logger.Named("analytics_hub"),
	}
	a.hub = analytics.NewHub(hubCfg, sinkList...)
	a.logger.Info("analytics hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
	)
	recorder, err := analytics.NewRecorder(a.links, a.hub, ids, clock, bots)
	if err != nil {
		return nil, fmt.Errorf("analytics recorder init failed: %w", err)
	}
	return recorder, nil
}

func (a *App) setupServer() error {
	res, err := a.setupResolver()
	if err != nil {
		return err
	}
	renderer, err := render.New(render.Config{
		SiteName:      a.cfg.Site.Name,
		SiteOrigin:    a.cfg.Site.Origin,
		AppPath:       a.cfg.Site.AppPath,
		DefaultImage:  a.cfg.Site.DefaultImage,
		RedirectDelay: a.cfg.RedirectDelay(),
	})
	if err != nil {
		return fmt.Errorf("renderer init failed: %w", err)
	}
	a.sitemap, err = sitemap.New(a.links, sitemap.Config{
		Origin:    a.cfg.Site.Origin,
		AppPath:   a.cfg.Site.AppPath,
		BatchSize: a.cfg.Sitemap.BatchSize,
		CacheTTL:  a.cfg.Sitemap.CacheTTL,
	}, a.logger)
	if err != nil {
		return fmt.Errorf("sitemap init failed: %w", err)
	}

	bots := bot.New(a.cfg.Preview.ExtraBotTokens...)
	ids := uuid.New()
	clock := system.New()
	recorder, err := a.setupAnalytics(bots, ids, clock)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Config:        a.cfg,
		Resolver:      res,
		Renderer:      renderer,
		Bots:          bots,
		Links:         a.links,
		Events:        a.events,
		Subscriptions: a.subscriptions,
		Sitemap:       a.sitemap,
		IDs:           ids,
		Clock:         clock,
		Logger:        a.logger.Named("api"),
	}
	if recorder != nil {
		deps.Recorder = recorder
	}
	if a.cfg.Auth.JWTSecret != "" {
		deps.Verifier, err = auth.NewVerifier(a.cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("jwt verifier init failed: %w", err)
		}
	} else {
		a.logger.Warn("auth.jwt_secret not set, owner routes disabled")
	}
	if a.cfg.RateLimit.Enabled {
		deps.Limiter = ratelimit.New(ratelimit.Config{RPS: a.cfg.RateLimit.RPS, Burst: a.cfg.RateLimit.Burst})
		a.logger.Info("event rate limiter enabled",
			zap.Float64("rps", a.cfg.RateLimit.RPS),
			zap.Int("burst", a.cfg.RateLimit.Burst),
		)
	}
	if a.pool != nil {
		deps.Ready = a.pool.Ping
	}

	a.apiServer, err = api.NewServer(deps)
	if err != nil {
		return fmt.Errorf("api server init failed: %w", err)
	}
	return nil
}
