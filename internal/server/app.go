// Package server builds the application graph from configuration and runs it.
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
	"go.uber.org/zap"

	"github.com/JakeFAU/zone-scraper/internal/api"
	"github.com/JakeFAU/zone-scraper/internal/clock/system"
	"github.com/JakeFAU/zone-scraper/internal/config"
	"github.com/JakeFAU/zone-scraper/internal/dispatcher"
	"github.com/JakeFAU/zone-scraper/internal/email"
	collyfetcher "github.com/JakeFAU/zone-scraper/internal/fetcher/colly"
	headlessfetcher "github.com/JakeFAU/zone-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/zone-scraper/internal/id/uuid"
	"github.com/JakeFAU/zone-scraper/internal/orchestrator"
	"github.com/JakeFAU/zone-scraper/internal/places"
	"github.com/JakeFAU/zone-scraper/internal/places/googlemaps"
	"github.com/JakeFAU/zone-scraper/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/zone-scraper/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/zone-scraper/internal/publisher/pubsub"
	queueMemory "github.com/JakeFAU/zone-scraper/internal/queue/memory"
	"github.com/JakeFAU/zone-scraper/internal/scraper"
	gcsstorage "github.com/JakeFAU/zone-scraper/internal/storage/gcs"
	localstorage "github.com/JakeFAU/zone-scraper/internal/storage/local"
	memoryStorage "github.com/JakeFAU/zone-scraper/internal/storage/memory"
	pgstore "github.com/JakeFAU/zone-scraper/internal/storage/postgres"
	"github.com/JakeFAU/zone-scraper/internal/worker"
	"github.com/JakeFAU/zone-scraper/internal/zoneconfig"
)

// App contains the application's dependencies.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	clock        scraper.Clock
	apiServer    *api.Server
	orchestrator *orchestrator.Orchestrator
	dispatch     *dispatcher.Dispatcher
	queue        *queueMemory.Queue
	pool         *pgxpool.Pool
	events       *gcppublisher.Publisher
	storage      *storage.Client
	headless     *headlessfetcher.Fetcher
}

// Stores groups the persistence backends selected by configuration.
type Stores struct {
	Zones       scraper.ZoneStore
	Restaurants scraper.RestaurantStore
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg.Places.APIKey == "" {
		return nil, errors.New("places.api_key is required")
	}
	app := &App{cfg: cfg, logger: logger, clock: system.New()}
	logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.UsePostgres()),
		zap.Bool("email_enabled", cfg.Email.Enabled),
	)

	stores, err := setupStores(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	blobs, err := setupStorage(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	resolver := zoneconfig.NewResolver(stores.Zones, app.clock, zoneconfig.Options{
		TTL:                  cfg.Zones.CacheTTL,
		BaseMaxResults:       cfg.Zones.BaseMaxResults,
		UserAgents:           cfg.Email.UserAgents,
		RequireBusinessHours: cfg.Places.RequireBusinessHours,
	}, logger.Named("zoneconfig"))

	searcher, err := setupPlaces(app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	var emails orchestrator.Enqueuer
	if cfg.Email.Enabled {
		if err := setupEmail(app, stores.Restaurants, publisher); err != nil {
			app.closeInfrastructure()
			return nil, err
		}
		emails = app.dispatch
	} else {
		logger.Warn("email discovery disabled")
	}

	app.orchestrator = orchestrator.New(
		memoryStorage.NewJobRegistry(cfg.Jobs.HistoryLimit),
		resolver,
		searcher,
		stores.Restaurants,
		emails,
		publisher,
		blobs,
		app.clock,
		uuid.New(),
		orchestrator.Config{
			DefaultInterZoneDelay: cfg.Jobs.InterZoneDelay,
			DefaultMaxResults:     cfg.Jobs.MaxResultsPerZone,
			DefaultExtractEmails:  cfg.Jobs.ExtractEmails && cfg.Email.Enabled,
			RejectBusyZones:       cfg.Jobs.RejectBusyZones,
			EventsTopic:           cfg.PubSub.TopicName,
		},
		logger.Named("orchestrator"),
	)

	apiKey := ""
	if cfg.Auth.Enabled {
		apiKey = cfg.Auth.APIKey
	}
	app.apiServer = api.NewServer(app.orchestrator, resolver, api.Options{
		APIKey:      apiKey,
		RecentLimit: cfg.Jobs.RecentLimit,
		ReadyChecks: app.readyChecks(),
	}, logger.Named("api"))

	return app, nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		if a.dispatch == nil {
			return
		}
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()
	<-dispatchDone
	a.logger.Info("shutdown complete")
	return nil
}

// Close stops running jobs and releases infrastructure clients.
func (a *App) Close() {
	if a.orchestrator != nil {
		a.orchestrator.Close()
	}
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
}

func (a *App) closeInfrastructure() {
	if a.headless != nil {
		a.headless.Close()
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
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

func (a *App) readyChecks() map[string]api.ReadyCheck {
	checks := map[string]api.ReadyCheck{}
	if a.pool != nil {
		pool := a.pool
		checks["postgres"] = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("ping postgres: %w", err)
			}
			return nil
		}
	}
	return checks
}

func setupStores(ctx context.Context, app *App) (Stores, error) {
	cfg := app.cfg
	if !cfg.UsePostgres() {
		app.logger.Warn("No DSN specified for database, using in-memory zone and restaurant stores")
		zones := memoryStorage.NewZoneStore()
		for _, seed := range cfg.Zones.Seed {
			zone, err := zoneconfig.ApplyTemplate(seed)
			if err != nil {
				return Stores{}, fmt.Errorf("seed zone %s: %w", seed.ID, err)
			}
			zones.Put(zone)
		}
		app.logger.Info("seeded in-memory zones", zap.Int("zones", len(cfg.Zones.Seed)))
		return Stores{Zones: zones, Restaurants: memoryStorage.NewRestaurantStore()}, nil
	}

	if cfg.Database.Migrate {
		version, dirty, err := pgstore.Migrate(cfg.Database.DSN)
		if err != nil {
			return Stores{}, fmt.Errorf("database migration failed: %w", err)
		}
		app.logger.Info("database migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	pool, err := pgstore.Connect(ctx, pgstore.Config{
		DSN:             cfg.Database.DSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
	if err != nil {
		return Stores{}, fmt.Errorf("postgres init failed: %w", err)
	}
	app.pool = pool
	zones, err := pgstore.NewZoneStore(pool)
	if err != nil {
		return Stores{}, fmt.Errorf("zone store init failed: %w", err)
	}
	restaurants, err := pgstore.NewRestaurantStore(pool, cfg.Database.RestaurantTable)
	if err != nil {
		return Stores{}, fmt.Errorf("restaurant store init failed: %w", err)
	}
	if len(cfg.Zones.Seed) > 0 {
		app.logger.Warn("zones.seed is ignored when postgres is configured", zap.Int("zones", len(cfg.Zones.Seed)))
	}
	app.logger.Info("postgres stores initialized", zap.String("restaurant_table", cfg.Database.RestaurantTable))
	return Stores{Zones: zones, Restaurants: restaurants}, nil
}

func setupStorage(ctx context.Context, app *App) (scraper.BlobStore, error) {
	cfg := app.cfg
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Storage.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket: cfg.Storage.Bucket,
			Prefix: cfg.Storage.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		return blobs, nil
	case config.StorageLocal:
		app.logger.Info("using local storage backend", zap.String("path", cfg.Storage.Local.BaseDir))
		blobs, err := localstorage.New(cfg.Storage.Local)
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		return blobs, nil
	case config.StorageNone:
		app.logger.Info("zone exports disabled")
		return nil, nil
	default:
		app.logger.Info("using in-memory storage backend")
		return memoryStorage.NewBlobStore(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (scraper.Publisher, error) {
	cfg := app.cfg
	if cfg.PubSub.TopicName == "" || cfg.PubSub.ProjectID == "" {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	publisher, err := gcppublisher.New(client, cfg.PubSub.TopicName)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	app.events = publisher
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return publisher, nil
}

func setupPlaces(app *App) (*places.Client, error) {
	cfg := app.cfg.Places
	provider, err := googlemaps.New(cfg.APIKey, app.logger.Named("googlemaps"))
	if err != nil {
		return nil, fmt.Errorf("places provider init failed: %w", err)
	}
	var limiter places.Waiter
	if cfg.RPS > 0 {
		limiter = ratelimit.New(ratelimit.Config{DefaultRPS: cfg.RPS, DefaultBurst: cfg.Burst})
	}
	client := places.New(provider, limiter, app.clock, places.Config{
		DetailBatchSize:  cfg.DetailBatchSize,
		DetailBatchDelay: cfg.DetailBatchDelay,
		PageDelay:        cfg.PageDelay,
		MaxPages:         cfg.MaxPages,
		SummaryFallback:  cfg.SummaryFallback,
	}, app.logger.Named("places"))
	app.logger.Info("places client initialized",
		zap.Float64("rps", cfg.RPS),
		zap.Int("detail_batch_size", cfg.DetailBatchSize),
		zap.Int("max_pages", cfg.MaxPages),
	)
	return client, nil
}

func setupEmail(app *App, restaurants scraper.RestaurantStore, publisher scraper.Publisher) error {
	cfg := app.cfg
	userAgent := ""
	if len(cfg.Email.UserAgents) > 0 {
		userAgent = cfg.Email.UserAgents[0]
	}
	plain := collyfetcher.New(collyfetcher.Config{
		UserAgent:     userAgent,
		RespectRobots: cfg.Email.RespectRobots,
		Timeout:       cfg.Email.Timeout,
	})
	app.logger.Info("using colly fetcher", zap.Bool("respect_robots", cfg.Email.RespectRobots))

	var browser scraper.Fetcher = headlessfetcher.NewDisabled()
	if cfg.Headless.Enabled {
		fetcher, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         userAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
			SettleDelay:       cfg.Headless.SettleDelay,
		})
		if err != nil {
			app.logger.Warn("headless fetcher init failed", zap.Error(err))
		} else {
			app.headless = fetcher
			browser = fetcher
			app.logger.Info("using headless fetcher", zap.Int("max_parallel", cfg.Headless.MaxParallel))
		}
	}

	var mx email.MXChecker
	if cfg.Email.VerifyMX {
		mx = email.NewMXVerifier(cfg.Email.DNSServers, cfg.Email.DNSTimeout)
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.RateLimit.EmailRPS,
		DefaultBurst: cfg.RateLimit.EmailBurst,
	})
	pipeline := email.New(plain, browser, mx, limiter, app.clock, email.Config{
		Timeout:      cfg.Email.Timeout,
		UserAgents:   cfg.Email.UserAgents,
		ContactPaths: cfg.Email.ContactPaths,
		VerifyMX:     cfg.Email.VerifyMX,
		SkipDomains:  cfg.Email.SkipDomains,
	}, app.logger.Named("email"))

	app.queue = queueMemory.NewQueue(cfg.Jobs.QueueDepth)
	workerCfg := worker.Config{
		Topic:            cfg.PubSub.TopicName,
		StoreRetries:     cfg.Jobs.StoreRetries,
		BatchConcurrency: cfg.Email.BatchConcurrency,
		BatchDelay:       cfg.Email.BatchDelay,
	}
	workers := make([]*worker.Worker, 0, cfg.Jobs.Workers)
	for i := range cfg.Jobs.Workers {
		workers = append(workers, worker.New(
			app.queue,
			pipeline,
			restaurants,
			publisher,
			app.clock,
			workerCfg,
			app.logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.dispatch = dispatcher.New(app.queue, workers)
	app.logger.Info("email workers configured",
		zap.Int("workers", cfg.Jobs.Workers),
		zap.Int("queue_depth", cfg.Jobs.QueueDepth),
		zap.Int("store_retries", cfg.Jobs.StoreRetries),
	)
	return nil
}
