package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"audiolicense/internal/catalog"
	"audiolicense/internal/certificate"
	"audiolicense/internal/commerce"
	"audiolicense/internal/commerce/woo"
	"audiolicense/internal/config"
	"audiolicense/internal/events"
	"audiolicense/internal/files"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/locking"
	"audiolicense/internal/resolver"
	"audiolicense/internal/services"
	"audiolicense/internal/storage/postgres"
	transporthttp "audiolicense/internal/transport/http"
	"audiolicense/internal/verification"
	"audiolicense/pkg/contracts"
)

// commerceStore is what the engine needs from a shop backend
type commerceStore interface {
	commerce.ProductStore
	commerce.OrderStore
}

// Application represents the main application container
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Metrics       *infrastructure.EngineMetrics
	Router        chi.Router
	Server        *http.Server

	Catalog      *catalog.Catalog
	Assets       *commerce.MemoryAssets
	Shop         commerceStore
	Synchronizer *commerce.Synchronizer
	Resyncer     *commerce.Resyncer
	Resolver     *resolver.Resolver
	Certificates *certificate.Generator
	Artifacts    *files.Local
	Verifier     *verification.Service
	Health       *services.HealthService

	checks  []services.Check
	closers []func() error
}

// NewApplication loads configuration from configFile (or the default
// locations when empty) and wires every component
func NewApplication(ctx context.Context, configFile string) (*Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadFrom(configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return New(ctx, cfg, infrastructure.InitializeLogger(cfg.Logging))
}

// New wires an Application from an already loaded configuration. Resources
// opened before a failure are released.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	a := &Application{Config: cfg, Logger: logger}

	if err := a.initialize(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

func (a *Application) initialize(ctx context.Context) error {
	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(a.Config.Telemetry), a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return providers.Shutdown(ctx)
	})

	metrics, err := infrastructure.NewEngineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create engine metrics: %w", err)
	}
	a.Metrics = metrics

	if err := a.initializeServices(ctx); err != nil {
		return err
	}
	a.setupRouter()
	a.createServer()
	return nil
}

// initializeServices builds the storage, locking, event and commerce
// backends selected by the config, then the engine components on top
func (a *Application) initializeServices(ctx context.Context) error {
	cfg := a.Config

	tiers, records, err := a.initializeStorage(ctx)
	if err != nil {
		return err
	}
	locker, err := a.initializeLocker(ctx)
	if err != nil {
		return err
	}
	sink, err := a.initializeEvents()
	if err != nil {
		return err
	}
	seed, err := a.initializeCommerce()
	if err != nil {
		return err
	}

	a.Catalog = catalog.New(cfg.Catalog.ID, tiers, locker, a.Logger,
		catalog.WithEvents(sink),
		catalog.WithMetrics(a.Metrics))
	if seed != nil && len(seed.Tiers) > 0 {
		if _, err := a.Catalog.Seed(ctx, seed.Tiers); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	a.checks = append(a.checks, services.Check{Name: "catalog", Fn: func(ctx context.Context) error {
		_, err := a.Catalog.List(ctx)
		return err
	}})

	a.Synchronizer = commerce.NewSynchronizer(a.Assets, a.Shop, a.Catalog, locker, sink, a.Metrics, a.Logger)
	a.Resyncer = commerce.NewResyncer(a.Assets, a.Synchronizer, cfg.Commerce.ResyncConcurrency, a.Logger)
	if cfg.Commerce.AutoResync {
		a.Catalog.Subscribe(a.Resyncer)
	}
	a.Resolver = resolver.New(a.Shop, a.Catalog, a.Assets, a.Logger, resolver.WithMetrics(a.Metrics))

	signer, err := a.linkSigner()
	if err != nil {
		return err
	}
	artifacts, err := files.NewLocal(cfg.Certificates.Root, cfg.Certificates.PublicBaseURL, a.Logger, files.WithLinkSigner(signer))
	if err != nil {
		return fmt.Errorf("failed to open certificate storage: %w", err)
	}
	a.Artifacts = artifacts
	a.checks = append(a.checks, services.Check{Name: "certificates", Fn: artifacts.Check})

	renderer, err := certificate.NewHTMLRenderer(cfg.Certificates.QRSize)
	if err != nil {
		return fmt.Errorf("failed to create certificate renderer: %w", err)
	}
	a.Certificates = certificate.NewGenerator(certificate.Deps{
		Orders:    a.Shop,
		Products:  a.Shop,
		Tiers:     a.Catalog,
		Assets:    a.Assets,
		Records:   records,
		Artifacts: artifacts,
		Renderer:  renderer,
		Locker:    locker,
		Events:    sink,
		Metrics:   a.Metrics,
	}, certificate.Options{
		SerialPrefix:  cfg.Certificates.SerialPrefix,
		VerifyBaseURL: cfg.Certificates.VerifyBaseURL,
		Brand:         cfg.Certificates.Brand,
	}, a.Logger)

	a.Verifier = verification.New(verification.Deps{
		Orders:   a.Shop,
		Records:  records,
		Products: a.Shop,
		Tiers:    a.Catalog,
		Assets:   a.Assets,
		Metrics:  a.Metrics,
	}, cfg.Certificates.SerialPrefix, a.Logger)

	a.Health = services.NewHealthService(contracts.Version, a.Logger, a.checks...)
	a.Health.SetBuildTime(contracts.BuildTime)
	return nil
}

// initializeStorage returns the catalog repository and certificate record
// store of the configured driver
func (a *Application) initializeStorage(ctx context.Context) (catalog.Repository, certificate.Store, error) {
	cfg := a.Config.Storage

	switch cfg.Driver {
	case "file":
		store, err := files.NewLocal(cfg.DataDir, "", a.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open data dir: %w", err)
		}
		a.checks = append(a.checks, services.Check{Name: "storage", Fn: store.Check})
		return catalog.NewFileRepository(store), certificate.NewFileStore(store), nil

	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, a.Logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { return postgres.Close(db) })
		if cfg.RunMigrations {
			if err := postgres.RunMigrations(ctx, db, a.Logger); err != nil {
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		a.checks = append(a.checks, services.Check{Name: "storage", Fn: func(ctx context.Context) error {
			return postgres.Ping(ctx, db)
		}})
		return postgres.NewCatalogRepository(db), postgres.NewCertificateStore(db), nil

	default:
		return catalog.NewMemoryRepository(), certificate.NewMemoryStore(), nil
	}
}

func (a *Application) initializeLocker(ctx context.Context) (locking.Locker, error) {
	cfg := a.Config.Locking
	if cfg.Driver != "redis" {
		return locking.NewLocal(), nil
	}

	client, err := locking.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	a.checks = append(a.checks, services.Check{Name: "locking", Fn: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}})
	return locking.NewRedis(client, locking.RedisOptions{
		Prefix: cfg.Prefix,
		Expiry: cfg.Expiry,
		Tries:  cfg.Tries,
	}, a.Logger), nil
}

// initializeEvents always logs events; the kafka driver publishes them too
func (a *Application) initializeEvents() (events.Sink, error) {
	cfg := a.Config.Events
	logSink := events.NewLogSink(a.Logger)
	if cfg.Driver != "kafka" {
		return logSink, nil
	}

	kafka, err := events.NewKafkaSink(cfg.Brokers, cfg.Topic, nil, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka sink: %w", err)
	}
	a.closers = append(a.closers, kafka.Close)
	return events.Multi{logSink, kafka}, nil
}

// initializeCommerce sets up the asset repository and shop backend. Assets
// always live in memory and come from the seed file when one is set.
func (a *Application) initializeCommerce() (*commerce.Seed, error) {
	cfg := a.Config.Commerce

	var seed *commerce.Seed
	if cfg.SeedFile != "" {
		s, err := commerce.LoadSeed(filepath.Clean(cfg.SeedFile))
		if err != nil {
			return nil, err
		}
		seed = s
	}

	a.Assets = commerce.NewMemoryAssets()

	if cfg.Driver == "woo" {
		client, err := woo.New(woo.Options{
			BaseURL:        cfg.BaseURL,
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			Timeout:        cfg.RequestTimeout,
			RetryMax:       cfg.RetryMax,
		}, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create store client: %w", err)
		}
		a.Shop = client
		a.checks = append(a.checks, services.Check{Name: "commerce", Fn: client.Ping})
		if seed != nil {
			for _, asset := range seed.Assets {
				a.Assets.Put(asset)
			}
			if len(seed.Orders) > 0 {
				a.Logger.Warn("seed orders ignored by the woo commerce driver", slog.Int("orders", len(seed.Orders)))
			}
		}
		return seed, nil
	}

	shop := commerce.NewMemoryShop()
	if seed != nil {
		seed.Apply(a.Assets, shop)
	}
	a.Shop = shop
	return seed, nil
}

func (a *Application) setupRouter() {
	a.Router = transporthttp.NewRouter(transporthttp.RouterDeps{
		Config:       a.Config,
		Logger:       a.Logger,
		Catalog:      a.Catalog,
		Syncer:       a.Synchronizer,
		Resyncer:     a.Resyncer,
		Resolver:     a.Resolver,
		Certificates: a.Certificates,
		Artifacts:    a.Artifacts,
		Verifier:     a.Verifier,
		Health:       a.Health,
		Tracer:       a.OTelProviders.Tracer,
		Metrics:      a.Metrics,
		MetricsHTTP:  a.OTelProviders.PrometheusHTTP,
	})
}

// linkSigner signs certificate download links. Without a configured key the
// links are valid until the next restart.
func (a *Application) linkSigner() (*files.LinkSigner, error) {
	if key := a.Config.Certificates.SigningKey; key != "" {
		return files.NewLinkSigner([]byte(key))
	}
	a.Logger.Warn("certificate signing key not configured, download links will not survive a restart")
	return files.NewRandomLinkSigner()
}

func (a *Application) createServer() {
	a.Server = transporthttp.NewServer(a.Config.Server, a.Router)
}

// Start serves HTTP in the background. A listener failure cancels ctx.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "Starting application",
		slog.String("version", contracts.Version),
		slog.Int("port", a.Config.Server.Port),
		slog.String("storage", a.Config.Storage.Driver),
		slog.String("locking", a.Config.Locking.Driver),
		slog.String("events", a.Config.Events.Driver),
		slog.String("commerce", a.Config.Commerce.Driver))

	go func() {
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "Server error", slog.String("error", err.Error()))
			cancel()
		}
	}()

	if err := a.performStartupHealthCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "Startup health check warnings", slog.String("warnings", err.Error()))
	}

	a.Logger.InfoContext(ctx, "Application started successfully",
		slog.String("address", a.Server.Addr))
	return nil
}

// performStartupHealthCheck runs the readiness checks once so
// misconfigured backends show up in the startup log
func (a *Application) performStartupHealthCheck(ctx context.Context) error {
	status := a.Health.ReadinessCheck(ctx)
	if status.Status == services.StatusReady {
		return nil
	}
	var failed []string
	for name, s := range status.Services {
		if s.Status != services.StatusOK {
			failed = append(failed, fmt.Sprintf("%s: %s", name, s.Message))
		}
	}
	return fmt.Errorf("%d readiness checks failed: %v", len(failed), failed)
}

// Stop shuts the server down within the configured timeout and releases
// every backend connection
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var serverErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			serverErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}
	a.close(ctx)

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return serverErr
}

// close releases resources in reverse order of acquisition
func (a *Application) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.ErrorContext(ctx, "Error releasing resource", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
}

// Run starts the application and blocks until SIGINT, SIGTERM or a server failure
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	select {
	case sig := <-sigChan:
		a.Logger.InfoContext(ctx, "Received interrupt signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		a.Logger.ErrorContext(context.Background(), "Server stopped unexpectedly")
		if err := a.Stop(context.Background()); err != nil {
			return err
		}
		return fmt.Errorf("server stopped unexpectedly")
	}

	return a.Stop(context.Background())
}
