package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/0rShemesh/InvestGraph/internal/config"
	"github.com/0rShemesh/InvestGraph/internal/dca"
	apierrors "github.com/0rShemesh/InvestGraph/internal/errors"
	"github.com/0rShemesh/InvestGraph/internal/infrastructure"
	"github.com/0rShemesh/InvestGraph/internal/marketdata"
	customMiddleware "github.com/0rShemesh/InvestGraph/internal/middleware"
	"github.com/0rShemesh/InvestGraph/internal/services"
	handlers "github.com/0rShemesh/InvestGraph/internal/transport/http"
	ws "github.com/0rShemesh/InvestGraph/internal/websocket"
	"github.com/0rShemesh/InvestGraph/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config            *config.Config
	Router            *chi.Mux
	Server            *http.Server
	Logger            *slog.Logger
	OTelProviders     *infrastructure.OTelProviders
	Metrics           *infrastructure.BusinessMetrics
	ErrorHandler      *apierrors.ErrorHandler
	Source            marketdata.Source
	Cache             *marketdata.CachedSource
	Simulator         *dca.Simulator
	SimulationService *services.SimulationService
	HealthService     *services.HealthService

	source  marketdata.Source
	now     func() time.Time
	otelCfg *infrastructure.OTelConfig
}

// Option customizes NewApplication.
type Option func(*Application)

// WithSource replaces the configured market data provider.
func WithSource(src marketdata.Source) Option {
	return func(a *Application) { a.source = src }
}

// WithClock fixes the clock used to anchor purchase schedules.
func WithClock(now func() time.Time) Option {
	return func(a *Application) { a.now = now }
}

// WithOTelConfig overrides the telemetry settings derived from the config.
func WithOTelConfig(cfg *infrastructure.OTelConfig) Option {
	return func(a *Application) { a.otelCfg = cfg }
}

// NewApplication wires every component from cfg. Nothing is started until Start.
func NewApplication(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	a := &Application{
		Config:       cfg,
		Logger:       logger,
		ErrorHandler: apierrors.NewErrorHandler(logger, cfg.Logging.Development),
	}
	for _, opt := range opts {
		opt(a)
	}

	logger.Info("application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("provider", cfg.MarketData.Provider))

	otelCfg := a.otelCfg
	if otelCfg == nil {
		otelCfg = infrastructure.OTelConfigFrom(cfg.Telemetry, contracts.Version)
	}
	providers, err := infrastructure.InitializeOTel(otelCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	a.OTelProviders = providers

	metrics, err := infrastructure.CreateBusinessMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	a.Metrics = metrics

	if err := a.initializeServices(); err != nil {
		a.closeSources()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

// initializeServices builds the price source chain, the simulator and the services on top.
func (a *Application) initializeServices() error {
	src, err := a.buildSource()
	if err != nil {
		return err
	}
	a.Source = src

	simCfg := a.Config.Simulation
	a.Simulator = dca.NewSimulator(src, dca.Options{
		MaxMonths:   simCfg.MaxMonths,
		CalcTimeout: simCfg.CalcTimeout,
		Resolver: dca.ResolverConfig{
			LookbackDays:  simCfg.LookbackDays,
			ChunkSize:     simCfg.ChunkMonths,
			FanOut:        simCfg.FanOutLimit,
			RetryBackoffs: simCfg.RetryBackoffs,
		},
		Now: a.now,
	}, a.Logger)

	a.SimulationService = services.NewSimulationService(a.Simulator, a.Metrics, a.Logger)

	a.HealthService = services.NewHealthService(contracts.Version, contracts.BuildTime, a.Logger)
	if a.Cache != nil {
		a.HealthService.AddCheck("price_cache", a.Cache)
	}
	if mem, ok := unwrapMemory(src); ok {
		a.HealthService.AddCheck("market_data", services.CheckFunc(func(context.Context) error {
			if len(mem.Tickers()) == 0 {
				return errors.New("no fixture data loaded")
			}
			return nil
		}))
	}
	return nil
}

// buildSource returns provider -> observed -> optional sqlite cache.
func (a *Application) buildSource() (marketdata.Source, error) {
	md := a.Config.MarketData

	upstream := a.source
	name := "injected"
	if upstream == nil {
		httpClient := &http.Client{Timeout: md.HTTPTimeout}
		switch md.Provider {
		case config.ProviderYahoo:
			upstream = marketdata.NewYahooClient(marketdata.YahooConfig{
				Hosts: md.YahooHosts,
				RPS:   md.RPS,
				Burst: md.Burst,
			}, httpClient, a.Logger)
		case config.ProviderEODHD:
			upstream = marketdata.NewEODHDClient(marketdata.EODHDConfig{
				BaseURL:  md.EODHDBaseURL,
				APIKey:   md.EODHDAPIKey,
				Exchange: md.EODHDExchange,
				RPS:      md.RPS,
				Burst:    md.Burst,
			}, httpClient, a.Logger)
		case config.ProviderMemory:
			mem, err := loadFixtures(md.FixturePath)
			if err != nil {
				return nil, err
			}
			upstream = mem
		default:
			return nil, fmt.Errorf("unknown market data provider %q", md.Provider)
		}
		name = md.Provider
	} else if _, ok := upstream.(*marketdata.MemorySource); ok {
		name = config.ProviderMemory
	}

	src := marketdata.Observe(upstream, name, a.Metrics.ObservePriceLookup)

	// fixtures never change; caching them only adds a database
	if !a.Config.Cache.Enabled || name == config.ProviderMemory {
		return src, nil
	}
	cache, err := marketdata.OpenCache(a.Config.Cache.Path, src, a.Metrics.ObservePriceLookup, a.Logger)
	if err != nil {
		return nil, err
	}
	a.Cache = cache
	return cache, nil
}

func loadFixtures(path string) (*marketdata.MemorySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open fixture file: %w", err)
	}
	defer f.Close()

	mem := marketdata.NewMemorySource()
	if err := mem.LoadCSV(f); err != nil {
		return nil, fmt.Errorf("load fixture file %s: %w", path, err)
	}
	return mem, nil
}

// unwrapMemory finds the fixture source below any wrappers.
func unwrapMemory(src marketdata.Source) (*marketdata.MemorySource, bool) {
	for src != nil {
		if mem, ok := src.(*marketdata.MemorySource); ok {
			return mem, true
		}
		u, ok := src.(interface{ Unwrap() marketdata.Source })
		if !ok {
			return nil, false
		}
		src = u.Unwrap()
	}
	return nil, false
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()
	eh := a.ErrorHandler

	// Ordering: RequestID -> RealIP -> OTel -> request log/recover -> headers -> CORS -> rate limit.
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(customMiddleware.NewOTelMiddleware(a.OTelProviders.Tracer, a.Metrics).Handler)
	r.Use(apierrors.NewErrorMiddleware(eh, a.Logger).Handler)
	r.Use(customMiddleware.SecurityHeaders)
	if a.Config.Security.EnableCORS {
		r.Use(customMiddleware.CORS(a.corsConfig()))
	}
	if rl := a.Config.Security.RateLimit; rl.Enabled {
		r.Use(customMiddleware.NewRateLimiter(rl.RPS, rl.Burst, eh, a.Logger).Handler)
	}

	r.NotFound(eh.NotFound)
	r.MethodNotAllowed(eh.MethodNotAllowed)

	healthHandler := handlers.NewHealthHandler(a.HealthService, a.Logger)
	r.Get(config.HealthEndpoint, healthHandler.HealthCheck)
	r.Get(config.ReadyEndpoint, healthHandler.ReadinessCheck)
	r.Get(config.LiveEndpoint, healthHandler.LivenessCheck)
	r.Method(http.MethodGet, config.MetricsEndpoint, handlers.NewMetricsHandler(a.OTelProviders.PrometheusHTTP, eh))

	validator := customMiddleware.NewValidator(customMiddleware.DefaultMaxBodySize)

	wsMetrics, err := ws.NewMetrics(a.OTelProviders.Meter)
	if err != nil {
		a.Logger.Error("failed to create websocket metrics", slog.String("error", err.Error()))
	}
	streamHandler := handlers.NewStreamHandler(
		a.SimulationService,
		validator,
		ws.ConfigFrom(a.Config.WebSocket, a.Config.Security.AllowedOrigins),
		wsMetrics,
		eh,
		a.Logger,
	)

	r.Route(config.APIBasePath, func(r chi.Router) {
		// The stream hijacks the connection, so it stays outside the timeout group.
		r.Method(http.MethodGet, "/ws/calculate", streamHandler)

		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.Timeout(a.Config.Server.RequestTimeout, eh))
			r.Get("/version", healthHandler.Version)
			r.Mount("/calculate", handlers.NewCalculationHandler(a.SimulationService, validator, eh, a.Logger).Routes())
		})
	})

	a.Router = r
}

func (a *Application) corsConfig() customMiddleware.CORSConfig {
	return customMiddleware.CORSConfig{
		AllowedOrigins: a.Config.Security.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-Request-ID",
			"X-Requested-With",
		},
		ExposedHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:         300,
		Logger:         a.Logger,
	}
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(a.Logger.Handler(), slog.LevelWarn),
	}
}

// Start begins serving on the configured port. Serve errors cancel the
// application through cancel.
func (a *Application) Start(ctx context.Context, cancel context.CancelFunc) error {
	ln, err := net.Listen("tcp", a.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.Server.Addr, err)
	}
	return a.Serve(ctx, ln, cancel)
}

// Serve serves on ln in the background.
func (a *Application) Serve(ctx context.Context, ln net.Listener, cancel context.CancelFunc) error {
	a.Logger.InfoContext(ctx, "starting application",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version),
		slog.String("address", ln.Addr().String()),
		slog.String("level", a.Config.Logging.Level))

	go func() {
		if err := a.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.ErrorContext(ctx, "server error", slog.String("error", err.Error()))
			// Signal shutdown through context instead of os.Exit
			cancel()
		}
	}()

	if err := a.startupCheck(ctx); err != nil {
		a.Logger.WarnContext(ctx, "startup readiness check failed", slog.String("error", err.Error()))
	}
	return nil
}

func (a *Application) startupCheck(ctx context.Context) error {
	status := a.HealthService.ReadinessCheck(ctx)
	if status.Status == services.StatusReady {
		return nil
	}
	var errs []error
	for name, s := range status.Services {
		if s.Status != services.StatusReady {
			errs = append(errs, fmt.Errorf("%s: %s", name, s.Message))
		}
	}
	return errors.Join(errs...)
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
	}

	a.closeSources()

	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "application shutdown complete")
	return errors.Join(errs...)
}

func (a *Application) closeSources() {
	if a.Cache == nil {
		return
	}
	if err := a.Cache.Close(); err != nil {
		a.Logger.Error("error closing price cache", slog.String("error", err.Error()))
	}
	a.Cache = nil
}

// Run runs the application until interrupted
func (a *Application) Run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := a.Start(ctx, cancel); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info("received shutdown signal")

	// ctx is already done; shutdown gets a fresh budget
	return a.Stop(context.Background())
}
