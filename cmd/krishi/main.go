package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/jordanhubbard/krishi/internal/advice"
	"github.com/jordanhubbard/krishi/internal/advisor"
	"github.com/jordanhubbard/krishi/internal/api"
	"github.com/jordanhubbard/krishi/internal/cache"
	"github.com/jordanhubbard/krishi/internal/collaborators"
	"github.com/jordanhubbard/krishi/internal/escalation"
	"github.com/jordanhubbard/krishi/internal/knowledge"
	"github.com/jordanhubbard/krishi/internal/learning"
	"github.com/jordanhubbard/krishi/internal/logging"
	"github.com/jordanhubbard/krishi/internal/messagebus"
	"github.com/jordanhubbard/krishi/internal/metrics"
	"github.com/jordanhubbard/krishi/internal/nlu"
	"github.com/jordanhubbard/krishi/internal/telemetry"
	"github.com/jordanhubbard/krishi/pkg/config"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	showHelp := flag.Bool("help", false, "Show help message")
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	if *showVersion {
		fmt.Printf("Krishi v%s\n", version)
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfigFromFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config from %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logManager := logging.NewManager(cfg.Logging.BufferSize)
	logger, err := logging.New(cfg.Logging, logManager)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger, logManager); err != nil {
		logger.Fatal("krishi stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, logManager *logging.Manager) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	if cfg.Telemetry.Enabled {
		shutdownTelemetry, err := telemetry.InitTelemetry(runCtx, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Endpoint, logger)
		if err != nil {
			logger.Warn("failed to initialize telemetry", zap.Error(err))
		} else {
			defer func() {
				if err := shutdownTelemetry(context.Background()); err != nil {
					logger.Warn("error shutting down telemetry", zap.Error(err))
				}
			}()
		}
	}

	kb, err := loadKnowledge(cfg.Knowledge)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics()
	instanceID := instanceName()
	timeout := cfg.Collaborators.Timeout
	deps := newDependencies()

	weather, closeWeather := newWeatherProvider(runCtx, cfg, m, logger, deps)
	defer closeWeather()

	translator, err := collaborators.NewPhraseTranslator()
	if err != nil {
		return fmt.Errorf("failed to load phrase table: %w", err)
	}
	pipeline, err := nlu.New(kb, translator, timeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create nlu pipeline: %w", err)
	}

	clock := collaborators.SystemClock{}
	advisorCfg := advisor.Config{
		Pipeline:   pipeline,
		Builder:    advice.NewBuilder(kb, weather, clock, timeout, m, logger),
		Generator:  advice.NewGenerator(kb, clock.Now),
		Policy:     escalation.NewPolicy(clock.Now),
		Store:      learning.NewStore(clock.Now),
		Classifier: collaborators.NewStubClassifier(kb),
		Recognizer: collaborators.NewStubRecognizer(),
		Metrics:    m,
		Logger:     logger,
		InstanceID: instanceID,
		Timeout:    timeout,
	}

	var bus *messagebus.NatsMessageBus
	if cfg.MessageBus.Enabled {
		bus, err = messagebus.NewNatsMessageBus(messagebus.Config{
			URL:        cfg.MessageBus.URL,
			StreamName: cfg.MessageBus.StreamName,
			Timeout:    cfg.MessageBus.Timeout,
		}, logger)
		if err != nil {
			// Events are optional; answer queries without them
			logger.Warn("message bus unavailable, events disabled", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			advisorCfg.Publisher = bus
			deps.checks["nats"] = func(ctx context.Context) error { return bus.Health() }
			deps.stats["nats"] = func(ctx context.Context) interface{} { return bus.Stats() }
		}
	}

	svc, err := advisor.New(advisorCfg)
	if err != nil {
		return err
	}

	hub := api.NewEscalationHub(m, logger)
	defer hub.Close()
	svc.WatchEscalations(hub.Broadcast)

	if bus != nil {
		bridge := messagebus.NewEscalationBridge(bus, instanceID, hub.Broadcast, logger)
		if err := bridge.Start(); err != nil {
			logger.Warn("escalation bridge not started", zap.Error(err))
		}
	}

	apiServer := api.NewServer(svc, api.Options{
		LogManager: logManager,
		Hub:        hub,
		Metrics:    m,
		Logger:     logger,
		Version:    version,
		InstanceID: instanceID,
		Checks:     deps.checks,
		Stats:      deps.stats,
	})
	handler := apiServer.SetupRoutes()

	// Wrap handler with OpenTelemetry instrumentation
	handler = otelhttp.NewHandler(handler, "krishi-http-server")

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("krishi API listening", zap.String("addr", httpSrv.Addr), zap.String("instance", instanceID))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
	}
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return httpSrv.Shutdown(shutdownCtx)
}

func loadKnowledge(cfg config.KnowledgeConfig) (*knowledge.Base, error) {
	if cfg.Path == "" {
		return knowledge.Default()
	}
	kb, err := knowledge.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load knowledge base from %s: %w", cfg.Path, err)
	}
	return kb, nil
}

// dependencies collects what the health endpoint reports about optional
// backends
type dependencies struct {
	checks map[string]api.HealthCheck
	stats  map[string]api.StatsFunc
}

func newDependencies() *dependencies {
	return &dependencies{
		checks: make(map[string]api.HealthCheck),
		stats:  make(map[string]api.StatsFunc),
	}
}

// newWeatherProvider selects the configured provider and wraps it in the
// response cache. The returned func releases the cache.
func newWeatherProvider(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *zap.Logger, deps *dependencies) (collaborators.WeatherProvider, func()) {
	var provider collaborators.WeatherProvider = collaborators.NewStaticWeather()
	if cfg.Collaborators.Weather.Provider == "open-meteo" {
		provider = collaborators.NewOpenMeteo(cfg.Collaborators.Weather, cfg.Collaborators.Timeout)
	}
	if !cfg.Cache.Enabled {
		return provider, func() {}
	}

	c := newWeatherCache(ctx, cfg.Cache, logger, deps)
	cached := collaborators.NewCachedWeather(provider, c, cfg.Collaborators.Weather.CacheTTL, m, logger)
	deps.stats["weather_cache"] = func(ctx context.Context) interface{} { return cached.Stats(ctx) }
	return cached, func() { _ = c.Close() }
}

// newWeatherCache connects the configured backend. Weather is an optional
// signal, so an unreachable Redis falls back to the in-memory cache.
func newWeatherCache(ctx context.Context, cfg config.CacheConfig, logger *zap.Logger, deps *dependencies) *cache.Cache {
	cacheCfg := &cache.Config{
		Enabled:       true,
		DefaultTTL:    cfg.DefaultTTL,
		MaxSize:       cfg.MaxSize,
		CleanupPeriod: cfg.CleanupPeriod,
	}
	if cfg.Backend != "redis" {
		return cache.New(cacheCfg)
	}

	backend, err := cache.NewRedisBackend(ctx, cfg.RedisURL, "")
	if err != nil {
		logger.Warn("redis unavailable, caching weather in memory", zap.Error(err))
		return cache.New(cacheCfg)
	}
	deps.checks["redis"] = backend.Ping
	return cache.NewWithBackend(backend, cacheCfg)
}

func instanceName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "krishi"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}

func printHelp() {
	fmt.Println("Usage: krishi [flags]")
	fmt.Println()
	fmt.Println("Flags:")
	fmt.Println("  -config   Path to configuration file (default: built-in defaults)")
	fmt.Println("  -version  Show version information")
	fmt.Println("  -help     Show help message")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  KRISHI_HTTP_PORT             HTTP listen port")
	fmt.Println("  KRISHI_LOG_LEVEL             debug, info, warn or error")
	fmt.Println("  KRISHI_NATS_URL              Enable event publishing to this NATS server")
	fmt.Println("  KRISHI_REDIS_URL             Cache weather responses in this Redis")
	fmt.Println("  OTEL_EXPORTER_OTLP_ENDPOINT  Enable tracing to this OTLP collector")
}
