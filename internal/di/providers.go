package di

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/config"
	"github.com/wuzhiguocarter/Aletheia/internal/events"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/dynamo"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/memory"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/rediscache"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/sqlstore"
	"github.com/wuzhiguocarter/Aletheia/internal/gateway/supabase"
	"github.com/wuzhiguocarter/Aletheia/internal/handlers"
	"github.com/wuzhiguocarter/Aletheia/internal/middleware"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
	"github.com/wuzhiguocarter/Aletheia/internal/persona"
	"github.com/wuzhiguocarter/Aletheia/internal/workspace"
	"github.com/wuzhiguocarter/Aletheia/pkg/auth"
)

// ConfigProviders load configuration and the logger everything else uses.
var ConfigProviders = wire.NewSet(
	provideConfig,
	provideLogger,
	provideWatcher,
)

// InfrastructureProviders build the backends behind the workspace.
var InfrastructureProviders = wire.NewSet(
	provideMetrics,
	provideTracerProvider,
	provideGateway,
	providePublisher,
	provideResponder,
)

// ApplicationProviders build the workspace service.
var ApplicationProviders = wire.NewSet(
	provideWorkspace,
)

// InterfaceProviders build the HTTP surface.
var InterfaceProviders = wire.NewSet(
	provideAuthConfig,
	provideHandler,
	provideRouter,
)

// SuperSet is every provider needed for a Container.
var SuperSet = wire.NewSet(
	ConfigProviders,
	InfrastructureProviders,
	ApplicationProviders,
	InterfaceProviders,
	provideContainer,
)

func provideConfig(loader *config.Loader) (*config.Config, error) {
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// provideLogger builds a JSON logger in production and a console logger
// elsewhere, at the configured level.
func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Environment == config.Production {
		zcfg = zap.NewProductionConfig()
	}
	if cfg.Logging.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Logging.Level, err)
		}
		zcfg.Level = level
	}
	logger, err := zcfg.Build(zap.Fields(zap.String("environment", string(cfg.Environment))))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func provideWatcher(loader *config.Loader, cfg *config.Config, logger *zap.Logger) *config.Watcher {
	return config.NewWatcher(loader, cfg, logger)
}

// provideMetrics returns nil when metrics are disabled; every consumer
// accepts a nil collector.
func provideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return observability.NewCollector(cfg.Metrics.Namespace)
}

func provideTracerProvider(ctx context.Context, cfg *config.Config) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: string(cfg.Environment),
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	}
	return tp, cleanup, nil
}

// provideGateway opens the configured backend and decorates it:
// resilience first, then metrics, with the Redis cache outermost.
func provideGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Collector) (gateway.Gateway, func(), error) {
	base, closeBase, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	cleanups := []func(){closeBase}
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	gw := base
	if cfg.Gateway.Resilient {
		gw = gateway.NewResilient(gw,
			gateway.DefaultRetryConfig(),
			gateway.DefaultBreakerConfig("gateway-"+cfg.Gateway.Backend),
			logger,
		)
	}
	if metrics != nil {
		gw = gateway.NewInstrumented(gw, metrics)
	}
	if cfg.Cache.Enabled {
		rdb, err := rediscache.NewClient(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = rdb.Close() })
		gw = rediscache.New(gw, rdb, rediscache.Options{
			TTL:     cfg.Cache.TTL,
			Logger:  logger,
			Metrics: metrics,
		})
	}

	logger.Info("gateway ready",
		zap.String("backend", cfg.Gateway.Backend),
		zap.Bool("resilient", cfg.Gateway.Resilient),
		zap.Bool("cache", cfg.Cache.Enabled),
	)
	return gw, cleanup, nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (gateway.Gateway, func(), error) {
	noop := func() {}
	switch cfg.Gateway.Backend {
	case config.BackendMemory:
		return memory.New(), noop, nil
	case config.BackendSupabase:
		gw, err := supabase.Connect(cfg.Gateway.Supabase.URL, cfg.Gateway.Supabase.Key, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to supabase: %w", err)
		}
		return gw, noop, nil
	case config.BackendDynamo:
		gw, err := dynamo.Connect(ctx, dynamo.Config{
			TableName:  cfg.Gateway.Dynamo.TableName,
			OwnerIndex: cfg.Gateway.Dynamo.OwnerIndex,
			Region:     cfg.Gateway.Dynamo.Region,
			Endpoint:   cfg.Gateway.Dynamo.Endpoint,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to dynamodb: %w", err)
		}
		return gw, noop, nil
	case config.BackendSQL:
		gw, err := sqlstore.Open(cfg.Gateway.SQL.Driver, cfg.Gateway.SQL.DSN, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open %s database: %w", cfg.Gateway.SQL.Driver, err)
		}
		return gw, func() { _ = gw.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown gateway backend %q", cfg.Gateway.Backend)
	}
}

// providePublisher sends domain events to EventBridge when a bus is
// configured and drops them otherwise.
func providePublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (events.Publisher, error) {
	if cfg.Events.BusName == "" {
		return events.Noop{}, nil
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Events.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Events.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(loadCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	client := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		o.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	})
	return events.NewEventBridge(client, cfg.Events.BusName, logger), nil
}

func provideResponder(cfg *config.Config) (*persona.Swappable, error) {
	r, err := persona.New(cfg.Persona)
	if err != nil {
		return nil, fmt.Errorf("failed to create persona responder: %w", err)
	}
	return persona.NewSwappable(r), nil
}

func provideWorkspace(
	cfg *config.Config,
	gw gateway.Gateway,
	responder *persona.Swappable,
	publisher events.Publisher,
	metrics *observability.Collector,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) *workspace.Workspace {
	opts := []workspace.Option{
		workspace.WithPublisher(publisher),
		workspace.WithTracer(tp.Tracer()),
		workspace.WithConfig(workspace.Config{
			DefaultAudience: cfg.Workspace.DefaultAudience,
			UpdateAttempts:  cfg.Workspace.UpdateAttempts,
			RetryBackoff:    cfg.Workspace.RetryBackoff,
			SessionIdle:     cfg.Workspace.SessionIdle,
		}),
	}
	if metrics != nil {
		opts = append(opts, workspace.WithMetrics(metrics))
	}
	return workspace.New(gw, responder, logger, opts...)
}

func provideAuthConfig(cfg *config.Config) (middleware.AuthConfig, error) {
	ac := middleware.AuthConfig{
		AllowUserHeader:       cfg.Security.AllowUserHeader,
		TrustLambdaAuthorizer: cfg.Security.TrustAuthorizer,
	}
	if cfg.Security.JWTSecret != "" {
		v, err := auth.NewValidator(auth.Config{SecretKey: cfg.Security.JWTSecret, Issuer: cfg.Security.JWTIssuer})
		if err != nil {
			return middleware.AuthConfig{}, fmt.Errorf("failed to create token validator: %w", err)
		}
		ac.Validator = v
	}
	return ac, nil
}

func provideHandler(ws *workspace.Workspace, logger *zap.Logger) *handlers.Handler {
	return handlers.New(ws, logger)
}

func provideRouter(
	cfg *config.Config,
	h *handlers.Handler,
	authCfg middleware.AuthConfig,
	gw gateway.Gateway,
	metrics *observability.Collector,
	logger *zap.Logger,
) *chi.Mux {
	breaker := middleware.DefaultCircuitBreakerConfig("api")
	return handlers.NewRouter(handlers.RouterConfig{
		Handler:        h,
		Logger:         logger,
		Metrics:        metrics,
		Auth:           authCfg,
		CORS:           cfg.CORS,
		RequestTimeout: cfg.Server.RequestTimeout,
		Ready:          gw.Ping,
		Breaker:        &breaker,
	})
}
