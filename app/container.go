package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/ManYouOriginal/ChatTest/app/config"
	"github.com/ManYouOriginal/ChatTest/internal/adapters"
	"github.com/ManYouOriginal/ChatTest/internal/handlers"
	"github.com/ManYouOriginal/ChatTest/internal/repositories"
	"github.com/ManYouOriginal/ChatTest/internal/services"
	websocket "github.com/ManYouOriginal/ChatTest/internal/websocet"

	"github.com/ManYouOriginal/ChatTest/internal/ports"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	otelgin "go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"
	"go.opentelemetry.io/otel/trace"
)

// Container wires every component once at process start; nothing in the
// routing core reaches for process-wide singletons.
type Container struct {
	isShuttingDown bool

	GinEngine   *gin.Engine
	Config      *config.Config
	Redis       *redis.Client
	RateLimiter *RateLimiter

	Metrics        *Metrics
	Logger         *slog.Logger
	TracerProvider *tracesdk.TracerProvider
	Tracer         trace.Tracer

	Server *http.Server

	Repository *repositories.RepositoryAdapter

	Presence ports.PresenceStore
	Groups   ports.GroupDirectory
	History  ports.HistoryStore

	AuthService   *services.AuthService
	RouterService *services.RouterService

	AuthHandler      *handlers.AuthHandler
	UserHandler      *handlers.UserHandler
	WebSocketHandler *handlers.WebsocketHandler

	Registry *websocket.Registry
}

func NewContainer() (*Container, error) {
	container := &Container{}

	if err := container.initCore(); err != nil {
		return nil, err
	}

	if err := container.initProductionFeatures(); err != nil {
		return nil, err
	}

	return container, nil
}

func (c *Container) initCore() error {
	var cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}
	c.Config = &cfg

	c.Logger = c.initLogger()
	c.Redis = c.initRedis()

	if err = c.initTracing(); err != nil {
		return err
	}

	if err = c.initStores(); err != nil {
		c.Logger.Error("store initialization error", "backend", cfg.Storage.Backend, "error", err)
		return err
	}

	c.Registry = websocket.NewRegistry(c.Presence, c.Logger)

	c.RouterService = services.NewRouterService(c.Presence, c.Groups, c.History, c.Logger)
	c.RouterService.SetDeliverer(c.Registry)
	c.Registry.SetDispatcher(c.RouterService)

	if cfg.Events.Enabled {
		c.RouterService.SetEventPublisher(adapters.NewRedisEventPublisher(c.Redis, cfg.Events.Channel))
		c.Logger.Info("event publishing enabled", "channel", cfg.Events.Channel)
	}

	c.RateLimiter = NewRateLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	c.AuthService = services.NewAuthService(c.Presence, c.initTokenRepository(), []byte(cfg.JWT.SecretKey), c.Logger)

	c.AuthHandler = handlers.NewAuthHandler(c.AuthService, c.Logger)
	c.UserHandler = handlers.NewUserHandler(c.Presence, c.Logger)
	c.WebSocketHandler = handlers.NewWebsocketHandler(c.Registry, c.AuthService, cfg.Server.AllowedOrigins, c.Logger)

	c.Server = c.initServer()
	c.GinEngine = c.initGinEngine()
	c.Server.Handler = c.GinEngine

	return nil
}

// initStores picks the backing technology; the router never knows which one
// it got.
func (c *Container) initStores() error {
	switch c.Config.Storage.Backend {
	case "postgres":
		repo, err := repositories.NewRepositoryAdapter(c.Config.Database, c.Config.History.Limit, c.Logger)
		if err != nil {
			return err
		}
		c.Repository = repo
		c.Presence = repo.Presence
		c.Groups = repo.Groups
		c.History = repo.History

	case "memory":
		c.Presence = services.NewMemoryPresenceStore()
		c.Groups = services.NewMemoryGroupDirectory()
		c.History = services.NewMemoryHistoryStore(c.Config.History.Limit)

	default:
		c.Presence = adapters.NewRedisPresenceStore(c.Redis)
		c.Groups = adapters.NewRedisGroupDirectory(c.Redis)
		c.History = adapters.NewRedisHistoryStore(c.Redis, c.Config.History.Limit)
	}

	c.Logger.Info("stores initialized", "backend", c.Config.Storage.Backend)
	return nil
}

func (c *Container) initTokenRepository() ports.TokenRepository {
	if c.Config.Storage.Backend == "memory" {
		return services.NewMemoryTokenRepository()
	}
	return adapters.NewRedisTokenRepository(c.Redis)
}

func (c *Container) initProductionFeatures() error {
	c.initMetrics()

	c.Registry.SetConnectionGauge(c.Metrics.ActiveWebSockets)
	c.RouterService.SetMessageCounter(c.Metrics.MessagesRouted)

	c.initHealthRoutes(c.GinEngine)

	c.GinEngine.Use(services.SecurityMiddleware())
	c.GinEngine.Use(services.RequestIDMiddleware())
	c.GinEngine.Use(MetricsMiddleware(c.Metrics))

	return nil
}

func (c *Container) initMetrics() {
	c.Metrics = &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration",
			},
			[]string{"method", "endpoint"},
		),
		ActiveWebSockets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "websocket_connections_active",
				Help: "Currently registered websocket connections",
			},
		),
		MessagesRouted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chat_messages_routed_total",
				Help: "Messages dispatched through the router",
			},
		),
	}
	prometheus.MustRegister(
		c.Metrics.RequestsTotal,
		c.Metrics.RequestDuration,
		c.Metrics.ActiveWebSockets,
		c.Metrics.MessagesRouted,
	)
}

func (c *Container) initTracing() error {
	if !c.Config.Tracing.Enabled {
		c.Logger.Info("tracing disabled")
		return nil
	}

	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(c.Config.Tracing.Endpoint)))
	if err != nil {
		return err
	}

	c.TracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exp),
		tracesdk.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(c.Config.Tracing.ServiceName),
			attribute.String("environment", c.Config.Environment.Current),
		)),
	)

	otel.SetTracerProvider(c.TracerProvider)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	c.Tracer = c.TracerProvider.Tracer(c.Config.Tracing.ServiceName)

	c.Logger.Info("tracing initialized", "endpoint", c.Config.Tracing.Endpoint)
	return nil
}

func (c *Container) initHealthRoutes(eng *gin.Engine) {
	eng.GET("/health", func(ctx *gin.Context) {
		health := map[string]string{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}

		if c.Repository != nil {
			if err := c.Repository.HealthCheck(ctx.Request.Context()); err != nil {
				health["database"] = "unhealthy"
				health["status"] = "degraded"
				ctx.JSON(http.StatusServiceUnavailable, health)
				return
			}
			health["database"] = "healthy"
		}

		if c.Config.Storage.Backend != "memory" {
			if err := c.Redis.Ping().Err(); err != nil {
				health["redis"] = "unhealthy"
				health["status"] = "degraded"
				ctx.JSON(http.StatusServiceUnavailable, health)
				return
			}
			health["redis"] = "healthy"
		}

		ctx.JSON(http.StatusOK, health)
	})

	eng.GET("/ready", func(ctx *gin.Context) {
		if c.isShuttingDown {
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting down"})
			return
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	eng.GET("/live", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "live"})
	})
}

func (c *Container) initGinEngine() *gin.Engine {
	var eng = gin.Default()

	if c.Config.Tracing.Enabled {
		eng.Use(otelgin.Middleware(c.Config.Tracing.ServiceName))
	}

	api := eng.Group("/api")

	api.Use(RateLimitMiddleware(c.RateLimiter))
	{
		api.POST("/login", c.AuthHandler.Login)
		api.POST("/logout", c.AuthHandler.AuthMiddleware(), c.AuthHandler.Logout)
		api.GET("/users", c.UserHandler.GetUsers)
		api.GET("/ws", c.WebSocketHandler.HandleWebSocket)
	}

	eng.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return eng
}

func (c *Container) initLogger() *slog.Logger {
	var logger *slog.Logger
	if c.Config.Environment.Current == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	slog.SetDefault(logger)
	return logger
}

func (c *Container) initRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Addr,
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
}

func (c *Container) initServer() *http.Server {
	return &http.Server{
		Addr:         ":" + c.Config.Server.Port,
		ReadTimeout:  time.Duration(c.Config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(c.Config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(c.Config.Server.IdleTimeout) * time.Second,
	}
}

func (c *Container) Close() error {
	c.isShuttingDown = true

	if c.TracerProvider != nil {
		if err := c.TracerProvider.Shutdown(context.Background()); err != nil {
			c.Logger.Error("failed to shutdown tracer provider", "error", err)
		}
	}

	if c.Repository != nil {
		if err := c.Repository.Close(); err != nil {
			c.Logger.Error("failed to close repository", "error", err)
		}
	}

	if c.Redis != nil {
		return c.Redis.Close()
	}

	return nil
}
