package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/voice-planner/api"
	"github.com/benvon/voice-planner/internal/cache"
	"github.com/benvon/voice-planner/internal/config"
	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/handlers"
	"github.com/benvon/voice-planner/internal/logger"
	"github.com/benvon/voice-planner/internal/middleware"
	"github.com/benvon/voice-planner/internal/planning"
	"github.com/benvon/voice-planner/internal/queue"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/services/ai"
	"github.com/benvon/voice-planner/internal/services/planner"
	"github.com/benvon/voice-planner/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"
)

const serviceName = "voice-planner-api"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including extraction prompts")
	migrateFlag := flag.Bool("migrate", false, "Apply database migrations before serving")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.New(serviceName, cfg.LogFormat, debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.String("rate_limit", cfg.RateLimit),
		zap.Bool("extraction_enabled", cfg.OpenAIKey != ""),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx := context.Background()

	shutdownTracer, tracing := telemetry.Setup(ctx, cfg.OTELEnabled, serviceName, cfg.OTELEndpoint, cfg.OTELSampleRatio, zapLogger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}()

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	if *migrateFlag {
		if err := db.Migrate(ctx, zapLogger); err != nil {
			zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	// A typed nil client must not reach the interfaces below.
	var redisCmd redis.Cmdable
	if redisClient != nil {
		redisCmd = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		zapLogger.Info("connected_to_redis")
	} else {
		zapLogger.Warn("redis_not_configured_using_local_state")
	}

	jobQueue, err := queue.Connect(ctx, cfg.RabbitMQURL, queue.DefaultConnectAttempts, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	// Repositories
	userRepo := database.NewUserRepository(db)
	preferencesRepo := database.NewPreferencesRepository(db)
	routineRepo := database.NewRoutineRepository(db)
	planningRepo := database.NewPlanningRepository(db)

	// Services
	preferences := cache.NewPreferencesCache(preferencesRepo, redisCmd, cfg.PreferencesCacheTTL, zapLogger)
	lifecycle := routines.NewLifecycle(routineRepo, zapLogger, routines.WithExpiringWindow(cfg.RoutineExpiringWindowDays))
	routineService := routines.NewService(routineRepo, lifecycle, zapLogger)
	plannerService := planner.NewService(planning.NewEngine(zapLogger), preferences, routineService, planningRepo, jobQueue, zapLogger)

	var extractor ai.Extractor
	if cfg.OpenAIKey != "" {
		extractor = ai.NewOpenAIExtractor(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
	} else {
		zapLogger.Warn("openai_api_key_not_configured_extraction_disabled")
	}

	// Handlers
	planningHandler := handlers.NewPlanningHandler(plannerService, zapLogger)
	routineHandler := handlers.NewRoutineHandler(routineService, lifecycle, plannerService, zapLogger)
	preferencesHandler := handlers.NewPreferencesHandler(preferences)
	extractHandler := handlers.NewExtractHandler(extractor, preferences, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, redisCmd, jobQueue)
	openAPIHandler, err := handlers.NewOpenAPIHandler(api.OpenAPI)
	if err != nil {
		zapLogger.Fatal("failed_to_load_openapi_document", zap.Error(err))
	}

	rateLimitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateLimitStore, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limiter", zap.Error(err))
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, outermost first.
	if tracing {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.Recover(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	// Public routes
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")
	r.HandleFunc("/version", versionInfo).Methods("GET")
	openAPIHandler.RegisterRoutes(r)

	// API v1 routes carry a gateway identity
	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.Identity(userRepo, zapLogger))
	apiRouter.Use(middleware.Logging(zapLogger))
	apiRouter.Use(rateLimitMW)

	planningHandler.RegisterRoutes(apiRouter.PathPrefix("/plannings").Subrouter())
	planningHandler.RegisterCalendarRoutes(apiRouter.PathPrefix("/calendar").Subrouter())
	routineHandler.RegisterRoutes(apiRouter.PathPrefix("/routines").Subrouter())
	preferencesHandler.RegisterRoutes(apiRouter.PathPrefix("/preferences").Subrouter())
	extractHandler.RegisterRoutes(apiRouter.PathPrefix("/extract").Subrouter())

	// CORS wraps the router so preflight requests are answered before
	// route matching rejects the OPTIONS method.
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           middleware.CORS(cfg.FrontendURL)(r),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      middleware.DefaultRequestTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

func versionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
