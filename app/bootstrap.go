package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/JC-Coder/w-wire-api-test/internal/auth"
	"github.com/JC-Coder/w-wire-api-test/internal/cache"
	"github.com/JC-Coder/w-wire-api-test/internal/currency"
	"github.com/JC-Coder/w-wire-api-test/internal/db"
	"github.com/JC-Coder/w-wire-api-test/internal/maintenance"
	"github.com/JC-Coder/w-wire-api-test/internal/observability"
	"github.com/JC-Coder/w-wire-api-test/internal/transaction"
	"github.com/JC-Coder/w-wire-api-test/internal/user"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
	SeedDemoUsers bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the application: config from the environment, Postgres,
// Redis, and the HTTP handler tree. The returned Runtime owns the store
// and cache connections; callers must Close it on shutdown.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DB_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	exchangeAppID, err := mustEnv("OPEN_EXCHANGE_APP_ID")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}
	observability.InitMetrics()

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisCache, err := cache.NewRedis(envOrDefault("REDIS_DB_URL", "redis://localhost:6379"))
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	// The cache is an availability aid, not a hard dependency; a failed
	// ping at boot is logged and the process continues.
	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisCache.Ping(pingCtx); err != nil {
		logger.Warn("redis_ping_failed", map[string]any{"error": err.Error()})
	}
	cancel()

	userRepo := user.NewRepository(database)
	authService := auth.NewService(userRepo, redisCache, logger, jwtSecret)
	authService.WithSecurityConfig(
		envIntOrDefault("LOGIN_MAX_ATTEMPTS", 5),
		envMinutesOrDefault("LOGIN_LOCK_MINUTES", 15),
		envMinutesOrDefault("ACCESS_TOKEN_TTL_MINUTES", 60),
	)
	authHandler := auth.NewHandler(authService)

	if options.SeedDemoUsers {
		if err := userRepo.Seed(context.Background(), demoUsers()); err != nil {
			_ = database.Close()
			_ = redisCache.Close()
			return nil, fmt.Errorf("seed demo users: %w", err)
		}
	}

	transactionRepo := transaction.NewRepository(database)
	transactionHandler := transaction.NewHandler(transactionRepo)

	currencyService := currency.NewService(
		redisCache,
		exchangeAppID,
		envOrDefault("OPEN_EXCHANGE_BASE_URL", "https://openexchangerates.org/api"),
	)
	currencyHandler := currency.NewHandler(currencyService, transactionRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		transactionRepo,
		logger,
		os.Getenv("CRON_SECRET"),
		envDaysOrDefault("TRANSACTION_RETENTION_DAYS", 90),
		envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	)

	loginLimiter := auth.NewLoginRateLimiter(
		envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /auth/logout", authService.Middleware(http.HandlerFunc(authHandler.Logout)))
	mux.HandleFunc("GET /exchange-rates", currencyHandler.GetExchangeRates)
	mux.Handle("POST /currency/convert", authService.Middleware(http.HandlerFunc(currencyHandler.Convert)))
	mux.Handle("GET /user/transactions", authService.Middleware(http.HandlerFunc(transactionHandler.ListForUser)))
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))
	mux.Handle("GET /metrics", observability.MetricsHandler())

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			observability.InFlight(mux)))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			closeErr := redisCache.Close()
			if err := database.Close(); err != nil {
				return err
			}
			return closeErr
		},
	}, nil
}

func demoUsers() map[string]string {
	return map[string]string{
		"user1": "Password",
		"user2": "Password",
		"user3": "Password",
	}
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
