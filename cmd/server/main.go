package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arkeep-io/webauthcore/internal/api"
	"github.com/arkeep-io/webauthcore/internal/cookies"
	"github.com/arkeep-io/webauthcore/internal/db"
	"github.com/arkeep-io/webauthcore/internal/optionsource"
	"github.com/arkeep-io/webauthcore/internal/protector"
	"github.com/arkeep-io/webauthcore/internal/repository"
	"github.com/arkeep-io/webauthcore/internal/reqauth"
	"github.com/arkeep-io/webauthcore/internal/resolver"
	"github.com/arkeep-io/webauthcore/internal/schemes"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type config struct {
	httpAddr      string
	dbDriver      string
	dbDSN         string
	secretKey     string
	logLevel      string
	secureCookies bool

	authCookieName   string
	bearerHeaderName string
	entryPath        string
	returnURLs       string

	expireTimeSpan        time.Duration
	slidingExpirationTime time.Duration
	unsafeExpireTimeSpan  time.Duration
	useLongTermCookie     bool
	optionsRefresh        time.Duration
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "webauthcore-server",
		Short: "webauthcore server — stateless web front authentication core",
		Long: `webauthcore server exposes the login/logout/session-inspection HTTP
surface of the stateless authentication core: bearer or cookie-carried
envelopes, a pluggable login orchestrator, and sliding-expiration sessions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	root.AddCommand(newVersionCmd())

	root.PersistentFlags().StringVar(&cfg.httpAddr, "http-addr", envOrDefault("WEBAUTHCORE_HTTP_ADDR", ":8080"), "HTTP API listen address")
	root.PersistentFlags().StringVar(&cfg.dbDriver, "db-driver", envOrDefault("WEBAUTHCORE_DB_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	root.PersistentFlags().StringVar(&cfg.dbDSN, "db-dsn", envOrDefault("WEBAUTHCORE_DB_DSN", "./webauthcore.db"), "Database DSN or file path for SQLite")
	root.PersistentFlags().StringVar(&cfg.secretKey, "secret-key", envOrDefault("WEBAUTHCORE_SECRET_KEY", ""), "Master secret key deriving the envelope protectors and encrypting credentials at rest (required)")
	root.PersistentFlags().StringVar(&cfg.logLevel, "log-level", envOrDefault("WEBAUTHCORE_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&cfg.secureCookies, "secure-cookies", envOrDefault("WEBAUTHCORE_SECURE_COOKIES", "false") == "true", "Set Secure flag on auth cookies (enable in production over HTTPS)")

	root.PersistentFlags().StringVar(&cfg.authCookieName, "auth-cookie-name", envOrDefault("WEBAUTHCORE_AUTH_COOKIE_NAME", "webauthcore_session"), "Name of the session/long-term auth cookie")
	root.PersistentFlags().StringVar(&cfg.bearerHeaderName, "bearer-header-name", envOrDefault("WEBAUTHCORE_BEARER_HEADER", "Authorization"), "Header carrying the bearer envelope")
	root.PersistentFlags().StringVar(&cfg.entryPath, "entry-path", envOrDefault("WEBAUTHCORE_ENTRY_PATH", "/"), "Path the synthesize step treats as the web front's entry point")
	root.PersistentFlags().StringVar(&cfg.returnURLs, "allowed-return-urls", envOrDefault("WEBAUTHCORE_ALLOWED_RETURN_URLS", ""), "Comma-separated allowlist of ReturnURL prefixes")

	root.PersistentFlags().DurationVar(&cfg.expireTimeSpan, "expire-time-span", envDurationOrDefault("WEBAUTHCORE_EXPIRE_TIME_SPAN", 30*time.Minute), "Session cookie lifetime")
	root.PersistentFlags().DurationVar(&cfg.slidingExpirationTime, "sliding-expiration-time", envDurationOrDefault("WEBAUTHCORE_SLIDING_EXPIRATION_TIME", 15*time.Minute), "Sliding-expiration window: a session with at most half of it left is renewed to expire this long from now")
	root.PersistentFlags().DurationVar(&cfg.unsafeExpireTimeSpan, "unsafe-expire-time-span", envDurationOrDefault("WEBAUTHCORE_UNSAFE_EXPIRE_TIME_SPAN", 30*24*time.Hour), "Long-term (remember-me) cookie lifetime")
	root.PersistentFlags().BoolVar(&cfg.useLongTermCookie, "use-long-term-cookie", envOrDefault("WEBAUTHCORE_USE_LONG_TERM_COOKIE", "true") == "true", "Enable the long-term cookie fallback")
	root.PersistentFlags().DurationVar(&cfg.optionsRefresh, "options-refresh-interval", envDurationOrDefault("WEBAUTHCORE_OPTIONS_REFRESH_INTERVAL", time.Minute), "How often dynamic options are re-read")

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webauthcore-server %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func run(ctx context.Context, cfg *config) error {
	logger, err := buildLogger(cfg.logLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.secretKey == "" {
		return fmt.Errorf("secret key is required — set --secret-key or WEBAUTHCORE_SECRET_KEY")
	}

	logger.Info("starting webauthcore server",
		zap.String("version", version),
		zap.String("http_addr", cfg.httpAddr),
		zap.String("db_driver", cfg.dbDriver),
		zap.String("log_level", cfg.logLevel),
	)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// --- 1. Encryption + envelope protectors ---
	// Both are derived from the same master secret: InitEncryption feeds
	// GORM's transparent column encryption, NewSet derives the purpose-scoped
	// AEAD protectors the envelope/cookie/resolver layers use.
	keyBytes := make([]byte, 32)
	copy(keyBytes, []byte(cfg.secretKey))
	if err := db.InitEncryption(keyBytes); err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	protectors, err := protector.NewSet(keyBytes)
	if err != nil {
		return fmt.Errorf("failed to initialize envelope protectors: %w", err)
	}

	// --- 2. Database ---
	gormDB, err := db.New(db.Config{
		Driver:   cfg.dbDriver,
		DSN:      cfg.dbDSN,
		Logger:   logger,
		LogLevel: gormLogLevel(cfg.logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	defer sqlDB.Close()

	// --- 3. Repositories ---
	userRepo := repository.NewUserRepository(gormDB)
	oidcProviderRepo := repository.NewOIDCProviderRepository(gormDB)

	// --- 4. Login schemes ---
	clock := clockwork.NewRealClock()
	basicScheme := schemes.New(userRepo, clock)
	oidcScheme := schemes.NewOIDC(oidcProviderRepo, userRepo, clock)

	// --- 5. Options / resolver / cookies ---
	startup := reqauth.StartupOptions{
		AuthCookieName:     cfg.authCookieName,
		BearerHeaderName:   cfg.bearerHeaderName,
		CookieMode:         reqauth.CookieModeWebFrontPath,
		CookieSecurePolicy: secureCookiePolicy(cfg.secureCookies),
		EntryPath:          cfg.entryPath,
		AllowedReturnURLs:  splitAndTrim(cfg.returnURLs),
	}

	dynamicSource, err := optionsource.New(ctx, staticDynamicLoader(cfg), cfg.optionsRefresh, logger)
	if err != nil {
		return fmt.Errorf("failed to start dynamic options source: %w", err)
	}
	defer dynamicSource.Close() //nolint:errcheck

	res := resolver.New(protectors, startup, dynamicSource, logger, clock)
	cookieMgr := cookies.New(protectors, startup, dynamicSource, logger)

	// --- 6. HTTP server ---
	router := api.NewRouter(api.RouterConfig{
		Protectors: protectors,
		Resolver:   res,
		CookieMgr:  cookieMgr,
		Startup:    startup,
		Dynamic:    dynamicSource,
		Clock:      clock,
		Logger:     logger,
		Basic:      basicScheme,
		OIDC:       oidcScheme,
		Secure:     cfg.secureCookies,
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:         cfg.httpAddr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.httpAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down webauthcore server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server graceful shutdown error", zap.Error(err))
	}

	logger.Info("webauthcore server stopped")
	return nil
}

// staticDynamicLoader builds the optionsource.Loader from the flags/env
// captured at startup. A real deployment would point this at a config
// service or settings table instead; the polling/hot-swap machinery behaves
// identically either way.
func staticDynamicLoader(cfg *config) optionsource.Loader {
	return func(ctx context.Context) (reqauth.DynamicOptions, error) {
		return reqauth.DynamicOptions{
			ExpireTimeSpan:        cfg.expireTimeSpan,
			SlidingExpirationTime: cfg.slidingExpirationTime,
			UnsafeExpireTimeSpan:  cfg.unsafeExpireTimeSpan,
			UseLongTermCookie:     cfg.useLongTermCookie,
			SchemesCriticalTimeSpan: map[string]time.Duration{
				schemes.SchemeName:     5 * time.Minute,
				schemes.OIDCSchemeName: 5 * time.Minute,
			},
		}, nil
	}
}

func secureCookiePolicy(secure bool) reqauth.CookieSecurePolicy {
	if secure {
		return reqauth.CookieSecureAlways
	}
	return reqauth.CookieSecureSameAsRequest
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// gormLogLevel maps the application log level string to a GORM logger level.
func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "debug":
		return gormlogger.Info
	case "info":
		return gormlogger.Warn
	default:
		return gormlogger.Error
	}
}

func buildLogger(level string) (*zap.Logger, error) {
	var cfg zap.Config

	switch level {
	case "debug":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return cfg.Build()
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
