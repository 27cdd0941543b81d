// Package web parses web command flags and launches the onboarding web
// server.
package web

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	entrypoint "github.com/kumia-devs/onboarding/internal/platform/cmd"
	"github.com/kumia-devs/onboarding/internal/platform/logging"
	webserver "github.com/kumia-devs/onboarding/internal/services/web"
	"golang.org/x/net/publicsuffix"
)

// Config holds the web command configuration.
type Config struct {
	HTTPAddr          string `env:"KUMIA_WEB_HTTP_ADDR" envDefault:"localhost:8080"`
	PublicURL         string `env:"KUMIA_WEB_PUBLIC_URL" envDefault:"http://localhost:8080"`
	CookieDomain      string `env:"KUMIA_WEB_COOKIE_DOMAIN"`
	TrustProxyHeaders bool   `env:"KUMIA_WEB_TRUST_PROXY_HEADERS" envDefault:"false"`

	Identity          string `env:"KUMIA_WEB_IDENTITY" envDefault:"memory"`
	FirebaseAPIKey    string `env:"KUMIA_WEB_FIREBASE_API_KEY"`
	FirebaseProjectID string `env:"KUMIA_WEB_FIREBASE_PROJECT_ID"`

	GoogleClientID     string `env:"KUMIA_WEB_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"KUMIA_WEB_GOOGLE_CLIENT_SECRET"`

	ProfileBackend           string `env:"KUMIA_WEB_PROFILE_BACKEND" envDefault:"sqlite"`
	ProfileSQLitePath        string `env:"KUMIA_WEB_PROFILE_DB_PATH" envDefault:"data/profiles.db"`
	ProfilePostgresDSN       string `env:"KUMIA_WEB_PROFILE_POSTGRES_DSN"`
	FirestoreProjectID       string `env:"KUMIA_WEB_FIRESTORE_PROJECT_ID"`
	FirestoreCredentialsFile string `env:"KUMIA_WEB_FIRESTORE_CREDENTIALS_FILE"`

	StorageBackend    string        `env:"KUMIA_WEB_STORAGE_BACKEND" envDefault:"sqlite"`
	StorageSQLitePath string        `env:"KUMIA_WEB_STORAGE_DB_PATH" envDefault:"data/browser.db"`
	RedisAddr         string        `env:"KUMIA_WEB_REDIS_ADDR"`
	RedisPassword     string        `env:"KUMIA_WEB_REDIS_PASSWORD"`
	RedisDB           int           `env:"KUMIA_WEB_REDIS_DB" envDefault:"0"`
	StorageRetention  time.Duration `env:"KUMIA_WEB_STORAGE_RETENTION" envDefault:"720h"`

	NATSURL string `env:"KUMIA_WEB_NATS_URL"`

	SessionIdleTTL         time.Duration `env:"KUMIA_WEB_SESSION_IDLE_TTL" envDefault:"30m"`
	AuthRateLimitPerMinute int           `env:"KUMIA_WEB_AUTH_RATE_LIMIT" envDefault:"10"`

	LogLevel  string `env:"KUMIA_WEB_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"KUMIA_WEB_LOG_FORMAT" envDefault:"text"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "Externally visible origin of the web service")
	fs.StringVar(&cfg.CookieDomain, "cookie-domain", cfg.CookieDomain, "Domain for the browser session cookie (empty for host-only)")
	fs.BoolVar(&cfg.TrustProxyHeaders, "trust-proxy-headers", cfg.TrustProxyHeaders, "Trust X-Forwarded-* headers")
	fs.StringVar(&cfg.Identity, "identity", cfg.Identity, "Identity provider: memory or firebase")
	fs.StringVar(&cfg.ProfileBackend, "profile-backend", cfg.ProfileBackend, "Profile store: memory, sqlite, postgres or firestore")
	fs.StringVar(&cfg.ProfileSQLitePath, "profile-db-path", cfg.ProfileSQLitePath, "Profile SQLite database path")
	fs.StringVar(&cfg.ProfilePostgresDSN, "profile-postgres-dsn", cfg.ProfilePostgresDSN, "Profile Postgres connection string")
	fs.StringVar(&cfg.StorageBackend, "storage-backend", cfg.StorageBackend, "Browser state store: memory, sqlite or redis")
	fs.StringVar(&cfg.StorageSQLitePath, "storage-db-path", cfg.StorageSQLitePath, "Browser state SQLite database path")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for browser state")
	fs.StringVar(&cfg.NATSURL, "nats-url", cfg.NATSURL, "NATS server for session events (empty disables)")
	fs.DurationVar(&cfg.SessionIdleTTL, "session-idle-ttl", cfg.SessionIdleTTL, "Evict browser sessions idle for this long")
	fs.IntVar(&cfg.AuthRateLimitPerMinute, "auth-rate-limit", cfg.AuthRateLimitPerMinute, "Auth form posts allowed per client per minute")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := validateCookieDomain(cfg.CookieDomain); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateCookieDomain refuses domains browsers would reject, such as a
// bare public suffix.
func validateCookieDomain(domain string) error {
	domain = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), ".")
	if domain == "" || domain == "localhost" {
		return nil
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return fmt.Errorf("cookie domain %q: %w", domain, err)
	}
	return nil
}

// Run starts the web server.
func Run(ctx context.Context, cfg Config) error {
	logger, err := logging.New(os.Stderr, logging.Options{
		Level:   cfg.LogLevel,
		Format:  logging.Format(cfg.LogFormat),
		Service: entrypoint.ServiceWeb,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	slog.SetDefault(logger)

	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceWeb, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		server, err := webserver.NewServer(ctx, serverConfig(cfg, logger))
		if err != nil {
			return fmt.Errorf("init web server: %w", err)
		}
		defer server.Close()

		if err := server.ListenAndServe(ctx); err != nil {
			return fmt.Errorf("serve web: %w", err)
		}
		return nil
	})
}

func serverConfig(cfg Config, logger *slog.Logger) webserver.Config {
	return webserver.Config{
		HTTPAddr:                 cfg.HTTPAddr,
		PublicURL:                cfg.PublicURL,
		CookieDomain:             cfg.CookieDomain,
		TrustProxyHeaders:        cfg.TrustProxyHeaders,
		Identity:                 cfg.Identity,
		FirebaseAPIKey:           cfg.FirebaseAPIKey,
		FirebaseProjectID:        cfg.FirebaseProjectID,
		GoogleClientID:           cfg.GoogleClientID,
		GoogleClientSecret:       cfg.GoogleClientSecret,
		ProfileBackend:           cfg.ProfileBackend,
		ProfileSQLitePath:        cfg.ProfileSQLitePath,
		ProfilePostgresDSN:       cfg.ProfilePostgresDSN,
		FirestoreProjectID:       cfg.FirestoreProjectID,
		FirestoreCredentialsFile: cfg.FirestoreCredentialsFile,
		StorageBackend:           cfg.StorageBackend,
		StorageSQLitePath:        cfg.StorageSQLitePath,
		RedisAddr:                cfg.RedisAddr,
		RedisPassword:            cfg.RedisPassword,
		RedisDB:                  cfg.RedisDB,
		StorageRetention:         cfg.StorageRetention,
		NATSURL:                  cfg.NATSURL,
		SessionIdleTTL:           cfg.SessionIdleTTL,
		AuthRateLimitPerMinute:   cfg.AuthRateLimitPerMinute,
		Logger:                   logger,
	}
}
