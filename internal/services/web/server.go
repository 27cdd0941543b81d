package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kumia-devs/onboarding/internal/platform/logging"
	"github.com/kumia-devs/onboarding/internal/platform/timeouts"
	"github.com/kumia-devs/onboarding/internal/services/web/events"
	"github.com/kumia-devs/onboarding/internal/services/web/identity"
	"github.com/kumia-devs/onboarding/internal/services/web/identity/firebase"
	"github.com/kumia-devs/onboarding/internal/services/web/identity/google"
	"github.com/kumia-devs/onboarding/internal/services/web/identity/memory"
	"github.com/kumia-devs/onboarding/internal/services/web/metrics"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/ratelimit"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/requestmeta"
	"github.com/kumia-devs/onboarding/internal/services/web/platform/sessioncookie"
	"github.com/kumia-devs/onboarding/internal/services/web/profile"
	profilefirestore "github.com/kumia-devs/onboarding/internal/services/web/profile/firestore"
	profilepostgres "github.com/kumia-devs/onboarding/internal/services/web/profile/postgres"
	profilesqlite "github.com/kumia-devs/onboarding/internal/services/web/profile/sqlite"
	"github.com/kumia-devs/onboarding/internal/services/web/routepath"
	"github.com/kumia-devs/onboarding/internal/services/web/session"
	"github.com/kumia-devs/onboarding/internal/services/web/storage"
	storageredis "github.com/kumia-devs/onboarding/internal/services/web/storage/redis"
	storagesqlite "github.com/kumia-devs/onboarding/internal/services/web/storage/sqlite"
	"golang.org/x/sync/errgroup"
)

// Identity providers.
const (
	IdentityMemory   = "memory"
	IdentityFirebase = "firebase"
)

// Storage backends, shared by the profile and browser state settings.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
)

const (
	sweepInterval        = time.Minute
	natsSubjectPrefix    = "kumia.onboarding"
	natsClientName       = "kumia-onboarding-web"
	defaultRetention     = 30 * 24 * time.Hour
	defaultAuthRateLimit = 10
)

// Config defines the inputs for the web server.
type Config struct {
	HTTPAddr string
	// PublicURL is the externally visible origin, used for OAuth redirects.
	PublicURL string
	// CookieDomain scopes the session cookie; empty keeps it host-only.
	CookieDomain      string
	TrustProxyHeaders bool

	Identity          string
	FirebaseAPIKey    string
	FirebaseProjectID string

	GoogleClientID     string
	GoogleClientSecret string

	ProfileBackend           string
	ProfileSQLitePath        string
	ProfilePostgresDSN       string
	FirestoreProjectID       string
	FirestoreCredentialsFile string

	StorageBackend    string
	StorageSQLitePath string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	// StorageRetention drops browser records untouched for this long.
	StorageRetention time.Duration

	// NATSURL enables session event publishing when set.
	NATSURL string

	SessionIdleTTL         time.Duration
	AuthRateLimitPerMinute int
	Logger                 *slog.Logger
}

// Validate checks the configuration before any backend is opened.
func (c Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http address is required")
	}
	switch c.Identity {
	case IdentityMemory:
	case IdentityFirebase:
		if strings.TrimSpace(c.FirebaseAPIKey) == "" || strings.TrimSpace(c.FirebaseProjectID) == "" {
			return errors.New("firebase api key and project id are required")
		}
	default:
		return fmt.Errorf("unknown identity provider %q", c.Identity)
	}
	switch c.ProfileBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.ProfileSQLitePath) == "" {
			return errors.New("profile sqlite path is required")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.ProfilePostgresDSN) == "" {
			return errors.New("profile postgres dsn is required")
		}
	case BackendFirestore:
		if strings.TrimSpace(c.FirestoreProjectID) == "" {
			return errors.New("firestore project id is required")
		}
	default:
		return fmt.Errorf("unknown profile backend %q", c.ProfileBackend)
	}
	switch c.StorageBackend {
	case BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.StorageSQLitePath) == "" {
			return errors.New("storage sqlite path is required")
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("redis address is required")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.GoogleClientID != "" {
		if _, err := c.publicURL(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) publicURL() (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(c.PublicURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("public url must be an absolute http(s) url, got %q", c.PublicURL)
	}
	return u, nil
}

// Server hosts the onboarding web service.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	logger     *slog.Logger
	manager    *session.Manager
	limiter    *ratelimit.Limiter
	google     *google.Flow
	purger     *storagesqlite.Store
	retention  time.Duration
	closers    []func() error
}

// NewServer opens the configured backends and builds the route tree.
func NewServer(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	logger := logging.OrDiscard(config.Logger)
	s := &Server{httpAddr: strings.TrimSpace(config.HTTPAddr), logger: logger, retention: config.StorageRetention}
	if s.retention <= 0 {
		s.retention = defaultRetention
	}

	built, err := s.build(ctx, config)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.httpServer = &http.Server{
		Addr:              s.httpAddr,
		Handler:           built,
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

func (s *Server) build(ctx context.Context, config Config) (http.Handler, error) {
	policy := requestmeta.Policy{TrustProxyHeaders: config.TrustProxyHeaders}
	m := metrics.New()

	provider, devVerify, err := openIdentity(config, s.logger)
	if err != nil {
		return nil, err
	}
	profiles, err := s.openProfiles(ctx, config)
	if err != nil {
		return nil, err
	}
	store, err := s.openStorage(ctx, config)
	if err != nil {
		return nil, err
	}
	var publisher events.Publisher = events.Noop{}
	if strings.TrimSpace(config.NATSURL) != "" {
		nats, err := events.ConnectNATS(config.NATSURL, natsClientName, natsSubjectPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect nats: %w", err)
		}
		s.closers = append(s.closers, func() error { nats.Close(); return nil })
		publisher = nats
	}

	factory, err := NewControllerFactory(SessionBackends{
		Identity: provider,
		Store:    store,
		Profiles: profiles,
		Events:   publisher,
		Recorder: m,
		Logger:   s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.manager, err = session.NewManager(factory, session.ManagerOptions{
		IdleTTL:      config.SessionIdleTTL,
		Logger:       s.logger,
		OnSizeChange: m.SetControllers,
	})
	if err != nil {
		return nil, err
	}

	perMinute := config.AuthRateLimitPerMinute
	if perMinute == 0 {
		perMinute = defaultAuthRateLimit
	}
	s.limiter = ratelimit.New(ratelimit.Options{PerMinute: perMinute})

	deps := Dependencies{
		Manager:     s.manager,
		Profiles:    profiles,
		Metrics:     m,
		Policy:      policy,
		Jar:         sessioncookie.Jar{Policy: policy, Domain: strings.TrimSpace(config.CookieDomain)},
		AuthLimiter: s.limiter,
		Logger:      s.logger,
	}
	if devVerify != nil {
		deps.DevVerify = devVerify
	}
	if config.GoogleClientID != "" {
		base, _ := config.publicURL()
		s.google, err = google.New(google.Config{
			ClientID:     config.GoogleClientID,
			ClientSecret: config.GoogleClientSecret,
			RedirectURL:  base.JoinPath(routepath.GoogleCallback).String(),
		})
		if err != nil {
			return nil, fmt.Errorf("configure google sign-in: %w", err)
		}
		deps.Google = s.google
	}
	return NewHandler(deps)
}

func openIdentity(config Config, logger *slog.Logger) (identity.Provider, *memory.Provider, error) {
	if config.Identity == IdentityFirebase {
		requestURI := strings.TrimSpace(config.PublicURL)
		if requestURI == "" {
			requestURI = "http://localhost"
		}
		client, err := firebase.New(firebase.Config{
			APIKey:     config.FirebaseAPIKey,
			ProjectID:  config.FirebaseProjectID,
			RequestURI: requestURI,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("configure firebase: %w", err)
		}
		return client, nil, nil
	}
	provider, err := memory.New(memory.Options{Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("using in-memory identity provider; accounts are lost on restart")
	return provider, provider, nil
}

func (s *Server) openProfiles(ctx context.Context, config Config) (profile.Store, error) {
	switch config.ProfileBackend {
	case BackendSQLite:
		store, err := profilesqlite.Open(ctx, config.ProfileSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open profile sqlite: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	case BackendPostgres:
		store, err := profilepostgres.Open(ctx, config.ProfilePostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open profile postgres: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	case BackendFirestore:
		store, err := profilefirestore.Open(ctx, profilefirestore.Config{
			ProjectID:       config.FirestoreProjectID,
			CredentialsFile: config.FirestoreCredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("open profile firestore: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	default:
		return profile.NewMemoryStore(), nil
	}
}

func (s *Server) openStorage(ctx context.Context, config Config) (storage.Store, error) {
	switch config.StorageBackend {
	case BackendSQLite:
		store, err := storagesqlite.Open(ctx, config.StorageSQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open browser state sqlite: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		s.purger = store
		return store, nil
	case BackendRedis:
		store, err := storageredis.Open(ctx, storageredis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
			TTL:      config.StorageRetention,
		})
		if err != nil {
			return nil, fmt.Errorf("open browser state redis: %w", err)
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	default:
		return storage.NewMemoryStore(), nil
	}
}

// ListenAndServe serves HTTP and runs the background sweepers until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("web server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.manager.Run(gctx)
		return nil
	})
	g.Go(func() error {
		s.limiter.Run(gctx, sweepInterval)
		return nil
	})
	g.Go(func() error {
		s.sweep(gctx)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("web listening", "addr", s.httpAddr)
		err := s.httpServer.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// sweep drops expired OAuth states and stale persisted browser records.
func (s *Server) sweep(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if s.google != nil {
			if n := s.google.Sweep(); n > 0 {
				s.logger.Debug("expired google sign-ins dropped", "count", n)
			}
		}
		if s.purger != nil {
			n, err := s.purger.PurgeBefore(ctx, time.Now().Add(-s.retention))
			if err != nil {
				s.logger.Warn("purge browser state", "error", err)
			} else if n > 0 {
				s.logger.Info("purged browser state", "rows", n)
			}
		}
	}
}

// Close releases the backends held by the server.
func (s *Server) Close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close backend", "error", err)
		}
	}
	s.closers = nil
}
