package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() Config {
	return Config{
		HTTPAddr:       "127.0.0.1:0",
		Identity:       IdentityMemory,
		ProfileBackend: BackendMemory,
		StorageBackend: BackendMemory,
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{name: "memory", mutate: func(*Config) {}, ok: true},
		{name: "missing addr", mutate: func(c *Config) { c.HTTPAddr = " " }},
		{name: "unknown identity", mutate: func(c *Config) { c.Identity = "ldap" }},
		{name: "firebase without key", mutate: func(c *Config) { c.Identity = IdentityFirebase }},
		{name: "firebase", mutate: func(c *Config) {
			c.Identity = IdentityFirebase
			c.FirebaseAPIKey = "key"
			c.FirebaseProjectID = "kumia"
		}, ok: true},
		{name: "sqlite profiles without path", mutate: func(c *Config) { c.ProfileBackend = BackendSQLite }},
		{name: "postgres without dsn", mutate: func(c *Config) { c.ProfileBackend = BackendPostgres }},
		{name: "firestore without project", mutate: func(c *Config) { c.ProfileBackend = BackendFirestore }},
		{name: "unknown profile backend", mutate: func(c *Config) { c.ProfileBackend = "mongo" }},
		{name: "redis without addr", mutate: func(c *Config) { c.StorageBackend = BackendRedis }},
		{name: "unknown storage backend", mutate: func(c *Config) { c.StorageBackend = BackendPostgres }},
		{name: "google without public url", mutate: func(c *Config) { c.GoogleClientID = "client" }},
		{name: "google", mutate: func(c *Config) {
			c.GoogleClientID = "client"
			c.PublicURL = "https://app.kumia.example"
		}, ok: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := memoryConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewServerRequiresContext(t *testing.T) {
	t.Parallel()

	//nolint:staticcheck // nil context is the case under test.
	_, err := NewServer(nil, memoryConfig())
	require.Error(t, err)
}

func TestNewServerWithSQLiteBackends(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := memoryConfig()
	cfg.ProfileBackend = BackendSQLite
	cfg.ProfileSQLitePath = filepath.Join(dir, "profiles.db")
	cfg.StorageBackend = BackendSQLite
	cfg.StorageSQLitePath = filepath.Join(dir, "browser.db")
	cfg.GoogleClientID = "client"
	cfg.PublicURL = "http://localhost:8080"

	server, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(server.Close)

	require.NotNil(t, server.purger)
	require.NotNil(t, server.google)
	assert.Len(t, server.closers, 2)

	rec := httptest.NewRecorder()
	server.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/auth/google/start")
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	server, err := NewServer(context.Background(), memoryConfig())
	require.NoError(t, err)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not stop after cancel")
	}
}

func TestListenAndServeNilServer(t *testing.T) {
	t.Parallel()

	var server *Server
	require.Error(t, server.ListenAndServe(context.Background()))
	server.Close()
}
