package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"novel-graph-api/internal/config"
	"novel-graph-api/internal/infrastructure/persistence/sqlite"
)

func sqliteConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "novel-graph-api"
	cfg.App.Version = "test"
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.SQLite.Path = sqlite.MemoryPath
	return cfg
}

func TestProvideBackend_UnknownDriver(t *testing.T) {
	cfg := sqliteConfig()
	cfg.Database.Driver = "mysql"
	_, _, err := ProvideBackend(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestOptionalProvidersWithoutRedis(t *testing.T) {
	cfg := sqliteConfig()
	client, cleanup, err := ProvideRedisClientOptional(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Nil(t, client)

	producer := ProvideMessagingProducer(client, cfg)
	assert.Nil(t, producer)
	assert.Nil(t, ProvideRateLimiter(client))
	assert.Nil(t, ProvideJobPublisher(producer))
	assert.Nil(t, ProvideEventPublisher(producer, cfg))
}

func TestInitializeApp_SQLite(t *testing.T) {
	app, cleanup, err := InitializeApp(context.Background(), sqliteConfig())
	require.NoError(t, err)
	defer cleanup()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/imports/story",
		strings.NewReader(`{"story":{"title":"Ashfall"},"characters":[{"name":"Vex"}]}`))
	req.Header.Set("Content-Type", "application/json")
	app.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	app.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestInitializeMCP_SQLite(t *testing.T) {
	srv, cleanup, err := InitializeMCP(context.Background(), sqliteConfig())
	require.NoError(t, err)
	defer cleanup()
	assert.Len(t, srv.Tools(), 8)
}
