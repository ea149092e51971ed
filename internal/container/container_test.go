package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hyllesen/scamvenge-telegram-bot/internal/config"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_DSN", filepath.Join(t.TempDir(), "stores.db"))
	t.Setenv("WATCH_DIR", filepath.Join(t.TempDir(), "inbox"))
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("OCR_ENGINE", "")
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)
	return cfg
}

func TestNewContainer(t *testing.T) {
	c, err := NewContainer(context.Background(), loadConfig(t))
	require.NoError(t, err)
	defer c.Close()

	require.NotNil(t, c.Handler())
	require.NotNil(t, c.Service())

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	st, err := c.Service().Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalStores)

	wt, err := c.NewWatcher()
	require.NoError(t, err)
	assert.NotNil(t, wt)
}

func TestNewContainer_RedisUnavailable(t *testing.T) {
	cfg := loadConfig(t)
	cfg.LockBackend = config.LockRedis
	cfg.RedisAddr = "127.0.0.1:1"

	_, err := NewContainer(context.Background(), cfg)
	assert.Error(t, err)
}

func TestContainer_CloseIsIdempotent(t *testing.T) {
	c, err := NewContainer(context.Background(), loadConfig(t))
	require.NoError(t, err)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
