package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/appointment_service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Environment:   "test",
		HTTPAddr:      "127.0.0.1:0",
		Storage:       "memory",
		JWTSecret:     "secret",
		Timezone:      "America/Sao_Paulo",
		BucketMode:    "calendar",
		LockBackend:   "local",
		LockWait:      time.Second,
		Notifier:      "stub",
		NotifyWorkers: 1,
		NotifyQueue:   8,
	}
}

func TestNew_MemoryWiring(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.pool)
	assert.Nil(t, a.redis)
	assert.Nil(t, a.dispatcher, "no directory configured")

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNew_WithDirectoryStartsDispatcher(t *testing.T) {
	cfg := memoryConfig()
	cfg.DirectoryBaseURL = "http://directory.local"
	cfg.DirectoryTimeout = time.Second

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.dispatcher)
}

func TestNew_RejectsUnknownBucketMode(t *testing.T) {
	cfg := memoryConfig()
	cfg.BucketMode = "weekly"

	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, NewLogger("development"))
	assert.NotNil(t, NewLogger("production"))
	assert.NotNil(t, NewLogger("test"))
}
