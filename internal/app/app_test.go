package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dental-clinic-server/internal/config"
	"dental-clinic-server/internal/events"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Origin:               "http://localhost:4200",
		Environment:          "test",
		JWTSecret:            "s",
		JWTRefreshSecret:     "r",
		JWTExpirationMinutes: 15,
		Database:             config.DatabaseConfig{Driver: config.DriverMemory},
		Outbox:               config.OutboxConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: 3},
		ShutdownTimeout:      time.Second,
	}
}

func TestOpenStoreMemory(t *testing.T) {
	store, closeStore, err := OpenStore(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, closeStore())
}

func TestNewPublisherFallsBackToLog(t *testing.T) {
	pub, err := NewPublisher(config.KafkaConfig{Topic: "orders"}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &events.LogPublisher{}, pub)
}

func TestRouterServesHealthWithMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store, _, err := OpenStore(testConfig(), zerolog.Nop())
	require.NoError(t, err)
	m := NewMetrics()
	router := NewRouter(testConfig(), store, zerolog.Nop(), m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestServeStopsOnCancel(t *testing.T) {
	cfg := testConfig()
	store, _, err := OpenStore(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, store, zerolog.Nop(), NewMetrics(), true) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
