package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "process-to-ship", cfg.OrderShipStatus)
	assert.Equal(t, "return-xl", cfg.OrderReturnStatus)
	assert.Equal(t, 5, cfg.OrderEventMaxAttempts)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("ORDER_SHIP_STATUS", "ready")
	t.Setenv("ORDER_EVENTS_ASYNC", "true")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "ready", cfg.OrderShipStatus)
	assert.True(t, cfg.OrderEventsAsync)
	assert.True(t, cfg.IsProduction())
}

func TestOrigins_TrimsAndSkipsEmpty(t *testing.T) {
	cfg := &Config{AllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Origins())
}
