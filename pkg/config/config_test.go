package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 50.0, cfg.Alert.Threshold)
	assert.Equal(t, 4*time.Hour, cfg.Alert.Cooldown)
	assert.False(t, cfg.Alert.Console)
	assert.Equal(t, 100, cfg.Poller.BatchSize)
	assert.Equal(t, time.Second, cfg.Poller.BatchPause)
	assert.Equal(t, 10*time.Second, cfg.Poller.FetchTimeout)
	assert.Equal(t, "wss://fstream.binance.com/ws/!markPrice@arr@1s", cfg.Feed.Endpoint)
	assert.Equal(t, 3*time.Second, cfg.Feed.ReconnectInterval)
	assert.Empty(t, cfg.Redis.URL)
	assert.Empty(t, cfg.Telegram.BotToken)
}

func TestLoad_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("TELEGRAM_BOT_TOKEN", "test-token")
	t.Setenv("ALERT_THRESHOLD", "75")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test-token", cfg.Telegram.BotToken)
	assert.Equal(t, 75.0, cfg.Alert.Threshold)
}
