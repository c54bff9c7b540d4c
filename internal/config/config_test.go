package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, 1, cfg.Agent.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Agent.RetryBackoff)
	assert.Equal(t, 30*time.Second, cfg.Agent.ProviderTimeout)
	// The confirmation window waits on a human and must outlast nothing in
	// particular, but it is its own knob, distinct from provider timeouts.
	assert.Equal(t, 15*time.Second, cfg.Agent.ConfirmTimeout)
	assert.Equal(t, "voxctl", cfg.Logger.ServiceName)
	assert.Equal(t, "adb", cfg.Device.ADBPath)
	assert.Equal(t, 1080, cfg.Device.ScreenWidth)
	assert.False(t, cfg.Store.Enabled)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.max_iterations", 8)
		v.Set("device.serial", "emulator-5554")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 8, cfg.Agent.MaxIterations)
		assert.Equal(t, "emulator-5554", cfg.Device.Serial)
	})

	t.Run("rejects non-positive iteration cap", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("agent.max_iterations", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_iterations")
	})

	t.Run("rejects enabled store without url", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("store.enabled", true)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.url")
	})

	t.Run("rejects zero screen bounds", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("device.screen_height", 0)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
	})
}

func TestValidate_NegativeRetries(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Agent.MaxRetries = -1
	require.Error(t, cfg.Validate())
}
