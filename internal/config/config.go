// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
	Device DeviceConfig `mapstructure:"device" yaml:"device"`
	Vision VisionConfig `mapstructure:"vision" yaml:"vision"`
	Voice  VoiceConfig  `mapstructure:"voice" yaml:"voice"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig bounds the task orchestration loop.
type AgentConfig struct {
	// MaxIterations caps full OBSERVE->RESPOND traversals per task.
	MaxIterations int `mapstructure:"max_iterations" yaml:"max_iterations"`
	// MaxRetries caps recoverable-error retries of a single node.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// RetryBackoff is the fixed delay before retrying a transient failure.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" yaml:"retry_backoff"`
	// ProviderTimeout wraps every vision/device/voice provider call.
	ProviderTimeout time.Duration `mapstructure:"provider_timeout" yaml:"provider_timeout"`
	// ConfirmTimeout is the window for a spoken confirmation answer. It is
	// deliberately longer than ProviderTimeout since it waits on a human.
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	// OffsetTapPixels is the nudge applied when retrying a missed tap.
	OffsetTapPixels int `mapstructure:"offset_tap_pixels" yaml:"offset_tap_pixels"`
}

// DeviceConfig tunes the ADB bridge.
type DeviceConfig struct {
	ADBPath        string            `mapstructure:"adb_path" yaml:"adb_path"`
	Serial         string            `mapstructure:"serial" yaml:"serial"`
	ScreenWidth    int               `mapstructure:"screen_width" yaml:"screen_width"`
	ScreenHeight   int               `mapstructure:"screen_height" yaml:"screen_height"`
	CommandTimeout time.Duration     `mapstructure:"command_timeout" yaml:"command_timeout"`
	CommandsPerSec float64           `mapstructure:"commands_per_sec" yaml:"commands_per_sec"`
	Apps           map[string]string `mapstructure:"apps" yaml:"apps"`
}

// VisionConfig configures the screen analysis provider.
type VisionConfig struct {
	Model      string        `mapstructure:"model" yaml:"model"`
	APIKey     string        `mapstructure:"api_key" yaml:"-"`
	APITimeout time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
}

// VoiceConfig configures the speech providers. RecordCmd and PlayCmd are the
// host commands used to capture microphone audio and play synthesized audio.
type VoiceConfig struct {
	STTEndpoint string        `mapstructure:"stt_endpoint" yaml:"stt_endpoint"`
	TTSEndpoint string        `mapstructure:"tts_endpoint" yaml:"tts_endpoint"`
	TTSAPIKey   string        `mapstructure:"tts_api_key" yaml:"-"`
	TTSVoice    string        `mapstructure:"tts_voice" yaml:"tts_voice"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RecordCmd   []string      `mapstructure:"record_cmd" yaml:"record_cmd"`
	PlayCmd     []string      `mapstructure:"play_cmd" yaml:"play_cmd"`
}

// ServerConfig holds settings for the HTTP front end.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// StoreConfig configures the optional task transcript store.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "voxctl")
	v.SetDefault("logger.log_file", "voxctl.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.max_retries", 1)
	v.SetDefault("agent.retry_backoff", "2s")
	v.SetDefault("agent.provider_timeout", "30s")
	v.SetDefault("agent.confirm_timeout", "15s")
	v.SetDefault("agent.offset_tap_pixels", 10)

	// -- Device --
	v.SetDefault("device.adb_path", "adb")
	v.SetDefault("device.screen_width", 1080)
	v.SetDefault("device.screen_height", 2340)
	v.SetDefault("device.command_timeout", "10s")
	v.SetDefault("device.commands_per_sec", 5.0)

	// -- Vision --
	v.SetDefault("vision.model", "gemini-2.5-flash")
	v.SetDefault("vision.api_timeout", "30s")

	// -- Voice --
	v.SetDefault("voice.timeout", "20s")
	v.SetDefault("voice.tts_voice", "default")
	v.SetDefault("voice.record_cmd", []string{"arecord", "-q", "-f", "S16_LE", "-r", "16000", "-d", "6", "-t", "wav", "-"})
	v.SetDefault("voice.play_cmd", []string{"mpg123", "-q", "-"})

	// -- Server --
	v.SetDefault("server.listen_addr", ":8321")
	v.SetDefault("server.shutdown_timeout", "10s")

	// -- Store --
	v.SetDefault("store.enabled", false)
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("vision.api_key", "VOXCTL_VISION_API_KEY", "GEMINI_API_KEY")
	v.BindEnv("voice.tts_api_key", "VOXCTL_TTS_API_KEY")
	v.BindEnv("store.url", "VOXCTL_STORE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if c.Agent.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must not be negative")
	}
	if c.Agent.ConfirmTimeout <= 0 {
		return fmt.Errorf("agent.confirm_timeout must be a positive duration")
	}
	if c.Device.ScreenWidth <= 0 || c.Device.ScreenHeight <= 0 {
		return fmt.Errorf("device.screen_width and device.screen_height must be positive")
	}
	if c.Device.CommandsPerSec <= 0 {
		return fmt.Errorf("device.commands_per_sec must be positive")
	}
	if c.Store.Enabled && c.Store.URL == "" {
		return fmt.Errorf("store.url is required when store.enabled is true")
	}
	return nil
}
