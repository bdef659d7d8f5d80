package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
}

func (d DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.Username, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// TTL in hours for stored audio blobs
	BlobTTLHours int `mapstructure:"blob_ttl_hours"`
}

type AssistantKeysObj struct {
	OpenAiApiKey string `mapstructure:"open_ai_api_key"`
	GeminiApiKey string `mapstructure:"gemini_api_key"`
}

// VoiceConfig points at the TTS service and the realtime dialogue provider.
type VoiceConfig struct {
	TTSURL       string `mapstructure:"tts_url"`
	RealtimeURL  string `mapstructure:"realtime_url"`
	RealtimeKey  string `mapstructure:"realtime_key"`
	DefaultVoice string `mapstructure:"default_voice"`
	// "buffered" or "streaming"; chosen once per session, not per utterance
	TransportMode string `mapstructure:"transport_mode"`
	// Max characters per streamed synthesis segment; 0 keeps the default
	StreamChunkChars int `mapstructure:"stream_chunk_chars"`
}

// DebateConfig overrides phase timing for demos and tests. Zero values fall
// back to the nominal Public Forum durations.
type DebateConfig struct {
	TickIntervalMs    int `mapstructure:"tick_interval_ms"`
	SpeechDurationSec int `mapstructure:"speech_duration_sec"`
	CrossfireSec      int `mapstructure:"crossfire_sec"`
	FinalFocusSec     int `mapstructure:"final_focus_sec"`
}

type RetryConfig struct {
	MaxAttempts      int `mapstructure:"max_attempts"`
	InitialBackoffMs int `mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `mapstructure:"max_backoff_ms"`
}

func (r RetryConfig) InitialBackoff() time.Duration {
	if r.InitialBackoffMs <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(r.InitialBackoffMs) * time.Millisecond
}

func (r RetryConfig) MaxBackoff() time.Duration {
	if r.MaxBackoffMs <= 0 {
		return 8 * time.Second
	}
	return time.Duration(r.MaxBackoffMs) * time.Millisecond
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

type Settings struct {
	DB            DBConfig         `mapstructure:"database"`
	Redis         RedisConfig      `mapstructure:"redis"`
	AssistantKeys AssistantKeysObj `mapstructure:"assistantKeys"`
	Voice         VoiceConfig      `mapstructure:"voice"`
	Debate        DebateConfig     `mapstructure:"debate"`
	Retry         RetryConfig      `mapstructure:"retry"`
	Auth          AuthConfig       `mapstructure:"auth"`
	Env           string           `mapstructure:"env"`
	Debug         bool             `mapstructure:"debug" default:"false"`
}

func Load() (*Settings, error) {
	// Load settings from a configuration file or environment variables
	viper.SetConfigName("config_" + genEnv())
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var settings Settings
	if err := viper.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &settings, nil
}

func genEnv() string {
	env := viper.GetString("ENV")
	if env == "" {
		return "dev"
	}
	return env
}
