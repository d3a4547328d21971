package core

import (
	"errors"
	"fmt"
	"time"

	"trackrelay/internal/i18n"
)

// Defaults shared by the CLI flags and DefaultConfig.
const (
	DefaultServerHost            = "0.0.0.0"
	DefaultServerPort            = 3000
	DefaultScratchDir            = "temp"
	DefaultPrimaryTimeoutSecs    = 3000
	DefaultSecondaryTimeoutSecs  = 30
	DefaultResolutionCacheSize   = 0
	DefaultResolutionCacheTTLMin = 60
	DefaultFloodLimitPerMinute   = 0
	DefaultLogLevel              = "info"

	maxPort = 65535
)

type Config struct {
	Telegram  TelegramConfig
	Primary   ProviderConfig
	Secondary ProviderConfig
	Spotify   SpotifyConfig
	Server    ServerConfig
	Log       LogConfig
	App       AppConfig
}

type TelegramConfig struct {
	BotToken     string
	AllowedChats []int64
}

type ProviderConfig struct {
	BaseURL     string
	APIKey      string
	APIHost     string // Only sent by the primary provider.
	TimeoutSecs int
}

// Timeout returns the request timeout as a duration.
func (p ProviderConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSecs) * time.Second
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level string
}

type AppConfig struct {
	ScratchDir             string
	ResolutionCacheSize    int
	ResolutionCacheTTLMins int
	FloodLimitPerMinute    int
	Language               string
}

func DefaultConfig() *Config {
	return &Config{
		Primary: ProviderConfig{
			TimeoutSecs: DefaultPrimaryTimeoutSecs,
		},
		Secondary: ProviderConfig{
			TimeoutSecs: DefaultSecondaryTimeoutSecs,
		},
		Server: ServerConfig{
			Host:         DefaultServerHost,
			Port:         DefaultServerPort,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level: DefaultLogLevel,
		},
		App: AppConfig{
			ScratchDir:             DefaultScratchDir,
			ResolutionCacheSize:    DefaultResolutionCacheSize,
			ResolutionCacheTTLMins: DefaultResolutionCacheTTLMin,
			FloodLimitPerMinute:    DefaultFloodLimitPerMinute,
			Language:               i18n.DefaultLanguage,
		},
	}
}

// ErrMissingBotToken is returned when no Telegram bot token is configured.
var ErrMissingBotToken = errors.New("telegram bot token is required")

// Validate checks the fields the process cannot start without.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return ErrMissingBotToken
	}
	if c.App.ScratchDir == "" {
		return errors.New("scratch directory is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > maxPort {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if c.Primary.TimeoutSecs <= 0 || c.Secondary.TimeoutSecs <= 0 {
		return errors.New("provider timeouts must be positive")
	}
	if c.App.ResolutionCacheSize < 0 {
		return fmt.Errorf("resolution cache size %d must not be negative", c.App.ResolutionCacheSize)
	}
	if c.App.ResolutionCacheSize > 0 && c.App.ResolutionCacheTTLMins < 0 {
		return fmt.Errorf("resolution cache TTL %d must not be negative", c.App.ResolutionCacheTTLMins)
	}
	if c.App.FloodLimitPerMinute < 0 {
		return fmt.Errorf("flood limit %d must not be negative", c.App.FloodLimitPerMinute)
	}
	return nil
}
