package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"pairsona/pkg/types"
)

// Config is the flat set of named options the engine reads at start.
// The core never mutates it after Validate.
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Geo       *GeoConfig       `json:"geo"`
	Match     *MatchConfig     `json:"match"`
	Debug     bool             `json:"debug"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	BufferSize   int           `json:"buffer_size"`
}

// GeoConfig locates the offline MaxMind database. An empty path disables
// resolution: every lookup yields the unknown sentinel and pairing
// proceeds without location data.
type GeoConfig struct {
	DatabasePath string `json:"database_path"`
	CacheSize    int    `json:"cache_size"`
}

// MatchConfig selects the matchmaking policy and the wait bounds.
// MaxWait 0 means a client waits indefinitely for a partner.
type MatchConfig struct {
	Policy        string        `json:"policy"`
	MaxWait       time.Duration `json:"max_wait"`
	ShutdownGrace time.Duration `json:"shutdown_grace"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			BufferSize:   100,
		},
		Geo: &GeoConfig{
			DatabasePath: "",
			CacheSize:    4096,
		},
		Match: &MatchConfig{
			Policy:        types.PolicyArrival,
			MaxWait:       0,
			ShutdownGrace: 10 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.WebSocket == nil {
		return fmt.Errorf("WebSocket configuration is required")
	}
	if c.WebSocket.PingInterval <= 0 {
		return fmt.Errorf("WebSocket ping interval must be positive")
	}
	if c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("WebSocket read timeout must be positive")
	}
	if c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket write timeout must be positive")
	}
	if c.WebSocket.BufferSize <= 0 {
		return fmt.Errorf("WebSocket buffer size must be positive")
	}
	if c.Geo == nil {
		return fmt.Errorf("geo configuration is required")
	}
	if c.Geo.CacheSize <= 0 {
		return fmt.Errorf("geo cache size must be positive")
	}
	if c.Match == nil {
		return fmt.Errorf("match configuration is required")
	}
	if !types.IsValidPolicy(c.Match.Policy) {
		return fmt.Errorf("%w: %q", types.ErrInvalidPolicy, c.Match.Policy)
	}
	if c.Match.MaxWait < 0 {
		return fmt.Errorf("match max wait cannot be negative")
	}
	if c.Match.ShutdownGrace <= 0 {
		return fmt.Errorf("match shutdown grace must be positive")
	}
	return nil
}

// LoadFromEnv overrides defaults with PAIRSONA_* environment variables.
// Unparseable values fall back silently to the default.
func LoadFromEnv() *Config {
	config := DefaultConfig()

	if host := os.Getenv("PAIRSONA_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("PAIRSONA_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if v := os.Getenv("PAIRSONA_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("PAIRSONA_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("PAIRSONA_WEBSOCKET_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("PAIRSONA_WEBSOCKET_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("PAIRSONA_WEBSOCKET_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("PAIRSONA_WEBSOCKET_BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.WebSocket.BufferSize = n
		}
	}
	if v := os.Getenv("PAIRSONA_GEO_DATABASE_PATH"); v != "" {
		config.Geo.DatabasePath = v
	}
	if v := os.Getenv("PAIRSONA_GEO_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Geo.CacheSize = n
		}
	}
	if v := os.Getenv("PAIRSONA_MATCH_POLICY"); v != "" {
		config.Match.Policy = v
	}
	if v := os.Getenv("PAIRSONA_MATCH_MAX_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Match.MaxWait = d
		}
	}
	if v := os.Getenv("PAIRSONA_MATCH_SHUTDOWN_GRACE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Match.ShutdownGrace = d
		}
	}
	if v := os.Getenv("PAIRSONA_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Debug = b
		}
	}

	return config
}

// ConfigFile is the JSON shape for file-based configuration; durations
// are strings so that "30s" style values work.
type ConfigFile struct {
	HTTP      *HTTPConfigFile      `json:"http"`
	WebSocket *WebSocketConfigFile `json:"websocket"`
	Geo       *GeoConfigFile       `json:"geo"`
	Match     *MatchConfigFile     `json:"match"`
	Debug     *bool                `json:"debug"`
}

type HTTPConfigFile struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
}

type WebSocketConfigFile struct {
	PingInterval string `json:"ping_interval"`
	ReadTimeout  string `json:"read_timeout"`
	WriteTimeout string `json:"write_timeout"`
	BufferSize   int    `json:"buffer_size"`
}

type GeoConfigFile struct {
	DatabasePath string `json:"database_path"`
	CacheSize    int    `json:"cache_size"`
}

type MatchConfigFile struct {
	Policy        string `json:"policy"`
	MaxWait       string `json:"max_wait"`
	ShutdownGrace string `json:"shutdown_grace"`
}

func LoadFromFile(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filepath, err)
	}

	var configFile ConfigFile
	if err := json.Unmarshal(data, &configFile); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filepath, err)
	}

	config := DefaultConfig()

	if configFile.HTTP != nil {
		if configFile.HTTP.Host != "" {
			config.HTTP.Host = configFile.HTTP.Host
		}
		if configFile.HTTP.Port > 0 {
			config.HTTP.Port = configFile.HTTP.Port
		}
		if configFile.HTTP.ReadTimeout != "" {
			if d, err := time.ParseDuration(configFile.HTTP.ReadTimeout); err == nil {
				config.HTTP.ReadTimeout = d
			}
		}
		if configFile.HTTP.WriteTimeout != "" {
			if d, err := time.ParseDuration(configFile.HTTP.WriteTimeout); err == nil {
				config.HTTP.WriteTimeout = d
			}
		}
	}

	if configFile.WebSocket != nil {
		if configFile.WebSocket.BufferSize > 0 {
			config.WebSocket.BufferSize = configFile.WebSocket.BufferSize
		}
		if configFile.WebSocket.PingInterval != "" {
			if d, err := time.ParseDuration(configFile.WebSocket.PingInterval); err == nil {
				config.WebSocket.PingInterval = d
			}
		}
		if configFile.WebSocket.ReadTimeout != "" {
			if d, err := time.ParseDuration(configFile.WebSocket.ReadTimeout); err == nil {
				config.WebSocket.ReadTimeout = d
			}
		}
		if configFile.WebSocket.WriteTimeout != "" {
			if d, err := time.ParseDuration(configFile.WebSocket.WriteTimeout); err == nil {
				config.WebSocket.WriteTimeout = d
			}
		}
	}

	if configFile.Geo != nil {
		if configFile.Geo.DatabasePath != "" {
			config.Geo.DatabasePath = configFile.Geo.DatabasePath
		}
		if configFile.Geo.CacheSize > 0 {
			config.Geo.CacheSize = configFile.Geo.CacheSize
		}
	}

	if configFile.Match != nil {
		if configFile.Match.Policy != "" {
			config.Match.Policy = configFile.Match.Policy
		}
		if configFile.Match.MaxWait != "" {
			if d, err := time.ParseDuration(configFile.Match.MaxWait); err == nil {
				config.Match.MaxWait = d
			}
		}
		if configFile.Match.ShutdownGrace != "" {
			if d, err := time.ParseDuration(configFile.Match.ShutdownGrace); err == nil {
				config.Match.ShutdownGrace = d
			}
		}
	}

	if configFile.Debug != nil {
		config.Debug = *configFile.Debug
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration in %s: %w", filepath, err)
	}

	return config, nil
}

// LoadConfigWithPrecedence resolves configuration as file > env > defaults.
// File errors are ignored so that env/defaults still bring the server up.
func LoadConfigWithPrecedence(filepath string) *Config {
	config := LoadFromEnv()

	if filepath != "" {
		if fileConfig, err := LoadFromFile(filepath); err == nil {
			config = fileConfig
		}
	}

	return config
}
