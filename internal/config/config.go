package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Simulation SimulationConfig `yaml:"simulation" envconfig:"SIMULATION"`
	MarketData MarketDataConfig `yaml:"market_data" envconfig:"MARKET_DATA"`
	Cache      CacheConfig      `yaml:"cache" envconfig:"CACHE"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket  WebSocketConfig  `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// Leaf fields use split_words rather than envconfig tags: a tagged field also
// falls back to the bare tag name, which would read PATH or PORT from the shell.

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" split_words:"true"`
	ReadTimeout     time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout    time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" split_words:"true"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
	RequestTimeout  time.Duration `yaml:"request_timeout" split_words:"true"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" split_words:"true"`
	EnableCORS     bool            `yaml:"enable_cors" split_words:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" split_words:"true"`
	RPS     float64 `yaml:"rps" split_words:"true"`
	Burst   int     `yaml:"burst" split_words:"true"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" split_words:"true"`
	Format      string `yaml:"format" split_words:"true"`
	Output      string `yaml:"output" split_words:"true"`
	FilePath    string `yaml:"file_path" split_words:"true"`
	Development bool   `yaml:"development" split_words:"true"`
}

// SimulationConfig bounds the work a single calculation may do
type SimulationConfig struct {
	MaxMonths     int             `yaml:"max_months" split_words:"true"`
	LookbackDays  int             `yaml:"lookback_days" split_words:"true"`
	ChunkMonths   int             `yaml:"chunk_months" split_words:"true"`
	FanOutLimit   int             `yaml:"fan_out_limit" split_words:"true"`
	CalcTimeout   time.Duration   `yaml:"calc_timeout" split_words:"true"`
	RetryBackoffs []time.Duration `yaml:"retry_backoffs" split_words:"true"`
}

// MarketDataConfig selects and tunes the price source
type MarketDataConfig struct {
	Provider      string        `yaml:"provider" split_words:"true"`
	YahooHosts    []string      `yaml:"yahoo_hosts" split_words:"true"`
	EODHDBaseURL  string        `yaml:"eodhd_base_url" split_words:"true"`
	// Tagged because split_words reads the acronyms as EODHDAPI_KEY. The
	// unprefixed EODHD_API_KEY is also honored.
	EODHDAPIKey   string        `yaml:"eodhd_api_key" envconfig:"EODHD_API_KEY"`
	EODHDExchange string        `yaml:"eodhd_exchange" split_words:"true"`
	FixturePath   string        `yaml:"fixture_path" split_words:"true"`
	RPS           float64       `yaml:"rps" split_words:"true"`
	Burst         int           `yaml:"burst" split_words:"true"`
	HTTPTimeout   time.Duration `yaml:"http_timeout" split_words:"true"`
}

// CacheConfig configures the sqlite price cache
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true"`
}

// TelemetryConfig configures tracing and metrics
type TelemetryConfig struct {
	ServiceName   string `yaml:"service_name" split_words:"true"`
	Environment   string `yaml:"environment" split_words:"true"`
	EnableTracing bool   `yaml:"enable_tracing" split_words:"true"`
	EnableMetrics bool   `yaml:"enable_metrics" split_words:"true"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" split_words:"true"`
	WriteBufferSize int           `yaml:"write_buffer_size" split_words:"true"`
	PongWait        time.Duration `yaml:"pong_wait" split_words:"true"`
	WriteWait       time.Duration `yaml:"write_wait" split_words:"true"`
}

// Load builds the configuration from defaults, then the config file if one
// exists, then environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the file.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			if err := loadFromFile(configFile, cfg); err != nil {
				return nil, fmt.Errorf("failed to load config from file: %w", err)
			}
		}
	}

	// Variables that are not set leave the field untouched.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays YAML file values onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Simulation.CalcTimeout <= 0 {
		return fmt.Errorf("simulation calc timeout must be positive")
	}

	if c.Server.RequestTimeout < c.Simulation.CalcTimeout {
		return fmt.Errorf("server request timeout (%s) must not be shorter than the calc timeout (%s)",
			c.Server.RequestTimeout, c.Simulation.CalcTimeout)
	}

	if c.Simulation.MaxMonths <= 0 {
		return fmt.Errorf("simulation max months must be positive")
	}

	if c.Simulation.LookbackDays < 0 {
		return fmt.Errorf("simulation lookback days must not be negative")
	}

	if c.Security.EnableCORS && len(c.Security.AllowedOrigins) == 0 {
		return fmt.Errorf("at least one allowed origin must be specified")
	}

	c.MarketData.Provider = strings.ToLower(strings.TrimSpace(c.MarketData.Provider))
	switch c.MarketData.Provider {
	case ProviderYahoo:
	case ProviderEODHD:
		if c.MarketData.EODHDAPIKey == "" {
			return fmt.Errorf("market data provider %q requires an API key", ProviderEODHD)
		}
	case ProviderMemory:
		if c.MarketData.FixturePath == "" {
			return fmt.Errorf("market data provider %q requires a fixture path", ProviderMemory)
		}
	default:
		return fmt.Errorf("unknown market data provider %q", c.MarketData.Provider)
	}

	if c.Cache.Enabled && c.Cache.Path == "" {
		return fmt.Errorf("cache path must be set when the cache is enabled")
	}

	// Logs are always structured JSON.
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	switch c.Logging.Output {
	case "console", "file", "both":
	default:
		c.Logging.Output = "console"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    45 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  40 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Format:      "json",
			Output:      "console",
			FilePath:    DefaultLogFile,
			Development: false,
		},
		Simulation: SimulationConfig{
			MaxMonths:     DefaultMaxMonths,
			LookbackDays:  DefaultLookbackDays,
			ChunkMonths:   12,
			FanOutLimit:   4,
			CalcTimeout:   DefaultCalcTimeout,
			RetryBackoffs: []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, time.Second},
		},
		MarketData: MarketDataConfig{
			Provider:      ProviderYahoo,
			YahooHosts:    []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"},
			EODHDBaseURL:  "https://eodhd.com",
			EODHDExchange: "US",
			RPS:           5,
			Burst:         5,
			HTTPTimeout:   15 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			Path:    DefaultCachePath,
		},
		Telemetry: TelemetryConfig{
			ServiceName:   AppName,
			Environment:   "development",
			EnableTracing: false,
			EnableMetrics: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PongWait:        60 * time.Second,
			WriteWait:       10 * time.Second,
		},
	}
}
