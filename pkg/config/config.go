package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Asset is one tracked asset.
type Asset struct {
	Symbol string `yaml:"symbol"`
	Name   string `yaml:"name"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logger struct {
		Level     string `yaml:"level" default:"info"`
		Format    string `yaml:"format" default:"console"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"logger"`
	Assets  []Asset `yaml:"assets"`
	Refresh struct {
		Interval     time.Duration `yaml:"interval" default:"30s"`
		FetchTimeout time.Duration `yaml:"fetch_timeout" default:"30s"`
	} `yaml:"refresh"`
	Watch struct {
		Cooldown        time.Duration `yaml:"cooldown" default:"60s"`
		HistoryCapacity int           `yaml:"history_capacity" default:"100"`
	} `yaml:"watch"`
	Storage struct {
		Backend    string `yaml:"backend" default:"memory"`
		SQLitePath string `yaml:"sqlite_path" default:"data/riskwatch.db"`
	} `yaml:"storage"`
	Redis struct {
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size" default:"10"`
		Prefix   string `yaml:"prefix" default:"riskwatch"`
	} `yaml:"redis"`
	Kafka struct {
		Brokers           []string `yaml:"brokers"`
		NotificationTopic string   `yaml:"notification_topic" default:"riskwatch.notifications"`
		SignalTopic       string   `yaml:"signal_topic" default:"riskwatch.signals"`
		LogTopic          string   `yaml:"log_topic" default:"riskwatch.logs"`
		RequiredAcks      int      `yaml:"required_acks" default:"1"`
		Compression       string   `yaml:"compression" default:"snappy"`
		Producer          struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"riskwatch"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Signals struct {
		Source                string        `yaml:"source" default:"http"`
		BaseURL               string        `yaml:"base_url"`
		MaxAge                time.Duration `yaml:"max_age" default:"5m"`
		ActiveAddressBaseline float64       `yaml:"active_address_baseline"`
	} `yaml:"signals"`
	Summarizer struct {
		URL             string        `yaml:"url"`
		Timeout         time.Duration `yaml:"timeout" default:"5s"`
		BreakerFailures uint32        `yaml:"breaker_failures" default:"3"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown" default:"30s"`
	} `yaml:"summarizer"`
	Alerting struct {
		WebhookURLs []string `yaml:"webhook_urls"`
		RateLimit   float64  `yaml:"rate_limit" default:"1"`
		Burst       int      `yaml:"burst" default:"5"`
		BufferSize  int      `yaml:"buffer_size" default:"256"`
		KafkaSink   bool     `yaml:"kafka_sink"`
	} `yaml:"alerting"`
}

// Default returns a configuration holding only the struct-tag defaults.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		// tags are static, a failure here is a programming error
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A .env file in the working directory is read first when present.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("RISKWATCH_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("ASSETS"); v != "" {
		c.Assets = ParseAssets(v)
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SIGNALS_BASE_URL"); v != "" {
		c.Signals.BaseURL = v
	}
	if v := os.Getenv("SUMMARIZER_URL"); v != "" {
		c.Summarizer.URL = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("WEBHOOK_URLS"); v != "" {
		c.Alerting.WebhookURLs = strings.Split(v, ",")
	}
}

// ParseAssets reads "BTC:Bitcoin,ETH:Ethereum". The name is optional.
func ParseAssets(s string) []Asset {
	var out []Asset
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		sym, name, _ := strings.Cut(part, ":")
		sym = strings.ToUpper(strings.TrimSpace(sym))
		name = strings.TrimSpace(name)
		if name == "" {
			name = sym
		}
		out = append(out, Asset{Symbol: sym, Name: name})
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if len(c.Assets) == 0 {
		return fmt.Errorf("assets cannot be empty")
	}
	seen := make(map[string]bool, len(c.Assets))
	for i, a := range c.Assets {
		if strings.TrimSpace(a.Symbol) == "" {
			return fmt.Errorf("assets[%d].symbol is required", i)
		}
		key := strings.ToUpper(a.Symbol)
		if seen[key] {
			return fmt.Errorf("assets: duplicate symbol '%s'", a.Symbol)
		}
		seen[key] = true
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive")
	}
	if c.Refresh.FetchTimeout <= 0 {
		return fmt.Errorf("refresh.fetch_timeout must be positive")
	}
	if c.Watch.Cooldown < 0 {
		return fmt.Errorf("watch.cooldown cannot be negative")
	}
	switch c.Storage.Backend {
	case "memory", "redis":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("storage.backend must be 'memory', 'redis' or 'sqlite', got '%s'", c.Storage.Backend)
	}
	switch c.Signals.Source {
	case "http":
		if c.Signals.BaseURL == "" {
			return fmt.Errorf("signals.base_url is required for the http source")
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers is required for the kafka signal source")
		}
	default:
		return fmt.Errorf("signals.source must be 'http' or 'kafka', got '%s'", c.Signals.Source)
	}
	if c.Alerting.KafkaSink && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when alerting.kafka_sink is on")
	}
	if c.Logger.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when logger.collector is on")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	if c.Alerting.RateLimit <= 0 {
		return fmt.Errorf("alerting.rate_limit must be positive")
	}
	return nil
}

// UsesKafka reports whether any component needs a Kafka connection.
func (c *Config) UsesKafka() bool {
	return c.Signals.Source == "kafka" || c.Alerting.KafkaSink || c.Logger.Collector.Enabled
}
