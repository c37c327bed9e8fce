package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
		Output  string `yaml:"output"`
		Collect struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval"`
			Threshold int           `yaml:"threshold"`
		} `yaml:"collect"`
	} `yaml:"logging"`
	RateLimit struct {
		Enabled bool    `yaml:"enabled"`
		RPS     float64 `yaml:"rps"`
		Burst   int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	Kafka struct {
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Topics       struct {
			Orders string `yaml:"orders"`
			Alerts string `yaml:"alerts"`
			Audit  string `yaml:"audit"`
			Logs   string `yaml:"logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Semantic struct {
		Enabled          bool          `yaml:"enabled"`
		BaseURL          string        `yaml:"base_url"`
		APIKey           string        `yaml:"api_key"`
		Model            string        `yaml:"model"`
		Timeout          time.Duration `yaml:"timeout"`
		BreakerThreshold int           `yaml:"breaker_threshold"`
		BreakerCooldown  time.Duration `yaml:"breaker_cooldown"`
	} `yaml:"semantic"`
	Evidence struct {
		Timeout       time.Duration     `yaml:"timeout"`
		RetryAttempts int               `yaml:"retry_attempts"`
		MarketSource  string            `yaml:"market_source"`
		Services      map[string]string `yaml:"services"`
	} `yaml:"evidence"`
	Finnhub struct {
		APIKey         string        `yaml:"api_key"`
		WebSocketURL   string        `yaml:"websocket_url"`
		Symbols        []string      `yaml:"symbols"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
	} `yaml:"finnhub"`
	Decision struct {
		ConsensusThreshold float64 `yaml:"consensus_threshold"`
		MaxGrossExposure   float64 `yaml:"max_gross_exposure"`
		MaxSingleOrder     float64 `yaml:"max_single_order"`
		OrderSource        string  `yaml:"order_source"`
	} `yaml:"decision"`
	Risk struct {
		Mode    string        `yaml:"mode"`
		URL     string        `yaml:"url"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"risk"`
	Confirmation struct {
		Mode              string        `yaml:"mode"`
		TokenTTL          time.Duration `yaml:"token_ttl"`
		FinalConfirmation bool          `yaml:"final_confirmation"`
	} `yaml:"confirmation"`
	Session struct {
		Backend     string        `yaml:"backend"`
		Capacity    int           `yaml:"capacity"`
		MaxSessions int           `yaml:"max_sessions"`
		TTL         time.Duration `yaml:"ttl"`
	} `yaml:"session"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes raw YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv(os.Getenv)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("ORDERS_TOPIC"); v != "" {
		c.Kafka.Topics.Orders = v
	}
	if v := getenv("LLM_API_KEY"); v != "" {
		c.Semantic.APIKey = v
	}
	if v := getenv("LLM_BASE_URL"); v != "" {
		c.Semantic.BaseURL = v
		c.Semantic.Enabled = true
	}
	if v := getenv("FINNHUB_API_KEY"); v != "" {
		c.Finnhub.APIKey = v
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := getenv("CONSENSUS_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Decision.ConsensusThreshold = f
		}
	}
	if v := getenv("CONFIRMATION_MODE"); v != "" {
		c.Confirmation.Mode = v
	}
}

// ApplyDefaults fills zero values with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	setDur(&c.Server.ReadTimeout, 10*time.Second)
	setDur(&c.Server.WriteTimeout, 30*time.Second)
	setDur(&c.Server.ShutdownTimeout, 10*time.Second)

	setStr(&c.Logging.Level, "info")
	setStr(&c.Logging.Format, "json")
	setStr(&c.Logging.Output, "stdout")
	setDur(&c.Logging.Collect.Interval, 30*time.Second)
	if c.Logging.Collect.Threshold == 0 {
		c.Logging.Collect.Threshold = 100
	}

	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}

	if c.Kafka.RequiredAcks == 0 {
		c.Kafka.RequiredAcks = -1
	}
	setStr(&c.Kafka.Compression, "snappy")
	setStr(&c.Kafka.Topics.Orders, "ncl.orders")
	setStr(&c.Kafka.Topics.Alerts, "ncl.alerts")
	setStr(&c.Kafka.Topics.Audit, "ncl.decision-audit")
	setStr(&c.Kafka.Topics.Logs, "ncl.log-digest")
	if c.Kafka.Producer.MaxAttempts == 0 {
		c.Kafka.Producer.MaxAttempts = 3
	}
	if c.Kafka.Producer.BatchSize == 0 {
		c.Kafka.Producer.BatchSize = 1
	}
	setDur(&c.Kafka.Producer.Linger, 10*time.Millisecond)
	setDur(&c.Kafka.Producer.WriteTimeout, 10*time.Second)
	setDur(&c.Kafka.Producer.ReadTimeout, 10*time.Second)
	setStr(&c.Kafka.Consumer.GroupID, "ncl-audit-writer")
	if c.Kafka.Consumer.Workers == 0 {
		c.Kafka.Consumer.Workers = 2
	}

	setStr(&c.ClickHouse.Database, "ncl")
	if c.ClickHouse.Port == 0 {
		c.ClickHouse.Port = 9000
	}

	setStr(&c.Redis.Host, "localhost")
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	setStr(&c.Redis.Prefix, "ncl")

	setStr(&c.Semantic.Model, "gpt-4o-mini")
	setDur(&c.Semantic.Timeout, 8*time.Second)
	if c.Semantic.BreakerThreshold == 0 {
		c.Semantic.BreakerThreshold = 3
	}
	setDur(&c.Semantic.BreakerCooldown, 30*time.Second)

	setDur(&c.Evidence.Timeout, 3*time.Second)
	if c.Evidence.RetryAttempts == 0 {
		c.Evidence.RetryAttempts = 1
	}
	setStr(&c.Evidence.MarketSource, "http")

	setStr(&c.Finnhub.WebSocketURL, "wss://ws.finnhub.io")
	setDur(&c.Finnhub.ReconnectDelay, 5*time.Second)
	setDur(&c.Finnhub.PingInterval, 20*time.Second)

	if c.Decision.ConsensusThreshold == 0 {
		c.Decision.ConsensusThreshold = 0.6
	}
	if c.Decision.MaxGrossExposure == 0 {
		c.Decision.MaxGrossExposure = 1_000_000
	}
	if c.Decision.MaxSingleOrder == 0 {
		c.Decision.MaxSingleOrder = 100_000
	}
	setStr(&c.Decision.OrderSource, "neural-command-layer")

	setStr(&c.Risk.Mode, "local")
	setDur(&c.Risk.Timeout, 3*time.Second)

	setStr(&c.Confirmation.Mode, "flag")
	setDur(&c.Confirmation.TokenTTL, 2*time.Minute)

	setStr(&c.Session.Backend, "memory")
	if c.Session.Capacity == 0 {
		c.Session.Capacity = 10
	}
	if c.Session.MaxSessions == 0 {
		c.Session.MaxSessions = 10_000
	}
	setDur(&c.Session.TTL, 24*time.Hour)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty")
	}
	if t := c.Decision.ConsensusThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("decision.consensus_threshold must be in (0,1], got %v", t)
	}
	if c.Decision.MaxSingleOrder <= 0 || c.Decision.MaxGrossExposure <= 0 {
		return fmt.Errorf("decision limits must be positive")
	}
	if c.Decision.MaxSingleOrder > c.Decision.MaxGrossExposure {
		return fmt.Errorf("decision.max_single_order (%v) exceeds max_gross_exposure (%v)",
			c.Decision.MaxSingleOrder, c.Decision.MaxGrossExposure)
	}
	switch c.Risk.Mode {
	case "local":
	case "http":
		if c.Risk.URL == "" {
			return fmt.Errorf("risk.url is required when risk.mode is 'http'")
		}
	default:
		return fmt.Errorf("risk.mode must be 'local' or 'http', got '%s'", c.Risk.Mode)
	}
	if c.Confirmation.Mode != "flag" && c.Confirmation.Mode != "token" {
		return fmt.Errorf("confirmation.mode must be 'flag' or 'token', got '%s'", c.Confirmation.Mode)
	}
	switch c.Evidence.MarketSource {
	case "http":
	case "stream":
		if c.Finnhub.APIKey == "" {
			return fmt.Errorf("finnhub.api_key is required when evidence.market_source is 'stream'")
		}
	default:
		return fmt.Errorf("evidence.market_source must be 'http' or 'stream', got '%s'", c.Evidence.MarketSource)
	}
	if c.Session.Backend != "memory" && c.Session.Backend != "redis" {
		return fmt.Errorf("session.backend must be 'memory' or 'redis', got '%s'", c.Session.Backend)
	}
	if c.Session.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("session.backend 'redis' requires redis.enabled")
	}
	if c.Session.Capacity <= 0 {
		return fmt.Errorf("session.capacity must be positive")
	}
	if c.Semantic.Enabled && c.Semantic.BaseURL == "" {
		return fmt.Errorf("semantic.base_url is required when semantic is enabled")
	}
	return nil
}

func setStr(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setDur(dst *time.Duration, def time.Duration) {
	if *dst <= 0 {
		*dst = def
	}
}
