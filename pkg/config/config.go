package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// Instrument names one tracked series and the table its bars live in.
type Instrument struct {
	Name  string `yaml:"name"`
	Table string `yaml:"table"`
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`

	Server struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`

	Market struct {
		// Timezone is the exchange's local zone; bar timestamps are UTC.
		Timezone           string       `yaml:"timezone" default:"Asia/Kolkata"`
		SessionOpenMinute  int          `yaml:"session_open_minute" default:"555"`
		SessionCloseMinute int          `yaml:"session_close_minute" default:"930"`
		SessionMinutes     int          `yaml:"session_minutes" default:"375"`
		IndexTable         string       `yaml:"index_table"`
		VIXTable           string       `yaml:"vix_table"`
		Constituents       []Instrument `yaml:"constituents"`
	} `yaml:"market"`

	Engine struct {
		WindowBars    int           `yaml:"window_bars" default:"600"`
		MinRows       int           `yaml:"min_rows" default:"400"`
		CycleInterval time.Duration `yaml:"cycle_interval" default:"60s"`
		StaleAfter    time.Duration `yaml:"stale_after" default:"2m"`
	} `yaml:"engine"`

	Models struct {
		Volatility ModelConfig `yaml:"volatility"`
		Direction  ModelConfig `yaml:"direction"`
	} `yaml:"models"`

	Signal struct {
		Confidence   float64 `yaml:"confidence" default:"0.55"`
		VolExpansion float64 `yaml:"vol_expansion" default:"0.0010"`
	} `yaml:"signal"`

	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"default"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
		FeatureTable     string        `yaml:"feature_table" default:"nifty_features_1min"`
	} `yaml:"clickhouse"`

	Postgres struct {
		Host            string        `yaml:"host" default:"localhost"`
		Port            int           `yaml:"port" default:"5432"`
		Database        string        `yaml:"database"`
		User            string        `yaml:"user"`
		Password        string        `yaml:"password"`
		SSLMode         string        `yaml:"ssl_mode" default:"disable"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"5s"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"5"`
		PredictionTable string        `yaml:"prediction_table" default:"live_predictions"`
	} `yaml:"postgres"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic" default:"volstack.signals"`
		RequiredAcks int      `yaml:"required_acks" default:"1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`

	Cache struct {
		// Backend is "memory" or "redis".
		Backend  string        `yaml:"backend" default:"memory"`
		TTL      time.Duration `yaml:"ttl" default:"5m"`
		Capacity int           `yaml:"capacity" default:"1024"`
		Redis    struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`

	Backfill struct {
		BaseURL     string        `yaml:"base_url"`
		Timeout     time.Duration `yaml:"timeout" default:"120s"`
		InitialDays int           `yaml:"initial_days" default:"30"`
	} `yaml:"backfill"`
}

// ModelConfig locates one artifact and pins the inputs the feature table
// computes in more than one form.
type ModelConfig struct {
	Path     string `yaml:"path"`
	RVForm   string `yaml:"rv_form" default:"sum_squares"`
	VolSpike string `yaml:"vol_spike" default:"constituent_sum"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

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

	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		c.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		c.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		c.Postgres.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := os.Getenv("BACKFILL_URL"); v != "" {
		c.Backfill.BaseURL = v
	}

	return c, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Market.IndexTable == "" {
		return fmt.Errorf("market.index_table is required")
	}
	if c.Market.SessionCloseMinute <= c.Market.SessionOpenMinute {
		return fmt.Errorf("market session close %d must follow open %d",
			c.Market.SessionCloseMinute, c.Market.SessionOpenMinute)
	}
	if c.Market.SessionMinutes <= 0 {
		return fmt.Errorf("market.session_minutes must be positive")
	}
	for i, ins := range c.Market.Constituents {
		if ins.Name == "" || ins.Table == "" {
			return fmt.Errorf("market.constituents[%d] needs both name and table", i)
		}
	}
	if c.Models.Volatility.Path == "" {
		return fmt.Errorf("models.volatility.path is required")
	}
	if c.Models.Direction.Path == "" {
		return fmt.Errorf("models.direction.path is required")
	}
	if c.Signal.Confidence <= 0 || c.Signal.Confidence >= 1 {
		return fmt.Errorf("signal.confidence must lie in (0,1), got %v", c.Signal.Confidence)
	}
	if c.Signal.VolExpansion <= 0 {
		return fmt.Errorf("signal.vol_expansion must be positive, got %v", c.Signal.VolExpansion)
	}
	if c.Engine.MinRows > c.Engine.WindowBars {
		return fmt.Errorf("engine.min_rows %d cannot exceed engine.window_bars %d",
			c.Engine.MinRows, c.Engine.WindowBars)
	}
	if c.Postgres.Database == "" {
		return fmt.Errorf("postgres.database is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	return nil
}
