// Package config loads service configuration from an optional YAML file
// overlaid with PODIUM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const envPrefix = "PODIUM"

type Config struct {
	Server    Server          `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	Roster    RosterConfig    `yaml:"roster"`
	Listing   ListingConfig   `yaml:"listing"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"            split_words:"true"`
	ReadTimeout     time.Duration `yaml:"readTimeout"     split_words:"true"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"    split_words:"true"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"  split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	TxTimeout       time.Duration `yaml:"txTimeout"       split_words:"true"`
	Debug           bool          `yaml:"debug"`
}

// DatabaseConfig selects PostgreSQL when DSN is set, memory otherwise.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"             envconfig:"URL"`
	MaxOpenConns    int           `yaml:"maxOpenConns"    split_words:"true"`
	MaxIdleConns    int           `yaml:"maxIdleConns"    split_words:"true"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" split_words:"true"`
}

type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"     split_words:"true"`
	MinIdleConns int           `yaml:"minIdleConns" split_words:"true"`
	DialTimeout  time.Duration `yaml:"dialTimeout"  split_words:"true"`
	ReadTimeout  time.Duration `yaml:"readTimeout"  split_words:"true"`
	WriteTimeout time.Duration `yaml:"writeTimeout" split_words:"true"`
}

type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	ClientID    string   `yaml:"clientId"    split_words:"true"`
	CreateTopic bool     `yaml:"createTopic" split_words:"true"`
}

func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type AuthConfig struct {
	JWTSigningKey string        `yaml:"jwtSigningKey" split_words:"true"`
	Issuer        string        `yaml:"issuer"`
	Audience      string        `yaml:"audience"`
	TokenTTL      time.Duration `yaml:"tokenTTL"      split_words:"true"`
}

type RosterConfig struct {
	MaxMembers int `yaml:"maxMembers" split_words:"true"`
}

type ListingConfig struct {
	DefaultLimit     int `yaml:"defaultLimit"     split_words:"true"`
	MaxLimit         int `yaml:"maxLimit"         split_words:"true"`
	BatchMax         int `yaml:"batchMax"         split_words:"true"`
	BatchParallelism int `yaml:"batchParallelism" split_words:"true"`
}

type RateLimitConfig struct {
	SubmitPerMinute int           `yaml:"submitPerMinute" split_words:"true"`
	Window          time.Duration `yaml:"window"`
	IdempotencyTTL  time.Duration `yaml:"idempotencyTTL"  split_words:"true"`
}

type TelemetryConfig struct {
	OTLPEndpoint string  `yaml:"otlpEndpoint" split_words:"true"`
	ServiceName  string  `yaml:"serviceName"  split_words:"true"`
	SampleRatio  float64 `yaml:"sampleRatio"  split_words:"true"`
}

func (t TelemetryConfig) Enabled() bool {
	return t.OTLPEndpoint != ""
}

// Default returns a configuration that runs fully in memory.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			TxTimeout:       5 * time.Second,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:    "submission-transitions",
			ClientID: "podium",
		},
		Auth: AuthConfig{
			JWTSigningKey: "dev-secret-key-change-in-production",
			Issuer:        "podium",
			Audience:      "podium-admin",
			TokenTTL:      time.Hour,
		},
		Roster: RosterConfig{MaxMembers: 3},
		Listing: ListingConfig{
			DefaultLimit:     20,
			MaxLimit:         100,
			BatchMax:         100,
			BatchParallelism: 4,
		},
		RateLimit: RateLimitConfig{
			SubmitPerMinute: 10,
			Window:          time.Minute,
			IdempotencyTTL:  24 * time.Hour,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "podium",
			SampleRatio: 1,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := envconfig.Process(envPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.TxTimeout <= 0 {
		errs = append(errs, errors.New("server.txTimeout must be positive"))
	}
	if c.Roster.MaxMembers < 0 {
		errs = append(errs, errors.New("roster.maxMembers must not be negative"))
	}
	if c.Listing.DefaultLimit <= 0 || c.Listing.MaxLimit < c.Listing.DefaultLimit {
		errs = append(errs, errors.New("listing.defaultLimit must be positive and not exceed listing.maxLimit"))
	}
	if c.Listing.BatchMax <= 0 {
		errs = append(errs, errors.New("listing.batchMax must be positive"))
	}
	if c.Listing.BatchParallelism <= 0 {
		errs = append(errs, errors.New("listing.batchParallelism must be positive"))
	}
	if c.RateLimit.SubmitPerMinute < 0 {
		errs = append(errs, errors.New("ratelimit.submitPerMinute must not be negative"))
	}
	if len(c.Auth.JWTSigningKey) < 16 {
		errs = append(errs, errors.New("auth.jwtSigningKey must be at least 16 bytes"))
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
