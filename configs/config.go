package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Redis struct {
	Addr     string
	Password string
	DB       int
}

type Facebook struct {
	GraphURL   string
	APIVersion string
}

type Scheduler struct {
	PollInterval time.Duration
	MaxRetries   int
	BackoffCap   time.Duration
}

type Limits struct {
	CacheTTL time.Duration
	Timezone string
}

type Rotation struct {
	AutoInterval time.Duration
}

type Orchestrator struct {
	CampaignStore string // memory or redis
}

type Config struct {
	Env          string
	Port         string
	LogLevel     string
	PostgresURI  string
	SecretKey    string
	Redis        Redis
	R2           R2
	Facebook     Facebook
	Scheduler    Scheduler
	Limits       Limits
	Rotation     Rotation
	Orchestrator Orchestrator
}

// LoadConfig reads configuration from the environment. Call godotenv.Load
// first to pick up a .env file.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "production")
	v.SetDefault("PORT", "3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_URI", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("FACEBOOK_GRAPH_URL", "https://graph.facebook.com")
	v.SetDefault("FACEBOOK_API_VERSION", "v18.0")
	v.SetDefault("SCHEDULER_POLL_INTERVAL", "60s")
	v.SetDefault("SCHEDULER_MAX_RETRIES", 3)
	v.SetDefault("SCHEDULER_BACKOFF_CAP", "60m")
	v.SetDefault("LIMITS_CACHE_TTL", "60s")
	v.SetDefault("LIMITS_TIMEZONE", "UTC")
	v.SetDefault("ROTATION_AUTO_INTERVAL", "5m")
	v.SetDefault("ORCHESTRATOR_CAMPAIGN_STORE", "memory")

	cfg := &Config{
		Env:         v.GetString("APP_ENV"),
		Port:        v.GetString("PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		PostgresURI: v.GetString("POSTGRES_URI"),
		SecretKey:   v.GetString("SECRET_KEY"),
		Redis: Redis{
			Addr:     v.GetString("REDIS_URI"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		R2: R2{
			AccountID:  v.GetString("R2_ACCOUNT_ID"),
			AccessKey:  v.GetString("R2_ACCESS_KEY"),
			SecretKey:  v.GetString("R2_SECRET_KEY"),
			BucketName: v.GetString("R2_BUCKET_NAME"),
			PublicURL:  v.GetString("R2_PUBLIC_URL"),
		},
		Facebook: Facebook{
			GraphURL:   v.GetString("FACEBOOK_GRAPH_URL"),
			APIVersion: v.GetString("FACEBOOK_API_VERSION"),
		},
		Scheduler: Scheduler{
			PollInterval: v.GetDuration("SCHEDULER_POLL_INTERVAL"),
			MaxRetries:   v.GetInt("SCHEDULER_MAX_RETRIES"),
			BackoffCap:   v.GetDuration("SCHEDULER_BACKOFF_CAP"),
		},
		Limits: Limits{
			CacheTTL: v.GetDuration("LIMITS_CACHE_TTL"),
			Timezone: v.GetString("LIMITS_TIMEZONE"),
		},
		Rotation: Rotation{
			AutoInterval: v.GetDuration("ROTATION_AUTO_INTERVAL"),
		},
		Orchestrator: Orchestrator{
			CampaignStore: v.GetString("ORCHESTRATOR_CAMPAIGN_STORE"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Scheduler.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULER_POLL_INTERVAL must be positive")
	}
	if c.Scheduler.MaxRetries < 1 {
		return fmt.Errorf("SCHEDULER_MAX_RETRIES must be at least 1")
	}
	if c.Rotation.AutoInterval <= 0 {
		return fmt.Errorf("ROTATION_AUTO_INTERVAL must be positive")
	}
	if _, err := time.LoadLocation(c.Limits.Timezone); err != nil {
		return fmt.Errorf("LIMITS_TIMEZONE: %w", err)
	}
	switch c.Orchestrator.CampaignStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("ORCHESTRATOR_CAMPAIGN_STORE must be memory or redis, got %q", c.Orchestrator.CampaignStore)
	}
	if c.SecretKey != "" {
		switch len(c.SecretKey) {
		case 16, 24, 32:
		default:
			return fmt.Errorf("SECRET_KEY must be 16, 24 or 32 bytes")
		}
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Location is the timezone used for engagement-hour alignment.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Limits.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
