package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Env string `yaml:"env"`
	} `yaml:"app"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
	Postgres struct {
		DSN string `yaml:"dsn"`
	} `yaml:"postgres"`
	Kafka struct {
		BootstrapServers string `yaml:"bootstrap_servers"`
		Topic            string `yaml:"topic"`
		DLQTopic         string `yaml:"dlq_topic"`
	} `yaml:"kafka"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
	Jaeger     struct {
		Port string `yaml:"port"`
	} `yaml:"jaeger"`
	OIDC struct {
		URL      string `yaml:"url"`
		ClientID string `yaml:"client_id"`
	} `yaml:"oidc"`
	OPA struct {
		URL string `yaml:"url"`
	} `yaml:"opa"`
	JWT struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Gateway   GatewayConfig   `yaml:"gateway"`
}

// ClickHouseConfig stores connection details for the payment event projection.
type ClickHouseConfig struct {
	Addr     string `yaml:"addr"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// RateLimitConfig limits public callback traffic per client IP.
type RateLimitConfig struct {
	Limit         int `yaml:"limit"`
	WindowSeconds int `yaml:"window_seconds"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// First, we substitute environment variables into the raw YAML file.
	expandedFile := os.ExpandEnv(string(file))

	err = yaml.Unmarshal([]byte(expandedFile), config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "payments.completed"
	}
	if c.Kafka.DLQTopic == "" {
		c.Kafka.DLQTopic = c.Kafka.Topic + ".dlq"
	}
	if c.RateLimit.Limit == 0 {
		c.RateLimit.Limit = 100
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
	c.Gateway.applyDefaults()
}
