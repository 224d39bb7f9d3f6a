package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int    `yaml:"port"`
	ZuulAPIURL    string `yaml:"zuulApiUrl"`
	DefaultTenant string `yaml:"defaultTenant"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"`
	Env           string `yaml:"env"`

	// FetchTimeoutSeconds bounds a single upstream document fetch.
	FetchTimeoutSeconds int `yaml:"fetchTimeoutSeconds"`
	// CacheTTLSeconds bounds how long fetched build info stays cached in
	// backends that support expiry. Zero keeps records forever.
	CacheTTLSeconds int `yaml:"cacheTtlSeconds"`

	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

type StoreConfig struct {
	Type  string      `yaml:"type"`
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	API RateLimitBucketConfig `yaml:"api"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"serviceName"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

func defaults() *Config {
	return &Config{
		Port:                8080,
		LogLevel:            "info",
		LogFormat:           "json",
		Env:                 "dev",
		FetchTimeoutSeconds: 60,
		CacheTTLSeconds:     300,
		Store:               StoreConfig{Type: "memory", Redis: RedisConfig{Addr: "localhost:6379"}},
	}
}

// LoadConfig reads a yaml config file and applies environment overrides.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	c := defaults()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	applyEnv(c)
	return c, nil
}

// LoadConfigOptional behaves like LoadConfig but tolerates an empty path,
// returning defaults plus environment overrides.
func LoadConfigOptional(filePath string) (*Config, error) {
	if strings.TrimSpace(filePath) == "" {
		c := defaults()
		applyEnv(c)
		return c, nil
	}
	return LoadConfig(filePath)
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("ZUUL_API_URL"); v != "" {
		c.ZuulAPIURL = v
	}
	if v := os.Getenv("ZUUL_TENANT"); v != "" {
		c.DefaultTenant = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FetchTimeoutSeconds = n
		}
	}
	if v := os.Getenv("CACHE_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = v == "true" || v == "1"
	}
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if strings.TrimSpace(c.ZuulAPIURL) == "" {
		return fmt.Errorf("zuulApiUrl is required")
	}
	u, err := url.Parse(c.ZuulAPIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("zuulApiUrl must be an absolute URL: %q", c.ZuulAPIURL)
	}
	switch c.Store.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}
	return nil
}
