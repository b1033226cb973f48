package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DevJWTSecret signs tokens outside production when JWT_SECRET is unset.
const DevJWTSecret = "fusion-gateway-dev-secret"

// RateLimit is a per-client allowance; zero Limit disables the class.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Config holds service configuration loaded from YAML and env.
type Config struct {
	Environment string
	ServerPort  string

	SWAPIURL     string
	SWAPITimeout time.Duration

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	FusionConcurrency int

	CacheBackend      string // "redis", "memcached" or "in_memory"
	CacheTTL          time.Duration
	CacheOpTimeout    time.Duration
	CacheWarmSchedule string
	RedisURL          string

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	HistoryBackend   string // "dynamodb" or "sqlite"
	HistoryOpTimeout time.Duration
	AWSRegion        string
	DynamoTable      string
	DynamoEndpoint   string
	SQLitePath       string

	JWTSecret string
	// JWTSecretDefaulted is set when DevJWTSecret is in use.
	JWTSecretDefaulted bool
	TokenTTL           time.Duration

	APIRateLimit      RateLimit
	ExternalRateLimit RateLimit
	AuthRateLimit     RateLimit

	ReadTimeout                   time.Duration
	WriteTimeout                  time.Duration
	ShutdownTimeout               time.Duration
	ShutdownInFlightTimeout       time.Duration
	ShutdownInFlightCheckInterval time.Duration
}

type rateLimitFile struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

type fileConfig struct {
	Server struct {
		Port         string `yaml:"port"`
		ReadTimeout  string `yaml:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout"`
	} `yaml:"server"`

	SWAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"swapi"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Fusion struct {
		Concurrency int `yaml:"concurrency"`
	} `yaml:"fusion"`

	Cache struct {
		Backend      string `yaml:"backend"`
		TTL          string `yaml:"ttl"`
		OpTimeout    string `yaml:"op_timeout"`
		WarmSchedule string `yaml:"warm_schedule"`
		Redis        struct {
			URL string `yaml:"url"`
		} `yaml:"redis"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	History struct {
		Backend   string `yaml:"backend"`
		OpTimeout string `yaml:"op_timeout"`
		DynamoDB  struct {
			Region   string `yaml:"region"`
			Table    string `yaml:"table"`
			Endpoint string `yaml:"endpoint"`
		} `yaml:"dynamodb"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"history"`

	Auth struct {
		TokenTTL string `yaml:"token_ttl"`
	} `yaml:"auth"`

	RateLimits struct {
		API      rateLimitFile `yaml:"api"`
		External rateLimitFile `yaml:"external"`
		Auth     rateLimitFile `yaml:"auth"`
	} `yaml:"rate_limits"`

	Shutdown struct {
		Timeout               string `yaml:"timeout"`
		InFlightTimeout       string `yaml:"in_flight_timeout"`
		InFlightCheckInterval string `yaml:"in_flight_check_interval"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	JWTSecret     string `yaml:"jwt_secret"`
}

// Load reads config/{ENVIRONMENT}.yaml (default dev) and config/secrets.yaml
// relative to the working directory. Both files are optional; environment
// variables override file values.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(filepath.Join(cwd, "config"))
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir string) (*Config, error) {
	env := strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	if env == "" {
		env = "dev"
	}

	var fc fileConfig
	if err := readYAML(filepath.Join(dir, env+".yaml"), &fc); err != nil {
		return nil, err
	}
	var sec secretsFile
	if err := readYAML(filepath.Join(dir, "secrets.yaml"), &sec); err != nil {
		return nil, err
	}

	cfg := &Config{Environment: env}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "3000")
	cfg.ReadTimeout = parseDuration(fc.Server.ReadTimeout, 10*time.Second)
	cfg.WriteTimeout = parseDuration(fc.Server.WriteTimeout, 30*time.Second)

	cfg.SWAPIURL = strings.TrimRight(firstNonEmpty(os.Getenv("SWAPI_URL"), fc.SWAPI.URL, "https://swapi.dev/api"), "/")
	cfg.SWAPITimeout = parseDurationOrZero(firstNonEmpty(os.Getenv("SWAPI_TIMEOUT"), fc.SWAPI.Timeout), 10*time.Second)

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	cfg.WeatherAPIURL = firstNonEmpty(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5/weather")
	cfg.WeatherAPITimeout = parseDurationOrZero(firstNonEmpty(os.Getenv("WEATHER_API_TIMEOUT"), fc.WeatherAPI.Timeout), 5*time.Second)
	cfg.FusionConcurrency = fc.Fusion.Concurrency
	if cfg.FusionConcurrency <= 0 {
		cfg.FusionConcurrency = 10
	}

	cfg.CacheBackend = strings.ToLower(firstNonEmpty(os.Getenv("CACHE_BACKEND"), fc.Cache.Backend, "in_memory"))
	cfg.CacheTTL = parseDuration(firstNonEmpty(os.Getenv("CACHE_TTL"), fc.Cache.TTL), 1800*time.Second)
	cfg.CacheOpTimeout = parseDurationOrZero(fc.Cache.OpTimeout, time.Second)
	cfg.CacheWarmSchedule = firstNonEmpty(os.Getenv("CACHE_WARM_SCHEDULE"), fc.Cache.WarmSchedule)
	cfg.RedisURL = firstNonEmpty(os.Getenv("REDIS_URL"), fc.Cache.Redis.URL, "redis://localhost:6379")
	cfg.MemcachedAddrs = firstNonEmpty(os.Getenv("MEMCACHED_ADDRS"), fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.HistoryBackend = strings.ToLower(firstNonEmpty(os.Getenv("HISTORY_BACKEND"), fc.History.Backend, "sqlite"))
	cfg.HistoryOpTimeout = parseDurationOrZero(fc.History.OpTimeout, 5*time.Second)
	cfg.AWSRegion = firstNonEmpty(os.Getenv("AWS_REGION"), fc.History.DynamoDB.Region, "us-east-1")
	cfg.DynamoTable = firstNonEmpty(os.Getenv("DYNAMODB_TABLE"), fc.History.DynamoDB.Table, "FusionadosHistory")
	cfg.DynamoEndpoint = firstNonEmpty(os.Getenv("DYNAMODB_ENDPOINT"), fc.History.DynamoDB.Endpoint)
	cfg.SQLitePath = firstNonEmpty(os.Getenv("SQLITE_PATH"), fc.History.SQLite.Path, filepath.Join("data", "history.db"))

	cfg.JWTSecret = firstNonEmpty(os.Getenv("JWT_SECRET"), sec.JWTSecret)
	cfg.TokenTTL = parseDuration(fc.Auth.TokenTTL, time.Hour)

	cfg.APIRateLimit = rateLimit(fc.RateLimits.API, RateLimit{Limit: 100, Window: 15 * time.Minute})
	cfg.ExternalRateLimit = rateLimit(fc.RateLimits.External, RateLimit{Limit: 30, Window: 15 * time.Minute})
	cfg.AuthRateLimit = rateLimit(fc.RateLimits.Auth, RateLimit{Limit: 10, Window: 15 * time.Minute})

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.ShutdownInFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)
	cfg.ShutdownInFlightCheckInterval = parseDuration(fc.Shutdown.InFlightCheckInterval, 100*time.Millisecond)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readYAML decodes path into dst. A missing file leaves dst untouched.
func readYAML(path string, dst interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config file %s: %w", filepath.Base(path), err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// rateLimit applies fc over def. A negative limit in the file disables the
// class; RATE_LIMIT_DISABLED=true disables every class.
func rateLimit(fc rateLimitFile, def RateLimit) RateLimit {
	if disabled, _ := strconv.ParseBool(os.Getenv("RATE_LIMIT_DISABLED")); disabled {
		return RateLimit{}
	}
	rl := def
	switch {
	case fc.Limit < 0:
		return RateLimit{}
	case fc.Limit > 0:
		rl.Limit = fc.Limit
	}
	rl.Window = parseDuration(fc.Window, def.Window)
	return rl
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Zero or negative durations are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unknown backends and non-positive upstream or storage
// timeouts, and applies the JWT secret policy.
func validate(cfg *Config) error {
	if cfg.SWAPITimeout <= 0 {
		return fmt.Errorf("swapi.timeout must be positive")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.CacheOpTimeout <= 0 {
		return fmt.Errorf("cache.op_timeout must be positive")
	}
	if cfg.HistoryOpTimeout <= 0 {
		return fmt.Errorf("history.op_timeout must be positive")
	}
	switch cfg.CacheBackend {
	case "redis", "memcached", "in_memory":
	default:
		return fmt.Errorf("cache.backend must be redis, memcached or in_memory, got %q", cfg.CacheBackend)
	}
	switch cfg.HistoryBackend {
	case "dynamodb", "sqlite":
	default:
		return fmt.Errorf("history.backend must be dynamodb or sqlite, got %q", cfg.HistoryBackend)
	}
	if cfg.JWTSecret == "" {
		if cfg.Environment == "production" {
			return fmt.Errorf("JWT_SECRET required in production (set env or config/secrets.yaml jwt_secret)")
		}
		cfg.JWTSecret = DevJWTSecret
		cfg.JWTSecretDefaulted = true
	}
	return nil
}
