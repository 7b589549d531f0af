package config

import (
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"trailgate/internal/domain/ratelimit"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`

	// TrustProxy takes the client address from X-Forwarded-For and friends.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" default:"false"`
}

type MySQLConfig struct {
	Enabled      bool          `yaml:"enabled" default:"false"`
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"3306"`
	DBName       string        `yaml:"db" default:"trailgate"`
	User         string        `yaml:"user" default:"root"`
	Password     string        `yaml:"pass" default:"root"`
	MaxOpenConns int           `yaml:"max_open" default:"10"`
	MaxIdleConns int           `yaml:"max_idle" default:"5"`
	MaxLifetime  time.Duration `yaml:"max_lifetime" default:"1h"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"2s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"pass" default:""`
	DB       int    `yaml:"db" default:"0"`
	Prefix   string `yaml:"prefix" default:"rl:"`
}

type JWTConfig struct {
	Secret    string        `yaml:"secret" default:"change-me-please-change-me-please-32"`
	Issuer    string        `yaml:"issuer" default:"trailgate"`
	ClockSkew time.Duration `yaml:"clock_skew" default:"60s"`
	AdminTTL  time.Duration `yaml:"admin_ttl" default:"12h"`
}

type RateLimitConfig struct {
	// GuardPreset limits every /api/v1 request per client IP.
	GuardPreset   string        `yaml:"guard_preset" default:"api"`
	SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`

	// MaxCustomWindow caps window and block duration of caller supplied rules.
	MaxCustomWindow time.Duration `yaml:"max_custom_window" default:"1h"`

	// ViolationRetention bounds how long audit rows are kept when MySQL is enabled.
	ViolationRetention time.Duration `yaml:"violation_retention" default:"720h"`

	Breaker CircuitBreakerConfig      `yaml:"breaker"`
	Presets map[string]ratelimit.Rule `yaml:"presets"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" default:"1"`
	Interval         time.Duration `yaml:"interval" default:"30s"`
	Timeout          time.Duration `yaml:"timeout" default:"10s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
}

type LogConfig struct {
	LevelStr string `yaml:"level" default:"info"`
}

// PresetTable resolves the configured overrides on top of the built-in presets.
func (c RateLimitConfig) PresetTable() (ratelimit.Table, error) {
	table := ratelimit.DefaultTable()
	for name, rule := range c.Presets {
		p, err := ratelimit.ParsePreset(name)
		if err != nil {
			return nil, err
		}
		if !rule.Enabled() {
			return nil, fmt.Errorf("preset %s: max_requests and window must be positive", p)
		}
		table[p] = rule
	}
	return table, nil
}

// MaxWindow returns the longest window or block among the resolved presets.
func MaxWindow(table ratelimit.Table) time.Duration {
	var longest time.Duration
	for _, p := range ratelimit.Presets {
		r := table.Rule(p)
		longest = max(longest, r.Window, r.BlockDuration)
	}
	return longest
}

func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/local.yaml"
	}
	return Load(path)
}

func New() (*Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, err
	}
	if _, err := ratelimit.ParsePreset(cfg.RateLimit.GuardPreset); err != nil {
		return Config{}, fmt.Errorf("rate_limit.guard_preset: %w", err)
	}
	if cfg.RateLimit.MaxCustomWindow <= 0 {
		return Config{}, fmt.Errorf("rate_limit.max_custom_window must be positive")
	}
	if _, err := cfg.RateLimit.PresetTable(); err != nil {
		return Config{}, fmt.Errorf("rate_limit.presets: %w", err)
	}
	return cfg, nil
}
