// Package config loads the federation configuration from TOML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/liliang-cn/federation-go/pkg/store"
)

// Config is the top-level federation configuration.
type Config struct {
	Home     string         `mapstructure:"home"`
	Registry RegistryConfig `mapstructure:"registry"`
	Store    store.Config   `mapstructure:"store"`
	Router   RouterConfig   `mapstructure:"router"`
	Budget   BudgetConfig   `mapstructure:"budget"`
	Health   HealthConfig   `mapstructure:"health"`
	Log      LogConfig      `mapstructure:"log"`
}

// RegistryConfig controls where provider definitions come from.
type RegistryConfig struct {
	// Dir holds per-provider YAML/JSON files, applied in lexical order
	// on top of the built-in defaults.
	Dir         string `mapstructure:"dir"`
	UseDefaults bool   `mapstructure:"use_defaults"`
}

// RouterConfig tunes provider selection.
type RouterConfig struct {
	ExplorationRate  float64 `mapstructure:"exploration_rate"`
	MinSamples       int     `mapstructure:"min_samples"`
	FallbackProvider string  `mapstructure:"fallback_provider"`
	LearningEnabled  bool    `mapstructure:"learning_enabled"`
}

// BudgetConfig sets spend limits for the default tenant. Zero means no
// limit.
type BudgetConfig struct {
	Tenant          string  `mapstructure:"tenant"`
	DailyLimitUSD   float64 `mapstructure:"daily_limit_usd"`
	MonthlyLimitUSD float64 `mapstructure:"monthly_limit_usd"`
}

// HealthConfig tunes the background health monitor and circuit breaker.
type HealthConfig struct {
	Interval         time.Duration `mapstructure:"interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown"`
}

// LogConfig controls log verbosity.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the configuration. When configPath is empty the search order
// is ./federation.toml, then $FEDERATION_HOME/federation.toml. A missing
// default file is not an error; defaults apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	config := &Config{}

	home := os.Getenv("FEDERATION_HOME")
	if home == "" {
		home = "~/.federation"
	}
	home = expandHomePath(home)

	explicit := configPath != ""
	if explicit {
		absPath, _ := filepath.Abs(configPath)
		v.SetConfigFile(absPath)
		home = filepath.Dir(absPath)
	} else {
		if _, err := os.Stat("federation.toml"); err == nil {
			abs, _ := filepath.Abs("federation.toml")
			v.SetConfigFile(abs)
			home = filepath.Dir(abs)
		} else {
			v.SetConfigFile(filepath.Join(home, "federation.toml"))
		}
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		if explicit {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Home == "" {
		config.Home = home
	}
	config.Home = expandHomePath(config.Home)
	config.resolvePaths()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry.use_defaults", true)

	v.SetDefault("store.backend", "sqlite")

	v.SetDefault("router.exploration_rate", 0.05)
	v.SetDefault("router.min_samples", 10)
	v.SetDefault("router.fallback_provider", "ollama")
	v.SetDefault("router.learning_enabled", true)

	v.SetDefault("budget.tenant", "default")

	v.SetDefault("health.interval", "60s")
	v.SetDefault("health.failure_threshold", 5)
	v.SetDefault("health.cooldown", "60s")

	v.SetDefault("log.level", "info")
}

func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("FEDERATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not cover nested keys absent from the file.
	_ = v.BindEnv("home", "FEDERATION_HOME")
	_ = v.BindEnv("registry.dir", "FEDERATION_REGISTRY_DIR")
	_ = v.BindEnv("store.backend", "FEDERATION_STORE_BACKEND")
	_ = v.BindEnv("store.path", "FEDERATION_STORE_PATH")
	_ = v.BindEnv("store.addr", "FEDERATION_STORE_ADDR")
	_ = v.BindEnv("store.password", "FEDERATION_STORE_PASSWORD")
	_ = v.BindEnv("router.exploration_rate", "FEDERATION_ROUTER_EXPLORATION_RATE")
	_ = v.BindEnv("budget.daily_limit_usd", "FEDERATION_BUDGET_DAILY_LIMIT_USD")
	_ = v.BindEnv("budget.monthly_limit_usd", "FEDERATION_BUDGET_MONTHLY_LIMIT_USD")
	_ = v.BindEnv("log.level", "FEDERATION_LOG_LEVEL")
}

// DataDir returns the path to the data directory.
func (c *Config) DataDir() string {
	return filepath.Join(c.Home, "data")
}

// ProvidersDir returns the directory holding provider definition files.
func (c *Config) ProvidersDir() string {
	if c.Registry.Dir != "" {
		return c.Registry.Dir
	}
	return filepath.Join(c.Home, "providers")
}

func (c *Config) resolvePaths() {
	if c.Store.Backend == "sqlite" && c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir(), "federation.db")
	}
	c.Registry.Dir = expandHomePath(c.Registry.Dir)
	c.Store.Path = expandHomePath(c.Store.Path)
	ensureParentDir(c.Store.Path)
}

func ensureParentDir(filePath string) {
	if filePath == "" {
		return
	}

	dir := filepath.Dir(filePath)
	if dir != "." && dir != "/" {
		_ = os.MkdirAll(dir, 0o755)
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "", "sqlite", "redis":
	default:
		return fmt.Errorf("invalid store backend: %s (supported: sqlite, redis)", c.Store.Backend)
	}

	if c.Router.ExplorationRate < 0 || c.Router.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate must be between 0 and 1: %f", c.Router.ExplorationRate)
	}
	if c.Router.MinSamples < 0 {
		return fmt.Errorf("min_samples must be non-negative: %d", c.Router.MinSamples)
	}
	if c.Router.FallbackProvider == "" {
		return fmt.Errorf("fallback_provider cannot be empty")
	}

	if c.Budget.DailyLimitUSD < 0 || c.Budget.MonthlyLimitUSD < 0 {
		return fmt.Errorf("budget limits must be non-negative")
	}

	if c.Health.Interval <= 0 {
		return fmt.Errorf("health interval must be positive: %v", c.Health.Interval)
	}
	if c.Health.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive: %d", c.Health.FailureThreshold)
	}
	if c.Health.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive: %v", c.Health.Cooldown)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	return nil
}

func expandHomePath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}
