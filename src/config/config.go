package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jiaming2012/optionprisma/src/models"
	"github.com/jiaming2012/optionprisma/src/pricing"
)

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type SimulationConfig struct {
	DefaultSimulations  int           `yaml:"default_simulations"`
	MinSimulations      int           `yaml:"min_simulations"`
	MaxSimulations      int           `yaml:"max_simulations"`
	RateFetchDelay      time.Duration `yaml:"rate_fetch_delay"`
	DefaultRiskFreeRate float64       `yaml:"default_risk_free_rate"`
}

func (c SimulationConfig) Limits() models.SimulationLimits {
	return models.SimulationLimits{
		DefaultSimulations: c.DefaultSimulations,
		MinSimulations:     c.MinSimulations,
		MaxSimulations:     c.MaxSimulations,
	}
}

type StorageConfig struct {
	ResultsFile string `yaml:"results_file"`
	QueueSize   int    `yaml:"queue_size"`
}

type CacheConfig struct {
	Enabled         bool          `yaml:"enabled"`
	TTL             time.Duration `yaml:"ttl"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type Config struct {
	App        AppConfig        `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	Simulation SimulationConfig `yaml:"simulation"`
	Storage    StorageConfig    `yaml:"storage"`
	Cache      CacheConfig      `yaml:"cache"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		App: AppConfig{
			Name:    "OptionPrisma",
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Port:            "8000",
			ShutdownTimeout: 10 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Simulation: SimulationConfig{
			DefaultSimulations:  pricing.DefaultNumSimulations,
			MinSimulations:      1_000,
			MaxSimulations:      1_000_000,
			RateFetchDelay:      500 * time.Millisecond,
			DefaultRiskFreeRate: 0.05,
		},
		Storage: StorageConfig{
			ResultsFile: "data/results.json",
			QueueSize:   64,
		},
		Cache: CacheConfig{
			Enabled:         true,
			TTL:             5 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 0,
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "optionprisma",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: Load: failed to read %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: Load: failed to unmarshal %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, fmt.Errorf("config: Load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: Load: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, found := os.LookupEnv(key); found && v != "" {
			*dst = v
		}
	}

	setInt := func(key string, dst *int) error {
		if v, found := os.LookupEnv(key); found && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}

	setFloat := func(key string, dst *float64) error {
		if v, found := os.LookupEnv(key); found && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = f
		}
		return nil
	}

	setBool := func(key string, dst *bool) error {
		if v, found := os.LookupEnv(key); found && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}

	setDuration := func(key string, dst *time.Duration) error {
		if v, found := os.LookupEnv(key); found && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	setString("APP_VERSION", &c.App.Version)
	setString("PORT", &c.Server.Port)
	setString("RESULTS_FILE", &c.Storage.ResultsFile)
	setString("LOG_LEVEL", &c.Logging.Level)
	setString("LOG_FORMAT", &c.Logging.Format)
	setString("LOG_OUTPUT", &c.Logging.Output)
	setString("OTEL_SERVICE_NAME", &c.Telemetry.ServiceName)

	for _, err := range []error{
		setInt("DEFAULT_SIMULATIONS", &c.Simulation.DefaultSimulations),
		setInt("MIN_SIMULATIONS", &c.Simulation.MinSimulations),
		setInt("MAX_SIMULATIONS", &c.Simulation.MaxSimulations),
		setDuration("RATE_FETCH_DELAY", &c.Simulation.RateFetchDelay),
		setFloat("DEFAULT_RISK_FREE_RATE", &c.Simulation.DefaultRiskFreeRate),
		setBool("CACHE_ENABLED", &c.Cache.Enabled),
		setBool("RATE_LIMIT_ENABLED", &c.RateLimit.Enabled),
		setFloat("RATE_LIMIT_RPS", &c.RateLimit.RequestsPerSecond),
		setInt("RATE_LIMIT_BURST", &c.RateLimit.Burst),
		setBool("TELEMETRY_ENABLED", &c.Telemetry.Enabled),
	} {
		if err != nil {
			return err
		}
	}

	return nil
}

func (c Config) Validate() error {
	sim := c.Simulation
	if sim.MinSimulations < 1 {
		return fmt.Errorf("simulation.min_simulations must be at least 1, got %d", sim.MinSimulations)
	}

	if sim.MaxSimulations < sim.MinSimulations {
		return fmt.Errorf("simulation.max_simulations (%d) must not be below min_simulations (%d)", sim.MaxSimulations, sim.MinSimulations)
	}

	if sim.DefaultSimulations < sim.MinSimulations || sim.DefaultSimulations > sim.MaxSimulations {
		return fmt.Errorf("simulation.default_simulations (%d) must be between %d and %d", sim.DefaultSimulations, sim.MinSimulations, sim.MaxSimulations)
	}

	if sim.RateFetchDelay < 0 {
		return fmt.Errorf("simulation.rate_fetch_delay must not be negative")
	}

	if c.Storage.ResultsFile == "" {
		return fmt.Errorf("storage.results_file must be set")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate_limit requires a positive requests_per_second and burst")
	}

	return nil
}
