package config

import (
	"fmt"
	"time"

	"github.com/driftwatch/driftwatch/internal/db"

	"github.com/spf13/viper"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// AuthConfig replaces the old process-wide "public beta" toggle with an
// explicit configuration value passed into the request-handling boundary.
type AuthConfig struct {
	RequireAPIKey bool
	APIKeys       []string
}

// DriftConfig carries engine defaults and fallback thresholds for projects
// without their own ThresholdConfig.
type DriftConfig struct {
	BinCount                   int
	DefaultDSIThreshold        float64
	DefaultDriftRatioThreshold float64
}

// RunnerConfig controls the background run processor.
type RunnerConfig struct {
	Interval     time.Duration
	BatchSize    int
	StaleTimeout time.Duration
}

// Config is the full service configuration.
type Config struct {
	Database db.Config
	Server   ServerConfig
	Auth     AuthConfig
	Drift    DriftConfig
	Runner   RunnerConfig
	LogLevel string
}

// Default returns the configuration used when no file or env overrides exist.
func Default() Config {
	return Config{
		Database: db.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Auth: AuthConfig{},
		Drift: DriftConfig{
			BinCount:                   10,
			DefaultDSIThreshold:        50,
			DefaultDriftRatioThreshold: 0.5,
		},
		Runner: RunnerConfig{
			Interval:     15 * time.Second,
			BatchSize:    5,
			StaleTimeout: 30 * time.Minute,
		},
		LogLevel: "info",
	}
}

// Load reads config.yaml from configPath, allowing environment overrides.
func Load(configPath string) (Config, error) {
	// Start with defaults
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()             // allow environment overrides
	v.SetEnvPrefix("DRIFTWATCH") // map env vars like DRIFTWATCH_DATABASE_HOST

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("server.addr")
	v.BindEnv("auth.require_api_key")
	v.BindEnv("log_level")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Just log it, use defaults + env
		fmt.Println("No config.yaml found, using defaults and env vars")
	} else {
		fmt.Println("Loaded config.yaml")
	}

	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("server.addr") {
		cfg.Server.Addr = v.GetString("server.addr")
	}
	if v.IsSet("server.allowed_origins") {
		cfg.Server.AllowedOrigins = v.GetStringSlice("server.allowed_origins")
	}
	if v.IsSet("auth.require_api_key") {
		cfg.Auth.RequireAPIKey = v.GetBool("auth.require_api_key")
	}
	if v.IsSet("auth.api_keys") {
		cfg.Auth.APIKeys = v.GetStringSlice("auth.api_keys")
	}
	if v.IsSet("drift.bin_count") {
		cfg.Drift.BinCount = v.GetInt("drift.bin_count")
	}
	if v.IsSet("drift.default_dsi_threshold") {
		cfg.Drift.DefaultDSIThreshold = v.GetFloat64("drift.default_dsi_threshold")
	}
	if v.IsSet("drift.default_drift_ratio_threshold") {
		cfg.Drift.DefaultDriftRatioThreshold = v.GetFloat64("drift.default_drift_ratio_threshold")
	}
	if v.IsSet("runner.interval") {
		cfg.Runner.Interval = v.GetDuration("runner.interval")
	}
	if v.IsSet("runner.batch_size") {
		cfg.Runner.BatchSize = v.GetInt("runner.batch_size")
	}
	if v.IsSet("runner.stale_timeout") {
		cfg.Runner.StaleTimeout = v.GetDuration("runner.stale_timeout")
	}
	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}

	return cfg, nil
}
