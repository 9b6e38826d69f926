// Package config loads the service configuration with viper.
//
// Sources, lowest precedence first: built-in defaults, an optional YAML
// file, then environment variables prefixed LIBRARY_ with dots replaced by
// underscores (LIBRARY_STORAGE_DRIVER, LIBRARY_LENDING_LOAN_DAYS).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/lending-engine/lending"
)

const envPrefix = "LIBRARY"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverJSONFile = "jsonfile"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Lending LendingConfig `mapstructure:"lending"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`

	// sqlite only
	KeepRevisions int           `mapstructure:"keep_revisions"`
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

// LendingConfig mirrors lending.Policy plus the national ID switch.
type LendingConfig struct {
	LoanDays            int  `mapstructure:"loan_days"`
	MaxOpenLoans        int  `mapstructure:"max_open_loans"`
	MaxRenewals         int  `mapstructure:"max_renewals"`
	RenewalWindowDays   int  `mapstructure:"renewal_window_days"`
	MovieRenewalDays    int  `mapstructure:"movie_renewal_days"`
	AllowWindowOverride bool `mapstructure:"allow_window_override"`
	ValidateNationalIDs bool `mapstructure:"validate_national_ids"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	v.SetDefault("storage.driver", DriverJSONFile)
	v.SetDefault("storage.path", "./data/library.json")
	v.SetDefault("storage.keep_revisions", 500)
	v.SetDefault("storage.prune_interval", time.Hour)

	p := lending.DefaultPolicy()
	v.SetDefault("lending.loan_days", p.LoanDays)
	v.SetDefault("lending.max_open_loans", p.MaxOpenLoans)
	v.SetDefault("lending.max_renewals", p.MaxRenewals)
	v.SetDefault("lending.renewal_window_days", p.RenewalWindowDays)
	v.SetDefault("lending.movie_renewal_days", p.MovieRenewalDays)
	v.SetDefault("lending.allow_window_override", p.AllowWindowOverride)
	v.SetDefault("lending.validate_national_ids", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configPath (skipped when empty) over the defaults and applies
// environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverJSONFile, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.KeepRevisions < 1 {
		return fmt.Errorf("storage.keep_revisions must be at least 1, got %d", c.Storage.KeepRevisions)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	return c.Policy().Validate()
}

// Policy converts the lending section.
func (c *Config) Policy() lending.Policy {
	return lending.Policy{
		LoanDays:            c.Lending.LoanDays,
		MaxOpenLoans:        c.Lending.MaxOpenLoans,
		MaxRenewals:         c.Lending.MaxRenewals,
		RenewalWindowDays:   c.Lending.RenewalWindowDays,
		MovieRenewalDays:    c.Lending.MovieRenewalDays,
		AllowWindowOverride: c.Lending.AllowWindowOverride,
	}
}
