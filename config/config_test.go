package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lending-engine/config"
	"github.com/warp/lending-engine/lending"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, config.DriverJSONFile, cfg.Storage.Driver)
	assert.Equal(t, "./data/library.json", cfg.Storage.Path)
	assert.Equal(t, lending.DefaultPolicy(), cfg.Policy())
	assert.True(t, cfg.Lending.ValidateNationalIDs)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("LIBRARY_STORAGE_DRIVER", "sqlite")
	t.Setenv("LIBRARY_STORAGE_PATH", "/var/lib/library/library.db")
	t.Setenv("LIBRARY_LENDING_MAX_OPEN_LOANS", "5")
	t.Setenv("LIBRARY_LENDING_ALLOW_WINDOW_OVERRIDE", "false")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/library/library.db", cfg.Storage.Path)
	assert.Equal(t, 5, cfg.Policy().MaxOpenLoans)
	assert.False(t, cfg.Policy().AllowWindowOverride)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libraryd.yaml")
	doc := `
server:
  addr: ":9090"
  cors_origins: ["https://desk.example.org"]
storage:
  driver: memory
lending:
  loan_days: 14
  renewal_window_days: 5
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://desk.example.org"}, cfg.Server.CORSOrigins)
	assert.Equal(t, config.DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 14, cfg.Policy().LoanDays)
	assert.Equal(t, 5, cfg.Policy().RenewalWindowDays)
	assert.Equal(t, 3, cfg.Policy().MaxRenewals)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		valid  bool
	}{
		{"defaults", func(c *config.Config) {}, true},
		{"memory needs no path", func(c *config.Config) { c.Storage.Driver, c.Storage.Path = config.DriverMemory, "" }, true},
		{"unknown driver", func(c *config.Config) { c.Storage.Driver = "postgres" }, false},
		{"jsonfile without path", func(c *config.Config) { c.Storage.Path = "" }, false},
		{"sqlite keeps nothing", func(c *config.Config) {
			c.Storage.Driver, c.Storage.KeepRevisions = config.DriverSQLite, 0
		}, false},
		{"empty addr", func(c *config.Config) { c.Server.Addr = "" }, false},
		{"zero loan days", func(c *config.Config) { c.Lending.LoanDays = 0 }, false},
		{"no renewals allowed", func(c *config.Config) { c.Lending.MaxRenewals = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()

			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
