// Package command provides the root and sub-commands of libraryd.
// Commands are organized using the cobra library. The root command
// starts the HTTP server; the sub-commands work on the same storage
// without a server.
//
//	./libraryd [-c /path/of/config.yaml]               # start web server
//	./libraryd seed /path/of/seed.json [-c ...]        # load a seed document
//	./libraryd seed --scenario busy-branch [-c ...]
//	./libraryd report [--overdue] [-c ...]             # print catalog status
//	./libraryd check-id 12345678Z                      # validate a national ID
//	./libraryd history [--limit 20] [-c ...]           # sqlite revisions
package command

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/lending-engine/config"
	"github.com/warp/lending-engine/log"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "libraryd",
	Short: "Library lending and consultation service",
	Long: `Library lending and consultation service.

Keeps a catalog of books, magazines and movies, a registry of members
and casual users, and the ledgers of loans and on-premises consultations.
Every change is persisted as a whole-library snapshot through the
configured storage driver (memory, jsonfile or sqlite).

Configuration comes from built-in defaults, the optional -c file, and
LIBRARY_* environment variables, in increasing precedence.`,
	SilenceUsage: true,
	RunE:         serve,
}

// Execute runs the rootCmd which in turn parses CLI arguments and
// flags and runs the most specific cobra command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(fixConfigPath)
	rootCmd.PersistentFlags().StringVarP(
		&cfgPath, "config", "c", "", "config file path",
	)
}

// fixConfigPath falls back to LIBRARY_CONFIG when -c is not given. An
// empty path means defaults and environment only.
func fixConfigPath() {
	if cfgPath != "" {
		return
	}
	cfgPath = os.Getenv("LIBRARY_CONFIG")
}

// loadConfig reads the configuration and sets up logging to stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := log.Setup(os.Stderr, cfg.Log.Format, cfg.Log.Level); err != nil {
		return nil, fmt.Errorf("log setup: %w", err)
	}
	return cfg, nil
}
