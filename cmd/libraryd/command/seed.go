package command

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/warp/lending-engine/factory"
)

var (
	seedScenario string
	seedReset    bool
)

var seedCmd = &cobra.Command{
	Use:   "seed [seed.json]",
	Short: "Load a seed document or a built-in scenario",
	Long: `Load a seed document or a built-in scenario into the configured
storage. Resources and patrons that already exist are reported as
skipped; loans and consultations are always opened anew and follow the
normal lending rules.

With --reset the library is emptied first.`,
	Args: cobra.MaximumNArgs(1),
	RunE: seed,
}

func init() {
	seedCmd.Flags().StringVar(&seedScenario, "scenario", "", "built-in scenario id instead of a file")
	seedCmd.Flags().BoolVar(&seedReset, "reset", false, "empty the library first")
	rootCmd.AddCommand(seedCmd)
}

func seed(cmd *cobra.Command, args []string) error {
	var doc factory.Seed
	switch {
	case seedScenario != "" && len(args) > 0:
		return errors.New("give either a seed file or --scenario, not both")
	case seedScenario != "":
		s, ok := factory.FindScenario(seedScenario)
		if !ok {
			return fmt.Errorf("unknown scenario %q", seedScenario)
		}
		doc = s.Seed
	case len(args) == 1:
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if doc, err = factory.Parse(raw); err != nil {
			return err
		}
	default:
		return errors.New("a seed file or --scenario is required")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if seedReset {
		if err := b.engine.Reset(ctx, b.state); err != nil {
			return err
		}
	}
	res, err := factory.Apply(ctx, b.engine, b.state, doc)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
