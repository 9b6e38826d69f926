package command

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/warp/lending-engine/identity"
)

var checkIDCmd = &cobra.Command{
	Use:   "check-id ID...",
	Short: "Validate Spanish national IDs (DNI/NIF and NIE)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  checkID,
}

func init() {
	rootCmd.AddCommand(checkIDCmd)
}

func checkID(cmd *cobra.Command, args []string) error {
	bad := 0
	for _, arg := range args {
		id := identity.Normalize(arg)
		if kind := identity.Classify(id); kind != identity.KindInvalid {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tvalid %s\n", id, kind)
			continue
		}
		bad++
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tinvalid\n", id)
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d ids invalid", bad, len(args))
	}
	return nil
}
