package command

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyPrune int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List or prune stored snapshot revisions (sqlite driver)",
	RunE:  history,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of revisions to list")
	historyCmd.Flags().IntVar(&historyPrune, "prune", 0, "keep only the newest N revisions")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, _ []string) error {
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
	if b.sqlite == nil {
		return errors.New("snapshot history needs storage.driver=sqlite")
	}

	if historyPrune > 0 {
		n, err := b.sqlite.Prune(ctx, historyPrune)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "pruned %d revisions\n", n)
	}

	revs, err := b.sqlite.History(ctx, historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "SEQ\tREVISION\tTAKEN AT\tRESOURCES\tPATRONS\tLOANS\tCONSULTATIONS\tBYTES")
	for _, r := range revs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			r.Seq, r.Revision, r.TakenAt.Format(time.RFC3339), r.Resources, r.Patrons, r.Loans, r.Consultations, r.Bytes)
	}
	return nil
}
