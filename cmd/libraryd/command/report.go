package command

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reportOverdue bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print unit counts per resource, or overdue loans",
	RunE:  report,
}

func init() {
	reportCmd.Flags().BoolVar(&reportOverdue, "overdue", false, "list overdue loans instead")
	rootCmd.AddCommand(reportCmd)
}

func report(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if reportOverdue {
		today := b.engine.Today()
		fmt.Fprintln(tw, "LOAN\tMEMBER\tUNIT\tDUE\tDAYS LATE")
		for _, l := range b.engine.OverdueLoans(b.state, today) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", l.ID, l.MemberNumber, l.Resource, l.DueDate, l.DaysLate(today))
		}
		return nil
	}

	status := b.engine.Status(b.state)
	fmt.Fprintln(tw, "ID\tKIND\tTITLE\tTOTAL\tFREE\tLOAN\tCONSULT\tUSE")
	for _, s := range status.Resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			s.ID, s.Kind, s.Label, s.Total, s.Free, s.OnLoan, s.OnConsultation, s.Utilization.StringFixed(2))
	}
	t := status.Totals
	fmt.Fprintf(tw, "\t\tTOTAL\t%d\t%d\t%d\t%d\t%s\n",
		t.Total, t.Free, t.OnLoan, t.OnConsultation, t.Utilization.StringFixed(2))
	return nil
}
