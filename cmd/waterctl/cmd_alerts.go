package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List unacknowledged alerts, newest first",
	RunE:  runAlerts,
}

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAck,
}

var (
	alertsPage     int
	alertsPageSize int
)

func init() {
	rootCmd.AddCommand(alertsCmd, ackCmd)

	alertsCmd.Flags().IntVar(&alertsPage, "page", 1, "page number")
	alertsCmd.Flags().IntVar(&alertsPageSize, "page-size", 10, "alerts per page (max 100)")
}

func runAlerts(cmd *cobra.Command, args []string) error {
	page, err := newClient().ActiveAlerts(cmd.Context(), alertsPage, alertsPageSize)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(page)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tSEVERITY\tTYPE\tMESSAGE")
	for _, a := range page.Alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			a.ID, a.Timestamp.Local().Format("01-02 15:04:05"), a.Severity, a.Type, a.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	p := page.Pagination
	fmt.Printf("\nPage %d of %d (%d unacknowledged)\n", p.Page, p.TotalPages, p.TotalCount)
	return nil
}

func runAck(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid alert id %q: %w", args[0], err)
	}

	if err := newClient().AcknowledgeAlert(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Alert %s acknowledged\n", id)
	return nil
}
