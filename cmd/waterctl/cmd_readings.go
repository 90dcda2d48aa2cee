package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/water-quality-server/internal/protocol"
	"github.com/smukkama/water-quality-server/internal/quality"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the latest reading and its status",
	RunE:  runLatest,
}

var readingsCmd = &cobra.Command{
	Use:   "readings",
	Short: "List recent readings",
	RunE:  runReadings,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a reading",
	Long:  `Submit a reading. Every parameter flag is required.`,
	RunE:  runSubmit,
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Ask the server to submit a synthetic reading",
	RunE:  runSimulate,
}

var (
	readingsHours    float64
	submitLocation   string
	simulateLocation string
	submitValues     = map[string]*float64{}
)

func init() {
	rootCmd.AddCommand(latestCmd, readingsCmd, submitCmd, simulateCmd)

	readingsCmd.Flags().Float64Var(&readingsHours, "hours", 24, "how far back to look")

	submitCmd.Flags().StringVar(&submitLocation, "location", "", "sampling location (server default when empty)")
	for _, t := range quality.Thresholds {
		v := new(float64)
		submitValues[t.Parameter] = v
		submitCmd.Flags().Float64Var(v, t.Parameter, 0, t.Label)
		submitCmd.MarkFlagRequired(t.Parameter)
	}

	simulateCmd.Flags().StringVar(&simulateLocation, "location", "", "sampling location")
}

func runLatest(cmd *cobra.Command, args []string) error {
	latest, err := newClient().LatestWaterQuality(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(latest)
	}

	fmt.Printf("Reading %s at %s (%s)\n", latest.ID, latest.Location, latest.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Overall status: %s\n\n", latest.OverallStatus)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tVALUE\tUNIT\tSTATUS")
	for _, t := range quality.Thresholds {
		value, _ := latest.Value(t.Parameter)
		fmt.Fprintf(w, "%s\t%.2f\t%s\t%s\n", t.Label, value, t.Unit, latest.Status[t.Parameter])
	}
	return w.Flush()
}

func runReadings(cmd *cobra.Command, args []string) error {
	readings, err := newClient().RecentReadings(cmd.Context(), readingsHours)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(readings)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tLOCATION\tPH\tTURB\tTEMP\tDO\tCOLI\tECOLI\tCL\tSTATUS")
	for _, r := range readings {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%.1f\t%.2f\t%.0f\t%.0f\t%.2f\t%s\n",
			r.Timestamp.Local().Format("01-02 15:04:05"), r.Location,
			r.PH, r.Turbidity, r.Temperature, r.DissolvedOxygen,
			r.TotalColiform, r.EColi, r.Chlorine,
			quality.Evaluate(r).Worst())
	}
	return w.Flush()
}

func runSubmit(cmd *cobra.Command, args []string) error {
	data := &protocol.ReadingData{
		Location:        submitLocation,
		PH:              submitValues["ph"],
		Turbidity:       submitValues["turbidity"],
		Temperature:     submitValues["temperature"],
		DissolvedOxygen: submitValues["dissolvedOxygen"],
		TotalColiform:   submitValues["totalColiform"],
		EColi:           submitValues["ecoli"],
		Chlorine:        submitValues["chlorine"],
	}

	id, err := newClient().SubmitReading(cmd.Context(), data)
	if err != nil {
		return err
	}
	fmt.Printf("Reading accepted: %s\n", id)
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	id, err := newClient().Simulate(cmd.Context(), simulateLocation)
	if err != nil {
		return err
	}
	fmt.Printf("Simulated reading accepted: %s\n", id)
	return nil
}
