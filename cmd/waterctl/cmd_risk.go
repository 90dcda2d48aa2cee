package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smukkama/water-quality-server/internal/database"
)

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Show the latest disease risk prediction",
	RunE:  runRisk,
}

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "List stations connected over TCP",
	RunE:  runStations,
}

func init() {
	rootCmd.AddCommand(riskCmd, stationsCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
	p, err := newClient().LatestDiseaseRisk(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(p)
	}

	fmt.Printf("Prediction for reading %s at %s\n", p.ReadingID, p.Timestamp.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("Overall risk: %s\n\n", p.OverallRisk)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DISEASE\tLEVEL\tPROBABILITY\tCONFIDENCE")
	rows := []struct {
		name string
		risk database.DiseaseRisk
	}{
		{"Cholera", p.Cholera},
		{"Typhoid", p.Typhoid},
		{"Hepatitis A", p.HepatitisA},
		{"Diarrhea", p.Diarrhea},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n", row.name, row.risk.RiskLevel, row.risk.Probability, row.risk.Confidence)
	}
	return w.Flush()
}

func runStations(cmd *cobra.Command, args []string) error {
	stations, err := newClient().Stations(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(stations)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STATION\tLOCATION\tREMOTE\tCONNECTED\tREADINGS")
	for _, s := range stations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.StationID, s.Location, s.RemoteAddr, s.ConnectedAt.Local().Format("01-02 15:04:05"), s.ReadingsAccepted)
	}
	return w.Flush()
}
