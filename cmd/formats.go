package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poselab/poselab/internal/format"
	_ "github.com/poselab/poselab/internal/format/all"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List registered format adaptors",
	Long: `List every registered adaptor with its capabilities and the file
dialog filter it contributes, in registry probe order.`,
	Args: cobra.NoArgs,
	RunE: runFormats,
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}

func runFormats(_ *cobra.Command, _ []string) error {
	d := format.MakeDispatcher(format.LabelsObject)

	printSection("Formats")
	for _, a := range d.Adaptors(format.LabelsObject) {
		caps := ""
		switch {
		case a.DoesRead() && a.DoesWrite():
			caps = "read/write"
		case a.DoesRead():
			caps = "read-only"
		case a.DoesWrite():
			caps = "write-only"
		}
		fmt.Printf("  %-14s %-10s %s\n", a.Name(), caps, format.ExtOptions(a))
	}
	return nil
}
