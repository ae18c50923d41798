package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poselab/poselab/internal/format"
	_ "github.com/poselab/poselab/internal/format/all"
	"github.com/poselab/poselab/internal/format/plp"
	"github.com/poselab/poselab/internal/labels"
)

var inspectFull bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the videos, skeleton and tracks of a label file",
	Long: `Display a summary of a pose label file. Native containers are read
through the header-only fast path, so inspecting a large project does not
materialize its frame data. --full forces a complete read and adds frame
and instance counts.

Example:
  poselab inspect session1.plp
  poselab inspect --full predictions.nwb`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFull, "full", false, "read frame data too")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	path := args[0]

	lb, err := headersOrFull(path)
	if err != nil {
		return err
	}

	printSection("Inspect")
	fmt.Printf("File: %s\n\n", path)

	fmt.Printf("Videos (%d):\n", len(lb.Videos))
	for _, v := range lb.Videos {
		fmt.Printf("  - %s (%s)\n", v.Backend.Source(), v.Backend.Kind)
	}

	if sk := lb.Skeleton(); sk != nil {
		fmt.Printf("\nSkeleton: %d nodes, %d edges\n", len(sk.Nodes), len(sk.Edges))
		fmt.Printf("  nodes: %s\n", strings.Join(sk.Nodes, ", "))
	}

	fmt.Printf("\nTracks (%d):\n", len(lb.Tracks))
	for _, t := range lb.Tracks {
		fmt.Printf("  - %s (spawned on frame %d)\n", t.Name, t.SpawnedOn)
	}

	if inspectFull {
		fmt.Printf("\nLabeled frames: %d\n", len(lb.Frames))
		fmt.Printf("Instances: %d\n", len(lb.Instances()))
	}
	return nil
}

// headersOrFull prefers the native header-only fast path; other formats
// get a headers-only read request, which import-only sources ignore.
func headersOrFull(path string) (*labels.Labels, error) {
	if !inspectFull {
		h, err := format.Open(path)
		if err != nil {
			return nil, err
		}
		native := (plp.Adaptor{}).CanRead(h)
		if native {
			defer h.Close()
			return plp.ReadHeaders(h)
		}
		h.Close()
		return format.Read(path, "labels", "*", &format.ReadOptions{HeadersOnly: true})
	}
	return format.Read(path, "labels", "*", nil)
}
