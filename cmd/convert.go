package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/poselab/poselab/internal/config"
	"github.com/poselab/poselab/internal/format"
	_ "github.com/poselab/poselab/internal/format/all"
)

var (
	convertFrom string
	convertTo   string
	convertSafe bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input>... <output>",
	Short: "Convert pose label files between formats",
	Long: `Read one or more label files (auto-detecting their format unless
--from is given) and write the result to the output path, whose extension
selects the target format unless --to is given.

With several inputs, each is converted to a separate file named after the
input inside the output directory. --safe continues past files that fail
instead of aborting the batch.

Example:
  poselab convert session1.csv session1.plp
  poselab convert --safe --to json predictions/*.plp out/`,
	Args: cobra.MinimumNArgs(2),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertFrom, "from", "*", "input format name (default: auto-detect)")
	convertCmd.Flags().StringVar(&convertTo, "to", "", "output format name (default: by extension)")
	convertCmd.Flags().BoolVar(&convertSafe, "safe", false, "continue past files that fail to convert")
	rootCmd.AddCommand(convertCmd)
}

func runConvert(_ *cobra.Command, args []string) error {
	inputs, output := args[:len(args)-1], args[len(args)-1]

	to := convertTo
	if to == "" {
		if cfg, err := config.Load(); err == nil && filepath.Ext(output) == "" {
			to = cfg.DefaultFormat
		}
	}

	printSection("Convert")
	failed := 0
	for _, in := range inputs {
		dst := output
		if len(inputs) > 1 {
			base := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
			dst = filepath.Join(output, base+outputExt(to, output))
		}
		if err := convertOne(in, dst, to); err != nil {
			if !convertSafe {
				return err
			}
			printErr(filepath.Base(in), err.Error())
			failed++
			continue
		}
		printOK(filepath.Base(in), "→ "+dst)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(inputs))
	}
	return nil
}

func convertOne(in, out, to string) error {
	read := format.Read
	write := format.Write
	if convertSafe {
		read = format.ReadSafely
		write = format.WriteSafely
	}
	lb, err := read(in, "labels", convertFrom, nil)
	if err != nil {
		return err
	}
	return write(out, "labels", lb, to, nil)
}

// outputExt picks the extension for batch outputs: the target format
// name when given, otherwise the output path's own extension.
func outputExt(to, output string) string {
	if ext := filepath.Ext(output); ext != "" {
		return ext
	}
	if to != "" {
		return "." + to
	}
	return ".plp"
}
