package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/poselab/poselab/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change the poselab configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set one configuration value and write it back to
~/.poselab/config.yaml.

Keys:
  log_level       logrus level name ("debug", "info", "warn", ...)
  default_format  format name used by convert when nothing else decides

Example:
  poselab config set log_level debug`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	path, err := config.Path()
	if err != nil {
		return err
	}

	printSection("Config")
	fmt.Printf("File: %s\n\n", path)
	fmt.Printf("  log_level:      %s\n", orUnset(cfg.LogLevel))
	fmt.Printf("  default_format: %s\n", orUnset(cfg.DefaultFormat))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	switch key {
	case "log_level":
		cfg.LogLevel = value
	case "default_format":
		cfg.DefaultFormat = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	if err := config.Save(cfg); err != nil {
		return err
	}
	printOK("", fmt.Sprintf("%s = %s", key, value))
	return nil
}

func orUnset(v string) string {
	if v == "" {
		return "(unset)"
	}
	return v
}
