package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/stam/cmd/stam/commands"
	"github.com/teranos/stam/config"
	"github.com/teranos/stam/logger"
)

var rootCmd = &cobra.Command{
	Use:   "stam",
	Short: "stam - stand-off annotation over plain text",
	Long: `stam - Stand-off text annotation.

Loads a plain text file as a resource and runs Text Engine operations
against it: search, regular expressions, splitting, segmentation,
relation tests and alignment.

Examples:
  stam find notes.txt fox -i          # Case-insensitive search
  stam regex notes.txt '\w+ly'        # Regular expression search
  stam relate notes.txt 0:5 6:11      # Test every relation between two spans
  stam align a.txt b.txt              # Align two texts token by token
  stam config show --format yaml      # Show effective configuration`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLog, _ := cmd.Flags().GetBool("json-log")
		if cfg, err := config.Load(); err == nil {
			verbosity = max(verbosity, cfg.Log.Verbosity)
			jsonLog = jsonLog || cfg.Log.JSON
		}
		if err := logger.Initialize(jsonLog, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().Bool("json-log", false, "Emit logs as JSON on stderr")

	rootCmd.AddCommand(commands.FindCmd)
	rootCmd.AddCommand(commands.RegexCmd)
	rootCmd.AddCommand(commands.SplitCmd)
	rootCmd.AddCommand(commands.SegmentCmd)
	rootCmd.AddCommand(commands.RelateCmd)
	rootCmd.AddCommand(commands.AlignCmd)
	rootCmd.AddCommand(commands.ConfigCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
