package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/stam/errors"
)

var splitStrip string

// SplitCmd cuts a text file at a delimiter
var SplitCmd = &cobra.Command{
	Use:   "split FILE DELIMITER",
	Short: "Split a text file at every occurrence of a delimiter",
	Long: `Split a text file at every occurrence of a delimiter. Empty parts are kept.

Examples:
  stam split notes.txt ' '
  stam split notes.txt ',' --strip ' .'`,
	Args: cobra.ExactArgs(2),
	RunE: runSplit,
}

func init() {
	SplitCmd.Flags().StringVar(&splitStrip, "strip", "", "Characters to strip from both ends of every part")
}

func runSplit(cmd *cobra.Command, args []string) error {
	_, r, err := openText(cmd, args[0])
	if err != nil {
		return err
	}
	parts, err := r.Split(args[1])
	if err != nil {
		return errors.Wrap(err, "split failed")
	}

	rows := make([][]string, 0, len(parts))
	for _, ts := range parts {
		if splitStrip != "" {
			if ts, err = r.Strip(ts, splitStrip); err != nil {
				return errors.Wrap(err, "strip failed")
			}
		}
		row, err := selectionRow(r, ts)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return renderTable(cmd, []string{"Begin", "End", "Text"}, rows)
}
