package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam/text"
)

var (
	regexOverlap bool
	regexLimit   int
)

// RegexCmd searches a text file with regular expressions
var RegexCmd = &cobra.Command{
	Use:   "regex FILE PATTERN...",
	Short: "Search a text file with regular expressions",
	Long: `Run one or more regular expressions (Go RE2 syntax) over a text file.

Patterns with capture groups report one row per participating group.
Unless --overlap is given, a match overlapping an earlier one is dropped.

Examples:
  stam regex notes.txt '\bq\w+'
  stam regex notes.txt '(\w+) (\w+)' --limit 3`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRegex,
}

func init() {
	RegexCmd.Flags().BoolVar(&regexOverlap, "overlap", false, "Keep matches that overlap earlier ones")
	RegexCmd.Flags().IntVarP(&regexLimit, "limit", "l", 0, "Maximum number of matches (0 = all)")
}

func runRegex(cmd *cobra.Command, args []string) error {
	exprs, err := text.CompileAll(args[1:])
	if err != nil {
		return errors.Wrap(err, "invalid pattern")
	}
	_, r, err := openText(cmd, args[0])
	if err != nil {
		return err
	}

	results, err := r.FindRegex(exprs, regexOverlap, regexLimit)
	if err != nil {
		return errors.Wrap(err, "regex search failed")
	}

	var rows [][]string
	for _, res := range results {
		for i, ts := range res.Selections {
			group := "0"
			if i < len(res.Groups) {
				group = strconv.Itoa(res.Groups[i])
			}
			row, err := selectionRow(r, ts, strconv.Itoa(res.Expression), group)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
	}
	return renderTable(cmd, []string{"Begin", "End", "Pattern", "Group", "Text"}, rows)
}
