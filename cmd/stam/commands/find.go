package commands

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
)

var (
	findCaseInsensitive bool
	findLimit           int
	findSequence        bool
)

// FindCmd searches a text file for exact fragments
var FindCmd = &cobra.Command{
	Use:   "find FILE FRAGMENT...",
	Short: "Find exact fragments in a text file",
	Long: `Find every non-overlapping occurrence of a fragment.

With several fragments all of them are searched in one pass and each hit
is tagged with the fragment it matched. With --sequence the fragments must
occur in order, separated only by whitespace or punctuation.

Examples:
  stam find notes.txt fox
  stam find notes.txt fox dog -i
  stam find notes.txt quick brown --sequence`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFind,
}

func init() {
	FindCmd.Flags().BoolVarP(&findCaseInsensitive, "ignore-case", "i", false, "Case-insensitive matching")
	FindCmd.Flags().IntVarP(&findLimit, "limit", "l", 0, "Maximum number of results (0 = all)")
	FindCmd.Flags().BoolVar(&findSequence, "sequence", false, "Match the fragments as one ordered sequence")
}

func runFind(cmd *cobra.Command, args []string) error {
	_, r, err := openText(cmd, args[0])
	if err != nil {
		return err
	}
	fragments := args[1:]

	var rows [][]string
	add := func(ts stam.TextSelection, extra ...string) error {
		if findLimit > 0 && len(rows) >= findLimit {
			return nil
		}
		row, err := selectionRow(r, ts, extra...)
		if err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	}

	switch {
	case findSequence:
		sels, err := r.FindTextSequence(fragments, nil, findCaseInsensitive)
		if err != nil {
			return errors.Wrap(err, "sequence search failed")
		}
		for _, ts := range sels {
			if err := add(ts); err != nil {
				return err
			}
		}
		return renderTable(cmd, []string{"Begin", "End", "Text"}, rows)

	case len(fragments) == 1:
		sels, err := r.FindText(fragments[0], text.FindOptions{CaseInsensitive: findCaseInsensitive, Limit: findLimit})
		if err != nil {
			return errors.Wrap(err, "search failed")
		}
		for _, ts := range sels {
			if err := add(ts); err != nil {
				return err
			}
		}
		return renderTable(cmd, []string{"Begin", "End", "Text"}, rows)
	}

	matches, err := r.FindTextMulti(fragments, findCaseInsensitive)
	if err != nil {
		return errors.Wrap(err, "multi-pattern search failed")
	}
	for _, m := range matches {
		if err := add(m.Selection, strconv.Quote(fragments[m.Pattern])); err != nil {
			return err
		}
	}
	return renderTable(cmd, []string{"Begin", "End", "Fragment", "Text"}, rows)
}
