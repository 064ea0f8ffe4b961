package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/text"
)

var (
	relateWhitespace bool
	relateLimit      int
)

// RelateCmd tests every relation between two spans of a text file
var RelateCmd = &cobra.Command{
	Use:   "relate FILE A B",
	Short: "Test every text relation between two spans",
	Long: `Test every text relation between two spans given as begin:end codepoint
offsets. An empty end means the end of the text, a negative one counts back from it.

Examples:
  stam relate notes.txt 0:5 6:11
  stam relate notes.txt 0:5 8: --whitespace --limit 4`,
	Args: cobra.ExactArgs(3),
	RunE: runRelate,
}

func init() {
	RelateCmd.Flags().BoolVarP(&relateWhitespace, "whitespace", "w", false, "Let precedes/succeeds bridge whitespace")
	RelateCmd.Flags().IntVarP(&relateLimit, "limit", "l", 0, "Maximum distance for before/after and whitespace gaps (0 = unbounded)")
}

func runRelate(cmd *cobra.Command, args []string) error {
	_, r, err := openText(cmd, args[0])
	if err != nil {
		return err
	}
	a, err := parseSpan(args[1], r)
	if err != nil {
		return err
	}
	b, err := parseSpan(args[2], r)
	if err != nil {
		return err
	}

	as, bs := []text.Span{a.Span()}, []text.Span{b.Span()}
	rows := make([][]string, 0, len(relation.Kinds()))
	for _, k := range relation.Kinds() {
		op := relation.Op(k).WithLimit(relateLimit)
		if relateWhitespace {
			op = op.WithWhitespace()
		}
		rows = append(rows, []string{k.String(), verdict(op.Test(as, bs, r.Buffer())), verdict(op.Test(bs, as, r.Buffer()))})
	}
	return renderTable(cmd, []string{"Relation", "A to B", "B to A"}, rows)
}

func verdict(ok bool) string {
	if ok {
		return pterm.Green("yes")
	}
	return pterm.Red("no")
}
