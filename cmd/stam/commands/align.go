package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/teranos/stam/config"
	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
)

var (
	alignIgnoreCase bool
	alignMinLength  int
	alignSimple     bool
)

// AlignCmd aligns two text files and records the result as transpositions
var AlignCmd = &cobra.Command{
	Use:   "align SOURCE TARGET",
	Short: "Align two text files token by token",
	Long: `Align the whitespace separated tokens of two text files and record the
matching stretches as a transposition. Alignment settings come from the
[alignment] section of the configuration; flags override them.

Examples:
  stam align draft.txt final.txt
  stam align draft.txt final.txt -i --min-length 10`,
	Args: cobra.ExactArgs(2),
	RunE: runAlign,
}

func init() {
	AlignCmd.Flags().BoolVarP(&alignIgnoreCase, "ignore-case", "i", false, "Match tokens case-insensitively")
	AlignCmd.Flags().IntVar(&alignMinLength, "min-length", 0, "Drop segments shorter than this many codepoints")
	AlignCmd.Flags().BoolVar(&alignSimple, "simple", false, "Keep only the longest segment")
}

func runAlign(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	alignCfg := cfg.AlignmentConfig()
	if cmd.Flags().Changed("ignore-case") {
		alignCfg.CaseSensitive = !alignIgnoreCase
	}
	if cmd.Flags().Changed("min-length") {
		alignCfg.MinimalAlignLength = alignMinLength
	}
	if cmd.Flags().Changed("simple") {
		alignCfg.SimpleOnly = alignSimple
	}

	s, err := openStore(cmd)
	if err != nil {
		return err
	}
	var pair stam.AlignmentPair
	for i, path := range args {
		r, err := addFile(s, path)
		if err != nil {
			return err
		}
		whole, err := r.TextSelection(text.Whole())
		if err != nil {
			return err
		}
		if i == 0 {
			pair.Source = whole
		} else {
			pair.Target = whole
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	handles, err := s.Transpose(ctx, []stam.AlignmentPair{pair}, stam.TokenAligner{}, alignCfg)
	if err != nil {
		return errors.Wrap(err, "alignment failed")
	}

	var rows [][]string
	for _, h := range handles {
		a, err := s.Annotation(stam.ByHandle(h))
		if err != nil {
			return err
		}
		sides := a.Target().Subselectors()
		if len(sides) != 2 {
			return errors.AssertionFailedf("transposition %s has %d sides", a.PublicID(), len(sides))
		}
		source, err := sideText(s, sides[0])
		if err != nil {
			return err
		}
		target, err := sideText(s, sides[1])
		if err != nil {
			return err
		}
		for i := range min(len(source), len(target)) {
			rows = append(rows, []string{a.PublicID(), quote(source[i]), quote(target[i])})
		}
	}
	return renderTable(cmd, []string{"Transposition", "Source", "Target"}, rows)
}

func sideText(s *stam.AnnotationStore, sel stam.Selector) ([]string, error) {
	side, ok := sel.Annotation()
	if !ok {
		return nil, errors.AssertionFailedf("transposition side is a %s selector", sel.Kind())
	}
	return s.AnnotationText(stam.ByHandle(side))
}
