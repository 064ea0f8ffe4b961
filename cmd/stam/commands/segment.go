package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/value"
)

var segmentDelimiters []string

// SegmentCmd prints the minimal segmentation of a text file
var SegmentCmd = &cobra.Command{
	Use:   "segment FILE",
	Short: "Cut a text file into minimal non-overlapping segments",
	Long: `Annotate the parts of a text file for every delimiter, then cut the
text at every boundary of every annotated part. The result tiles the text.

Examples:
  stam segment notes.txt
  stam segment notes.txt -d ' ' -d ', '`,
	Args: cobra.ExactArgs(1),
	RunE: runSegment,
}

func init() {
	SegmentCmd.Flags().StringArrayVarP(&segmentDelimiters, "delimiter", "d", []string{" ", "\n"}, "Delimiter used to annotate parts (repeatable)")
}

func runSegment(cmd *cobra.Command, args []string) error {
	s, r, err := openText(cmd, args[0])
	if err != nil {
		return err
	}

	for _, delim := range segmentDelimiters {
		parts, err := r.Split(delim)
		if err != nil {
			return errors.Wrapf(err, "split on %q failed", delim)
		}
		for _, ts := range parts {
			if ts.Len() == 0 {
				continue
			}
			_, err := s.Annotate(stam.AnnotationBuilder{
				Target: stam.SelectorFor(ts),
				Data:   []stam.DataBuilder{stam.NewData("segment", "delimiter", value.String(delim))},
			})
			if err != nil {
				return errors.Wrap(err, "failed to annotate part")
			}
		}
	}

	segments, err := s.Segmentation(stam.ByHandle(r.Handle())).Items()
	if err != nil {
		return errors.Wrap(err, "segmentation failed")
	}
	rows := make([][]string, 0, len(segments))
	for _, ts := range segments {
		row, err := selectionRow(r, ts)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return renderTable(cmd, []string{"Begin", "End", "Text"}, rows)
}
