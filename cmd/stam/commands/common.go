package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/stam/config"
	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
)

// openStore builds a store from the loaded configuration. -vv turns on
// mutation logging.
func openStore(cmd *cobra.Command) (*stam.AnnotationStore, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithHint(err, "run 'stam config validate' for details")
	}
	storeCfg := cfg.StoreConfig()
	if verbosity, _ := cmd.Flags().GetCount("verbose"); verbosity >= logger.VerbosityDebug {
		storeCfg.Debug = true
	}
	return stam.NewStore(storeCfg, stam.WithLogger(logger.ComponentLogger("store"))), nil
}

// addFile loads path as a resource named after its base name.
func addFile(s *stam.AnnotationStore, path string) (*stam.TextResource, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	h, err := s.AddResource(stam.ResourceBuilder{ID: filepath.Base(path), Filename: path, Text: string(content)})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to add %s", path)
	}
	return s.Resource(stam.ByHandle(h))
}

// openText is openStore plus addFile for single-file commands.
func openText(cmd *cobra.Command, path string) (*stam.AnnotationStore, *stam.TextResource, error) {
	s, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	r, err := addFile(s, path)
	if err != nil {
		return nil, nil, err
	}
	return s, r, nil
}

// parseSpan reads "begin:end" in codepoints. An empty end means the end of
// the text and a negative end counts back from it.
func parseSpan(arg string, r *stam.TextResource) (stam.TextSelection, error) {
	begin, end, ok := strings.Cut(arg, ":")
	if !ok {
		return stam.TextSelection{}, errors.NewInvalidRequestError("span %q is not begin:end", arg)
	}
	b, err := strconv.Atoi(begin)
	if err != nil {
		return stam.TextSelection{}, errors.NewInvalidRequestError("span %q: bad begin", arg)
	}
	if end == "" {
		return r.TextSelection(text.NewOffset(text.BeginAligned(b), text.EndAligned(0)))
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return stam.TextSelection{}, errors.NewInvalidRequestError("span %q: bad end", arg)
	}
	if e < 0 {
		return r.TextSelection(text.NewOffset(text.BeginAligned(b), text.EndAligned(e)))
	}
	return r.TextSelection(text.Simple(b, e))
}

// quote renders selected text on one line.
func quote(s string) string {
	return strconv.Quote(s)
}

func selectionRow(r *stam.TextResource, ts stam.TextSelection, extra ...string) ([]string, error) {
	str, err := r.TextOf(ts)
	if err != nil {
		return nil, err
	}
	row := append([]string{strconv.Itoa(ts.Begin), strconv.Itoa(ts.End)}, extra...)
	return append(row, quote(str)), nil
}

// renderTable writes a pterm table with a header row to the command output.
func renderTable(cmd *cobra.Command, header []string, rows [][]string) error {
	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), pterm.Gray("no results"))
		return nil
	}
	data := append(pterm.TableData{header}, rows...)
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return errors.Wrap(err, "failed to render table")
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
