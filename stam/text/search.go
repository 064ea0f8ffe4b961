package text

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// FindOptions controls exact substring search.
type FindOptions struct {
	CaseInsensitive bool
	Limit           int // 0 means unlimited
}

// Find returns every non-overlapping occurrence of fragment within span, in textual order.
func (t *Text) Find(fragment string, within Span, opts FindOptions) ([]Span, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return nil, err
	}
	if fragment == "" {
		return nil, nil
	}
	if opts.CaseInsensitive {
		hay = foldCase(hay)
		fragment = foldCase(fragment)
	}
	return searchAll(hay, fragment, within.Begin, opts.Limit), nil
}

// foldCase lowercases rune by rune, so codepoint positions survive the mapping.
func foldCase(s string) string {
	return strings.Map(unicode.ToLower, s)
}

func searchAll(hay, needle string, base, limit int) []Span {
	var out []Span
	width := utf8.RuneCountInString(needle)
	bytePos, charPos := 0, base
	for {
		i := strings.Index(hay[bytePos:], needle)
		if i < 0 {
			break
		}
		begin := charPos + utf8.RuneCountInString(hay[bytePos:bytePos+i])
		out = append(out, Span{Begin: begin, End: begin + width})
		if limit > 0 && len(out) >= limit {
			break
		}
		bytePos += i + len(needle)
		charPos = begin + width
	}
	return out
}

// Match is a search hit tagged with the index of the pattern that produced it.
type Match struct {
	Pattern int
	Span    Span
}

// FindMulti searches all patterns in one pass, returning leftmost-longest,
// non-overlapping matches in textual order. Case folding is ASCII only.
func (t *Text) FindMulti(patterns []string, within Span, caseInsensitive bool) ([]Match, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return nil, err
	}
	var nonEmpty []string
	var index []int
	for i, p := range patterns {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
			index = append(index, i)
		}
	}
	if len(nonEmpty) == 0 {
		return nil, nil
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: caseInsensitive,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	ac := builder.Build(nonEmpty)

	conv := newByteToChar(hay, within.Begin)
	var out []Match
	for _, m := range ac.FindAll(hay) {
		out = append(out, Match{
			Pattern: index[m.Pattern()],
			Span:    Span{Begin: conv.at(m.Start()), End: conv.at(m.End())},
		})
	}
	return out, nil
}

// DefaultSkip accepts whitespace and punctuation between sequence fragments.
func DefaultSkip(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}

// FindSequence finds fragments in order, with only runes accepted by skip
// between consecutive fragments. It returns one span per fragment for the
// first such sequence, or nil when there is none.
func (t *Text) FindSequence(fragments []string, within Span, skip func(rune) bool, caseInsensitive bool) ([]Span, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return nil, err
	}
	if len(fragments) == 0 {
		return nil, nil
	}
	if skip == nil {
		skip = DefaultSkip
	}
	if caseInsensitive {
		hay = foldCase(hay)
	}
	runes := []rune(hay)
	needles := make([][]rune, len(fragments))
	for i, f := range fragments {
		if f == "" {
			return nil, nil
		}
		if caseInsensitive {
			f = foldCase(f)
		}
		needles[i] = []rune(f)
	}

	for start := 0; start+len(needles[0]) <= len(runes); start++ {
		if !hasPrefixAt(runes, start, needles[0]) {
			continue
		}
		spans := []Span{{Begin: start, End: start + len(needles[0])}}
		pos := spans[0].End
		for _, needle := range needles[1:] {
			found := false
			for pos+len(needle) <= len(runes) {
				if hasPrefixAt(runes, pos, needle) {
					spans = append(spans, Span{Begin: pos, End: pos + len(needle)})
					pos += len(needle)
					found = true
					break
				}
				if !skip(runes[pos]) {
					break
				}
				pos++
			}
			if !found {
				break
			}
		}
		if len(spans) == len(needles) {
			for i := range spans {
				spans[i].Begin += within.Begin
				spans[i].End += within.Begin
			}
			return spans, nil
		}
	}
	return nil, nil
}

func hasPrefixAt(runes []rune, pos int, needle []rune) bool {
	if pos+len(needle) > len(runes) {
		return false
	}
	for i, r := range needle {
		if runes[pos+i] != r {
			return false
		}
	}
	return true
}
