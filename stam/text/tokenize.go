package text

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split cuts span at every occurrence of delimiter. Empty parts are kept.
func (t *Text) Split(delimiter string, within Span) ([]Span, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return nil, err
	}
	if delimiter == "" {
		return []Span{within}, nil
	}
	width := utf8.RuneCountInString(delimiter)
	var out []Span
	begin := within.Begin
	for _, d := range searchAll(hay, delimiter, within.Begin, 0) {
		out = append(out, Span{Begin: begin, End: d.Begin})
		begin = d.Begin + width
	}
	return append(out, Span{Begin: begin, End: within.End}), nil
}

// Strip shrinks span by removing leading and trailing runes contained in
// chars, or whitespace when chars is empty. A fully stripped span becomes a
// zero-width span at its begin.
func (t *Text) Strip(within Span, chars string) (Span, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return Span{}, err
	}
	strip := unicode.IsSpace
	if chars != "" {
		strip = func(r rune) bool { return strings.ContainsRune(chars, r) }
	}

	out := within
	rest := hay
	for rest != "" {
		r, size := utf8.DecodeRuneInString(rest)
		if !strip(r) {
			break
		}
		rest = rest[size:]
		out.Begin++
	}
	if rest == "" {
		return Span{Begin: within.Begin, End: within.Begin}, nil
	}
	for rest != "" {
		r, size := utf8.DecodeLastRuneInString(rest)
		if !strip(r) {
			break
		}
		rest = rest[:len(rest)-size]
		out.End--
	}
	return out, nil
}

// OnlyWhitespace reports whether span holds nothing but whitespace. An empty span qualifies.
func (t *Text) OnlyWhitespace(span Span) bool {
	s, err := t.Slice(span)
	if err != nil {
		return false
	}
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// Segment cuts span at every boundary strictly inside it, producing the
// minimal contiguous non-overlapping segments that cover span.
func Segment(within Span, boundaries []int) []Span {
	cuts := make([]int, 0, len(boundaries))
	for _, b := range boundaries {
		if b > within.Begin && b < within.End {
			cuts = append(cuts, b)
		}
	}
	sort.Ints(cuts)

	var out []Span
	begin := within.Begin
	for _, c := range cuts {
		if c == begin {
			continue
		}
		out = append(out, Span{Begin: begin, End: c})
		begin = c
	}
	if begin < within.End || len(out) == 0 {
		out = append(out, Span{Begin: begin, End: within.End})
	}
	return out
}
