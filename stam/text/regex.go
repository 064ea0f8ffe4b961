package text

import (
	"regexp"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teranos/stam/errors"
)

const regexCacheSize = 256

var regexCache *lru.Cache[string, *regexp.Regexp]

func init() {
	regexCache, _ = lru.New[string, *regexp.Regexp](regexCacheSize)
}

// Compile returns a compiled expression, reusing earlier compilations of the same pattern.
func Compile(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Get(pattern); ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrap(errors.WithHint(errors.ErrInvalidRequest, "check the regular expression syntax"), err.Error())
	}
	regexCache.Add(pattern, re)
	return re, nil
}

// CompileAll compiles every pattern, failing on the first invalid one.
func CompileAll(patterns []string) ([]*regexp.Regexp, error) {
	exprs := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := Compile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "pattern %q", p)
		}
		exprs = append(exprs, re)
	}
	return exprs, nil
}

// RegexMatch is a match of one expression. Expressions without capture groups
// yield the whole match as a single span; expressions with groups yield one
// span per participating group, numbered in Groups.
type RegexMatch struct {
	Expression int
	Spans      []Span
	Groups     []int
}

// Covering returns the span from the first to the last selection of the match.
func (m RegexMatch) Covering() Span {
	out := m.Spans[0]
	for _, s := range m.Spans[1:] {
		if s.Begin < out.Begin {
			out.Begin = s.Begin
		}
		if s.End > out.End {
			out.End = s.End
		}
	}
	return out
}

// FindRegex runs all expressions over span and merges their matches in
// textual order. When allowOverlap is false, a match overlapping an earlier
// kept match is dropped.
func (t *Text) FindRegex(exprs []*regexp.Regexp, within Span, allowOverlap bool, limit int) ([]RegexMatch, error) {
	hay, err := t.Slice(within)
	if err != nil {
		return nil, err
	}

	var all []RegexMatch
	for i, re := range exprs {
		conv := newByteToChar(hay, within.Begin)
		groups := re.NumSubexp()
		for _, loc := range re.FindAllStringSubmatchIndex(hay, -1) {
			m := RegexMatch{Expression: i}
			if groups == 0 {
				m.Spans = []Span{{Begin: conv.at(loc[0]), End: conv.at(loc[1])}}
			} else {
				for g := 1; g <= groups; g++ {
					if loc[2*g] < 0 {
						continue
					}
					m.Spans = append(m.Spans, Span{Begin: conv.at(loc[2*g]), End: conv.at(loc[2*g+1])})
					m.Groups = append(m.Groups, g)
				}
				if len(m.Spans) == 0 {
					continue
				}
			}
			all = append(all, m)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i].Covering(), all[j].Covering()
		if a.Begin != b.Begin {
			return a.Begin < b.Begin
		}
		return a.End > b.End
	})

	var out []RegexMatch
	keptEnd := -1
	for _, m := range all {
		cover := m.Covering()
		if !allowOverlap && keptEnd >= 0 && cover.Begin < keptEnd {
			continue
		}
		out = append(out, m)
		if cover.End > keptEnd {
			keptEnd = cover.End
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
