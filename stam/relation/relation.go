// Package relation implements the spatial operator algebra over text spans.
//
// An Operator decides whether a reference set A stands in a relation to a
// candidate set B. In any mode some pair must satisfy the base relation; in
// all mode every member of A must satisfy it against every member of B, and
// the ordering relations compare the extremal members of both sets.
package relation

import (
	"fmt"
	"strings"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam/text"
)

// Kind is a base relation between two spans.
type Kind uint8

const (
	Equals Kind = iota
	Overlaps
	Embeds
	Embedded
	Before
	After
	Precedes
	Succeeds
	SameBegin
	SameEnd
)

var kindNames = [...]string{
	Equals:    "equals",
	Overlaps:  "overlaps",
	Embeds:    "embeds",
	Embedded:  "embedded",
	Before:    "before",
	After:     "after",
	Precedes:  "precedes",
	Succeeds:  "succeeds",
	SameBegin: "samebegin",
	SameEnd:   "sameend",
}

// Kinds lists every base relation in declaration order.
func Kinds() []Kind {
	return []Kind{Equals, Overlaps, Embeds, Embedded, Before, After, Precedes, Succeeds, SameBegin, SameEnd}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind resolves a relation name such as "embeds" or "SAMEBEGIN".
func ParseKind(name string) (Kind, error) {
	lower := strings.ToLower(name)
	for k, n := range kindNames {
		if n == lower {
			return Kind(k), nil
		}
	}
	return 0, errors.NewInvalidRequestError("unknown relation %q", name)
}

// Mirror returns the relation that holds for (y, x) whenever k holds for (x, y).
func (k Kind) Mirror() Kind {
	switch k {
	case Embeds:
		return Embedded
	case Embedded:
		return Embeds
	case Before:
		return After
	case After:
		return Before
	case Precedes:
		return Succeeds
	case Succeeds:
		return Precedes
	default:
		return k
	}
}

// Ordered reports whether the relation depends on left-to-right order.
func (k Kind) Ordered() bool {
	switch k {
	case Before, After, Precedes, Succeeds:
		return true
	}
	return false
}

// Gap answers whether the text between two adjacent spans is only whitespace.
// *text.Text satisfies it.
type Gap interface {
	OnlyWhitespace(span text.Span) bool
}

// Operator is a base relation with its set semantics.
type Operator struct {
	Kind   Kind
	All    bool
	Negate bool
	// AllowWhitespace lets precedes and succeeds skip a whitespace-only gap.
	AllowWhitespace bool
	// Limit bounds, in codepoints, how far order-sensitive relations look.
	// Zero means unlimited.
	Limit int
}

// Op returns an any-mode operator of kind k.
func Op(k Kind) Operator { return Operator{Kind: k} }

// WithAll switches the operator to all mode.
func (o Operator) WithAll() Operator {
	o.All = true
	return o
}

// Negated inverts the outcome of the operator.
func (o Operator) Negated() Operator {
	o.Negate = !o.Negate
	return o
}

func (o Operator) WithWhitespace() Operator {
	o.AllowWhitespace = true
	return o
}

func (o Operator) WithLimit(n int) Operator {
	o.Limit = n
	return o
}

func (o Operator) String() string {
	var b strings.Builder
	if o.Negate {
		b.WriteString("not ")
	}
	b.WriteString(o.Kind.String())
	if o.All {
		b.WriteString(" all")
	}
	if o.AllowWhitespace {
		b.WriteString(" allow_whitespace")
	}
	if o.Limit > 0 {
		fmt.Fprintf(&b, " limit=%d", o.Limit)
	}
	return b.String()
}

// Base tests the base relation of o between two single spans, ignoring set semantics and negation.
func (o Operator) Base(x, y text.Span, gap Gap) bool {
	switch o.Kind {
	case Equals:
		return x.Begin == y.Begin && x.End == y.End
	case Overlaps:
		return x.Begin < y.End && y.Begin < x.End
	case Embeds:
		return x.Begin <= y.Begin && y.End <= x.End
	case Embedded:
		return y.Begin <= x.Begin && x.End <= y.End
	case Before:
		return x.End <= y.Begin && o.within(y.Begin-x.End)
	case After:
		return y.End <= x.Begin && o.within(x.Begin-y.End)
	case Precedes:
		return o.adjacent(x.End, y.Begin, gap)
	case Succeeds:
		return o.adjacent(y.End, x.Begin, gap)
	case SameBegin:
		return x.Begin == y.Begin
	case SameEnd:
		return x.End == y.End
	}
	return false
}

func (o Operator) within(distance int) bool {
	return o.Limit <= 0 || distance <= o.Limit
}

// adjacent reports whether a span ending at end is directly followed by one beginning at begin.
func (o Operator) adjacent(end, begin int, gap Gap) bool {
	if end == begin {
		return true
	}
	if !o.AllowWhitespace || gap == nil || end > begin {
		return false
	}
	if !o.within(begin - end) {
		return false
	}
	return gap.OnlyWhitespace(text.Span{Begin: end, End: begin})
}

// Test decides whether set a stands in relation o to set b.
// Empty sets never satisfy a relation before negation is applied.
func (o Operator) Test(a, b []text.Span, gap Gap) bool {
	var holds bool
	switch {
	case len(a) == 0 || len(b) == 0:
		holds = false
	case o.All:
		holds = o.testAll(a, b, gap)
	default:
		holds = o.testAny(a, b, gap)
	}
	return holds != o.Negate
}

func (o Operator) testAny(a, b []text.Span, gap Gap) bool {
	for _, x := range a {
		for _, y := range b {
			if o.Base(x, y, gap) {
				return true
			}
		}
	}
	return false
}

func (o Operator) testAll(a, b []text.Span, gap Gap) bool {
	switch o.Kind {
	case Before:
		return maxEnd(a) <= minBegin(b) && o.within(minBegin(b)-maxEnd(a))
	case After:
		return maxEnd(b) <= minBegin(a) && o.within(minBegin(a)-maxEnd(b))
	case Precedes:
		return o.adjacent(maxEnd(a), minBegin(b), gap)
	case Succeeds:
		return o.adjacent(maxEnd(b), minBegin(a), gap)
	case SameBegin:
		return minBegin(a) == minBegin(b)
	case SameEnd:
		return maxEnd(a) == maxEnd(b)
	}
	for _, x := range a {
		for _, y := range b {
			if !o.Base(x, y, gap) {
				return false
			}
		}
	}
	return true
}

func minBegin(spans []text.Span) int {
	m := spans[0].Begin
	for _, s := range spans[1:] {
		if s.Begin < m {
			m = s.Begin
		}
	}
	return m
}

func maxEnd(spans []text.Span) int {
	m := spans[0].End
	for _, s := range spans[1:] {
		if s.End > m {
			m = s.End
		}
	}
	return m
}

// Leftmost returns the smallest begin of spans.
func Leftmost(spans []text.Span) int { return minBegin(spans) }

// Rightmost returns the largest end of spans.
func Rightmost(spans []text.Span) int { return maxEnd(spans) }
