// Package text implements the codepoint arithmetic and search primitives
// over immutable resource text.
//
// All positions are Unicode codepoint offsets, never byte offsets. Byte
// offsets only appear at the UTF-8 conversion boundary (Text.BytePos and
// Text.CharPos).
package text

import (
	"fmt"

	"github.com/teranos/stam/errors"
)

// Cursor is a codepoint position that is either aligned to the begin of the
// text or to its end. An end-aligned cursor holds a value <= 0, where 0
// means one past the last codepoint.
type Cursor struct {
	value      int
	endAligned bool
}

// BeginAligned returns a cursor counting from the start of the text.
func BeginAligned(pos int) Cursor {
	return Cursor{value: pos}
}

// EndAligned returns a cursor counting back from the end of the text.
// Pass 0 for the end itself and negative values for positions before it.
func EndAligned(pos int) Cursor {
	return Cursor{value: pos, endAligned: true}
}

func (c Cursor) IsEndAligned() bool { return c.endAligned }
func (c Cursor) Value() int { return c.value }

// Resolve maps the cursor onto an absolute position in a text of textlen codepoints.
func (c Cursor) Resolve(textlen int) (int, error) {
	if c.endAligned {
		if c.value > 0 {
			return 0, errors.NewRangeError("end-aligned cursor must be <= 0, got %d", c.value)
		}
		pos := textlen + c.value
		if pos < 0 {
			return 0, errors.NewRangeError("end-aligned cursor %d exceeds text length %d", c.value, textlen)
		}
		return pos, nil
	}
	if c.value < 0 || c.value > textlen {
		return 0, errors.NewRangeError("cursor %d out of bounds for text length %d", c.value, textlen)
	}
	return c.value, nil
}

func (c Cursor) String() string {
	if c.endAligned && c.value == 0 {
		return "-0"
	}
	return fmt.Sprintf("%d", c.value)
}

// Offset is a pair of cursors addressing a range of text.
type Offset struct {
	Begin Cursor
	End   Cursor
}

// NewOffset builds an offset from two cursors.
func NewOffset(begin, end Cursor) Offset {
	return Offset{Begin: begin, End: end}
}

// Simple returns an offset of two begin-aligned cursors.
func Simple(begin, end int) Offset {
	return Offset{Begin: BeginAligned(begin), End: BeginAligned(end)}
}

// Whole returns the offset covering an entire text.
func Whole() Offset {
	return Offset{Begin: BeginAligned(0), End: EndAligned(0)}
}

// IsSimple reports whether both cursors are begin-aligned.
func (o Offset) IsSimple() bool {
	return !o.Begin.endAligned && !o.End.endAligned
}

// Resolve maps the offset onto an absolute span in a text of textlen codepoints.
func (o Offset) Resolve(textlen int) (Span, error) {
	begin, err := o.Begin.Resolve(textlen)
	if err != nil {
		return Span{}, err
	}
	end, err := o.End.Resolve(textlen)
	if err != nil {
		return Span{}, err
	}
	if begin > end {
		return Span{}, errors.NewRangeError("offset %s resolves to begin %d after end %d", o, begin, end)
	}
	return Span{Begin: begin, End: end}, nil
}

func (o Offset) String() string {
	return fmt.Sprintf("(%s,%s)", o.Begin, o.End)
}

// Span is an absolute half-open codepoint range [Begin, End).
type Span struct {
	Begin int
	End   int
}

func (s Span) Len() int { return s.End - s.Begin }

// Offset converts the span back into a simple offset.
func (s Span) Offset() Offset { return Simple(s.Begin, s.End) }

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Begin, s.End)
}

// Relative expresses inner as an offset relative to s.
// It fails with ErrNotEmbedded when inner does not lie inside s.
func (s Span) Relative(inner Span) (Offset, error) {
	if inner.Begin < s.Begin || inner.End > s.End {
		return Offset{}, errors.NewNotEmbeddedError("%s is not embedded in %s", inner, s)
	}
	return Simple(inner.Begin-s.Begin, inner.End-s.Begin), nil
}

// Absolute resolves an offset relative to s into an absolute span.
func (s Span) Absolute(rel Offset) (Span, error) {
	local, err := rel.Resolve(s.Len())
	if err != nil {
		return Span{}, err
	}
	return Span{Begin: s.Begin + local.Begin, End: s.Begin + local.End}, nil
}
