package text

import (
	"sort"
	"unicode/utf8"

	"github.com/teranos/stam/errors"
)

// DefaultMilestoneInterval is the codepoint sampling density used when none is configured.
const DefaultMilestoneInterval = 100

// Text is an immutable UTF-8 buffer with a sampled codepoint-to-byte index.
// Every interval-th codepoint has its byte position recorded, so conversion
// walks at most interval-1 codepoints.
type Text struct {
	s          string
	length     int
	interval   int
	milestones []int
}

// New indexes s. The caller guarantees s is valid UTF-8.
func New(s string, milestoneInterval int) *Text {
	if milestoneInterval <= 0 {
		milestoneInterval = DefaultMilestoneInterval
	}
	t := &Text{s: s, interval: milestoneInterval}
	for i := range s {
		if t.length%milestoneInterval == 0 {
			t.milestones = append(t.milestones, i)
		}
		t.length++
	}
	if len(t.milestones) == 0 {
		t.milestones = []int{0}
	}
	return t
}

func (t *Text) String() string { return t.s }

// Len returns the length of the text in codepoints.
func (t *Text) Len() int { return t.length }

// ByteLen returns the length of the text in bytes.
func (t *Text) ByteLen() int { return len(t.s) }

// MilestoneInterval returns the sampling density the index was built with.
func (t *Text) MilestoneInterval() int { return t.interval }

func (t *Text) ascii() bool { return t.length == len(t.s) }

// Whole returns the span covering the entire text.
func (t *Text) Whole() Span { return Span{Begin: 0, End: t.length} }

// BytePos converts a codepoint position into a byte position.
func (t *Text) BytePos(charpos int) (int, error) {
	if charpos < 0 || charpos > t.length {
		return 0, errors.NewRangeError("position %d out of bounds for text length %d", charpos, t.length)
	}
	if charpos == t.length {
		return len(t.s), nil
	}
	if t.ascii() {
		return charpos, nil
	}
	m := charpos / t.interval
	b := t.milestones[m]
	for remaining := charpos - m*t.interval; remaining > 0; remaining-- {
		_, size := utf8.DecodeRuneInString(t.s[b:])
		b += size
	}
	return b, nil
}

// CharPos converts a byte position into a codepoint position.
// A byte inside a multi-byte codepoint fails with ErrAlignment.
func (t *Text) CharPos(bytepos int) (int, error) {
	if bytepos < 0 || bytepos > len(t.s) {
		return 0, errors.NewRangeError("byte %d out of bounds for text of %d bytes", bytepos, len(t.s))
	}
	if bytepos == len(t.s) {
		return t.length, nil
	}
	if t.ascii() {
		return bytepos, nil
	}
	if !utf8.RuneStart(t.s[bytepos]) {
		return 0, errors.NewAlignmentError(bytepos)
	}
	m := sort.Search(len(t.milestones), func(i int) bool { return t.milestones[i] > bytepos }) - 1
	c := m * t.interval
	for b := t.milestones[m]; b < bytepos; c++ {
		_, size := utf8.DecodeRuneInString(t.s[b:])
		b += size
	}
	return c, nil
}

// Check validates that span lies within the text.
func (t *Text) Check(span Span) error {
	if span.Begin < 0 || span.End > t.length || span.Begin > span.End {
		return errors.NewRangeError("span %s out of bounds for text length %d", span, t.length)
	}
	return nil
}

// Resolve maps an offset onto an absolute span of this text.
func (t *Text) Resolve(o Offset) (Span, error) {
	return o.Resolve(t.length)
}

// Slice returns the text of span.
func (t *Text) Slice(span Span) (string, error) {
	if err := t.Check(span); err != nil {
		return "", err
	}
	begin, err := t.BytePos(span.Begin)
	if err != nil {
		return "", err
	}
	end, err := t.BytePos(span.End)
	if err != nil {
		return "", err
	}
	return t.s[begin:end], nil
}

// byteToChar converts byte offsets within a region into absolute codepoint
// positions. Lookups in increasing order are amortized linear.
type byteToChar struct {
	s        string
	base     int
	lastByte int
	lastChar int
}

func newByteToChar(s string, base int) *byteToChar {
	return &byteToChar{s: s, base: base}
}

func (c *byteToChar) at(b int) int {
	if b < c.lastByte {
		c.lastByte, c.lastChar = 0, 0
	}
	c.lastChar += utf8.RuneCountInString(c.s[c.lastByte:b])
	c.lastByte = b
	return c.base + c.lastChar
}
