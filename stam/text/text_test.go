package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/errors"
)

func TestCursorResolve(t *testing.T) {
	tests := []struct {
		name    string
		cursor  Cursor
		want    int
		wantErr error
	}{
		{"begin aligned", BeginAligned(6), 6, nil},
		{"begin at end", BeginAligned(11), 11, nil},
		{"end aligned zero", EndAligned(0), 11, nil},
		{"end aligned", EndAligned(-5), 6, nil},
		{"begin beyond", BeginAligned(12), 0, errors.ErrRange},
		{"end aligned beyond", EndAligned(-12), 0, errors.ErrRange},
		{"end aligned positive", EndAligned(1), 0, errors.ErrRange},
		{"negative begin", BeginAligned(-1), 0, errors.ErrRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cursor.Resolve(11)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetResolve(t *testing.T) {
	span, err := Whole().Resolve(11)
	require.NoError(t, err)
	assert.Equal(t, Span{0, 11}, span)

	span, err = NewOffset(BeginAligned(6), EndAligned(0)).Resolve(11)
	require.NoError(t, err)
	assert.Equal(t, Span{6, 11}, span)

	_, err = Simple(8, 3).Resolve(11)
	assert.True(t, errors.Is(err, errors.ErrRange))

	assert.True(t, Simple(1, 2).IsSimple())
	assert.False(t, Whole().IsSimple())
	assert.Equal(t, "(6,-0)", NewOffset(BeginAligned(6), EndAligned(0)).String())
}

func TestSliceHelloWorld(t *testing.T) {
	txt := New("Hello world", 0)

	s, err := txt.Slice(Span{6, 11})
	require.NoError(t, err)
	assert.Equal(t, "world", s)

	_, err = txt.Slice(Span{6, 12})
	assert.True(t, errors.Is(err, errors.ErrRange))
}

func TestByteCharRoundTrip(t *testing.T) {
	inputs := []string{
		"Hello world",
		"Ἐν ἀρχῇ ἦν ὁ λόγος",
		"naïve café – 東京 🎉 done",
		"",
	}
	for _, input := range inputs {
		for _, interval := range []int{1, 3, 100} {
			txt := New(input, interval)
			for p := 0; p <= txt.Len(); p++ {
				b, err := txt.BytePos(p)
				require.NoError(t, err)
				back, err := txt.CharPos(b)
				require.NoError(t, err)
				assert.Equal(t, p, back, "input %q interval %d", input, interval)
			}
		}
	}
}

func TestCharPosAlignment(t *testing.T) {
	txt := New("caf\u00e9", 2)

	pos, err := txt.CharPos(3)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	_, err = txt.CharPos(4)
	assert.True(t, errors.Is(err, errors.ErrAlignment))

	_, err = txt.CharPos(9)
	assert.True(t, errors.Is(err, errors.ErrRange))

	_, err = txt.BytePos(5)
	assert.True(t, errors.Is(err, errors.ErrRange))
}

func TestSpanRelativeAbsolute(t *testing.T) {
	outer := Span{6, 11}

	rel, err := outer.Relative(Span{7, 9})
	require.NoError(t, err)
	assert.Equal(t, Simple(1, 3), rel)

	abs, err := outer.Absolute(rel)
	require.NoError(t, err)
	assert.Equal(t, Span{7, 9}, abs)

	abs, err = outer.Absolute(NewOffset(BeginAligned(0), EndAligned(-1)))
	require.NoError(t, err)
	assert.Equal(t, Span{6, 10}, abs)

	_, err = outer.Relative(Span{0, 7})
	assert.True(t, errors.Is(err, errors.ErrNotEmbedded))
}
