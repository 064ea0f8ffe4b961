package stam_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/errors"
	qtest "github.com/teranos/stam/internal/testing"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
)

func whole(t *testing.T, s *stam.AnnotationStore, id string) stam.TextSelection {
	t.Helper()
	r, err := s.Resource(stam.ByID(id))
	require.NoError(t, err)
	ts, err := r.TextSelection(text.Whole())
	require.NoError(t, err)
	return ts
}

func alignmentStore(t *testing.T, texts map[string]string) *stam.AnnotationStore {
	t.Helper()
	s := qtest.NewStore(t)
	for _, id := range []string{"src", "tgt", "src2", "tgt2"} {
		if txt, ok := texts[id]; ok {
			_, err := s.AddResource(stam.ResourceBuilder{ID: id, Text: txt})
			require.NoError(t, err)
		}
	}
	return s
}

func TestTokenAligner(t *testing.T) {
	ctx := context.Background()
	cfg := stam.DefaultAlignmentConfig()

	res, err := stam.TokenAligner{}.Align(ctx, "the quick brown fox", "a quick brown dog", cfg)
	require.NoError(t, err)
	assert.Equal(t, []stam.Segment{{Source: text.Span{Begin: 4, End: 15}, Target: text.Span{Begin: 2, End: 13}}}, res.Segments)
	assert.Equal(t, 4, res.Errors)

	res, err = stam.TokenAligner{}.Align(ctx, "The Quick", "the quick", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Segments)

	cfg.CaseSensitive = false
	res, err = stam.TokenAligner{}.Align(ctx, "The Quick", "the quick", cfg)
	require.NoError(t, err)
	assert.Len(t, res.Segments, 1)
	assert.Equal(t, 0, res.Errors)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = stam.TokenAligner{}.Align(canceled, "a", "a", cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTranspose(t *testing.T) {
	s := alignmentStore(t, map[string]string{"src": "the quick brown fox", "tgt": "a quick brown dog"})
	pair := stam.AlignmentPair{Source: whole(t, s, "src"), Target: whole(t, s, "tgt")}

	hs, err := s.Transpose(context.Background(), []stam.AlignmentPair{pair}, stam.TokenAligner{}, stam.DefaultAlignmentConfig())
	require.NoError(t, err)
	require.Len(t, hs, 1)

	a, err := s.Annotation(stam.ByHandle(hs[0]))
	require.NoError(t, err)
	assert.Equal(t, "transposition-0", a.ID())
	assert.Equal(t, stam.DirectionalSelectorKind, a.Target().Kind())

	texts, err := s.AnnotationText(stam.ByHandle(hs[0]))
	require.NoError(t, err)
	assert.Equal(t, []string{"quick brown", "quick brown"}, texts)

	texts, err = s.AnnotationText(stam.ByID("transposition-0-target"))
	require.NoError(t, err)
	assert.Equal(t, []string{"quick brown"}, texts)

	n, err := s.KeyAnnotationsCount(stam.ByID(stam.TranspositionSet), stam.ByID(stam.TranspositionSideKey))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	again, err := s.Transpose(context.Background(), []stam.AlignmentPair{pair}, stam.TokenAligner{}, stam.DefaultAlignmentConfig())
	require.NoError(t, err)
	require.Len(t, again, 1)
	b, err := s.Annotation(stam.ByHandle(again[0]))
	require.NoError(t, err)
	assert.Equal(t, "transposition-0.2", b.ID(), "taken ids get a counter")
}

func TestTransposePolicy(t *testing.T) {
	tests := []struct {
		name   string
		tweak  func(*stam.AlignmentConfig)
		source []string
	}{
		{"every segment", func(*stam.AlignmentConfig) {}, []string{"a", "c d"}},
		{"grow", func(c *stam.AlignmentConfig) { c.Grow = true }, []string{"a b c d"}},
		{"simple only", func(c *stam.AlignmentConfig) { c.SimpleOnly = true }, []string{"c d"}},
		{"minimal length", func(c *stam.AlignmentConfig) { c.MinimalAlignLength = 2 }, []string{"c d"}},
		{"too many errors", func(c *stam.AlignmentConfig) { c.MaxErrors = 1 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := alignmentStore(t, map[string]string{"src": "a b c d", "tgt": "a x c d"})
			cfg := stam.DefaultAlignmentConfig()
			tt.tweak(&cfg)

			pair := stam.AlignmentPair{Source: whole(t, s, "src"), Target: whole(t, s, "tgt")}
			hs, err := s.Transpose(context.Background(), []stam.AlignmentPair{pair}, stam.TokenAligner{}, cfg)
			require.NoError(t, err)
			if tt.source == nil {
				assert.Empty(t, hs)
				assert.Equal(t, 0, s.Stats().Annotations)
				return
			}
			require.Len(t, hs, 1)
			texts, err := s.AnnotationText(stam.ByID("transposition-0-source"))
			require.NoError(t, err)
			assert.Equal(t, tt.source, texts)
		})
	}
}

func TestTransposeConcurrentPairs(t *testing.T) {
	s := alignmentStore(t, map[string]string{
		"src": "one two", "tgt": "one two",
		"src2": "three four", "tgt2": "zero three four",
	})
	cfg := stam.DefaultAlignmentConfig()
	cfg.Workers = 2
	cfg.AnnotationIDPrefix = ""

	hs, err := s.Transpose(context.Background(), []stam.AlignmentPair{
		{Source: whole(t, s, "src"), Target: whole(t, s, "tgt")},
		{Source: whole(t, s, "src2"), Target: whole(t, s, "tgt2")},
	}, stam.TokenAligner{}, cfg)
	require.NoError(t, err)
	require.Len(t, hs, 2)

	texts, err := s.AnnotationText(stam.ByHandle(hs[1]))
	require.NoError(t, err)
	assert.Equal(t, []string{"three four", "three four"}, texts)

	a, err := s.Annotation(stam.ByHandle(hs[0]))
	require.NoError(t, err)
	assert.Empty(t, a.ID(), "no prefix means no ids")
}

type failingAligner struct{}

func (failingAligner) Align(context.Context, string, string, stam.AlignmentConfig) (stam.Alignment, error) {
	return stam.Alignment{}, errors.New("aligner exploded")
}

func TestTransposeAlignerError(t *testing.T) {
	s := alignmentStore(t, map[string]string{"src": "x", "tgt": "x"})
	pair := stam.AlignmentPair{Source: whole(t, s, "src"), Target: whole(t, s, "tgt")}

	_, err := s.Transpose(context.Background(), []stam.AlignmentPair{pair}, failingAligner{}, stam.DefaultAlignmentConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aligner exploded")
	assert.Equal(t, 0, s.Stats().Annotations)

	_, err = s.Transpose(context.Background(), []stam.AlignmentPair{pair}, nil, stam.DefaultAlignmentConfig())
	assert.True(t, errors.IsInvalidRequestError(err))
}
