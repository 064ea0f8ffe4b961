package stam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/errors"
	qtest "github.com/teranos/stam/internal/testing"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

const fox = "the quick brown fox"

var configs = []struct {
	name  string
	tweak func(*stam.Config)
}{
	{"indexed", func(*stam.Config) {}},
	{"scanning", func(c *stam.Config) {
		c.AnnotationAnnotationMap = false
		c.ResourceAnnotationMap = false
		c.DataSetAnnotationMap = false
		c.KeyAnnotationMap = false
		c.DataAnnotationMap = false
		c.TextRelationMap = false
	}},
}

// foxStore annotates every word of fox with a length and tags quick and fox.
func foxStore(t *testing.T, tweak func(*stam.Config)) *stam.AnnotationStore {
	t.Helper()
	s := qtest.NewStore(t, tweak)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "r", Text: fox})
	require.NoError(t, err)
	qtest.Words(t, s, "r")

	for i, n := range []int64{3, 5, 5, 3} {
		id := []string{"w1", "w2", "w3", "w4"}[i]
		require.NoError(t, s.AddAnnotationData(stam.ByID(id), stam.NewData("stats", "len", value.Int(n))))
	}
	require.NoError(t, s.AddAnnotationData(stam.ByID("w2"), stam.NewData("pos", "tag", value.String("ADJ"))))
	require.NoError(t, s.AddAnnotationData(stam.ByID("w4"), stam.NewData("pos", "tag", value.String("NOUN"))))
	return s
}

func annotationIDs(t *testing.T, s *stam.AnnotationStore, c stam.Annotations) []string {
	t.Helper()
	hs, err := c.Items()
	require.NoError(t, err)
	out := []string{}
	for _, h := range hs {
		a, err := s.Annotation(stam.ByHandle(h))
		require.NoError(t, err)
		out = append(out, a.ID())
	}
	return out
}

func spans(t *testing.T, c stam.TextSelections) []text.Span {
	t.Helper()
	sels, err := c.Items()
	require.NoError(t, err)
	out := []text.Span{}
	for _, ts := range sels {
		out = append(out, ts.Span())
	}
	return out
}

func TestTextQueries(t *testing.T) {
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			s := foxStore(t, cfg.tweak)
			r := stam.ByID("r")

			assert.Equal(t, []string{"w2"}, annotationIDs(t, s, s.AnnotationsAt(r, 5)))
			assert.Equal(t, []string{}, annotationIDs(t, s, s.AnnotationsAt(r, 3)), "the space is not annotated")
			assert.Equal(t, []string{"w1", "w2"}, annotationIDs(t, s, s.AnnotationsInRange(r, 0, 9)))

			_, err := s.AnnotationsAt(r, 50).Len()
			assert.True(t, errors.Is(err, errors.ErrRange))

			the := s.TextSelectionsOf(stam.ByID("w1"))
			assert.Equal(t, []text.Span{{Begin: 0, End: 3}}, spans(t, the))

			before := s.RelatedText(relation.Op(relation.Before), the)
			assert.Equal(t, []text.Span{{Begin: 4, End: 9}, {Begin: 10, End: 15}, {Begin: 16, End: 19}}, spans(t, before))

			assert.Equal(t, []text.Span{{Begin: 4, End: 9}}, spans(t, s.RelatedText(relation.Op(relation.Precedes).WithWhitespace(), the)))
			assert.Empty(t, spans(t, s.RelatedText(relation.Op(relation.Precedes), the)))

			assert.Equal(t, []text.Span{{Begin: 4, End: 9}}, spans(t, s.RelatedText(relation.Op(relation.Before).WithLimit(2), the)))

			negated := s.RelatedText(relation.Op(relation.Before).Negated(), s.TextSelectionsOf(stam.ByID("w3")))
			assert.Equal(t, []text.Span{{Begin: 0, End: 3}, {Begin: 4, End: 9}}, spans(t, negated))

			equal := s.RelatedText(relation.Op(relation.Equals), the)
			assert.Equal(t, []text.Span{{Begin: 0, End: 3}}, spans(t, equal), "equality keeps the reference")

			assert.Equal(t, []string{"w2", "w3", "w4"}, annotationIDs(t, s, s.AnnotationsByRelatedText(relation.Op(relation.Before), the)))

			assert.Len(t, spans(t, s.Segmentation(r)), 7)
			assert.Len(t, spans(t, s.TextSelectionsInResource(r)), 4)
			assert.Equal(t, []text.Span{{Begin: 4, End: 9}, {Begin: 10, End: 15}}, spans(t, s.TextSelectionsInRange(r, 4, 15)))
		})
	}
}

func TestFilters(t *testing.T) {
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			s := foxStore(t, cfg.tweak)
			stats, length := stam.ByID("stats"), stam.ByID("len")
			pos, tag := stam.ByID("pos"), stam.ByID("tag")

			n, err := s.Annotations().Filter(stam.WithKey(stats, length)).Len()
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			assert.Equal(t, []string{"w4"}, annotationIDs(t, s, s.Annotations().Filter(stam.WithKeyValue(pos, tag, value.EqualsString("NOUN")))))
			assert.Equal(t, []string{"w2", "w3"}, annotationIDs(t, s, s.Annotations().Filter(
				stam.WithKey(stats, length),
				stam.WithValue(value.GreaterThan(value.Int(3))),
			)))
			assert.Equal(t, []string{"w2", "w4"}, annotationIDs(t, s, s.AnnotationsByKey(pos, tag)))
			assert.Equal(t, []string{"w2"}, annotationIDs(t, s, s.AnnotationsByKey(pos, tag).Filter(stam.WithAnnotation(stam.ByID("w2")))))

			_, err = s.Annotations().Filter(stam.WithValue(value.Any())).Len()
			assert.True(t, errors.IsInvalidRequestError(err), "value filter without key")

			_, err = s.Annotations().Filter(stam.WithKeyValue(pos, tag, value.GreaterThan(value.Int(3)))).Len()
			assert.True(t, errors.Is(err, errors.ErrValueTypeMismatch))

			_, err = s.Annotations().Filter(stam.WithKey(stats, stam.ByID("missing"))).Len()
			assert.True(t, errors.IsNotFoundError(err))

			tagged := s.AnnotationsByKey(pos, tag)
			assert.Equal(t, []string{"w2", "w4"}, annotationIDs(t, s, s.Annotations().Filter(stam.InAnnotations(tagged))))

			brown := s.TextSelectionsOf(stam.ByID("w3"))
			assert.Equal(t, []string{"w4"}, annotationIDs(t, s, s.Annotations().Filter(stam.Related(relation.Op(relation.Before), brown))))
			assert.Equal(t, []string{"w3"}, annotationIDs(t, s, s.Annotations().Filter(stam.InTextSelections(brown))))
			assert.Equal(t, []string{"w1", "w2", "w3", "w4"}, annotationIDs(t, s, s.Annotations().Filter(stam.WithResource(stam.ByID("r")))))

			tagSpans := spans(t, s.TextSelectionsInResource(stam.ByID("r")).Filter(stam.WithKey(pos, tag)))
			assert.Equal(t, []text.Span{{Begin: 4, End: 9}, {Begin: 16, End: 19}}, tagSpans)
		})
	}
}

func TestDataQueries(t *testing.T) {
	for _, cfg := range configs {
		t.Run(cfg.name, func(t *testing.T) {
			s := foxStore(t, cfg.tweak)
			stats, length := stam.ByID("stats"), stam.ByID("len")

			five := s.FindData(stats, length, value.GreaterThanOrEqual(value.Int(5)))
			n, err := five.Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n, "equal values share one datum")

			ref, ok, err := five.First()
			require.NoError(t, err)
			require.True(t, ok)
			count, err := s.DataAnnotationsCount(stam.ByHandle(ref.Set), stam.ByHandle(ref.Data))
			require.NoError(t, err)
			assert.Equal(t, 2, count)

			assert.Equal(t, []string{"w2", "w3"}, annotationIDs(t, s, s.Annotations().Filter(stam.InData(five))))

			all, err := s.FindData(stam.Ref{}, stam.Ref{}, value.Any()).Len()
			require.NoError(t, err)
			assert.Equal(t, 5, all, "word, 3, 5, ADJ, NOUN")

			found, err := s.TestData(stats, length, value.LessThan(value.Int(0)))
			require.NoError(t, err)
			assert.False(t, found)

			found, err = s.TestData(stats, stam.ByID("missing"), value.Any())
			require.NoError(t, err)
			assert.False(t, found, "unknown keys match nothing")

			n, err = s.DataOf(stam.ByID("w2")).Filter(stam.WithDataSet(stam.ByID("pos"))).Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			n, err = s.DataOfAnnotations(s.AnnotationsByKey(stam.ByID("pos"), stam.ByID("tag"))).Len()
			require.NoError(t, err)
			assert.Equal(t, 5, n, "word, 5, ADJ, 3, NOUN")

			n, err = s.DataInSet(stats).Filter(stam.WithValue(value.LessThan(value.Int(4)))).Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n, "value filters apply to data directly")

			n, err = s.DataByKey(stam.ByID("pos"), stam.ByID("tag")).Filter(stam.WithAnnotation(stam.ByID("w4"))).Len()
			require.NoError(t, err)
			assert.Equal(t, 1, n)
		})
	}
}

func TestCollectionOrderAndLimit(t *testing.T) {
	s := qtest.NewStore(t)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "r", Text: "ab cd"})
	require.NoError(t, err)
	data := []stam.DataBuilder{stam.NewData("set", "k", value.Bool(true))}
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{ID: "second", Target: stam.TextSelector(stam.ByID("r"), text.Simple(3, 5)), Data: data})
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{ID: "first", Target: stam.TextSelector(stam.ByID("r"), text.Simple(0, 2)), Data: data})
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{ID: "meta", Target: stam.ResourceSelector(stam.ByID("r")), Data: data})

	assert.Equal(t, []string{"second", "first", "meta"}, annotationIDs(t, s, s.Annotations()))
	assert.Equal(t, []string{"first", "second", "meta"}, annotationIDs(t, s, s.Annotations().Sorted(stam.Textual)), "annotations without text sort last")
	assert.Equal(t, []string{"first"}, annotationIDs(t, s, s.Annotations().Sorted(stam.Textual).Limit(1)))
	assert.Equal(t, []string{"second", "first"}, annotationIDs(t, s, s.Annotations().Limit(2)))
	assert.Equal(t, stam.Textual, s.Annotations().Sorted(stam.Textual).Order())

	ok, err := s.Annotations().Filter(stam.WithKeyValue(stam.ByID("set"), stam.ByID("k"), value.True())).Test()
	require.NoError(t, err)
	assert.True(t, ok)

	_, found, err := s.Annotations().Filter(stam.WithKeyValue(stam.ByID("set"), stam.ByID("k"), value.False())).First()
	require.NoError(t, err)
	assert.False(t, found)

	visited := 0
	require.NoError(t, s.Annotations().Each(func(stam.AnnotationHandle) bool {
		visited++
		return false
	}))
	assert.Equal(t, 1, visited)
}

func TestCollectionsAreLazy(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)
	nouns := s.Annotations().Filter(stam.WithKeyValue(stam.ByID("testdataset"), stam.ByID("pos"), value.EqualsString("noun")))

	n, err := nouns.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		Target: stam.TextSelector(stam.ByID("testres"), text.Simple(0, 5)),
		Data:   []stam.DataBuilder{stam.ExistingData("testdataset", "D1")},
	})
	n, err = nouns.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "evaluation sees the store as it is now")
}

func TestForeignCollectionRejected(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)
	other := qtest.NewHelloWorldStore(t)

	_, err := s.Annotations().Filter(stam.InAnnotations(other.Annotations())).Len()
	assert.True(t, errors.IsInvalidRequestError(err))

	h, err := s.Annotation(stam.ByID("A1"))
	require.NoError(t, err)
	n, err := s.Annotations().Filter(stam.InAnnotations(stam.Of(s, h.Handle()))).Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTestOnUnknownEntities(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)

	tests := []struct {
		name string
		c    stam.Annotations
	}{
		{"source on unknown key", s.AnnotationsByKey(stam.ByID("testdataset"), stam.ByID("nokey"))},
		{"source on unknown dataset", s.AnnotationsByDataSet(stam.ByID("nodataset"))},
		{"filter on unknown key", s.Annotations().Filter(stam.WithKey(stam.ByID("testdataset"), stam.ByID("nokey")))},
		{"filter on unknown resource", s.Annotations().Filter(stam.WithResource(stam.ByID("nores")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, err := tt.c.Test()
			require.NoError(t, err)
			assert.False(t, found)

			_, err = tt.c.Len()
			assert.True(t, errors.IsNotFoundError(err), "materializing still reports the miss")
		})
	}

	found, err := s.Annotations().Filter(stam.WithKey(stam.ByID("testdataset"), stam.ByID("pos"))).Test()
	require.NoError(t, err)
	assert.True(t, found)
}
