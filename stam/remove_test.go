package stam_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/errors"
	qtest "github.com/teranos/stam/internal/testing"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

// chainStore extends the hello world store with B targeting A1 and C targeting B.
func chainStore(t *testing.T) *stam.AnnotationStore {
	t.Helper()
	s := qtest.NewHelloWorldStore(t)
	note := []stam.DataBuilder{stam.NewData("notes", "comment", value.String("x"))}
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{ID: "B", Target: stam.AnnotationSelector(stam.ByID("A1"), nil), Data: note})
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{ID: "C", Target: stam.AnnotationSelector(stam.ByID("B"), nil), Data: note})
	return s
}

func TestRemoveAnnotationStrictCascades(t *testing.T) {
	s := chainStore(t)

	require.NoError(t, s.RemoveAnnotation(stam.ByID("A1"), stam.Strict))

	for _, id := range []string{"A1", "B", "C"} {
		_, err := s.Annotation(stam.ByID(id))
		assert.True(t, errors.IsNotFoundError(err), "%s should be gone", id)
	}
	stats := s.Stats()
	assert.Equal(t, 0, stats.Annotations)
	assert.Equal(t, 0, stats.TextSelections, "orphaned selections are unregistered")
	assert.Equal(t, 2, stats.Data, "data outlives the annotations")

	count, err := s.DataAnnotationsCount(stam.ByID("testdataset"), stam.ByID("D1"))
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// the id is free again
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		ID:     "A1",
		Target: stam.TextSelector(stam.ByID("testres"), text.Simple(0, 5)),
		Data:   []stam.DataBuilder{stam.ExistingData("testdataset", "D1")},
	})
}

func TestRemoveAnnotationLenientLeavesDangling(t *testing.T) {
	s := chainStore(t)

	require.NoError(t, s.RemoveAnnotation(stam.ByID("A1"), stam.Lenient))

	b, err := s.Annotation(stam.ByID("B"))
	require.NoError(t, err)
	assert.Equal(t, stam.AnnotationSelectorKind, b.Target().Kind())

	_, err = s.AnnotationText(stam.ByID("B"))
	assert.True(t, errors.IsNotFoundError(err))
	assert.True(t, errors.Is(err, errors.ErrDanglingReference))

	n, err := s.AnnotationsTargeting(stam.ByID("B"), stam.DepthOne).Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n, "C still targets B")

	_, err = s.Export()
	assert.True(t, errors.Is(err, errors.ErrDanglingReference))
}

func TestRemoveResourceLenientPrunesComposite(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "other", Text: "xyz"})
	require.NoError(t, err)

	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		ID: "W",
		Target: stam.CompositeSelector(
			stam.TextSelector(stam.ByID("testres"), text.Simple(0, 5)),
			stam.TextSelector(stam.ByID("other"), text.Simple(0, 3)),
		),
		Data: []stam.DataBuilder{stam.NewData("notes", "comment", value.String("split"))},
	})

	require.NoError(t, s.RemoveResource(stam.ByID("other"), stam.Lenient))

	w, err := s.Annotation(stam.ByID("W"))
	require.NoError(t, err)
	target := w.Target()
	assert.Equal(t, stam.CompositeSelectorKind, target.Kind())
	assert.Len(t, target.Subselectors(), 1)

	texts, err := s.AnnotationText(stam.ByID("W"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello"}, texts)

	_, err = s.Resource(stam.ByID("other"))
	assert.True(t, errors.IsNotFoundError(err))
}

func TestRemoveResourceStrict(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "other", Text: "xyz"})
	require.NoError(t, err)
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		ID:     "O",
		Target: stam.TextSelector(stam.ByID("other"), text.Simple(0, 3)),
		Data:   []stam.DataBuilder{stam.ExistingData("testdataset", "D1")},
	})

	require.NoError(t, s.RemoveResource(stam.ByID("testres"), stam.Strict))

	_, err = s.Annotation(stam.ByID("A1"))
	assert.True(t, errors.IsNotFoundError(err))
	_, err = s.Annotation(stam.ByID("O"))
	assert.NoError(t, err)

	count, err := s.KeyAnnotationsCount(stam.ByID("testdataset"), stam.ByID("pos"))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = s.AddResource(stam.ResourceBuilder{ID: "testres", Text: "again"})
	assert.NoError(t, err, "removed resource ids can be reused")
}

func TestRemoveData(t *testing.T) {
	tests := []struct {
		name      string
		mode      stam.RemoveMode
		extraData bool
		survives  bool
	}{
		{"strict removes holder", stam.Strict, true, false},
		{"lenient keeps holder with other data", stam.Lenient, true, true},
		{"lenient removes holder left without data", stam.Lenient, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := qtest.NewHelloWorldStore(t)
			if tt.extraData {
				require.NoError(t, s.AddAnnotationData(stam.ByID("A1"), stam.NewData("testdataset", "number", value.String("singular"))))
			}

			require.NoError(t, s.RemoveData(stam.ByID("testdataset"), stam.ByID("D1"), tt.mode))

			_, err := s.AnnotationData(stam.ByID("testdataset"), stam.ByID("D1"))
			assert.True(t, errors.IsNotFoundError(err))

			a, err := s.Annotation(stam.ByID("A1"))
			if !tt.survives {
				assert.True(t, errors.IsNotFoundError(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, a.DataRefs(), 1)
			texts, err := s.AnnotationText(stam.ByID("A1"))
			require.NoError(t, err)
			assert.Equal(t, []string{"world"}, texts)
		})
	}
}

func TestRemoveKeyAndDataSet(t *testing.T) {
	t.Run("key", func(t *testing.T) {
		s := qtest.NewHelloWorldStore(t)
		require.NoError(t, s.RemoveKey(stam.ByID("testdataset"), stam.ByID("pos"), stam.Strict))

		_, err := s.Key(stam.ByID("testdataset"), stam.ByID("pos"))
		assert.True(t, errors.IsNotFoundError(err))
		_, err = s.AnnotationData(stam.ByID("testdataset"), stam.ByID("D1"))
		assert.True(t, errors.IsNotFoundError(err))
		assert.Equal(t, 0, s.Stats().Annotations)
	})

	t.Run("dataset", func(t *testing.T) {
		s := qtest.NewHelloWorldStore(t)
		qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
			ID:     "M",
			Target: stam.DataSetSelector(stam.ByID("testdataset")),
			Data:   []stam.DataBuilder{stam.NewData("notes", "comment", value.String("about the set"))},
		})

		require.NoError(t, s.RemoveDataSet(stam.ByID("testdataset"), stam.Strict))

		_, err := s.DataSet(stam.ByID("testdataset"))
		assert.True(t, errors.IsNotFoundError(err))
		assert.Equal(t, 0, s.Stats().Annotations, "data holders and metadata annotations go")

		_, err = s.AddDataSet("testdataset")
		assert.NoError(t, err)
	})
}

func TestRemoveUnknown(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)

	assert.True(t, errors.IsNotFoundError(s.RemoveAnnotation(stam.ByID("nope"), stam.Strict)))
	assert.True(t, errors.IsNotFoundError(s.RemoveResource(stam.ByID("nope"), stam.Strict)))
	assert.True(t, errors.IsNotFoundError(s.RemoveDataSet(stam.ByID("nope"), stam.Strict)))
	assert.True(t, errors.IsNotFoundError(s.RemoveKey(stam.ByID("testdataset"), stam.ByID("nope"), stam.Strict)))
	assert.True(t, errors.IsNotFoundError(s.RemoveData(stam.ByID("testdataset"), stam.ByID("nope"), stam.Strict)))

	require.NoError(t, s.RemoveAnnotation(stam.ByID("A1"), stam.Strict))
	assert.True(t, errors.IsNotFoundError(s.RemoveAnnotation(stam.ByID("A1"), stam.Strict)), "removal is not repeatable")
}

func TestRemovalReleasesSelections(t *testing.T) {
	for _, positional := range []bool{true, false} {
		t.Run(map[bool]string{true: "with position index", false: "without position index"}[positional], func(t *testing.T) {
			s := qtest.NewHelloWorldStore(t, func(c *stam.Config) { c.TextRelationMap = positional })
			qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
				ID:     "A2",
				Target: stam.TextSelector(stam.ByID("testres"), text.Simple(6, 11)),
				Data:   []stam.DataBuilder{stam.NewData("testdataset", "pos", value.String("noun"))},
			})
			bound := func() bool {
				t.Helper()
				found, err := s.FindText(stam.ByID("testres"), "world", text.FindOptions{}).Items()
				require.NoError(t, err)
				require.Len(t, found, 1)
				_, ok := found[0].Handle()
				return ok
			}

			require.NoError(t, s.RemoveAnnotation(stam.ByID("A1"), stam.Strict))
			assert.True(t, bound(), "A2 still targets the selection")
			assert.Equal(t, 1, s.Stats().TextSelections)

			require.NoError(t, s.RemoveAnnotation(stam.ByID("A2"), stam.Strict))
			assert.False(t, bound())
			assert.Equal(t, 0, s.Stats().Annotations)
			assert.Equal(t, 0, s.Stats().TextSelections)
		})
	}
}
