package stam_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/stam/errors"
	qtest "github.com/teranos/stam/internal/testing"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

// mixedStore holds identified and anonymous entities side by side.
func mixedStore(t *testing.T) *stam.AnnotationStore {
	t.Helper()
	s := qtest.NewHelloWorldStore(t)
	r, err := s.AddResource(stam.ResourceBuilder{Text: "second text"})
	require.NoError(t, err)
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		Target: stam.TextSelector(stam.ByHandle(r), text.Simple(0, 6)),
		Data:   []stam.DataBuilder{stam.ExistingData("testdataset", "D1")},
	})
	_, err = s.AddSubStore(stam.SubStoreBuilder{ID: "part", Filename: "part.json"})
	require.NoError(t, err)
	require.NoError(t, s.AddToSubStore(stam.ByID("part"), stam.SubStoreMembers{
		Resources:   []stam.Ref{stam.ByID("testres")},
		Annotations: []stam.Ref{stam.ByID("A1")},
	}))
	return s
}

func TestExport(t *testing.T) {
	s := mixedStore(t)

	b, err := s.Export()
	require.NoError(t, err)
	assert.Equal(t, "test", b.ID)

	require.Len(t, b.Resources, 2)
	assert.Equal(t, "testres", b.Resources[0].ID)
	assert.Equal(t, "!R1", b.Resources[1].ID)

	require.Len(t, b.Annotations, 2)
	assert.Equal(t, "A1", b.Annotations[0].ID)
	assert.Equal(t, "!A1", b.Annotations[1].ID)
	assert.Equal(t, stam.TextSelector(stam.ByID("!R1"), text.Simple(0, 6)), b.Annotations[1].Target)

	require.Len(t, b.SubStores, 1)
	assert.Equal(t, []string{"testres"}, b.SubStores[0].Resources)
	assert.Equal(t, []string{"A1"}, b.SubStores[0].Annotations)
}

func TestBulkLoadRoundTrip(t *testing.T) {
	src := mixedStore(t)
	b, err := src.Export()
	require.NoError(t, err)

	dst := qtest.NewStore(t)
	res, err := dst.BulkLoad(b)
	require.NoError(t, err)
	assert.Len(t, res.Annotations, 2)
	assert.Equal(t, src.Stats(), dst.Stats())

	texts, err := dst.AnnotationText(stam.ByID("A1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"world"}, texts)

	anon, err := dst.Annotation(stam.ByHandle(res.Annotations[1]))
	require.NoError(t, err)
	assert.Empty(t, anon.ID(), "temporary ids are stripped")

	n, err := dst.SubStoreAnnotations(stam.ByID("part")).Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := dst.DataAnnotationsCount(stam.ByID("testdataset"), stam.ByID("D1"))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestBulkLoadTempIDsAliasNewHandles(t *testing.T) {
	b, err := mixedStore(t).Export()
	require.NoError(t, err)

	dst := qtest.NewStore(t)
	for _, txt := range []string{"zero", "one"} {
		_, err := dst.AddResource(stam.ResourceBuilder{Text: txt})
		require.NoError(t, err)
	}

	res, err := dst.BulkLoad(b)
	require.NoError(t, err)
	texts, err := dst.AnnotationText(stam.ByHandle(res.Annotations[1]))
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, texts, "!R1 of the batch is not resource 1 of the store")
}

func TestBulkLoadKeepsTempIDs(t *testing.T) {
	b, err := mixedStore(t).Export()
	require.NoError(t, err)

	dst := qtest.NewStore(t, func(c *stam.Config) { c.StripTempIDs = false })
	_, err = dst.BulkLoad(b)
	require.NoError(t, err)

	a, err := dst.Annotation(stam.ByID("!A1"))
	require.NoError(t, err)
	assert.Equal(t, "!A1", a.ID())
}

func TestBulkLoadGeneratesIDs(t *testing.T) {
	dst := qtest.NewStore(t, func(c *stam.Config) { c.GenerateIDs = true })
	res, err := dst.BulkLoad(stam.Batch{
		Resources: []stam.ResourceBuilder{{Text: "abc"}},
		Annotations: []stam.AnnotationBuilder{{
			Target: stam.TextSelector(stam.ByID("!R0"), text.Simple(0, 1)),
			Data:   []stam.DataBuilder{stam.NewData("set", "k", value.Int(1))},
		}},
	})
	require.NoError(t, err)

	a, err := dst.Annotation(stam.ByHandle(res.Annotations[0]))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a.ID(), "A"))
	assert.Len(t, a.ID(), 22)

	r, err := dst.Resource(stam.ByHandle(res.Resources[0]))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(r.ID(), "R"))

	again, err := dst.Annotation(stam.ByID(a.ID()))
	require.NoError(t, err)
	assert.Equal(t, a.Handle(), again.Handle())

	byID, err := dst.Resource(stam.ByID(r.ID()))
	require.NoError(t, err)
	assert.Same(t, r, byID)
}

func TestBulkLoadGeneratesDataSetIDs(t *testing.T) {
	dst := qtest.NewStore(t, func(c *stam.Config) { c.GenerateIDs = true })
	res, err := dst.BulkLoad(stam.Batch{
		DataSets: []stam.DataSetBuilder{{Keys: []string{"k"}, Data: []stam.DataBuilder{{Key: "k", Value: value.Int(1)}}}},
	})
	require.NoError(t, err)

	set, err := dst.DataSet(stam.ByHandle(res.DataSets[0]))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(set.ID(), "S"))

	byID, err := dst.DataSet(stam.ByID(set.ID()))
	require.NoError(t, err)
	assert.Same(t, set, byID)

	data, err := dst.DataInSet(stam.ByID(set.ID())).Items()
	require.NoError(t, err)
	require.Len(t, data, 1)
	d, err := dst.AnnotationData(stam.ByID(set.ID()), stam.ByHandle(data[0].Data))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(d.ID(), "D"))

	same, err := dst.AnnotationData(stam.ByID(set.ID()), stam.ByID(d.ID()))
	require.NoError(t, err)
	assert.Equal(t, d.Ref(), same.Ref())
}

func TestBulkLoadIsAtomic(t *testing.T) {
	s := qtest.NewHelloWorldStore(t)
	before := s.Stats()

	_, err := s.BulkLoad(stam.Batch{
		Resources: []stam.ResourceBuilder{{ID: "fresh", Text: "fresh text"}},
		DataSets: []stam.DataSetBuilder{{
			ID:   "newset",
			Data: []stam.DataBuilder{{ID: "N1", Key: "k", Value: value.String("v")}},
		}},
		Annotations: []stam.AnnotationBuilder{
			{
				ID:     "ok",
				Target: stam.TextSelector(stam.ByID("testres"), text.Simple(0, 5)),
				Data: []stam.DataBuilder{
					{ID: "bound", DataSet: stam.ByID("testdataset"), Key: "pos", Value: value.String("interjection")},
				},
			},
			{
				ID:     "broken",
				Target: stam.ResourceSelector(stam.ByID("missing")),
				Data:   []stam.DataBuilder{stam.ExistingData("newset", "N1")},
			},
		},
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.Equal(t, before, s.Stats())

	for _, id := range []string{"ok", "broken"} {
		_, err := s.Annotation(stam.ByID(id))
		assert.True(t, errors.IsNotFoundError(err))
	}
	_, err = s.DataSet(stam.ByID("newset"))
	assert.True(t, errors.IsNotFoundError(err))

	_, err = s.AddResource(stam.ResourceBuilder{ID: "fresh", Text: "again"})
	assert.NoError(t, err, "ids of rolled back entities are free")

	texts, err := s.AnnotationText(stam.ByID("A1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"world"}, texts)
	n, err := s.AnnotationsAt(stam.ByID("testres"), 1).Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n, "selections of rolled back annotations are gone")
}

func TestSubStores(t *testing.T) {
	s := mixedStore(t)

	_, err := s.AddSubStore(stam.SubStoreBuilder{ID: "part"})
	assert.True(t, errors.Is(err, errors.ErrDuplicateID))

	child, err := s.AddSubStore(stam.SubStoreBuilder{ID: "child", Parent: stam.ByID("part")})
	require.NoError(t, err)
	sub, err := s.SubStore(stam.ByHandle(child))
	require.NoError(t, err)
	parent, ok := sub.Parent()
	require.True(t, ok)
	assert.Equal(t, "part", s.SubStores()[parent].ID())

	err = s.AddToSubStore(stam.ByID("child"), stam.SubStoreMembers{
		DataSets:    []stam.Ref{stam.ByID("testdataset")},
		Annotations: []stam.Ref{stam.ByID("nope")},
	})
	assert.True(t, errors.IsNotFoundError(err))
	sub, err = s.SubStore(stam.ByID("child"))
	require.NoError(t, err)
	assert.Empty(t, sub.DataSets(), "failed assignment adds nothing")

	require.NoError(t, s.RemoveAnnotation(stam.ByID("A1"), stam.Strict))
	require.NoError(t, s.RemoveResource(stam.ByID("testres"), stam.Strict))
	part, err := s.SubStore(stam.ByID("part"))
	require.NoError(t, err)
	assert.Empty(t, part.Annotations())
	assert.Empty(t, part.Resources())
	assert.Equal(t, "part.json", part.Filename())
}
