package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/stam/errors"
	qtest "github.com/teranos/stam/internal/testing"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/value"
)

// foxStore holds "the quick brown fox" with words w1..w4, a length on
// every word, tags on quick and fox and a note on quick.
func foxStore(t *testing.T) *stam.AnnotationStore {
	t.Helper()
	s := qtest.NewStore(t)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "r", Text: "the quick brown fox"})
	require.NoError(t, err)
	qtest.Words(t, s, "r")

	for i, n := range []int64{3, 5, 5, 3} {
		id := []string{"w1", "w2", "w3", "w4"}[i]
		require.NoError(t, s.AddAnnotationData(stam.ByID(id), stam.NewData("stats", "len", value.Int(n))))
	}
	require.NoError(t, s.AddAnnotationData(stam.ByID("w2"), stam.NewData("pos", "tag", value.String("ADJ"))))
	require.NoError(t, s.AddAnnotationData(stam.ByID("w4"), stam.NewData("pos", "tag", value.String("NOUN"))))
	qtest.MustAnnotate(t, s, stam.AnnotationBuilder{
		ID:     "note",
		Target: stam.AnnotationSelector(stam.ByID("w2"), nil),
		Data:   []stam.DataBuilder{stam.NewData("notes", "kind", value.String("comment"))},
	})
	return s
}

func words() Constraint { return Key(stam.ByID("tokens"), stam.ByID("type")) }

func annotationID(t *testing.T, s *stam.AnnotationStore, r Result) string {
	t.Helper()
	require.Equal(t, AnnotationResult, r.Type)
	a, err := s.Annotation(stam.ByHandle(r.Annotation))
	require.NoError(t, err)
	return a.ID()
}

func keyID(t *testing.T, s *stam.AnnotationStore, r Result) string {
	t.Helper()
	ref := r.Key
	if r.Type == DataResult {
		d, err := s.AnnotationData(stam.ByHandle(r.Data.Set), stam.ByHandle(r.Data.Data))
		require.NoError(t, err)
		ref = d.Key()
	}
	k, err := s.Key(stam.ByHandle(ref.Set), stam.ByHandle(ref.Key))
	require.NoError(t, err)
	return k.ID()
}

func TestAutomaticVariableNames(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Type:        AnnotationResult,
		Constraints: []Constraint{KeyValue(stam.ByID("pos"), stam.ByID("tag"), value.EqualsString("NOUN"))},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 1, "constants are not part of the row")
	assert.Equal(t, "w4", annotationID(t, s, rows[0]["v1"]))
}

func TestAutomaticNamesSkipExplicitOnes(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "v1",
		Type:        AnnotationResult,
		Constraints: []Constraint{words(), Text("fox", false)},
		Subqueries: []*Plan{{
			Type:        DataResult,
			Constraints: []Constraint{AnnotationVar("v1", Targets, stam.DepthOne), Key(stam.ByID("pos"), stam.ByID("tag"))},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "w4", annotationID(t, s, rows[0]["v1"]))
	assert.Equal(t, "tag", keyID(t, s, rows[0]["v3"]), "v2 names the key constant")
}

func TestSubqueryJoinsOnTextRelation(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "word",
		Type:        AnnotationResult,
		Constraints: []Constraint{words()},
		Subqueries: []*Plan{{
			Name:        "next",
			Type:        AnnotationResult,
			Constraints: []Constraint{words(), TextVar("word", relation.Op(relation.Precedes).WithWhitespace())},
		}},
	})
	require.NoError(t, err)

	var pairs [][2]string
	for _, row := range rows {
		pairs = append(pairs, [2]string{annotationID(t, s, row["word"]), annotationID(t, s, row["next"])})
	}
	assert.Equal(t, [][2]string{{"w1", "w2"}, {"w2", "w3"}, {"w3", "w4"}}, pairs, "the last word has no successor and is dropped")
}

func TestSiblingSubqueriesChain(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "word",
		Type:        AnnotationResult,
		Constraints: []Constraint{words(), Text("quick", false)},
		Subqueries: []*Plan{
			{Name: "note", Type: AnnotationResult, Constraints: []Constraint{AnnotationVar("word", Targets, stam.DepthOne)}},
			{Name: "data", Type: DataResult, Constraints: []Constraint{AnnotationVar("word", Targets, stam.DepthOne)}},
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	var keys []string
	for _, row := range rows {
		assert.Equal(t, "note", annotationID(t, s, row["note"]))
		keys = append(keys, keyID(t, s, row["data"]))
	}
	assert.ElementsMatch(t, []string{"type", "len", "tag"}, keys)
}

func TestAnnotationVariableDirections(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "note",
		Type:        AnnotationResult,
		Constraints: []Constraint{Key(stam.ByID("notes"), stam.ByID("kind"))},
		Subqueries: []*Plan{{
			Name:        "target",
			Type:        AnnotationResult,
			Constraints: []Constraint{AnnotationVar("note", TargetedBy, stam.DepthOne)},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "w2", annotationID(t, s, rows[0]["target"]))
}

func TestTextResults(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "t",
		Type:        TextResult,
		Constraints: []Constraint{Resource(stam.ByID("r")), Text("BROWN", true)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 10, rows[0]["t"].Text.Begin)
	assert.Equal(t, 15, rows[0]["t"].Text.End)

	rows, err = Execute(context.Background(), s, &Plan{
		Name:        "word",
		Type:        AnnotationResult,
		Constraints: []Constraint{KeyValue(stam.ByID("pos"), stam.ByID("tag"), value.EqualsString("ADJ"))},
		Subqueries: []*Plan{{
			Name:        "t",
			Type:        TextResult,
			Constraints: []Constraint{AnnotationVar("word", Targets, stam.DepthOne)},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0]["t"].Text.Begin)
}

func TestMetadataResults(t *testing.T) {
	s := foxStore(t)
	_, err := s.AddResource(stam.ResourceBuilder{ID: "other", Text: "no annotations here"})
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("resources by data", func(t *testing.T) {
		rows, err := Execute(ctx, s, &Plan{
			Name:        "res",
			Type:        ResourceResult,
			Constraints: []Constraint{KeyValue(stam.ByID("pos"), stam.ByID("tag"), value.EqualsString("NOUN"))},
		})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		r, err := s.Resource(stam.ByHandle(rows[0]["res"].Resource))
		require.NoError(t, err)
		assert.Equal(t, "r", r.ID())
	})

	t.Run("resources by text", func(t *testing.T) {
		rows, err := Execute(ctx, s, &Plan{Name: "res", Type: ResourceResult, Constraints: []Constraint{Text("annotations", false)}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		r, err := s.Resource(stam.ByHandle(rows[0]["res"].Resource))
		require.NoError(t, err)
		assert.Equal(t, "other", r.ID())
	})

	t.Run("datasets", func(t *testing.T) {
		rows, err := Execute(ctx, s, &Plan{Name: "set", Type: DataSetResult})
		require.NoError(t, err)
		assert.Len(t, rows, 4)

		rows, err = Execute(ctx, s, &Plan{
			Name:        "set",
			Type:        DataSetResult,
			Constraints: []Constraint{Text("fox", false)},
		})
		require.Error(t, err)
		assert.True(t, errors.IsInvalidRequestError(err))
		assert.Nil(t, rows)
	})

	t.Run("keys of a dataset", func(t *testing.T) {
		rows, err := Execute(ctx, s, &Plan{Name: "k", Type: KeyResult, Constraints: []Constraint{DataSet(stam.ByID("pos"))}})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "tag", keyID(t, s, rows[0]["k"]))
	})

	t.Run("keys used by an annotation", func(t *testing.T) {
		rows, err := Execute(ctx, s, &Plan{
			Name:        "word",
			Type:        AnnotationResult,
			Constraints: []Constraint{words(), Text("the", false)},
			Subqueries: []*Plan{{
				Name:        "k",
				Type:        KeyResult,
				Constraints: []Constraint{AnnotationVar("word", Targets, stam.DepthOne)},
			}},
		})
		require.NoError(t, err)
		var keys []string
		for _, row := range rows {
			keys = append(keys, keyID(t, s, row["k"]))
		}
		assert.ElementsMatch(t, []string{"type", "len"}, keys)
	})
}

func TestLimit(t *testing.T) {
	s := foxStore(t)

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "word",
		Type:        AnnotationResult,
		Constraints: []Constraint{words(), Limit(2)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "w1", annotationID(t, s, rows[0]["word"]))
	assert.Equal(t, "w2", annotationID(t, s, rows[1]["word"]))
}

func TestCollectionConstraints(t *testing.T) {
	s := foxStore(t)
	tagged := s.AnnotationsByKey(stam.ByID("pos"), stam.ByID("tag"))

	rows, err := Execute(context.Background(), s, &Plan{
		Name:        "word",
		Type:        AnnotationResult,
		Constraints: []Constraint{InAnnotations(tagged), KeyValue(stam.ByID("stats"), stam.ByID("len"), value.EqualsInt(3))},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "w4", annotationID(t, s, rows[0]["word"]))

	rows, err = Execute(context.Background(), s, &Plan{
		Name:        "d",
		Type:        DataResult,
		Constraints: []Constraint{InData(s.DataInSet(stam.ByID("stats")))},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "values 3 and 5")
}

func TestInvalidPlans(t *testing.T) {
	s := foxStore(t)

	tests := []struct {
		name string
		plan *Plan
	}{
		{"nil plan", nil},
		{"unknown variable", &Plan{Name: "a", Constraints: []Constraint{AnnotationVar("missing", Targets, stam.DepthOne)}}},
		{"mistyped variable", &Plan{Name: "a", Subqueries: []*Plan{{Constraints: []Constraint{KeyVar("a")}}}}},
		{"sibling is not in scope", &Plan{Name: "a", Subqueries: []*Plan{
			{Name: "b"},
			{Name: "c", Constraints: []Constraint{AnnotationVar("b", Targets, stam.DepthOne)}},
		}}},
		{"text on data", &Plan{Name: "d", Type: DataResult, Constraints: []Constraint{Text("fox", false)}}},
		{"bound twice", &Plan{Name: "a", Subqueries: []*Plan{{Name: "a"}}}},
		{"negative limit", &Plan{Name: "a", Constraints: []Constraint{Limit(-1)}}},
		{"unknown result type", &Plan{Name: "a", Type: ResultType(42)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), s, tt.plan)
			require.Error(t, err)
			assert.True(t, errors.IsInvalidRequestError(err), "got %v", err)
		})
	}

	_, err := Execute(context.Background(), s, &Plan{Constraints: []Constraint{Key(stam.ByID("pos"), stam.ByID("missing"))}})
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestCanceledContext(t *testing.T) {
	s := foxStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, s, &Plan{Name: "word", Constraints: []Constraint{words()}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecutorLogging(t *testing.T) {
	s := foxStore(t)
	core, logs := observer.New(zapcore.DebugLevel)
	e := NewExecutor(s, ExecutorOptions{Logger: zap.New(core).Sugar()})

	rows, err := e.Execute(context.Background(), &Plan{Name: "word", Constraints: []Constraint{words()}})
	require.NoError(t, err)
	require.Len(t, rows, 4)

	done := logs.FilterMessage("query complete").All()
	require.Len(t, done, 1)
	fields := done[0].ContextMap()
	assert.Equal(t, "word", fields[logger.FieldQuery])
	assert.EqualValues(t, 4, fields[logger.FieldCount])
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "annotation 3", Result{Type: AnnotationResult, Annotation: 3}.String())
	assert.Equal(t, "key 1/2", Result{Type: KeyResult, Key: stam.KeyRef{Set: 1, Key: 2}}.String())
	assert.Equal(t, "dataset", DataSetResult.String())
}
