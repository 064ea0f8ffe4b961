package testing

import (
	"strconv"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/stam/stam"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

// HelloWorld is the text of the resource NewHelloWorldStore creates.
const HelloWorld = "Hello world"

// NewStore creates an empty store with the default configuration and the
// given overrides applied.
func NewStore(t *testing.T, tweak ...func(*stam.Config)) *stam.AnnotationStore {
	t.Helper()

	cfg := stam.DefaultConfig()
	for _, fn := range tweak {
		fn(&cfg)
	}
	return stam.NewStore(cfg, stam.WithID("test"))
}

// NewObservedStore creates a store with debug logging routed to an observer.
func NewObservedStore(t *testing.T, tweak ...func(*stam.Config)) (*stam.AnnotationStore, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	cfg := stam.DefaultConfig()
	cfg.Debug = true
	for _, fn := range tweak {
		fn(&cfg)
	}
	return stam.NewStore(cfg, stam.WithLogger(zap.New(core).Sugar())), logs
}

// NewHelloWorldStore creates a store holding resource "testres" with text
// "Hello world" and annotation "A1" on "world" carrying pos=noun from dataset "testdataset".
func NewHelloWorldStore(t *testing.T, tweak ...func(*stam.Config)) *stam.AnnotationStore {
	t.Helper()

	s := NewStore(t, tweak...)
	if _, err := s.AddResource(stam.ResourceBuilder{ID: "testres", Text: HelloWorld}); err != nil {
		t.Fatalf("Failed to add resource: %v", err)
	}
	MustAnnotate(t, s, stam.AnnotationBuilder{
		ID:     "A1",
		Target: stam.TextSelector(stam.ByID("testres"), text.Simple(6, 11)),
		Data:   []stam.DataBuilder{{ID: "D1", DataSet: stam.ByID("testdataset"), Key: "pos", Value: value.String("noun")}},
	})
	return s
}

// MustAnnotate adds an annotation or fails the test.
func MustAnnotate(t *testing.T, s *stam.AnnotationStore, b stam.AnnotationBuilder) stam.AnnotationHandle {
	t.Helper()

	h, err := s.Annotate(b)
	if err != nil {
		t.Fatalf("Failed to annotate %q: %v", b.ID, err)
	}
	return h
}

// Words annotates every whitespace-separated word of resource res with
// key "type" = "word" in dataset "tokens", using IDs w1, w2, ...
func Words(t *testing.T, s *stam.AnnotationStore, res string) []stam.AnnotationHandle {
	t.Helper()

	r, err := s.Resource(stam.ByID(res))
	if err != nil {
		t.Fatalf("Failed to get resource %q: %v", res, err)
	}
	parts, err := r.Split(" ")
	if err != nil {
		t.Fatalf("Failed to split %q: %v", res, err)
	}
	var out []stam.AnnotationHandle
	for _, p := range parts {
		if p.Len() == 0 {
			continue
		}
		out = append(out, MustAnnotate(t, s, stam.AnnotationBuilder{
			ID:     "w" + strconv.Itoa(len(out)+1),
			Target: stam.SelectorFor(p),
			Data:   []stam.DataBuilder{stam.NewData("tokens", "type", value.String("word"))},
		}))
	}
	return out
}
