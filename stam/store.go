// Package stam is an in-memory stand-off annotation store.
//
// Resources hold immutable text. Annotations attach data, drawn from
// datasets of key/value pairs, to targets expressed as selectors: spans of
// a resource's text, whole resources, datasets, keys, data or other
// annotations, and combinations of those. Reverse indices keep lookups in
// every direction cheap, and a per-resource position index answers
// spatial questions about text.
//
// A store is safe for concurrent use. Mutations take an exclusive lock,
// queries and collection evaluation take a shared one. Annotations, keys,
// data and substores handed out by the store are immutable snapshots;
// mutations publish new ones.
package stam

import (
	"sync"

	"go.uber.org/zap"

	"github.com/teranos/stam/logger"
)

// AnnotationStore owns every entity and index.
type AnnotationStore struct {
	mu     sync.RWMutex
	id     string
	config Config
	log    *zap.SugaredLogger

	resources   []*TextResource
	resourceIDs map[string]ResourceHandle

	datasets   []*AnnotationDataSet
	datasetIDs map[string]DataSetHandle

	annotations   []*Annotation
	annotationIDs map[string]AnnotationHandle

	substores   []*SubStore
	substoreIDs map[string]SubStoreHandle

	idx indices
}

// Option configures a store at construction.
type Option func(*AnnotationStore)

// WithLogger routes store logging to l.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *AnnotationStore) {
		if l != nil {
			s.log = l
		}
	}
}

// WithID sets the public identifier of the store.
func WithID(id string) Option {
	return func(s *AnnotationStore) {
		s.id = id
	}
}

// NewStore creates an empty store.
func NewStore(cfg Config, opts ...Option) *AnnotationStore {
	s := &AnnotationStore{
		config:        cfg,
		log:           logger.ComponentLogger("store"),
		resourceIDs:   make(map[string]ResourceHandle),
		datasetIDs:    make(map[string]DataSetHandle),
		annotationIDs: make(map[string]AnnotationHandle),
		substoreIDs:   make(map[string]SubStoreHandle),
		idx:           newIndices(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the public identifier of the store, possibly empty.
func (s *AnnotationStore) ID() string { return s.id }

// Config returns a copy of the store configuration.
func (s *AnnotationStore) Config() Config { return s.config }

func (s *AnnotationStore) debugw(msg string, keysAndValues ...interface{}) {
	if s.config.Debug {
		s.log.Debugw(msg, keysAndValues...)
	}
}

// Stats counts live entities.
type Stats struct {
	Resources      int
	DataSets       int
	Keys           int
	Data           int
	Annotations    int
	SubStores      int
	TextSelections int
}

// Stats reports how many live entities the store holds.
func (s *AnnotationStore) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, r := range s.resources {
		if r != nil {
			st.Resources++
			st.TextSelections += len(r.spans)
		}
	}
	for _, set := range s.datasets {
		if set != nil {
			st.DataSets++
			st.Keys += len(set.keyIDs)
			st.Data += set.liveData()
		}
	}
	for _, a := range s.annotations {
		if a != nil {
			st.Annotations++
		}
	}
	for _, sub := range s.substores {
		if sub != nil {
			st.SubStores++
		}
	}
	return st
}

// Shrink releases spare capacity held by arenas and index lists.
func (s *AnnotationStore) Shrink() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shrink()
}

func (s *AnnotationStore) shrink() {
	s.resources = clipSlice(s.resources)
	s.datasets = clipSlice(s.datasets)
	s.annotations = clipSlice(s.annotations)
	s.substores = clipSlice(s.substores)
	for _, r := range s.resources {
		if r != nil {
			r.shrink()
		}
	}
	for _, set := range s.datasets {
		if set != nil {
			set.shrink()
		}
	}
	s.idx.shrink()
	s.debugw("store shrunk")
}

func clipSlice[T any](in []T) []T {
	if cap(in) == len(in) {
		return in
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}
