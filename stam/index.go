package stam

import (
	"cmp"
	"slices"
)

// Reverse lists hold handles in ascending order without duplicates.
// Handles grow monotonically, so appends during annotation keep them sorted.

func insertSorted[H cmp.Ordered](list []H, h H) []H {
	if n := len(list); n == 0 || list[n-1] < h {
		return append(list, h)
	}
	i, found := slices.BinarySearch(list, h)
	if found {
		return list
	}
	return slices.Insert(list, i, h)
}

func removeSorted[H cmp.Ordered](list []H, h H) ([]H, bool) {
	i, found := slices.BinarySearch(list, h)
	if !found {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}

func containsSorted[H cmp.Ordered](list []H, h H) bool {
	_, found := slices.BinarySearch(list, h)
	return found
}

// reverseMap is one reverse index from an entity to the annotations referencing it.
type reverseMap[K comparable] map[K][]AnnotationHandle

func (m reverseMap[K]) add(k K, a AnnotationHandle) {
	m[k] = insertSorted(m[k], a)
}

func (m reverseMap[K]) remove(k K, a AnnotationHandle) bool {
	list, ok := removeSorted(m[k], a)
	if len(list) == 0 {
		delete(m, k)
	} else {
		m[k] = list
	}
	return ok
}

func (m reverseMap[K]) has(k K, a AnnotationHandle) bool {
	return containsSorted(m[k], a)
}

func (m reverseMap[K]) shrink() {
	for k, list := range m {
		m[k] = clipSlice(list)
	}
}

type textKey struct {
	resource  ResourceHandle
	selection TextSelectionHandle
}

// indices are the reverse maps kept alongside the arenas. Which of them
// are maintained is fixed by Config at construction.
type indices struct {
	// resource -> annotations whose target references it or resolves to its text
	resourceAnnotations reverseMap[ResourceHandle]
	// dataset -> annotations targeting it through a DataSetSelector
	datasetAnnotations reverseMap[DataSetHandle]
	// key -> annotations holding data with that key
	keyAnnotations reverseMap[KeyRef]
	// key -> annotations targeting it through a DataKeySelector
	keyMeta reverseMap[KeyRef]
	// data -> annotations holding it
	dataAnnotations reverseMap[DataRef]
	// data -> annotations targeting it through an AnnotationDataSelector
	dataMeta reverseMap[DataRef]
	// annotation -> annotations targeting it
	annotationAnnotations reverseMap[AnnotationHandle]
	// registered selection -> annotations whose resolved text includes it.
	// Always maintained: a selection stays registered while it has entries.
	textAnnotations reverseMap[textKey]
}

func newIndices() indices {
	return indices{
		resourceAnnotations:   make(reverseMap[ResourceHandle]),
		datasetAnnotations:    make(reverseMap[DataSetHandle]),
		keyAnnotations:        make(reverseMap[KeyRef]),
		keyMeta:               make(reverseMap[KeyRef]),
		dataAnnotations:       make(reverseMap[DataRef]),
		dataMeta:              make(reverseMap[DataRef]),
		annotationAnnotations: make(reverseMap[AnnotationHandle]),
		textAnnotations:       make(reverseMap[textKey]),
	}
}

func (ix *indices) shrink() {
	ix.resourceAnnotations.shrink()
	ix.datasetAnnotations.shrink()
	ix.keyAnnotations.shrink()
	ix.keyMeta.shrink()
	ix.dataAnnotations.shrink()
	ix.dataMeta.shrink()
	ix.annotationAnnotations.shrink()
	ix.textAnnotations.shrink()
}

// footprint is everything an annotation contributes to the indices.
// It is computed once when the annotation is indexed and replayed on removal,
// since the text an annotation resolves to can vanish with its targets.
type footprint struct {
	resources   []ResourceHandle
	datasets    []DataSetHandle
	keysMeta    []KeyRef
	dataMeta    []DataRef
	annotations []AnnotationHandle
	text        []textKey
	keys        []KeyRef
	data        []DataRef
}

func appendUnique[T comparable](list []T, v T) []T {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}

// footprintOf collects the index entries for a, registering text selections
// on their resources as it goes.
func (s *AnnotationStore) footprintOf(a *Annotation) footprint {
	var fp footprint
	s.walkSelector(&a.target, func(sel *Selector) {
		switch sel.kind {
		case ResourceSelectorKind:
			if _, ok := s.liveResource(sel.resource); ok {
				fp.resources = appendUnique(fp.resources, sel.resource)
			}
		case DataSetSelectorKind:
			if int(sel.dataset) < len(s.datasets) && s.datasets[sel.dataset] != nil {
				fp.datasets = appendUnique(fp.datasets, sel.dataset)
			}
		case DataKeySelectorKind:
			ref := KeyRef{Set: sel.dataset, Key: sel.key}
			if _, ok := s.liveKey(ref); ok {
				fp.keysMeta = appendUnique(fp.keysMeta, ref)
			}
		case AnnotationDataSelectorKind:
			ref := DataRef{Set: sel.dataset, Data: sel.data}
			if _, ok := s.liveData(ref); ok {
				fp.dataMeta = appendUnique(fp.dataMeta, ref)
			}
		case AnnotationSelectorKind:
			if _, ok := s.liveAnnotation(sel.annotation); ok {
				fp.annotations = appendUnique(fp.annotations, sel.annotation)
			}
		}
	})
	if selections, err := s.resolveText(&a.target); err == nil {
		for _, ts := range selections {
			r, ok := s.liveResource(ts.Resource)
			if !ok {
				continue
			}
			h := r.register(ts.Span())
			fp.resources = appendUnique(fp.resources, ts.Resource)
			fp.text = appendUnique(fp.text, textKey{resource: ts.Resource, selection: h})
		}
	}
	for _, ref := range a.data {
		if d, ok := s.liveData(ref); ok {
			fp.keys = appendUnique(fp.keys, d.Key())
			fp.data = appendUnique(fp.data, ref)
		}
	}
	return fp
}

// index records a in every enabled reverse map and in the text map.
func (s *AnnotationStore) index(a *Annotation) {
	fp := s.footprintOf(a)
	a.footprint = fp
	cfg := s.config
	h := a.handle
	if cfg.ResourceAnnotationMap {
		for _, r := range fp.resources {
			s.idx.resourceAnnotations.add(r, h)
		}
	}
	if cfg.DataSetAnnotationMap {
		for _, d := range fp.datasets {
			s.idx.datasetAnnotations.add(d, h)
		}
	}
	if cfg.KeyAnnotationMap {
		for _, k := range fp.keysMeta {
			s.idx.keyMeta.add(k, h)
		}
		for _, k := range fp.keys {
			s.idx.keyAnnotations.add(k, h)
		}
	}
	if cfg.DataAnnotationMap {
		for _, d := range fp.dataMeta {
			s.idx.dataMeta.add(d, h)
		}
		for _, d := range fp.data {
			s.idx.dataAnnotations.add(d, h)
		}
	}
	if cfg.AnnotationAnnotationMap {
		for _, t := range fp.annotations {
			s.idx.annotationAnnotations.add(t, h)
		}
	}
	for _, t := range fp.text {
		s.idx.textAnnotations.add(t, h)
	}
}

// checkIndexed verifies every enabled reverse map lists a.
func (s *AnnotationStore) checkIndexed(a *Annotation) bool {
	fp := a.footprint
	cfg := s.config
	h := a.handle
	check := func(enabled bool, ok bool) bool { return !enabled || ok }
	for _, r := range fp.resources {
		if !check(cfg.ResourceAnnotationMap, s.idx.resourceAnnotations.has(r, h)) {
			return false
		}
	}
	for _, d := range fp.datasets {
		if !check(cfg.DataSetAnnotationMap, s.idx.datasetAnnotations.has(d, h)) {
			return false
		}
	}
	for _, k := range fp.keys {
		if !check(cfg.KeyAnnotationMap, s.idx.keyAnnotations.has(k, h)) {
			return false
		}
	}
	for _, d := range fp.data {
		if !check(cfg.DataAnnotationMap, s.idx.dataAnnotations.has(d, h)) {
			return false
		}
	}
	for _, t := range fp.annotations {
		if !check(cfg.AnnotationAnnotationMap, s.idx.annotationAnnotations.has(t, h)) {
			return false
		}
	}
	for _, t := range fp.text {
		if !s.idx.textAnnotations.has(t, h) {
			return false
		}
	}
	return true
}

// unindex removes a from every reverse map and unregisters selections
// that no annotation refers to anymore.
func (s *AnnotationStore) unindex(a *Annotation) {
	fp := a.footprint
	h := a.handle
	for _, r := range fp.resources {
		s.idx.resourceAnnotations.remove(r, h)
	}
	for _, d := range fp.datasets {
		s.idx.datasetAnnotations.remove(d, h)
	}
	for _, k := range fp.keysMeta {
		s.idx.keyMeta.remove(k, h)
	}
	for _, k := range fp.keys {
		s.idx.keyAnnotations.remove(k, h)
	}
	for _, d := range fp.dataMeta {
		s.idx.dataMeta.remove(d, h)
	}
	for _, d := range fp.data {
		s.idx.dataAnnotations.remove(d, h)
	}
	for _, t := range fp.annotations {
		s.idx.annotationAnnotations.remove(t, h)
	}
	for _, t := range fp.text {
		s.idx.textAnnotations.remove(t, h)
		if _, still := s.idx.textAnnotations[t]; still {
			continue
		}
		if r, ok := s.liveResource(t.resource); ok {
			r.unregister(t.selection)
		}
	}
}
