package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
)

// RemoveMode decides what happens to annotations that depend on a removed entity.
type RemoveMode uint8

const (
	// Strict removes dependent annotations, transitively.
	Strict RemoveMode = iota
	// Lenient keeps dependent annotations. Simple targets are left dangling,
	// complex targets lose the subselectors that referred to removed
	// entities, and removed data is dropped from their data lists. An
	// annotation left without data is removed.
	Lenient
)

func (m RemoveMode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// removal is a complete plan, computed before anything is mutated.
type removal struct {
	mode        RemoveMode
	annotations map[AnnotationHandle]bool
	resources   map[ResourceHandle]bool
	datasets    map[DataSetHandle]bool
	keys        map[KeyRef]bool
	data        map[DataRef]bool
	rewrites    map[AnnotationHandle]*Annotation
}

func newRemoval(mode RemoveMode) *removal {
	return &removal{
		mode:        mode,
		annotations: make(map[AnnotationHandle]bool),
		resources:   make(map[ResourceHandle]bool),
		datasets:    make(map[DataSetHandle]bool),
		keys:        make(map[KeyRef]bool),
		data:        make(map[DataRef]bool),
		rewrites:    make(map[AnnotationHandle]*Annotation),
	}
}

func (rm *removal) removesSelector(sel *Selector) bool {
	switch sel.kind {
	case TextSelectorKind, ResourceSelectorKind:
		return rm.resources[sel.resource]
	case DataSetSelectorKind:
		return rm.datasets[sel.dataset]
	case DataKeySelectorKind:
		return rm.keys[KeyRef{Set: sel.dataset, Key: sel.key}]
	case AnnotationDataSelectorKind:
		return rm.data[DataRef{Set: sel.dataset, Data: sel.data}]
	case AnnotationSelectorKind:
		return rm.annotations[sel.annotation]
	}
	return false
}

// touches reports whether a depends on anything the plan removes or rewrites.
func (rm *removal) touches(s *AnnotationStore, a *Annotation) bool {
	if slices.ContainsFunc(a.data, func(r DataRef) bool { return rm.data[r] }) {
		return true
	}
	if s.references(&a.target, rm.removesSelector) {
		return true
	}
	fp := a.footprint
	return slices.ContainsFunc(fp.resources, func(r ResourceHandle) bool { return rm.resources[r] }) ||
		slices.ContainsFunc(fp.annotations, func(h AnnotationHandle) bool { return rm.annotations[h] || rm.rewrites[h] != nil })
}

// prune drops subselectors referring to removed entities. It reports false
// when nothing of sel survives.
func (rm *removal) prune(sel Selector) (Selector, bool) {
	if !sel.kind.Complex() {
		return sel, !rm.removesSelector(&sel)
	}
	out := sel
	out.subs = nil
	for _, sub := range sel.subs {
		if kept, ok := rm.prune(sub); ok {
			out.subs = append(out.subs, kept)
		}
	}
	return out, len(out.subs) > 0
}

// plan decides the fate of every annotation, in handle order. Annotations
// only ever target older annotations, so one ascending pass sees each
// target's fate before its referrers.
func (s *AnnotationStore) plan(rm *removal) error {
	for _, a := range s.annotations {
		if a == nil || rm.annotations[a.handle] || !rm.touches(s, a) {
			continue
		}
		if !s.checkIndexed(a) {
			return errors.Wrapf(errors.ErrInconsistentIndex, "annotation %s", a.PublicID())
		}
		if rm.mode == Strict {
			rm.annotations[a.handle] = true
			continue
		}
		next := a.snapshot()
		next.data = slices.DeleteFunc(next.data, func(r DataRef) bool { return rm.data[r] })
		if len(next.data) == 0 {
			rm.annotations[a.handle] = true
			continue
		}
		if pruned, ok := rm.prune(next.target); ok {
			next.target = pruned
		}
		rm.rewrites[a.handle] = next
	}
	for h := range rm.annotations {
		if a := s.annotations[h]; !s.checkIndexed(a) {
			return errors.Wrapf(errors.ErrInconsistentIndex, "annotation %s", a.PublicID())
		}
	}
	return nil
}

func (s *AnnotationStore) commitRemoval(rm *removal) {
	affected := make([]AnnotationHandle, 0, len(rm.annotations)+len(rm.rewrites))
	for h := range rm.annotations {
		affected = append(affected, h)
	}
	for h := range rm.rewrites {
		affected = append(affected, h)
	}
	slices.Sort(affected)

	for _, h := range affected {
		s.unindex(s.annotations[h])
	}
	for _, h := range affected {
		if !rm.annotations[h] {
			continue
		}
		a := s.annotations[h]
		if a.id != "" {
			delete(s.annotationIDs, a.id)
		}
		s.annotations[h] = nil
		s.dropFromSubStores(h)
	}

	for ref := range rm.data {
		if d := s.datasets[ref.Set]; d != nil {
			d.removeData(ref.Data)
		}
		delete(s.idx.dataAnnotations, ref)
		delete(s.idx.dataMeta, ref)
	}
	for ref := range rm.keys {
		if d := s.datasets[ref.Set]; d != nil {
			d.removeKey(ref.Key)
		}
		delete(s.idx.keyAnnotations, ref)
		delete(s.idx.keyMeta, ref)
	}
	for h := range rm.datasets {
		if d := s.datasets[h]; d != nil && d.id != "" {
			delete(s.datasetIDs, d.id)
		}
		s.datasets[h] = nil
		delete(s.idx.datasetAnnotations, h)
		s.dropDataSetFromSubStores(h)
	}
	for h := range rm.resources {
		r := s.resources[h]
		if r != nil {
			if r.id != "" {
				delete(s.resourceIDs, r.id)
			}
			for th := range r.selections {
				delete(s.idx.textAnnotations, textKey{resource: h, selection: TextSelectionHandle(th)})
			}
		}
		s.resources[h] = nil
		delete(s.idx.resourceAnnotations, h)
		s.dropResourceFromSubStores(h)
	}

	for h, next := range rm.rewrites {
		s.annotations[h] = next
	}
	for _, h := range affected {
		if next, ok := rm.rewrites[h]; ok {
			s.index(next)
		}
	}
}

func (s *AnnotationStore) remove(rm *removal, kind, id string) error {
	if err := s.plan(rm); err != nil {
		return err
	}
	s.commitRemoval(rm)
	s.debugw(kind+" removed",
		logger.FieldOperation, "remove",
		logger.FieldMode, rm.mode.String(),
		"id", id,
		logger.FieldCount, len(rm.annotations),
		"rewritten", len(rm.rewrites))
	return nil
}

// RemoveAnnotation removes an annotation. In strict mode annotations
// targeting it are removed too.
func (s *AnnotationStore) RemoveAnnotation(ref Ref, mode RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.annotation(ref)
	if err != nil {
		return err
	}
	rm := newRemoval(mode)
	rm.annotations[a.handle] = true
	return s.remove(rm, "annotation", a.PublicID())
}

// RemoveResource removes a resource and, in strict mode, every annotation on it.
func (s *AnnotationStore) RemoveResource(ref Ref, mode RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.resource(ref)
	if err != nil {
		return err
	}
	rm := newRemoval(mode)
	rm.resources[r.handle] = true
	return s.remove(rm, "resource", r.PublicID())
}

// RemoveDataSet removes a dataset with all its keys and data.
func (s *AnnotationStore) RemoveDataSet(ref Ref, mode RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.dataset(ref)
	if err != nil {
		return err
	}
	rm := newRemoval(mode)
	rm.datasets[d.handle] = true
	for _, k := range d.liveKeys() {
		rm.keys[k.Ref()] = true
	}
	for _, item := range d.data {
		if item != nil {
			rm.data[item.Ref()] = true
		}
	}
	return s.remove(rm, "dataset", d.PublicID())
}

// RemoveKey removes a key and all data built from it.
func (s *AnnotationStore) RemoveKey(set, key Ref, mode RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, err := s.keyRef(set, key)
	if err != nil {
		return err
	}
	rm := newRemoval(mode)
	rm.keys[ref] = true
	d := s.datasets[ref.Set]
	for _, h := range d.keyData[ref.Key] {
		rm.data[DataRef{Set: ref.Set, Data: h}] = true
	}
	return s.remove(rm, "key", d.keys[ref.Key].id)
}

// RemoveData removes data from its dataset.
func (s *AnnotationStore) RemoveData(set, data Ref, mode RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, err := s.dataRef(set, data)
	if err != nil {
		return err
	}
	rm := newRemoval(mode)
	rm.data[ref] = true
	return s.remove(rm, "data", s.datasets[ref.Set].data[ref.Data].PublicID())
}
