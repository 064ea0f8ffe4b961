package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/text"
	"github.com/teranos/stam/stam/value"
)

// Depth bounds how far annotation-to-annotation traversal goes.
type Depth uint8

const (
	// DepthOne follows direct references only.
	DepthOne Depth = iota + 1
	// DepthMax follows references transitively.
	DepthMax
)

// Annotations returns every annotation in insertion order.
func (s *AnnotationStore) Annotations() Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		out := make([]AnnotationHandle, 0, len(s.annotations))
		for _, a := range s.annotations {
			if a != nil {
				out = append(out, a.handle)
			}
		}
		return out, nil
	})
}

// AnnotationsByKey returns annotations holding data with the given key.
func (s *AnnotationStore) AnnotationsByKey(set, key Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		ref, err := s.keyRef(set, key)
		if err != nil {
			return nil, err
		}
		return s.annotationsReferencing(s.config.KeyAnnotationMap, s.idx.keyAnnotations[ref], func(a *Annotation) bool {
			return slices.Contains(a.footprint.keys, ref)
		}), nil
	})
}

// AnnotationsByData returns annotations holding the given data.
func (s *AnnotationStore) AnnotationsByData(set, data Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		ref, err := s.dataRef(set, data)
		if err != nil {
			return nil, err
		}
		return s.annotationsWithData(ref), nil
	})
}

// AnnotationsByDataSet returns annotations holding any data of the dataset.
func (s *AnnotationStore) AnnotationsByDataSet(set Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		d, err := s.dataset(set)
		if err != nil {
			return nil, err
		}
		var out []AnnotationHandle
		for _, a := range s.annotations {
			if a == nil {
				continue
			}
			if slices.ContainsFunc(a.data, func(r DataRef) bool { return r.Set == d.handle }) {
				out = append(out, a.handle)
			}
		}
		return out, nil
	})
}

// AnnotationsOnResource returns annotations that target the resource or its text.
func (s *AnnotationStore) AnnotationsOnResource(res Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		return s.annotationsReferencing(s.config.ResourceAnnotationMap, s.idx.resourceAnnotations[r.handle], func(a *Annotation) bool {
			return slices.Contains(a.footprint.resources, r.handle)
		}), nil
	})
}

// AnnotationsOnText returns annotations whose text lies in the resource.
func (s *AnnotationStore) AnnotationsOnText(res Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		candidates := s.annotationsReferencing(s.config.ResourceAnnotationMap, s.idx.resourceAnnotations[r.handle], func(a *Annotation) bool {
			return slices.Contains(a.footprint.resources, r.handle)
		})
		return slices.DeleteFunc(candidates, func(h AnnotationHandle) bool {
			return !slices.ContainsFunc(s.annotations[h].footprint.text, func(t textKey) bool { return t.resource == r.handle })
		}), nil
	})
}

// ResourceMetadata returns annotations targeting the resource as a whole.
func (s *AnnotationStore) ResourceMetadata(res Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		candidates := s.annotationsReferencing(s.config.ResourceAnnotationMap, s.idx.resourceAnnotations[r.handle], func(a *Annotation) bool {
			return slices.Contains(a.footprint.resources, r.handle)
		})
		return slices.DeleteFunc(candidates, func(h AnnotationHandle) bool {
			a := s.annotations[h]
			return !s.references(&a.target, func(sel *Selector) bool {
				return sel.kind == ResourceSelectorKind && sel.resource == r.handle
			})
		}), nil
	})
}

// DataSetMetadata returns annotations targeting the dataset through a DataSetSelector.
func (s *AnnotationStore) DataSetMetadata(set Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		d, err := s.dataset(set)
		if err != nil {
			return nil, err
		}
		return s.annotationsReferencing(s.config.DataSetAnnotationMap, s.idx.datasetAnnotations[d.handle], func(a *Annotation) bool {
			return slices.Contains(a.footprint.datasets, d.handle)
		}), nil
	})
}

// KeyMetadata returns annotations targeting the key through a DataKeySelector.
func (s *AnnotationStore) KeyMetadata(set, key Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		ref, err := s.keyRef(set, key)
		if err != nil {
			return nil, err
		}
		return s.annotationsReferencing(s.config.KeyAnnotationMap, s.idx.keyMeta[ref], func(a *Annotation) bool {
			return slices.Contains(a.footprint.keysMeta, ref)
		}), nil
	})
}

// DataMetadata returns annotations targeting the data through an AnnotationDataSelector.
func (s *AnnotationStore) DataMetadata(set, data Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		ref, err := s.dataRef(set, data)
		if err != nil {
			return nil, err
		}
		return s.annotationsReferencing(s.config.DataAnnotationMap, s.idx.dataMeta[ref], func(a *Annotation) bool {
			return slices.Contains(a.footprint.dataMeta, ref)
		}), nil
	})
}

// AnnotationsTargeting returns annotations that target the given one.
func (s *AnnotationStore) AnnotationsTargeting(target Ref, depth Depth) Annotations {
	return newCollection(s, Unordered, func() ([]AnnotationHandle, error) {
		a, err := s.annotation(target)
		if err != nil {
			return nil, err
		}
		return s.traverse(a.handle, depth, s.referrers), nil
	})
}

// AnnotationTargets returns annotations the given one targets.
func (s *AnnotationStore) AnnotationTargets(source Ref, depth Depth) Annotations {
	return newCollection(s, Unordered, func() ([]AnnotationHandle, error) {
		a, err := s.annotation(source)
		if err != nil {
			return nil, err
		}
		return s.traverse(a.handle, depth, func(h AnnotationHandle) []AnnotationHandle {
			if a, ok := s.liveAnnotation(h); ok {
				return a.footprint.annotations
			}
			return nil
		}), nil
	})
}

func (s *AnnotationStore) referrers(h AnnotationHandle) []AnnotationHandle {
	return s.annotationsReferencing(s.config.AnnotationAnnotationMap, s.idx.annotationAnnotations[h], func(a *Annotation) bool {
		return slices.Contains(a.footprint.annotations, h)
	})
}

// traverse walks next breadth first from start, excluding start itself.
func (s *AnnotationStore) traverse(start AnnotationHandle, depth Depth, next func(AnnotationHandle) []AnnotationHandle) []AnnotationHandle {
	seen := map[AnnotationHandle]bool{start: true}
	var out []AnnotationHandle
	frontier := []AnnotationHandle{start}
	for len(frontier) > 0 {
		var following []AnnotationHandle
		for _, h := range frontier {
			for _, n := range next(h) {
				if seen[n] {
					continue
				}
				if _, ok := s.liveAnnotation(n); !ok {
					continue
				}
				seen[n] = true
				out = append(out, n)
				following = append(following, n)
			}
		}
		if depth == DepthOne {
			break
		}
		frontier = following
	}
	return out
}

// AnnotationsAt returns annotations with a selection covering pos.
func (s *AnnotationStore) AnnotationsAt(res Ref, pos int) Annotations {
	return newCollection(s, Unordered, func() ([]AnnotationHandle, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		if pos < 0 || pos >= r.Len() {
			return nil, errors.NewRangeError("position %d out of bounds for text length %d", pos, r.Len())
		}
		return s.annotationsOn(s.selectionsAt(r, pos)), nil
	})
}

// AnnotationsInRange returns annotations with a selection embedded in [begin, end).
func (s *AnnotationStore) AnnotationsInRange(res Ref, begin, end int) Annotations {
	return newCollection(s, Unordered, func() ([]AnnotationHandle, error) {
		r, span, err := s.rangeOf(res, begin, end)
		if err != nil {
			return nil, err
		}
		return s.annotationsOn(s.selectionsInRange(r, span)), nil
	})
}

// AnnotationsByRelatedText returns annotations whose text stands in relation
// op to the reference selections.
func (s *AnnotationStore) AnnotationsByRelatedText(op relation.Operator, refs TextSelections) Annotations {
	return newCollection(s, Unordered, func() ([]AnnotationHandle, error) {
		if err := s.owns(refs.store); err != nil {
			return nil, err
		}
		sels, err := refs.items()
		if err != nil {
			return nil, err
		}
		return s.annotationsOn(s.relatedText(op, sels)), nil
	})
}

func (s *AnnotationStore) annotationsOn(sels []TextSelection) []AnnotationHandle {
	var out []AnnotationHandle
	for _, ts := range sels {
		out = append(out, s.annotationsOnSelection(ts)...)
	}
	return dedupe(out)
}

func (s *AnnotationStore) rangeOf(res Ref, begin, end int) (*TextResource, text.Span, error) {
	r, err := s.resource(res)
	if err != nil {
		return nil, text.Span{}, err
	}
	span := text.Span{Begin: begin, End: end}
	if err := r.text.Check(span); err != nil {
		return nil, text.Span{}, err
	}
	return r, span, nil
}

// AllData returns every datum of every dataset.
func (s *AnnotationStore) AllData() Data {
	return newCollection(s, Chronological, func() ([]DataRef, error) {
		var out []DataRef
		for _, d := range s.datasets {
			if d == nil {
				continue
			}
			for _, item := range d.data {
				if item != nil {
					out = append(out, item.Ref())
				}
			}
		}
		return out, nil
	})
}

// DataOf returns the data of an annotation in insertion order.
func (s *AnnotationStore) DataOf(annotation Ref) Data {
	return newCollection(s, Unordered, func() ([]DataRef, error) {
		a, err := s.annotation(annotation)
		if err != nil {
			return nil, err
		}
		return slices.Clone(a.data), nil
	})
}

// DataOfAnnotations returns the data held by any annotation of c.
func (s *AnnotationStore) DataOfAnnotations(c Annotations) Data {
	return newCollection(s, Unordered, func() ([]DataRef, error) {
		if err := s.owns(c.store); err != nil {
			return nil, err
		}
		hs, err := c.items()
		if err != nil {
			return nil, err
		}
		var out []DataRef
		for _, h := range hs {
			if a, ok := s.liveAnnotation(h); ok {
				out = append(out, a.data...)
			}
		}
		return dedupe(out), nil
	})
}

// DataInSet returns the data of one dataset.
func (s *AnnotationStore) DataInSet(set Ref) Data {
	return newCollection(s, Chronological, func() ([]DataRef, error) {
		d, err := s.dataset(set)
		if err != nil {
			return nil, err
		}
		var out []DataRef
		for _, item := range d.data {
			if item != nil {
				out = append(out, item.Ref())
			}
		}
		return out, nil
	})
}

// DataByKey returns the data of one key.
func (s *AnnotationStore) DataByKey(set, key Ref) Data {
	return newCollection(s, Chronological, func() ([]DataRef, error) {
		ref, err := s.keyRef(set, key)
		if err != nil {
			return nil, err
		}
		hs := s.datasets[ref.Set].keyData[ref.Key]
		out := make([]DataRef, len(hs))
		for i, h := range hs {
			out[i] = DataRef{Set: ref.Set, Data: h}
		}
		return out, nil
	})
}

// FindData searches data by value. A zero set searches every dataset and a
// zero key every key of the chosen datasets.
func (s *AnnotationStore) FindData(set, key Ref, op value.Operator) Data {
	var base Data
	switch {
	case !key.IsZero():
		base = s.DataByKey(set, key)
	case !set.IsZero():
		base = s.DataInSet(set)
	default:
		base = s.AllData()
	}
	if op.IsAny() {
		return base
	}
	return base.Filter(WithValue(op))
}

// TestData reports whether any data matches. An unknown set or key
// matches nothing.
func (s *AnnotationStore) TestData(set, key Ref, op value.Operator) (bool, error) {
	return s.FindData(set, key, op).Test()
}

// KeyAnnotationsCount counts annotations holding data with the key.
func (s *AnnotationStore) KeyAnnotationsCount(set, key Ref) (int, error) {
	return s.AnnotationsByKey(set, key).Len()
}

// DataAnnotationsCount counts annotations holding the data.
func (s *AnnotationStore) DataAnnotationsCount(set, data Ref) (int, error) {
	return s.AnnotationsByData(set, data).Len()
}

// TextSelectionsOf returns the text an annotation resolves to.
// Directional targets keep their declared order.
func (s *AnnotationStore) TextSelectionsOf(annotation Ref) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		a, err := s.annotation(annotation)
		if err != nil {
			return nil, err
		}
		return s.resolveText(&a.target)
	})
}

// TextSelectionsOfAnnotations returns the text of every annotation of c.
func (s *AnnotationStore) TextSelectionsOfAnnotations(c Annotations) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		if err := s.owns(c.store); err != nil {
			return nil, err
		}
		hs, err := c.items()
		if err != nil {
			return nil, err
		}
		var out []TextSelection
		for _, h := range hs {
			a, ok := s.liveAnnotation(h)
			if !ok {
				continue
			}
			sels, err := s.resolveText(&a.target)
			if err != nil {
				continue
			}
			out = append(out, sels...)
		}
		out = dedupeSelections(out)
		slices.SortFunc(out, compareSelections)
		return out, nil
	})
}

// TextSelectionsInResource returns the known selections of a resource.
func (s *AnnotationStore) TextSelectionsInResource(res Ref) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		out := s.knownSelections(r)
		slices.SortFunc(out, compareSelections)
		return out, nil
	})
}

// TextSelectionsInRange returns known selections embedded in [begin, end).
func (s *AnnotationStore) TextSelectionsInRange(res Ref, begin, end int) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		r, span, err := s.rangeOf(res, begin, end)
		if err != nil {
			return nil, err
		}
		return s.selectionsInRange(r, span), nil
	})
}

// RelatedText returns known selections c for which "refs op c" holds.
func (s *AnnotationStore) RelatedText(op relation.Operator, refs TextSelections) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		if err := s.owns(refs.store); err != nil {
			return nil, err
		}
		sels, err := refs.items()
		if err != nil {
			return nil, err
		}
		return s.relatedText(op, sels), nil
	})
}

// Segmentation cuts the resource text into the minimal segments delimited by
// the boundaries of every known selection.
func (s *AnnotationStore) Segmentation(res Ref) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		return s.segmentation(r), nil
	})
}

// FindText searches a resource, binding hits to known selections.
func (s *AnnotationStore) FindText(res Ref, fragment string, opts text.FindOptions) TextSelections {
	return newCollection(s, Textual, func() ([]TextSelection, error) {
		r, err := s.resource(res)
		if err != nil {
			return nil, err
		}
		found, err := r.FindText(fragment, opts)
		if err != nil {
			return nil, err
		}
		for i := range found {
			found[i] = r.bind(found[i])
		}
		return found, nil
	})
}

// Selections returns a collection over fixed selections, bound where known.
func (s *AnnotationStore) Selections(sels ...TextSelection) TextSelections {
	sels = slices.Clone(sels)
	return newCollection(s, Unordered, func() ([]TextSelection, error) {
		out := make([]TextSelection, 0, len(sels))
		for _, ts := range sels {
			if r, ok := s.liveResource(ts.Resource); ok {
				ts = r.bind(ts)
			}
			out = append(out, ts)
		}
		return out, nil
	})
}
