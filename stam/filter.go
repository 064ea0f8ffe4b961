package stam

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/value"
)

type filterKind uint8

const (
	filterKey filterKind = iota + 1
	filterValue
	filterData
	filterDataSet
	filterResource
	filterAnnotation
	filterInAnnotations
	filterInData
	filterInTextSelections
	filterRelated
)

// Filter constrains a collection. Filters hold references, not handles;
// they are resolved each time the collection is evaluated.
type Filter struct {
	kind        filterKind
	set         Ref
	ref         Ref
	op          value.Operator
	hasOp       bool
	rel         relation.Operator
	annotations *Annotations
	data        *Data
	selections  *TextSelections
}

// WithKey keeps items carrying data with the given key.
func WithKey(set, key Ref) Filter {
	return Filter{kind: filterKey, set: set, ref: key}
}

// WithKeyValue keeps items carrying data with the given key whose value satisfies op.
func WithKeyValue(set, key Ref, op value.Operator) Filter {
	return Filter{kind: filterKey, set: set, ref: key, op: op, hasOp: true}
}

// WithValue tests data values. On annotation and text selection collections
// it narrows the key filters it is combined with and is invalid without one.
func WithValue(op value.Operator) Filter {
	return Filter{kind: filterValue, op: op, hasOp: true}
}

// WithData keeps items carrying the given data.
func WithData(set, data Ref) Filter {
	return Filter{kind: filterData, set: set, ref: data}
}

// WithDataSet keeps items carrying data from the given dataset.
func WithDataSet(set Ref) Filter {
	return Filter{kind: filterDataSet, set: set}
}

// WithResource keeps items that reference the given resource.
func WithResource(resource Ref) Filter {
	return Filter{kind: filterResource, ref: resource}
}

// WithAnnotation keeps items belonging to the given annotation.
func WithAnnotation(annotation Ref) Filter {
	return Filter{kind: filterAnnotation, ref: annotation}
}

// InAnnotations intersects with the annotations of another collection.
func InAnnotations(c Annotations) Filter {
	return Filter{kind: filterInAnnotations, annotations: &c}
}

// InData intersects with the data of another collection.
func InData(c Data) Filter {
	return Filter{kind: filterInData, data: &c}
}

// InTextSelections intersects with the selections of another collection.
func InTextSelections(c TextSelections) Filter {
	return Filter{kind: filterInTextSelections, selections: &c}
}

// Related keeps items whose text stands in relation op to the reference selections.
func Related(op relation.Operator, refs TextSelections) Filter {
	return Filter{kind: filterRelated, rel: op, selections: &refs}
}

type preparedFilter struct {
	kind        filterKind
	key         KeyRef
	op          value.Operator
	hasOp       bool
	data        DataRef
	set         DataSetHandle
	resource    ResourceHandle
	annotation  AnnotationHandle
	annotations *roaring.Bitmap
	dataBits    map[DataSetHandle]*roaring.Bitmap
	selections  map[selectionKey]struct{}
	rel         relation.Operator
	refs        []TextSelection
}

// prepare resolves filters against the current state. Value filters fold
// into the key filters of the same request unless the items are data.
func (s *AnnotationStore) prepare(filters []Filter, dataItems bool) ([]preparedFilter, error) {
	out := make([]preparedFilter, 0, len(filters))
	var values []value.Operator
	keys := 0
	for _, f := range filters {
		if f.hasOp {
			if err := f.op.Validate(); err != nil {
				return nil, err
			}
		}
		if f.kind == filterValue && !dataItems {
			values = append(values, f.op)
			continue
		}
		if f.kind == filterKey {
			keys++
		}
		p, err := s.prepareOne(f)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(values) > 0 {
		if keys == 0 {
			return nil, errors.NewInvalidRequestError("value filter on annotations needs a key filter")
		}
		for i := range out {
			if out[i].kind != filterKey {
				continue
			}
			ops := values
			if out[i].hasOp {
				ops = append([]value.Operator{out[i].op}, values...)
			}
			out[i].op = value.And(ops...)
			if len(ops) == 1 {
				out[i].op = ops[0]
			}
			out[i].hasOp = true
		}
	}
	return out, nil
}

func (s *AnnotationStore) prepareOne(f Filter) (preparedFilter, error) {
	p := preparedFilter{kind: f.kind, op: f.op, hasOp: f.hasOp, rel: f.rel}
	switch f.kind {
	case filterKey:
		ref, err := s.keyRef(f.set, f.ref)
		if err != nil {
			return p, err
		}
		p.key = ref
	case filterData:
		ref, err := s.dataRef(f.set, f.ref)
		if err != nil {
			return p, err
		}
		p.data = ref
	case filterDataSet:
		d, err := s.dataset(f.set)
		if err != nil {
			return p, err
		}
		p.set = d.handle
	case filterResource:
		r, err := s.resource(f.ref)
		if err != nil {
			return p, err
		}
		p.resource = r.handle
	case filterAnnotation:
		a, err := s.annotation(f.ref)
		if err != nil {
			return p, err
		}
		p.annotation = a.handle
	case filterInAnnotations:
		if err := s.owns(f.annotations.store); err != nil {
			return p, err
		}
		hs, err := f.annotations.items()
		if err != nil {
			return p, err
		}
		p.annotations = roaring.New()
		for _, h := range hs {
			p.annotations.Add(uint32(h))
		}
	case filterInData:
		if err := s.owns(f.data.store); err != nil {
			return p, err
		}
		refs, err := f.data.items()
		if err != nil {
			return p, err
		}
		p.dataBits = make(map[DataSetHandle]*roaring.Bitmap)
		for _, ref := range refs {
			bm, ok := p.dataBits[ref.Set]
			if !ok {
				bm = roaring.New()
				p.dataBits[ref.Set] = bm
			}
			bm.Add(uint32(ref.Data))
		}
	case filterInTextSelections, filterRelated:
		if err := s.owns(f.selections.store); err != nil {
			return p, err
		}
		sels, err := f.selections.items()
		if err != nil {
			return p, err
		}
		if f.kind == filterRelated {
			p.refs = sels
			break
		}
		p.selections = make(map[selectionKey]struct{})
		for _, ts := range sels {
			p.selections[ts.key()] = struct{}{}
		}
	}
	return p, nil
}

// owns checks that a collection nested in a filter belongs to s. The
// read lock is already held, so foreign collections cannot be evaluated.
func (s *AnnotationStore) owns(owner *AnnotationStore) error {
	if owner != nil && owner != s {
		return errors.NewInvalidRequestError("filter collection belongs to another store")
	}
	return nil
}

func (p *preparedFilter) dataLevel() bool {
	switch p.kind {
	case filterKey, filterValue, filterData, filterDataSet, filterInData:
		return true
	}
	return false
}

// dataPasses tests a data-level filter against one datum.
func (p *preparedFilter) dataPasses(d *AnnotationData) (bool, error) {
	switch p.kind {
	case filterKey:
		if d.Key() != p.key {
			return false, nil
		}
		if !p.hasOp {
			return true, nil
		}
		return p.op.Test(d.value)
	case filterValue:
		return p.op.Test(d.value)
	case filterData:
		return d.Ref() == p.data, nil
	case filterDataSet:
		return d.set == p.set, nil
	case filterInData:
		bm, ok := p.dataBits[d.set]
		return ok && bm.Contains(uint32(d.handle)), nil
	}
	return false, errors.AssertionFailedf("filter kind %d is not data level", p.kind)
}

func (s *AnnotationStore) annotationPasses(p *preparedFilter, a *Annotation) (bool, error) {
	if p.dataLevel() {
		for _, ref := range a.data {
			d, ok := s.liveData(ref)
			if !ok {
				continue
			}
			pass, err := p.dataPasses(d)
			if err != nil || pass {
				return pass, err
			}
		}
		return false, nil
	}
	switch p.kind {
	case filterResource:
		for _, r := range a.footprint.resources {
			if r == p.resource {
				return true, nil
			}
		}
		return false, nil
	case filterAnnotation:
		return a.handle == p.annotation, nil
	case filterInAnnotations:
		return p.annotations.Contains(uint32(a.handle)), nil
	}
	sels, err := s.resolveText(&a.target)
	if err != nil {
		if errors.Is(err, errors.ErrDanglingReference) {
			return false, nil
		}
		return false, err
	}
	switch p.kind {
	case filterInTextSelections:
		for _, ts := range sels {
			if _, ok := p.selections[ts.key()]; ok {
				return true, nil
			}
		}
		return false, nil
	case filterRelated:
		return s.testRelation(p.rel, p.refs, sels), nil
	}
	return false, errors.AssertionFailedf("unhandled filter kind %d", p.kind)
}

func (s *AnnotationStore) dataItemPasses(p *preparedFilter, d *AnnotationData) (bool, error) {
	if p.dataLevel() {
		return p.dataPasses(d)
	}
	for _, h := range s.annotationsWithData(d.Ref()) {
		a, ok := s.liveAnnotation(h)
		if !ok {
			continue
		}
		pass, err := s.annotationPasses(p, a)
		if err != nil || pass {
			return pass, err
		}
	}
	return false, nil
}

func (s *AnnotationStore) selectionPasses(p *preparedFilter, ts TextSelection) (bool, error) {
	switch p.kind {
	case filterResource:
		return ts.Resource == p.resource, nil
	case filterInTextSelections:
		_, ok := p.selections[ts.key()]
		return ok, nil
	case filterRelated:
		return s.testRelation(p.rel, p.refs, []TextSelection{ts}), nil
	}
	for _, h := range s.annotationsOnSelection(ts) {
		a, ok := s.liveAnnotation(h)
		if !ok {
			continue
		}
		pass, err := s.annotationPasses(p, a)
		if err != nil || pass {
			return pass, err
		}
	}
	return false, nil
}
