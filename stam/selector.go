package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/stam/text"
)

// SelectorKind discriminates the target shapes a selector can take.
type SelectorKind uint8

const (
	ResourceSelectorKind SelectorKind = iota + 1
	AnnotationSelectorKind
	TextSelectorKind
	DataSetSelectorKind
	DataKeySelectorKind
	AnnotationDataSelectorKind
	MultiSelectorKind
	CompositeSelectorKind
	DirectionalSelectorKind
)

var selectorKindNames = map[SelectorKind]string{
	ResourceSelectorKind:       "ResourceSelector",
	AnnotationSelectorKind:     "AnnotationSelector",
	TextSelectorKind:           "TextSelector",
	DataSetSelectorKind:        "DataSetSelector",
	DataKeySelectorKind:        "DataKeySelector",
	AnnotationDataSelectorKind: "AnnotationDataSelector",
	MultiSelectorKind:          "MultiSelector",
	CompositeSelectorKind:      "CompositeSelector",
	DirectionalSelectorKind:    "DirectionalSelector",
}

func (k SelectorKind) String() string {
	if name, ok := selectorKindNames[k]; ok {
		return name
	}
	return "InvalidSelector"
}

// Complex reports whether the kind combines subselectors.
func (k SelectorKind) Complex() bool {
	return k == MultiSelectorKind || k == CompositeSelectorKind || k == DirectionalSelectorKind
}

// Selector is a validated target held by an annotation. Simple kinds carry
// handles, complex kinds carry their subselectors in declared order.
type Selector struct {
	kind       SelectorKind
	resource   ResourceHandle
	dataset    DataSetHandle
	key        DataKeyHandle
	data       DataHandle
	annotation AnnotationHandle
	// span is the absolute span of a TextSelector.
	span text.Span
	// offset is the relative offset of an AnnotationSelector, nil for the whole target.
	offset *text.Offset
	subs   []Selector
}

func (s Selector) Kind() SelectorKind { return s.kind }

// Resource returns the resource of a TextSelector or ResourceSelector.
func (s Selector) Resource() (ResourceHandle, bool) {
	return s.resource, s.kind == TextSelectorKind || s.kind == ResourceSelectorKind
}

// DataSet returns the dataset of a DataSetSelector, DataKeySelector or AnnotationDataSelector.
func (s Selector) DataSet() (DataSetHandle, bool) {
	return s.dataset, s.kind == DataSetSelectorKind || s.kind == DataKeySelectorKind || s.kind == AnnotationDataSelectorKind
}

func (s Selector) Key() (KeyRef, bool) {
	return KeyRef{Set: s.dataset, Key: s.key}, s.kind == DataKeySelectorKind
}

func (s Selector) Data() (DataRef, bool) {
	return DataRef{Set: s.dataset, Data: s.data}, s.kind == AnnotationDataSelectorKind
}

func (s Selector) Annotation() (AnnotationHandle, bool) {
	return s.annotation, s.kind == AnnotationSelectorKind
}

// Span returns the absolute span of a TextSelector.
func (s Selector) Span() (text.Span, bool) {
	return s.span, s.kind == TextSelectorKind
}

// Offset returns the relative offset of an AnnotationSelector, if any.
func (s Selector) Offset() (text.Offset, bool) {
	if s.kind != AnnotationSelectorKind || s.offset == nil {
		return text.Offset{}, false
	}
	return *s.offset, true
}

// Subselectors returns the children of a complex selector.
func (s Selector) Subselectors() []Selector { return slices.Clone(s.subs) }

func (s Selector) clone() Selector {
	out := s
	if s.offset != nil {
		o := *s.offset
		out.offset = &o
	}
	if s.subs != nil {
		out.subs = make([]Selector, len(s.subs))
		for i, sub := range s.subs {
			out.subs[i] = sub.clone()
		}
	}
	return out
}

// SelectorBuilder describes a target by reference. The store validates and
// resolves it into a Selector when annotating.
type SelectorBuilder struct {
	Kind       SelectorKind
	Resource   Ref
	DataSet    Ref
	Key        Ref
	Data       Ref
	Annotation Ref
	// Offset is absolute for TextSelector and relative to the target's text for AnnotationSelector.
	Offset       *text.Offset
	Subselectors []SelectorBuilder
}

func TextSelector(resource Ref, offset text.Offset) SelectorBuilder {
	return SelectorBuilder{Kind: TextSelectorKind, Resource: resource, Offset: &offset}
}

func ResourceSelector(resource Ref) SelectorBuilder {
	return SelectorBuilder{Kind: ResourceSelectorKind, Resource: resource}
}

func DataSetSelector(set Ref) SelectorBuilder {
	return SelectorBuilder{Kind: DataSetSelectorKind, DataSet: set}
}

func DataKeySelector(set, key Ref) SelectorBuilder {
	return SelectorBuilder{Kind: DataKeySelectorKind, DataSet: set, Key: key}
}

func AnnotationDataSelector(set, data Ref) SelectorBuilder {
	return SelectorBuilder{Kind: AnnotationDataSelectorKind, DataSet: set, Data: data}
}

// AnnotationSelector targets another annotation, or part of its text when offset is set.
func AnnotationSelector(annotation Ref, offset *text.Offset) SelectorBuilder {
	return SelectorBuilder{Kind: AnnotationSelectorKind, Annotation: annotation, Offset: offset}
}

// MultiSelector targets each subselector independently.
func MultiSelector(subs ...SelectorBuilder) SelectorBuilder {
	return SelectorBuilder{Kind: MultiSelectorKind, Subselectors: subs}
}

// CompositeSelector targets the subselectors as one discontinuous whole.
func CompositeSelector(subs ...SelectorBuilder) SelectorBuilder {
	return SelectorBuilder{Kind: CompositeSelectorKind, Subselectors: subs}
}

// DirectionalSelector targets the subselectors as an ordered whole.
func DirectionalSelector(subs ...SelectorBuilder) SelectorBuilder {
	return SelectorBuilder{Kind: DirectionalSelectorKind, Subselectors: subs}
}

// SelectorFor builds a TextSelector for an existing selection.
func SelectorFor(ts TextSelection) SelectorBuilder {
	return TextSelector(ByHandle(ts.Resource), text.Simple(ts.Begin, ts.End))
}

// buildSelector validates b against the current store without mutating it.
func (s *AnnotationStore) buildSelector(b SelectorBuilder) (Selector, error) {
	sel := Selector{kind: b.Kind}
	switch b.Kind {
	case TextSelectorKind:
		r, err := s.resource(b.Resource)
		if err != nil {
			return Selector{}, err
		}
		if b.Offset == nil {
			return Selector{}, errors.NewInvalidSelectorError("text selector on %s needs an offset", b.Resource)
		}
		span, err := r.text.Resolve(*b.Offset)
		if err != nil {
			return Selector{}, err
		}
		sel.resource, sel.span = r.handle, span
	case ResourceSelectorKind:
		r, err := s.resource(b.Resource)
		if err != nil {
			return Selector{}, err
		}
		sel.resource = r.handle
	case DataSetSelectorKind:
		d, err := s.dataset(b.DataSet)
		if err != nil {
			return Selector{}, err
		}
		sel.dataset = d.handle
	case DataKeySelectorKind:
		ref, err := s.keyRef(b.DataSet, b.Key)
		if err != nil {
			return Selector{}, err
		}
		sel.dataset, sel.key = ref.Set, ref.Key
	case AnnotationDataSelectorKind:
		ref, err := s.dataRef(b.DataSet, b.Data)
		if err != nil {
			return Selector{}, err
		}
		sel.dataset, sel.data = ref.Set, ref.Data
	case AnnotationSelectorKind:
		a, err := s.annotation(b.Annotation)
		if err != nil {
			return Selector{}, err
		}
		sel.annotation = a.handle
		if b.Offset != nil {
			o := *b.Offset
			sel.offset = &o
			if _, err := s.resolveText(&sel); err != nil {
				return Selector{}, err
			}
		}
	case MultiSelectorKind, CompositeSelectorKind, DirectionalSelectorKind:
		if len(b.Subselectors) == 0 {
			return Selector{}, errors.NewInvalidSelectorError("%s without subselectors", b.Kind)
		}
		sel.subs = make([]Selector, 0, len(b.Subselectors))
		for i, sb := range b.Subselectors {
			sub, err := s.buildSelector(sb)
			if err != nil {
				return Selector{}, errors.Wrapf(err, "%s subselector %d", b.Kind, i)
			}
			sel.subs = append(sel.subs, sub)
		}
	default:
		return Selector{}, errors.NewInvalidSelectorError("unknown selector kind %d", b.Kind)
	}
	return sel, nil
}

// walkSelector visits sel and every subselector depth first.
func (s *AnnotationStore) walkSelector(sel *Selector, fn func(*Selector)) {
	fn(sel)
	for i := range sel.subs {
		s.walkSelector(&sel.subs[i], fn)
	}
}

// resolveText resolves sel to text selections. Directional selectors keep
// their declared order, other complex selectors are sorted textually.
// Targets without text yield no selections. Removed targets yield
// ErrDanglingReference.
func (s *AnnotationStore) resolveText(sel *Selector) ([]TextSelection, error) {
	switch sel.kind {
	case TextSelectorKind:
		r, ok := s.liveResource(sel.resource)
		if !ok {
			return nil, errors.NewDanglingReferenceError("resource %d", sel.resource)
		}
		return []TextSelection{r.bind(r.selection(sel.span))}, nil
	case ResourceSelectorKind:
		if _, ok := s.liveResource(sel.resource); !ok {
			return nil, errors.NewDanglingReferenceError("resource %d", sel.resource)
		}
		return nil, nil
	case DataSetSelectorKind:
		if int(sel.dataset) >= len(s.datasets) || s.datasets[sel.dataset] == nil {
			return nil, errors.NewDanglingReferenceError("dataset %d", sel.dataset)
		}
		return nil, nil
	case DataKeySelectorKind:
		if _, ok := s.liveKey(KeyRef{Set: sel.dataset, Key: sel.key}); !ok {
			return nil, errors.NewDanglingReferenceError("key %d/%d", sel.dataset, sel.key)
		}
		return nil, nil
	case AnnotationDataSelectorKind:
		if _, ok := s.liveData(DataRef{Set: sel.dataset, Data: sel.data}); !ok {
			return nil, errors.NewDanglingReferenceError("data %d/%d", sel.dataset, sel.data)
		}
		return nil, nil
	case AnnotationSelectorKind:
		return s.resolveAnnotationTarget(sel)
	}

	var out []TextSelection
	for i := range sel.subs {
		sub, err := s.resolveText(&sel.subs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	if sel.kind != DirectionalSelectorKind {
		slices.SortStableFunc(out, compareSelections)
		out = slices.CompactFunc(out, func(a, b TextSelection) bool { return a.SameAs(b) })
	}
	return out, nil
}

func (s *AnnotationStore) resolveAnnotationTarget(sel *Selector) ([]TextSelection, error) {
	target, ok := s.liveAnnotation(sel.annotation)
	if !ok {
		return nil, errors.NewDanglingReferenceError("annotation %d", sel.annotation)
	}
	inner, err := s.resolveText(&target.target)
	if err != nil {
		return nil, err
	}
	if sel.offset == nil {
		return inner, nil
	}
	if len(inner) == 0 {
		return nil, errors.NewInvalidSelectorError("offset %s on annotation %s that has no text", sel.offset, target.PublicID())
	}
	outer := inner[0]
	for _, ts := range inner[1:] {
		if ts.Resource != outer.Resource {
			return nil, errors.NewInvalidSelectorError("offset %s on annotation %s spanning several resources", sel.offset, target.PublicID())
		}
		outer.Begin = min(outer.Begin, ts.Begin)
		outer.End = max(outer.End, ts.End)
	}
	span, err := outer.Span().Absolute(*sel.offset)
	if err != nil {
		return nil, err
	}
	r, ok := s.liveResource(outer.Resource)
	if !ok {
		return nil, errors.NewDanglingReferenceError("resource %d", outer.Resource)
	}
	return []TextSelection{r.bind(r.selection(span))}, nil
}

// references reports whether sel mentions the entity that match recognises.
func (s *AnnotationStore) references(sel *Selector, match func(*Selector) bool) bool {
	found := false
	s.walkSelector(sel, func(sub *Selector) {
		if !found && match(sub) {
			found = true
		}
	})
	return found
}
