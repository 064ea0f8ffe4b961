package stam

import (
	"slices"
	"unicode"

	"github.com/teranos/stam/stam/relation"
	"github.com/teranos/stam/stam/text"
)

func (s *AnnotationStore) gap(h ResourceHandle) relation.Gap {
	if r, ok := s.liveResource(h); ok {
		return r.text
	}
	return nil
}

func spansOf(sels []TextSelection, res ResourceHandle) []text.Span {
	out := make([]text.Span, 0, len(sels))
	for _, ts := range sels {
		if ts.Resource == res {
			out = append(out, ts.Span())
		}
	}
	return out
}

func resourcesOf(sels []TextSelection) []ResourceHandle {
	var out []ResourceHandle
	for _, ts := range sels {
		out = appendUnique(out, ts.Resource)
	}
	return out
}

// testRelation applies op between the reference and candidate selections.
// Relations only hold within one resource. In all mode every selection of
// both sides must share that resource.
func (s *AnnotationStore) testRelation(op relation.Operator, refs, cands []TextSelection) bool {
	negate := op.Negate
	op.Negate = false
	holds := false
	if op.All {
		resources := resourcesOf(append(slices.Clone(refs), cands...))
		if len(resources) == 1 {
			holds = op.Test(spansOf(refs, resources[0]), spansOf(cands, resources[0]), s.gap(resources[0]))
		}
	} else {
		for _, res := range resourcesOf(refs) {
			b := spansOf(cands, res)
			if len(b) > 0 && op.Test(spansOf(refs, res), b, s.gap(res)) {
				holds = true
				break
			}
		}
	}
	return holds != negate
}

// knownSelections lists the selections annotations refer to on r.
func (s *AnnotationStore) knownSelections(r *TextResource) []TextSelection {
	if r.positions != nil {
		return r.liveSelections()
	}
	var out []TextSelection
	for _, h := range s.annotationsReferencing(s.config.ResourceAnnotationMap, s.idx.resourceAnnotations[r.handle], func(a *Annotation) bool {
		return slices.Contains(a.footprint.resources, r.handle)
	}) {
		a := s.annotations[h]
		sels, err := s.resolveText(&a.target)
		if err != nil {
			continue
		}
		for _, ts := range sels {
			if ts.Resource == r.handle {
				out = append(out, ts)
			}
		}
	}
	out = dedupeSelections(out)
	slices.SortFunc(out, compareSelections)
	return out
}

// relatedText finds known selections c for which "refs op c" holds.
// The references themselves are excluded except for equality.
func (s *AnnotationStore) relatedText(op relation.Operator, refs []TextSelection) []TextSelection {
	refs = dedupeSelections(slices.Clone(refs))
	var cands []TextSelection
	for _, res := range resourcesOf(refs) {
		r, ok := s.liveResource(res)
		if !ok {
			continue
		}
		if op.Negate || r.positions == nil {
			cands = append(cands, s.knownSelections(r)...)
			continue
		}
		for _, ref := range refs {
			if ref.Resource == res {
				cands = append(cands, s.candidates(r, op, ref.Span())...)
			}
		}
	}
	cands = dedupeSelections(cands)
	isRef := make(map[selectionKey]bool, len(refs))
	for _, ref := range refs {
		isRef[ref.key()] = true
	}
	out := cands[:0]
	for _, c := range cands {
		if op.Kind != relation.Equals && isRef[c.key()] {
			continue
		}
		if s.testRelation(op, refs, []TextSelection{c}) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, compareSelections)
	return out
}

// candidates narrows the position index to selections that may satisfy
// "ref op c" in any mode. The caller tests them exactly.
func (s *AnnotationStore) candidates(r *TextResource, op relation.Operator, ref text.Span) []TextSelection {
	var out []TextSelection
	collect := func(span text.Span, h TextSelectionHandle) bool {
		out = append(out, TextSelection{Resource: r.handle, Begin: span.Begin, End: span.End, handle: h, bound: true})
		return true
	}
	p := r.positions
	textlen := r.Len()
	switch op.Kind {
	case relation.Equals, relation.SameBegin:
		p.beginsIn(ref.Begin, ref.Begin, collect)
	case relation.SameEnd:
		p.endsIn(ref.End, ref.End, collect)
	case relation.Overlaps:
		if ref.End > 0 {
			p.beginsIn(0, ref.End-1, collect)
		}
	case relation.Embeds:
		p.beginsIn(ref.Begin, ref.End, collect)
	case relation.Embedded:
		p.beginsIn(0, ref.Begin, collect)
	case relation.Before:
		hi := textlen
		if op.Limit > 0 {
			hi = min(ref.End+op.Limit, textlen)
		}
		p.beginsIn(ref.End, hi, collect)
	case relation.After:
		lo := 0
		if op.Limit > 0 {
			lo = max(ref.Begin-op.Limit, 0)
		}
		p.endsIn(lo, ref.Begin, collect)
	case relation.Precedes:
		hi := ref.End
		if op.AllowWhitespace {
			hi = s.whitespaceRun(r, ref.End, 1, op.Limit)
		}
		p.beginsIn(ref.End, hi, collect)
	case relation.Succeeds:
		lo := ref.Begin
		if op.AllowWhitespace {
			lo = s.whitespaceRun(r, ref.Begin, -1, op.Limit)
		}
		p.endsIn(lo, ref.Begin, collect)
	}
	return out
}

// whitespaceRun returns how far whitespace extends from pos in direction dir,
// bounded by limit codepoints when limit is positive.
func (s *AnnotationStore) whitespaceRun(r *TextResource, pos, dir, limit int) int {
	var window text.Span
	if dir > 0 {
		window = text.Span{Begin: pos, End: r.Len()}
		if limit > 0 {
			window.End = min(pos+limit, r.Len())
		}
	} else {
		window = text.Span{Begin: 0, End: pos}
		if limit > 0 {
			window.Begin = max(pos-limit, 0)
		}
	}
	str, err := r.text.Slice(window)
	if err != nil {
		return pos
	}
	runes := []rune(str)
	n := 0
	if dir > 0 {
		for n < len(runes) && unicode.IsSpace(runes[n]) {
			n++
		}
		return pos + n
	}
	for n < len(runes) && unicode.IsSpace(runes[len(runes)-1-n]) {
		n++
	}
	return pos - n
}

// selectionsAt lists known selections covering position pos.
func (s *AnnotationStore) selectionsAt(r *TextResource, pos int) []TextSelection {
	var out []TextSelection
	if r.positions != nil {
		r.positions.beginsIn(0, pos, func(span text.Span, h TextSelectionHandle) bool {
			if span.End > pos {
				out = append(out, TextSelection{Resource: r.handle, Begin: span.Begin, End: span.End, handle: h, bound: true})
			}
			return true
		})
		return out
	}
	for _, ts := range s.knownSelections(r) {
		if ts.Begin <= pos && pos < ts.End {
			out = append(out, ts)
		}
	}
	return out
}

// selectionsInRange lists known selections embedded in span.
func (s *AnnotationStore) selectionsInRange(r *TextResource, span text.Span) []TextSelection {
	var out []TextSelection
	if r.positions != nil {
		r.positions.beginsIn(span.Begin, span.End, func(sp text.Span, h TextSelectionHandle) bool {
			if sp.End <= span.End {
				out = append(out, TextSelection{Resource: r.handle, Begin: sp.Begin, End: sp.End, handle: h, bound: true})
			}
			return true
		})
		return out
	}
	for _, ts := range s.knownSelections(r) {
		if span.Begin <= ts.Begin && ts.End <= span.End {
			out = append(out, ts)
		}
	}
	return out
}

// segmentation cuts the whole text at every boundary of a known selection.
func (s *AnnotationStore) segmentation(r *TextResource) []TextSelection {
	var boundaries []int
	if r.positions != nil {
		boundaries = r.positions.boundaries()
	} else {
		for _, ts := range s.knownSelections(r) {
			boundaries = append(boundaries, ts.Begin, ts.End)
		}
	}
	segments := text.Segment(r.text.Whole(), boundaries)
	out := make([]TextSelection, len(segments))
	for i, seg := range segments {
		out[i] = r.bind(r.selection(seg))
	}
	return out
}

// annotationsOnSelection lists annotations whose text includes ts.
func (s *AnnotationStore) annotationsOnSelection(ts TextSelection) []AnnotationHandle {
	r, ok := s.liveResource(ts.Resource)
	if !ok {
		return nil
	}
	if s.config.TextRelationMap {
		h, registered := r.lookup(ts.Span())
		if !registered {
			return nil
		}
		return slices.Clone(s.idx.textAnnotations[textKey{resource: r.handle, selection: h}])
	}
	var out []AnnotationHandle
	for _, a := range s.annotations {
		if a == nil || !slices.Contains(a.footprint.resources, ts.Resource) {
			continue
		}
		sels, err := s.resolveText(&a.target)
		if err != nil {
			continue
		}
		if slices.ContainsFunc(sels, ts.SameAs) {
			out = append(out, a.handle)
		}
	}
	return out
}

// annotationsWithData lists annotations holding ref.
func (s *AnnotationStore) annotationsWithData(ref DataRef) []AnnotationHandle {
	return s.annotationsReferencing(s.config.DataAnnotationMap, s.idx.dataAnnotations[ref], func(a *Annotation) bool {
		return a.hasData(ref)
	})
}

// annotationsReferencing returns the indexed list when the index is
// enabled and otherwise scans for annotations matching pred.
func (s *AnnotationStore) annotationsReferencing(indexed bool, list []AnnotationHandle, pred func(*Annotation) bool) []AnnotationHandle {
	if indexed {
		return slices.Clone(list)
	}
	var out []AnnotationHandle
	for _, a := range s.annotations {
		if a != nil && pred(a) {
			out = append(out, a.handle)
		}
	}
	return out
}
