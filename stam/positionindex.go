package stam

import (
	"slices"
	"sort"

	"github.com/teranos/stam/stam/text"
)

// posLink ties a boundary position to the selection that starts or ends there.
// other is the opposite boundary of that selection.
type posLink struct {
	other  int
	handle TextSelectionHandle
}

type positionItem struct {
	begin2end []posLink // selections beginning here, ordered by end
	end2begin []posLink // selections ending here, ordered by begin
}

// positionIndex lists every boundary of a resource's selections in
// ascending order. While deferred is set, positions and links are appended
// unsorted and finalize must run before the next read.
type positionIndex struct {
	positions []int
	items     map[int]*positionItem
	deferred  bool
}

func newPositionIndex() *positionIndex {
	return &positionIndex{items: make(map[int]*positionItem)}
}

func comparePosLink(a, b posLink) int {
	if a.other != b.other {
		return a.other - b.other
	}
	return int(a.handle) - int(b.handle)
}

func (p *positionIndex) item(pos int) *positionItem {
	it, ok := p.items[pos]
	if !ok {
		it = &positionItem{}
		p.items[pos] = it
		if p.deferred {
			p.positions = append(p.positions, pos)
		} else {
			i, _ := slices.BinarySearch(p.positions, pos)
			p.positions = slices.Insert(p.positions, i, pos)
		}
	}
	return it
}

func insertLink(list []posLink, l posLink, deferred bool) []posLink {
	if deferred {
		return append(list, l)
	}
	i, found := slices.BinarySearchFunc(list, l, comparePosLink)
	if found {
		return list
	}
	return slices.Insert(list, i, l)
}

func (p *positionIndex) insert(span text.Span, h TextSelectionHandle) {
	b := p.item(span.Begin)
	b.begin2end = insertLink(b.begin2end, posLink{other: span.End, handle: h}, p.deferred)
	e := p.item(span.End)
	e.end2begin = insertLink(e.end2begin, posLink{other: span.Begin, handle: h}, p.deferred)
}

func removeLink(list []posLink, l posLink) ([]posLink, bool) {
	i, found := slices.BinarySearchFunc(list, l, comparePosLink)
	if !found {
		return list, false
	}
	return slices.Delete(list, i, i+1), true
}

// remove drops a selection, reporting false when it was not indexed.
func (p *positionIndex) remove(span text.Span, h TextSelectionHandle) bool {
	b, okb := p.items[span.Begin]
	e, oke := p.items[span.End]
	if !okb || !oke {
		return false
	}
	var ok1, ok2 bool
	b.begin2end, ok1 = removeLink(b.begin2end, posLink{other: span.End, handle: h})
	e.end2begin, ok2 = removeLink(e.end2begin, posLink{other: span.Begin, handle: h})
	p.prune(span.Begin)
	if span.End != span.Begin {
		p.prune(span.End)
	}
	return ok1 && ok2
}

func (p *positionIndex) contains(span text.Span, h TextSelectionHandle) bool {
	b, ok := p.items[span.Begin]
	if !ok {
		return false
	}
	_, found := slices.BinarySearchFunc(b.begin2end, posLink{other: span.End, handle: h}, comparePosLink)
	return found
}

func (p *positionIndex) prune(pos int) {
	it, ok := p.items[pos]
	if !ok || len(it.begin2end) > 0 || len(it.end2begin) > 0 {
		return
	}
	delete(p.items, pos)
	if i, found := slices.BinarySearch(p.positions, pos); found {
		p.positions = slices.Delete(p.positions, i, i+1)
	}
}

// finalize restores ordering after a deferred bulk insertion.
func (p *positionIndex) finalize() {
	if !p.deferred {
		return
	}
	p.deferred = false
	sort.Ints(p.positions)
	p.positions = slices.Compact(p.positions)
	for _, it := range p.items {
		slices.SortFunc(it.begin2end, comparePosLink)
		it.begin2end = slices.CompactFunc(it.begin2end, func(a, b posLink) bool { return a == b })
		slices.SortFunc(it.end2begin, comparePosLink)
		it.end2begin = slices.CompactFunc(it.end2begin, func(a, b posLink) bool { return a == b })
	}
}

// window returns the index range of positions within [lo, hi].
func (p *positionIndex) window(lo, hi int) (int, int) {
	from := sort.SearchInts(p.positions, lo)
	to := sort.SearchInts(p.positions, hi+1)
	return from, to
}

// beginsIn visits selections beginning within [lo, hi] in textual order.
// It stops when fn returns false.
func (p *positionIndex) beginsIn(lo, hi int, fn func(span text.Span, h TextSelectionHandle) bool) {
	from, to := p.window(lo, hi)
	for _, pos := range p.positions[from:to] {
		for _, l := range p.items[pos].begin2end {
			if !fn(text.Span{Begin: pos, End: l.other}, l.handle) {
				return
			}
		}
	}
}

// endsIn visits selections ending within [lo, hi].
func (p *positionIndex) endsIn(lo, hi int, fn func(span text.Span, h TextSelectionHandle) bool) {
	from, to := p.window(lo, hi)
	for _, pos := range p.positions[from:to] {
		for _, l := range p.items[pos].end2begin {
			if !fn(text.Span{Begin: l.other, End: pos}, l.handle) {
				return
			}
		}
	}
}

// boundaries returns every indexed position.
func (p *positionIndex) boundaries() []int {
	return slices.Clone(p.positions)
}

func (p *positionIndex) shrink() {
	p.positions = clipSlice(p.positions)
	for _, it := range p.items {
		it.begin2end = clipSlice(it.begin2end)
		it.end2begin = clipSlice(it.end2begin)
	}
}
