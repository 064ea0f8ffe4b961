package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
)

// Order describes how a collection's items are arranged.
type Order uint8

const (
	// Unordered keeps whatever order the source produced.
	Unordered Order = iota
	// Chronological sorts by handle, which is insertion order.
	Chronological
	// Textual sorts by resource, then begin, then end of the text.
	Textual
)

func (o Order) String() string {
	switch o {
	case Chronological:
		return "chronological"
	case Textual:
		return "textual"
	}
	return "unordered"
}

type item interface {
	AnnotationHandle | DataRef | TextSelection
}

// Collection is a lazy, filterable result set. Nothing is evaluated until
// Items, Each, Len, First or Test is called; each of those evaluates
// against the store state at that moment under a shared lock.
type Collection[T item] struct {
	store   *AnnotationStore
	source  func() ([]T, error)
	order   Order
	sortBy  Order
	filters []Filter
	limit   int
}

type (
	Annotations    = Collection[AnnotationHandle]
	Data           = Collection[DataRef]
	TextSelections = Collection[TextSelection]
)

func newCollection[T item](s *AnnotationStore, order Order, source func() ([]T, error)) Collection[T] {
	return Collection[T]{store: s, source: source, order: order}
}

// Of builds a collection over fixed items.
func Of[T item](s *AnnotationStore, items ...T) Collection[T] {
	items = slices.Clone(items)
	return newCollection(s, Unordered, func() ([]T, error) { return items, nil })
}

// Filter returns a collection restricted to items matching every filter.
func (c Collection[T]) Filter(filters ...Filter) Collection[T] {
	c.filters = append(slices.Clone(c.filters), filters...)
	return c
}

// Limit caps the number of items produced. Zero removes the cap.
func (c Collection[T]) Limit(n int) Collection[T] {
	c.limit = n
	return c
}

// Sorted returns a collection that produces its items in order o.
func (c Collection[T]) Sorted(o Order) Collection[T] {
	c.sortBy = o
	return c
}

// Order reports the order Items will produce.
func (c Collection[T]) Order() Order {
	if c.sortBy != Unordered {
		return c.sortBy
	}
	return c.order
}

// Items evaluates the collection.
func (c Collection[T]) Items() ([]T, error) {
	if c.store == nil {
		return nil, nil
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	return c.items()
}

// Each calls fn for every item until fn returns false.
// The store is read-locked for the duration, so fn must not mutate it.
func (c Collection[T]) Each(fn func(T) bool) error {
	if c.store == nil {
		return nil
	}
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()
	if c.needsSort() {
		items, err := c.items()
		if err != nil {
			return err
		}
		for _, it := range items {
			if !fn(it) {
				break
			}
		}
		return nil
	}
	return c.scan(fn)
}

// Len counts the items.
func (c Collection[T]) Len() (int, error) {
	n := 0
	err := c.Each(func(T) bool {
		n++
		return true
	})
	return n, err
}

// Test reports whether at least one item matches, stopping at the first.
// A source or filter naming an unknown entity matches nothing.
func (c Collection[T]) Test() (bool, error) {
	found := false
	err := c.Limit(1).Sorted(Unordered).Each(func(T) bool {
		found = true
		return false
	})
	if errors.IsNotFoundError(err) {
		return false, nil
	}
	return found, err
}

// First returns the first item.
func (c Collection[T]) First() (T, bool, error) {
	var out T
	found := false
	err := c.Limit(1).Each(func(it T) bool {
		out, found = it, true
		return false
	})
	return out, found, err
}

func (c Collection[T]) needsSort() bool {
	return c.sortBy != Unordered && c.sortBy != c.order
}

// items evaluates under a lock held by the caller.
func (c Collection[T]) items() ([]T, error) {
	if c.store == nil {
		return nil, nil
	}
	limit := c.limit
	if c.needsSort() {
		c.limit = 0
	}
	var out []T
	if err := c.scan(func(it T) bool {
		out = append(out, it)
		return true
	}); err != nil {
		return nil, err
	}
	if c.needsSort() {
		c.store.sortItems(out, c.sortBy)
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
	}
	return out, nil
}

func (c Collection[T]) scan(fn func(T) bool) error {
	src, err := c.source()
	if err != nil {
		return err
	}
	var zero T
	p, err := c.store.prepare(c.filters, isData(zero))
	if err != nil {
		return err
	}
	n := 0
	for _, it := range src {
		ok, err := c.store.matchItem(p, it)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		n++
		if !fn(it) || (c.limit > 0 && n >= c.limit) {
			return nil
		}
	}
	return nil
}

func isData[T item](v T) bool {
	_, ok := any(v).(DataRef)
	return ok
}

func (s *AnnotationStore) matchItem(p []preparedFilter, it any) (bool, error) {
	for i := range p {
		var ok bool
		var err error
		switch v := it.(type) {
		case AnnotationHandle:
			a, live := s.liveAnnotation(v)
			if !live {
				return false, nil
			}
			ok, err = s.annotationPasses(&p[i], a)
		case DataRef:
			d, live := s.liveData(v)
			if !live {
				return false, nil
			}
			ok, err = s.dataItemPasses(&p[i], d)
		case TextSelection:
			ok, err = s.selectionPasses(&p[i], v)
		default:
			return false, errors.AssertionFailedf("unexpected collection item %T", it)
		}
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (s *AnnotationStore) sortItems(items any, o Order) {
	switch v := items.(type) {
	case []AnnotationHandle:
		if o == Textual {
			s.sortAnnotationsTextually(v)
		} else {
			slices.Sort(v)
		}
	case []DataRef:
		slices.SortFunc(v, func(a, b DataRef) int {
			if a.Set != b.Set {
				return int(a.Set) - int(b.Set)
			}
			return int(a.Data) - int(b.Data)
		})
	case []TextSelection:
		if o == Textual {
			slices.SortStableFunc(v, compareSelections)
		} else {
			slices.SortStableFunc(v, func(a, b TextSelection) int { return int(a.handle) - int(b.handle) })
		}
	}
}

// sortAnnotationsTextually orders annotations by the first selection of
// their text. Annotations without text come last, in handle order.
func (s *AnnotationStore) sortAnnotationsTextually(hs []AnnotationHandle) {
	first := make(map[AnnotationHandle]TextSelection, len(hs))
	for _, h := range hs {
		a, ok := s.liveAnnotation(h)
		if !ok {
			continue
		}
		if sels, err := s.resolveText(&a.target); err == nil && len(sels) > 0 {
			first[h] = slices.MinFunc(sels, compareSelections)
		}
	}
	slices.SortStableFunc(hs, func(a, b AnnotationHandle) int {
		ta, oka := first[a]
		tb, okb := first[b]
		switch {
		case oka && okb:
			if c := compareSelections(ta, tb); c != 0 {
				return c
			}
		case oka:
			return -1
		case okb:
			return 1
		}
		return int(a) - int(b)
	})
}

// dedupe drops repeated items, keeping first occurrences.
func dedupe[T comparable](in []T) []T {
	seen := make(map[T]struct{}, len(in))
	out := in[:0]
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func dedupeSelections(in []TextSelection) []TextSelection {
	seen := make(map[selectionKey]struct{}, len(in))
	out := in[:0]
	for _, ts := range in {
		if _, dup := seen[ts.key()]; dup {
			continue
		}
		seen[ts.key()] = struct{}{}
		out = append(out, ts)
	}
	return out
}
