package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam/value"
)

// Annotation attaches data to a target. Published annotations are never
// mutated; edits replace them with a new snapshot under the same handle.
type Annotation struct {
	handle    AnnotationHandle
	id        string
	target    Selector
	data      []DataRef
	footprint footprint
}

func (a *Annotation) Handle() AnnotationHandle { return a.handle }
func (a *Annotation) ID() string               { return a.id }

// PublicID returns the ID of the annotation, or its temporary ID when it has none.
func (a *Annotation) PublicID() string {
	if a.id != "" {
		return a.id
	}
	return tempID(prefixAnnotation, uint32(a.handle))
}

// Target returns the selector of the annotation.
func (a *Annotation) Target() Selector { return a.target.clone() }

// DataRefs returns the data of the annotation in insertion order.
func (a *Annotation) DataRefs() []DataRef { return slices.Clone(a.data) }

func (a *Annotation) hasData(ref DataRef) bool { return slices.Contains(a.data, ref) }

func (a *Annotation) snapshot() *Annotation {
	return &Annotation{handle: a.handle, id: a.id, target: a.target.clone(), data: slices.Clone(a.data)}
}

// DataBuilder names data for an annotation: either existing data through
// Data, or a key and value that are found or created in DataSet.
type DataBuilder struct {
	ID      string
	DataSet Ref
	Data    Ref
	Key     string
	Value   value.DataValue
}

// NewData is a shorthand for a DataBuilder that finds or creates content.
func NewData(set, key string, v value.DataValue) DataBuilder {
	return DataBuilder{DataSet: ByID(set), Key: key, Value: v}
}

// ExistingData is a shorthand for a DataBuilder that references data by ID.
func ExistingData(set, data string) DataBuilder {
	return DataBuilder{DataSet: ByID(set), Data: ByID(data)}
}

// AnnotationBuilder describes an annotation to add.
type AnnotationBuilder struct {
	ID     string
	Target SelectorBuilder
	Data   []DataBuilder
}

// dataPlan is a validated DataBuilder, applied at commit.
type dataPlan struct {
	existing *DataRef
	newSet   string
	set      DataSetHandle
	key      string
	value    value.DataValue
	id       string
}

// pendingData tracks content created by earlier builders of the same request.
type pendingData struct {
	ids      map[pendingID]string
	contents map[pendingID]string
}

func newPendingData() *pendingData {
	return &pendingData{ids: make(map[pendingID]string), contents: make(map[pendingID]string)}
}

type pendingID struct {
	set string
	id  string
}

func (s *AnnotationStore) planData(builders []DataBuilder, pending *pendingData) ([]dataPlan, error) {
	plans := make([]dataPlan, 0, len(builders))
	for i, b := range builders {
		p, err := s.planDatum(b, pending)
		if err != nil {
			return nil, errors.Wrapf(err, "data %d", i)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func (s *AnnotationStore) planDatum(b DataBuilder, pending *pendingData) (dataPlan, error) {
	if !b.Data.IsZero() {
		ref, err := s.dataRef(b.DataSet, b.Data)
		if err != nil {
			return dataPlan{}, err
		}
		return dataPlan{existing: &ref}, nil
	}
	if b.Key == "" {
		return dataPlan{}, errors.NewInvalidRequestError("data needs a key or a reference to existing data")
	}
	plan := dataPlan{key: b.Key, value: b.Value, id: b.ID}
	setName := b.DataSet.id
	d, err := s.dataset(b.DataSet)
	switch {
	case err == nil:
		plan.set = d.handle
		setName = d.PublicID()
		if kh, ok := d.keyIDs[b.Key]; ok {
			if err := d.checkDataID(b.ID, kh, b.Value); err != nil {
				return dataPlan{}, err
			}
		} else if _, taken := d.dataIDs[b.ID]; taken && b.ID != "" {
			return dataPlan{}, errors.NewDuplicateIDError("data", b.ID)
		}
	case b.DataSet.byHandle || b.DataSet.id == "" || IsTempID(b.DataSet.id):
		return dataPlan{}, err
	default:
		plan.newSet = b.DataSet.id
	}
	if b.ID != "" {
		content := b.Key + "\x00" + b.Value.Key()
		pid := pendingID{set: setName, id: b.ID}
		if prev, seen := pending.ids[pid]; seen && prev != content {
			return dataPlan{}, errors.NewDuplicateIDError("data", b.ID)
		}
		cid := pendingID{set: setName, id: content}
		if prev, seen := pending.contents[cid]; seen && prev != b.ID {
			// content reused, this id is set aside
			return plan, nil
		}
		pending.ids[pid] = content
		pending.contents[cid] = b.ID
	}
	return plan, nil
}

// commitData materialises plans, returning deduplicated references.
func (s *AnnotationStore) commitData(plans []dataPlan) []DataRef {
	refs := make([]DataRef, 0, len(plans))
	for _, p := range plans {
		var ref DataRef
		if p.existing != nil {
			ref = *p.existing
		} else {
			set := p.set
			if p.newSet != "" {
				if h, ok := s.datasetIDs[p.newSet]; ok {
					set = h
				} else {
					set = s.addDataSet(p.newSet)
				}
			}
			d := s.datasets[set]
			ref = DataRef{Set: set, Data: d.addData(p.id, d.addKey(p.key), p.value)}
		}
		if !slices.Contains(refs, ref) {
			refs = append(refs, ref)
		}
	}
	return refs
}

// Annotate validates b completely, then adds the annotation along with any
// datasets, keys and data it introduces. A failed call leaves the store unchanged.
func (s *AnnotationStore) Annotate(b AnnotationBuilder) (AnnotationHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.annotate(b)
}

func (s *AnnotationStore) annotate(b AnnotationBuilder) (AnnotationHandle, error) {
	sel, plans, err := s.planAnnotation(b, newPendingData())
	if err != nil {
		return 0, err
	}
	return s.commitAnnotation(b.ID, sel, plans), nil
}

func (s *AnnotationStore) planAnnotation(b AnnotationBuilder, pending *pendingData) (Selector, []dataPlan, error) {
	if b.ID != "" {
		if _, exists := s.annotationIDs[b.ID]; exists {
			return Selector{}, nil, errors.NewDuplicateIDError("annotation", b.ID)
		}
	}
	if len(b.Data) == 0 {
		return Selector{}, nil, errors.NewInvalidRequestError("annotation %q needs at least one data item", b.ID)
	}
	sel, err := s.buildSelector(b.Target)
	if err != nil {
		return Selector{}, nil, errors.Wrapf(err, "annotation %q target", b.ID)
	}
	plans, err := s.planData(b.Data, pending)
	if err != nil {
		return Selector{}, nil, errors.Wrapf(err, "annotation %q", b.ID)
	}
	return sel, plans, nil
}

func (s *AnnotationStore) commitAnnotation(id string, sel Selector, plans []dataPlan) AnnotationHandle {
	h := AnnotationHandle(len(s.annotations))
	a := &Annotation{handle: h, id: id, target: sel, data: s.commitData(plans)}
	s.annotations = append(s.annotations, a)
	if id != "" {
		s.annotationIDs[id] = h
	}
	s.index(a)
	s.debugw("annotation added",
		logger.FieldAnnotation, id,
		logger.FieldHandle, h,
		"selector", sel.kind.String(),
		logger.FieldCount, len(a.data))
	return h
}

// Annotation looks up an annotation.
func (s *AnnotationStore) Annotation(ref Ref) (*Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.annotation(ref)
}

func (s *AnnotationStore) annotation(ref Ref) (*Annotation, error) {
	h, ok := s.annotationHandle(ref)
	if !ok {
		return nil, errors.NewNotFoundError("annotation %s", ref)
	}
	return s.annotations[h], nil
}

func (s *AnnotationStore) annotationHandle(ref Ref) (AnnotationHandle, bool) {
	var h AnnotationHandle
	switch {
	case ref.byHandle:
		h = AnnotationHandle(ref.handle)
	case ref.id == "":
		return 0, false
	default:
		found, ok := s.annotationIDs[ref.id]
		if !ok {
			n, temp := parseTempID(prefixAnnotation, ref.id)
			if !temp {
				return 0, false
			}
			found = AnnotationHandle(n)
		}
		h = found
	}
	if int(h) >= len(s.annotations) || s.annotations[h] == nil {
		return 0, false
	}
	return h, true
}

func (s *AnnotationStore) liveAnnotation(h AnnotationHandle) (*Annotation, bool) {
	if int(h) >= len(s.annotations) || s.annotations[h] == nil {
		return nil, false
	}
	return s.annotations[h], true
}

// AnnotationText resolves the text an annotation targets. An annotation
// without text, or one whose target was removed, is not found.
func (s *AnnotationStore) AnnotationText(ref Ref) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, err := s.annotation(ref)
	if err != nil {
		return nil, err
	}
	selections, err := s.resolveText(&a.target)
	if err != nil {
		return nil, err
	}
	if len(selections) == 0 {
		return nil, errors.NewNotFoundError("annotation %s has no text", a.PublicID())
	}
	out := make([]string, 0, len(selections))
	for _, ts := range selections {
		str, err := s.resources[ts.Resource].text.Slice(ts.Span())
		if err != nil {
			return nil, err
		}
		out = append(out, str)
	}
	return out, nil
}

// AddAnnotationData attaches more data to an existing annotation.
func (s *AnnotationStore) AddAnnotationData(ref Ref, data ...DataBuilder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.annotation(ref)
	if err != nil {
		return err
	}
	plans, err := s.planData(data, newPendingData())
	if err != nil {
		return err
	}
	next := a.snapshot()
	for _, r := range s.commitData(plans) {
		if !next.hasData(r) {
			next.data = append(next.data, r)
		}
	}
	s.replaceAnnotation(a, next)
	s.debugw("annotation data added", logger.FieldAnnotation, a.id, logger.FieldCount, len(next.data))
	return nil
}

// RemoveAnnotationData detaches data from an annotation. The data itself stays
// in its dataset. Removing the last item is an invalid request.
func (s *AnnotationStore) RemoveAnnotationData(ref Ref, set, data Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.annotation(ref)
	if err != nil {
		return err
	}
	dref, err := s.dataRef(set, data)
	if err != nil {
		return err
	}
	if !a.hasData(dref) {
		return errors.NewNotFoundError("annotation %s does not hold data %s", a.PublicID(), data)
	}
	if len(a.data) == 1 {
		return errors.NewInvalidRequestError("annotation %s would be left without data", a.PublicID())
	}
	if !s.checkIndexed(a) {
		return errors.Wrapf(errors.ErrInconsistentIndex, "annotation %s", a.PublicID())
	}
	next := a.snapshot()
	next.data = slices.DeleteFunc(next.data, func(r DataRef) bool { return r == dref })
	s.replaceAnnotation(a, next)
	s.debugw("annotation data removed", logger.FieldAnnotation, a.id, logger.FieldCount, len(next.data))
	return nil
}

// replaceAnnotation swaps in a new snapshot and reindexes it.
// New selections are registered before old ones are released, so shared
// selections keep their handles.
func (s *AnnotationStore) replaceAnnotation(old, next *Annotation) {
	s.index(next)
	stale := &Annotation{handle: old.handle, footprint: subtractFootprint(old.footprint, next.footprint)}
	s.unindex(stale)
	s.annotations[next.handle] = next
}

// subtractFootprint returns the entries of a that b does not contain.
func subtractFootprint(a, b footprint) footprint {
	return footprint{
		resources:   without(a.resources, b.resources),
		datasets:    without(a.datasets, b.datasets),
		keysMeta:    without(a.keysMeta, b.keysMeta),
		dataMeta:    without(a.dataMeta, b.dataMeta),
		annotations: without(a.annotations, b.annotations),
		text:        without(a.text, b.text),
		keys:        without(a.keys, b.keys),
		data:        without(a.data, b.data),
	}
}

func without[T comparable](a, b []T) []T {
	var out []T
	for _, v := range a {
		if !slices.Contains(b, v) {
			out = append(out, v)
		}
	}
	return out
}

// AllAnnotations returns every live annotation in handle order.
func (s *AnnotationStore) AllAnnotations() []*Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Annotation, 0, len(s.annotations))
	for _, a := range s.annotations {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
