package stam

import (
	"time"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam/text"
)

// Batch is store content in portable form, as produced by Export and
// consumed by BulkLoad. References between entities use public IDs;
// entities without one are referenced by temporary IDs.
type Batch struct {
	ID          string
	Resources   []ResourceBuilder
	DataSets    []DataSetBuilder
	Annotations []AnnotationBuilder
	SubStores   []SubStoreRecord
}

// DataSetBuilder describes a dataset with its keys and data. The DataSet
// field of the data builders is ignored.
type DataSetBuilder struct {
	ID   string
	Keys []string
	Data []DataBuilder
}

// SubStoreRecord describes a substore and its members by ID.
type SubStoreRecord struct {
	ID          string
	Filename    string
	Parent      string
	Resources   []string
	DataSets    []string
	Annotations []string
}

// LoadResult lists the handles a bulk load created, in batch order.
type LoadResult struct {
	Resources   []ResourceHandle
	DataSets    []DataSetHandle
	Annotations []AnnotationHandle
	SubStores   []SubStoreHandle
}

// aliases map the temporary IDs of a batch to the handles they got.
type aliases struct {
	store       *AnnotationStore
	resources   map[string]ResourceHandle
	datasets    map[string]DataSetHandle
	data        map[DataSetHandle]map[string]DataHandle
	annotations map[string]AnnotationHandle
}

func (al *aliases) resource(r Ref) Ref {
	if h, ok := al.resources[r.id]; ok && !r.byHandle {
		return ByHandle(h)
	}
	return r
}

func (al *aliases) dataset(r Ref) Ref {
	if h, ok := al.datasets[r.id]; ok && !r.byHandle {
		return ByHandle(h)
	}
	return r
}

func (al *aliases) annotation(r Ref) Ref {
	if h, ok := al.annotations[r.id]; ok && !r.byHandle {
		return ByHandle(h)
	}
	return r
}

func (al *aliases) datum(set, r Ref) Ref {
	if r.byHandle || r.id == "" {
		return r
	}
	h, ok := al.store.datasetHandle(set)
	if !ok {
		return r
	}
	if dh, ok := al.data[h][r.id]; ok {
		return ByHandle(dh)
	}
	return r
}

func (al *aliases) selector(b SelectorBuilder) SelectorBuilder {
	b.Resource = al.resource(b.Resource)
	b.DataSet = al.dataset(b.DataSet)
	b.Data = al.datum(b.DataSet, b.Data)
	b.Annotation = al.annotation(b.Annotation)
	if b.Subselectors != nil {
		subs := make([]SelectorBuilder, len(b.Subselectors))
		for i, sub := range b.Subselectors {
			subs[i] = al.selector(sub)
		}
		b.Subselectors = subs
	}
	return b
}

// journal records what a bulk load changed so a failure can undo it.
type journal struct {
	resources   int
	datasets    int
	annotations int
	substores   int
	keys        map[DataSetHandle]int
	data        map[DataSetHandle]int
	boundIDs    []DataRef
}

func (s *AnnotationStore) openJournal() *journal {
	j := &journal{
		resources:   len(s.resources),
		datasets:    len(s.datasets),
		annotations: len(s.annotations),
		substores:   len(s.substores),
		keys:        make(map[DataSetHandle]int),
		data:        make(map[DataSetHandle]int),
	}
	for _, d := range s.datasets {
		if d != nil {
			j.keys[d.handle] = len(d.keys)
			j.data[d.handle] = len(d.data)
		}
	}
	return j
}

// rollback restores the state recorded by j. Only appended entities and
// data IDs bound to pre-existing data need undoing.
func (s *AnnotationStore) rollback(j *journal) {
	for _, r := range s.resources {
		if r != nil && r.positions != nil {
			r.positions.finalize()
		}
	}
	for h := len(s.annotations) - 1; h >= j.annotations; h-- {
		a := s.annotations[h]
		if a == nil {
			continue
		}
		s.unindex(a)
		if a.id != "" {
			delete(s.annotationIDs, a.id)
		}
	}
	s.annotations = s.annotations[:j.annotations]

	for _, ref := range j.boundIDs {
		d := s.datasets[ref.Set]
		item := *d.data[ref.Data]
		delete(d.dataIDs, item.id)
		item.id = ""
		d.data[ref.Data] = &item
	}
	for set, n := range j.data {
		d := s.datasets[set]
		for h := len(d.data) - 1; h >= n; h-- {
			d.removeData(DataHandle(h))
		}
		d.data = d.data[:n]
	}
	for set, n := range j.keys {
		d := s.datasets[set]
		for h := len(d.keys) - 1; h >= n; h-- {
			d.removeKey(DataKeyHandle(h))
		}
		d.keys = d.keys[:n]
	}
	for h := len(s.datasets) - 1; h >= j.datasets; h-- {
		if d := s.datasets[h]; d != nil && d.id != "" {
			delete(s.datasetIDs, d.id)
		}
	}
	s.datasets = s.datasets[:j.datasets]
	for h := len(s.resources) - 1; h >= j.resources; h-- {
		if r := s.resources[h]; r != nil && r.id != "" {
			delete(s.resourceIDs, r.id)
		}
	}
	s.resources = s.resources[:j.resources]
	for h := len(s.substores) - 1; h >= j.substores; h-- {
		if sub := s.substores[h]; sub != nil && sub.id != "" {
			delete(s.substoreIDs, sub.id)
		}
	}
	s.substores = s.substores[:j.substores]
}

// loadID applies the temporary ID policy to an incoming identifier.
func (s *AnnotationStore) loadID(id string) string {
	if s.config.StripTempIDs && IsTempID(id) {
		return ""
	}
	return id
}

// BulkLoad adds a whole batch. Position indices are sorted once at the end
// instead of per insertion. The batch is applied completely or not at all.
func (s *AnnotationStore) BulkLoad(b Batch) (LoadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	j := s.openJournal()
	for _, r := range s.resources {
		if r != nil && r.positions != nil {
			r.positions.deferred = true
		}
	}
	res, err := s.bulkLoad(b, j)
	if err != nil {
		s.rollback(j)
		s.log.Debugw("bulk load rolled back", logger.FieldError, err)
		return LoadResult{}, err
	}
	for _, r := range s.resources {
		if r != nil && r.positions != nil {
			r.positions.finalize()
		}
	}
	if s.config.GenerateIDs {
		s.generateIDs(res)
	}
	if s.id == "" && b.ID != "" {
		s.id = b.ID
	}
	if s.config.ShrinkToFit {
		s.shrink()
	}
	s.debugw("bulk load complete",
		logger.FieldBatchSize, len(b.Resources)+len(b.DataSets)+len(b.Annotations),
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return res, nil
}

func (s *AnnotationStore) bulkLoad(b Batch, j *journal) (LoadResult, error) {
	var res LoadResult
	al := &aliases{
		store:       s,
		resources:   make(map[string]ResourceHandle),
		datasets:    make(map[string]DataSetHandle),
		data:        make(map[DataSetHandle]map[string]DataHandle),
		annotations: make(map[string]AnnotationHandle),
	}

	for i, rb := range b.Resources {
		original := rb.ID
		rb.ID = s.loadID(rb.ID)
		h, err := s.addResource(rb)
		if err != nil {
			return res, errors.Wrapf(err, "resource %d", i)
		}
		if r := s.resources[h]; r.positions != nil {
			r.positions.deferred = true
		}
		if IsTempID(original) {
			al.resources[original] = h
		}
		res.Resources = append(res.Resources, h)
	}

	for i, db := range b.DataSets {
		h, err := s.loadDataSet(db, al, j)
		if err != nil {
			return res, errors.Wrapf(err, "dataset %d", i)
		}
		res.DataSets = append(res.DataSets, h)
	}

	for i, ab := range b.Annotations {
		original := ab.ID
		ab.ID = s.loadID(ab.ID)
		ab.Target = al.selector(ab.Target)
		data := make([]DataBuilder, len(ab.Data))
		for k, db := range ab.Data {
			db.DataSet = al.dataset(db.DataSet)
			db.Data = al.datum(db.DataSet, db.Data)
			data[k] = db
		}
		ab.Data = data
		sel, plans, err := s.planAnnotation(ab, newPendingData())
		if err != nil {
			return res, errors.Wrapf(err, "annotation %d", i)
		}
		s.journalBindings(plans, j)
		h := s.commitAnnotation(ab.ID, sel, plans)
		if IsTempID(original) {
			al.annotations[original] = h
		}
		res.Annotations = append(res.Annotations, h)
	}

	for i, rec := range b.SubStores {
		h, err := s.loadSubStore(rec, al)
		if err != nil {
			return res, errors.Wrapf(err, "substore %d", i)
		}
		res.SubStores = append(res.SubStores, h)
	}
	return res, nil
}

// journalBindings notes pre-existing data that is about to receive an ID.
func (s *AnnotationStore) journalBindings(plans []dataPlan, j *journal) {
	for _, p := range plans {
		if p.existing != nil || p.id == "" || p.newSet != "" {
			continue
		}
		d := s.datasets[p.set]
		kh, ok := d.keyIDs[p.key]
		if !ok {
			continue
		}
		if h, found := d.findData(kh, p.value); found && d.data[h].id == "" && int(h) < j.data[p.set] {
			j.boundIDs = append(j.boundIDs, DataRef{Set: p.set, Data: h})
		}
	}
}

func (s *AnnotationStore) loadDataSet(db DataSetBuilder, al *aliases, j *journal) (DataSetHandle, error) {
	id := s.loadID(db.ID)
	if _, exists := s.datasetIDs[id]; exists && id != "" {
		return 0, errors.NewDuplicateIDError("dataset", id)
	}
	h := s.addDataSet(id)
	if IsTempID(db.ID) {
		al.datasets[db.ID] = h
	}
	d := s.datasets[h]
	al.data[h] = make(map[string]DataHandle)
	for _, k := range db.Keys {
		if k == "" {
			return 0, errors.NewInvalidRequestError("key needs an id")
		}
		d.addKey(k)
	}
	for i, item := range db.Data {
		if item.Key == "" {
			return 0, errors.Wrapf(errors.NewInvalidRequestError("data needs a key"), "data %d", i)
		}
		itemID := s.loadID(item.ID)
		kh := d.addKey(item.Key)
		if err := d.checkDataID(itemID, kh, item.Value); err != nil {
			return 0, errors.Wrapf(err, "data %d", i)
		}
		dh := d.addData(itemID, kh, item.Value)
		if item.ID != "" {
			al.data[h][item.ID] = dh
		}
	}
	return h, nil
}

func (s *AnnotationStore) loadSubStore(rec SubStoreRecord, al *aliases) (SubStoreHandle, error) {
	id := s.loadID(rec.ID)
	if _, exists := s.substoreIDs[id]; exists && id != "" {
		return 0, errors.NewDuplicateIDError("substore", id)
	}
	sub := &SubStore{handle: SubStoreHandle(len(s.substores)), id: id, filename: rec.Filename}
	if rec.Parent != "" {
		parent, err := s.substore(ByID(rec.Parent))
		if err != nil {
			return 0, err
		}
		sub.parent, sub.hasParent = parent.handle, true
	}
	for _, rid := range rec.Resources {
		r, err := s.resource(al.resource(ByID(rid)))
		if err != nil {
			return 0, err
		}
		sub.resources = insertSorted(sub.resources, r.handle)
	}
	for _, did := range rec.DataSets {
		d, err := s.dataset(al.dataset(ByID(did)))
		if err != nil {
			return 0, err
		}
		sub.datasets = insertSorted(sub.datasets, d.handle)
	}
	for _, aid := range rec.Annotations {
		a, err := s.annotation(al.annotation(ByID(aid)))
		if err != nil {
			return 0, err
		}
		sub.annotations = insertSorted(sub.annotations, a.handle)
	}
	s.substores = append(s.substores, sub)
	if id != "" {
		s.substoreIDs[id] = sub.handle
	}
	return sub.handle, nil
}

// generateIDs gives loaded entities without an ID a random one, publishing
// copies rather than editing loaded entities in place.
func (s *AnnotationStore) generateIDs(res LoadResult) {
	for _, h := range res.Resources {
		if s.resources[h].id != "" {
			continue
		}
		next := *s.resources[h]
		next.id = uniqueID(prefixResource, func(id string) bool { _, ok := s.resourceIDs[id]; return ok })
		s.resources[h] = &next
		s.resourceIDs[next.id] = h
	}
	for _, h := range res.DataSets {
		d := s.datasets[h]
		if d.id == "" {
			next := *d
			next.id = uniqueID(prefixDataSet, func(id string) bool { _, ok := s.datasetIDs[id]; return ok })
			d = &next
			s.datasets[h] = d
			s.datasetIDs[d.id] = h
		}
		for dh, item := range d.data {
			if item == nil || item.id != "" {
				continue
			}
			clone := *item
			clone.id = uniqueID(prefixData, func(id string) bool { _, ok := d.dataIDs[id]; return ok })
			d.data[dh] = &clone
			d.dataIDs[clone.id] = DataHandle(dh)
		}
	}
	for _, h := range res.Annotations {
		a := s.annotations[h]
		if a.id != "" {
			continue
		}
		next := a.snapshot()
		next.footprint = a.footprint
		next.id = uniqueID(prefixAnnotation, func(id string) bool { _, ok := s.annotationIDs[id]; return ok })
		s.annotations[h] = next
		s.annotationIDs[next.id] = h
	}
}

// Export renders the store as a batch. Entities without an ID are given
// temporary IDs. A store holding dangling references cannot be exported.
func (s *AnnotationStore) Export() (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b := Batch{ID: s.id}
	for _, r := range s.resources {
		if r == nil {
			continue
		}
		b.Resources = append(b.Resources, ResourceBuilder{ID: r.PublicID(), Text: r.Text(), Filename: r.filename})
	}
	for _, d := range s.datasets {
		if d == nil {
			continue
		}
		db := DataSetBuilder{ID: d.PublicID()}
		for _, k := range d.liveKeys() {
			db.Keys = append(db.Keys, k.id)
		}
		for _, item := range d.data {
			if item == nil {
				continue
			}
			db.Data = append(db.Data, DataBuilder{ID: item.PublicID(), Key: d.keys[item.key].id, Value: item.value})
		}
		b.DataSets = append(b.DataSets, db)
	}
	for _, a := range s.annotations {
		if a == nil {
			continue
		}
		target, err := s.exportSelector(&a.target)
		if err != nil {
			return Batch{}, errors.Wrapf(err, "annotation %s", a.PublicID())
		}
		ab := AnnotationBuilder{ID: a.PublicID(), Target: target}
		for _, ref := range a.data {
			item, ok := s.liveData(ref)
			if !ok {
				return Batch{}, errors.NewDanglingReferenceError("annotation %s data %s", a.PublicID(), ref)
			}
			ab.Data = append(ab.Data, ExistingData(s.datasets[ref.Set].PublicID(), item.PublicID()))
		}
		b.Annotations = append(b.Annotations, ab)
	}
	for _, sub := range s.substores {
		if sub == nil {
			continue
		}
		rec := SubStoreRecord{ID: sub.PublicID(), Filename: sub.filename}
		if sub.hasParent {
			rec.Parent = s.substores[sub.parent].PublicID()
		}
		for _, h := range sub.resources {
			rec.Resources = append(rec.Resources, s.resources[h].PublicID())
		}
		for _, h := range sub.datasets {
			rec.DataSets = append(rec.DataSets, s.datasets[h].PublicID())
		}
		for _, h := range sub.annotations {
			rec.Annotations = append(rec.Annotations, s.annotations[h].PublicID())
		}
		b.SubStores = append(b.SubStores, rec)
	}
	return b, nil
}

func (s *AnnotationStore) exportSelector(sel *Selector) (SelectorBuilder, error) {
	switch sel.kind {
	case TextSelectorKind, ResourceSelectorKind:
		r, ok := s.liveResource(sel.resource)
		if !ok {
			return SelectorBuilder{}, errors.NewDanglingReferenceError("resource %d", sel.resource)
		}
		if sel.kind == ResourceSelectorKind {
			return ResourceSelector(ByID(r.PublicID())), nil
		}
		return TextSelector(ByID(r.PublicID()), text.Simple(sel.span.Begin, sel.span.End)), nil
	case DataSetSelectorKind, DataKeySelectorKind, AnnotationDataSelectorKind:
		if int(sel.dataset) >= len(s.datasets) || s.datasets[sel.dataset] == nil {
			return SelectorBuilder{}, errors.NewDanglingReferenceError("dataset %d", sel.dataset)
		}
		d := s.datasets[sel.dataset]
		switch sel.kind {
		case DataKeySelectorKind:
			k, ok := s.liveKey(KeyRef{Set: sel.dataset, Key: sel.key})
			if !ok {
				return SelectorBuilder{}, errors.NewDanglingReferenceError("key %d/%d", sel.dataset, sel.key)
			}
			return DataKeySelector(ByID(d.PublicID()), ByID(k.id)), nil
		case AnnotationDataSelectorKind:
			item, ok := s.liveData(DataRef{Set: sel.dataset, Data: sel.data})
			if !ok {
				return SelectorBuilder{}, errors.NewDanglingReferenceError("data %d/%d", sel.dataset, sel.data)
			}
			return AnnotationDataSelector(ByID(d.PublicID()), ByID(item.PublicID())), nil
		}
		return DataSetSelector(ByID(d.PublicID())), nil
	case AnnotationSelectorKind:
		target, ok := s.liveAnnotation(sel.annotation)
		if !ok {
			return SelectorBuilder{}, errors.NewDanglingReferenceError("annotation %d", sel.annotation)
		}
		var offset *text.Offset
		if sel.offset != nil {
			o := *sel.offset
			offset = &o
		}
		return AnnotationSelector(ByID(target.PublicID()), offset), nil
	}
	out := SelectorBuilder{Kind: sel.kind}
	for i := range sel.subs {
		sub, err := s.exportSelector(&sel.subs[i])
		if err != nil {
			return SelectorBuilder{}, err
		}
		out.Subselectors = append(out.Subselectors, sub)
	}
	return out, nil
}
