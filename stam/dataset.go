package stam

import (
	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
	"github.com/teranos/stam/stam/value"
)

// AnnotationDataSet is a vocabulary of keys and the data built from them.
type AnnotationDataSet struct {
	handle DataSetHandle
	id     string

	keys   []*DataKey
	keyIDs map[string]DataKeyHandle

	data    []*AnnotationData
	dataIDs map[string]DataHandle
	// content deduplicates data by key and canonical value encoding.
	content map[contentKey]DataHandle
	keyData map[DataKeyHandle][]DataHandle
}

type contentKey struct {
	key   DataKeyHandle
	value string
}

func newDataSet(h DataSetHandle, id string) *AnnotationDataSet {
	return &AnnotationDataSet{
		handle:  h,
		id:      id,
		keyIDs:  make(map[string]DataKeyHandle),
		dataIDs: make(map[string]DataHandle),
		content: make(map[contentKey]DataHandle),
		keyData: make(map[DataKeyHandle][]DataHandle),
	}
}

func (d *AnnotationDataSet) Handle() DataSetHandle { return d.handle }
func (d *AnnotationDataSet) ID() string            { return d.id }

// PublicID returns the ID of the dataset, or its temporary ID when it has none.
func (d *AnnotationDataSet) PublicID() string {
	if d.id != "" {
		return d.id
	}
	return tempID(prefixDataSet, uint32(d.handle))
}

func (d *AnnotationDataSet) liveData() int {
	n := 0
	for _, item := range d.data {
		if item != nil {
			n++
		}
	}
	return n
}

func (d *AnnotationDataSet) keyHandle(ref Ref) (DataKeyHandle, bool) {
	var h DataKeyHandle
	switch {
	case ref.byHandle:
		h = DataKeyHandle(ref.handle)
	case ref.id == "":
		return 0, false
	default:
		found, ok := d.keyIDs[ref.id]
		if !ok {
			return 0, false
		}
		h = found
	}
	if int(h) >= len(d.keys) || d.keys[h] == nil {
		return 0, false
	}
	return h, true
}

func (d *AnnotationDataSet) dataHandle(ref Ref) (DataHandle, bool) {
	var h DataHandle
	switch {
	case ref.byHandle:
		h = DataHandle(ref.handle)
	case ref.id == "":
		return 0, false
	default:
		found, ok := d.dataIDs[ref.id]
		if !ok {
			n, temp := parseTempID(prefixData, ref.id)
			if !temp {
				return 0, false
			}
			found = DataHandle(n)
		}
		h = found
	}
	if int(h) >= len(d.data) || d.data[h] == nil {
		return 0, false
	}
	return h, true
}

// addKey returns the handle of key id, creating it when new.
func (d *AnnotationDataSet) addKey(id string) DataKeyHandle {
	if h, ok := d.keyIDs[id]; ok {
		return h
	}
	h := DataKeyHandle(len(d.keys))
	d.keys = append(d.keys, &DataKey{handle: h, set: d.handle, id: id})
	d.keyIDs[id] = h
	return h
}

// findData returns existing data with the same key and value.
func (d *AnnotationDataSet) findData(key DataKeyHandle, v value.DataValue) (DataHandle, bool) {
	h, ok := d.content[contentKey{key: key, value: v.Key()}]
	return h, ok
}

// checkDataID validates an explicit ID for data with the given content.
// The ID may only be taken by that same content. When the content already
// exists under another ID the new ID is set aside and the content reused.
func (d *AnnotationDataSet) checkDataID(id string, key DataKeyHandle, v value.DataValue) error {
	if id == "" {
		return nil
	}
	existing, dup := d.findData(key, v)
	if bound, taken := d.dataIDs[id]; taken && (!dup || bound != existing) {
		return errors.NewDuplicateIDError("data", id)
	}
	return nil
}

// addData returns the handle for key/value, deduplicating. id is bound
// unless the existing content already has one. checkDataID must have
// accepted id.
func (d *AnnotationDataSet) addData(id string, key DataKeyHandle, v value.DataValue) DataHandle {
	if h, ok := d.findData(key, v); ok {
		if id != "" && d.data[h].id == "" {
			clone := *d.data[h]
			clone.id = id
			d.data[h] = &clone
			d.dataIDs[id] = h
		}
		return h
	}
	h := DataHandle(len(d.data))
	d.data = append(d.data, &AnnotationData{handle: h, set: d.handle, id: id, key: key, value: v})
	if id != "" {
		d.dataIDs[id] = h
	}
	d.content[contentKey{key: key, value: v.Key()}] = h
	d.keyData[key] = insertSorted(d.keyData[key], h)
	return h
}

func (d *AnnotationDataSet) removeData(h DataHandle) {
	item := d.data[h]
	if item == nil {
		return
	}
	if item.id != "" {
		delete(d.dataIDs, item.id)
	}
	delete(d.content, contentKey{key: item.key, value: item.value.Key()})
	d.keyData[item.key], _ = removeSorted(d.keyData[item.key], h)
	d.data[h] = nil
}

func (d *AnnotationDataSet) removeKey(h DataKeyHandle) {
	key := d.keys[h]
	if key == nil {
		return
	}
	for _, dh := range append([]DataHandle(nil), d.keyData[h]...) {
		d.removeData(dh)
	}
	delete(d.keyData, h)
	delete(d.keyIDs, key.id)
	d.keys[h] = nil
}

func (d *AnnotationDataSet) liveKeys() []*DataKey {
	out := make([]*DataKey, 0, len(d.keyIDs))
	for _, k := range d.keys {
		if k != nil {
			out = append(out, k)
		}
	}
	return out
}

func (d *AnnotationDataSet) shrink() {
	d.keys = clipSlice(d.keys)
	d.data = clipSlice(d.data)
	for k, list := range d.keyData {
		d.keyData[k] = clipSlice(list)
	}
}

// DataKey is a named key within a dataset.
type DataKey struct {
	handle DataKeyHandle
	set    DataSetHandle
	id     string
}

func (k *DataKey) Handle() DataKeyHandle  { return k.handle }
func (k *DataKey) DataSet() DataSetHandle { return k.set }
func (k *DataKey) ID() string             { return k.id }
func (k *DataKey) Ref() KeyRef            { return KeyRef{Set: k.set, Key: k.handle} }

// AnnotationData is an immutable key/value pair owned by a dataset.
type AnnotationData struct {
	handle DataHandle
	set    DataSetHandle
	id     string
	key    DataKeyHandle
	value  value.DataValue
}

func (d *AnnotationData) Handle() DataHandle     { return d.handle }
func (d *AnnotationData) DataSet() DataSetHandle { return d.set }
func (d *AnnotationData) ID() string             { return d.id }
func (d *AnnotationData) Key() KeyRef            { return KeyRef{Set: d.set, Key: d.key} }
func (d *AnnotationData) Value() value.DataValue { return d.value }
func (d *AnnotationData) Ref() DataRef           { return DataRef{Set: d.set, Data: d.handle} }

// PublicID returns the ID of the data, or its temporary ID when it has none.
func (d *AnnotationData) PublicID() string {
	if d.id != "" {
		return d.id
	}
	return tempID(prefixData, uint32(d.handle))
}

// AddDataSet adds an empty dataset.
func (s *AnnotationStore) AddDataSet(id string) (DataSetHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.datasetIDs[id]; exists && id != "" {
		return 0, errors.NewDuplicateIDError("dataset", id)
	}
	return s.addDataSet(id), nil
}

func (s *AnnotationStore) addDataSet(id string) DataSetHandle {
	h := DataSetHandle(len(s.datasets))
	s.datasets = append(s.datasets, newDataSet(h, id))
	if id != "" {
		s.datasetIDs[id] = h
	}
	s.debugw("dataset added", logger.FieldDataSet, id, logger.FieldHandle, h)
	return h
}

// AddKey adds a key to a dataset, returning the existing key when the ID is taken.
func (s *AnnotationStore) AddKey(set Ref, id string) (KeyRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		return KeyRef{}, errors.NewInvalidRequestError("key needs an id")
	}
	d, err := s.dataset(set)
	if err != nil {
		return KeyRef{}, err
	}
	k := d.addKey(id)
	s.debugw("key added", logger.FieldDataSet, d.id, logger.FieldKey, id)
	return KeyRef{Set: d.handle, Key: k}, nil
}

// AddData adds data to a dataset, creating the key when needed.
// Identical key and value yield the existing data.
func (s *AnnotationStore) AddData(set Ref, id, key string, v value.DataValue) (DataRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key == "" {
		return DataRef{}, errors.NewInvalidRequestError("data needs a key")
	}
	d, err := s.dataset(set)
	if err != nil {
		return DataRef{}, err
	}
	if kh, ok := d.keyIDs[key]; ok {
		if err := d.checkDataID(id, kh, v); err != nil {
			return DataRef{}, err
		}
	} else if _, taken := d.dataIDs[id]; taken && id != "" {
		return DataRef{}, errors.NewDuplicateIDError("data", id)
	}
	h := d.addData(id, d.addKey(key), v)
	s.debugw("data added", logger.FieldDataSet, d.id, logger.FieldKey, key, logger.FieldData, id)
	return DataRef{Set: d.handle, Data: h}, nil
}

// DataSet looks up a dataset.
func (s *AnnotationStore) DataSet(ref Ref) (*AnnotationDataSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset(ref)
}

func (s *AnnotationStore) dataset(ref Ref) (*AnnotationDataSet, error) {
	h, ok := s.datasetHandle(ref)
	if !ok {
		return nil, errors.NewNotFoundError("dataset %s", ref)
	}
	return s.datasets[h], nil
}

func (s *AnnotationStore) datasetHandle(ref Ref) (DataSetHandle, bool) {
	var h DataSetHandle
	switch {
	case ref.byHandle:
		h = DataSetHandle(ref.handle)
	case ref.id == "":
		return 0, false
	default:
		found, ok := s.datasetIDs[ref.id]
		if !ok {
			n, temp := parseTempID(prefixDataSet, ref.id)
			if !temp {
				return 0, false
			}
			found = DataSetHandle(n)
		}
		h = found
	}
	if int(h) >= len(s.datasets) || s.datasets[h] == nil {
		return 0, false
	}
	return h, true
}

// DataSets returns every live dataset in handle order.
func (s *AnnotationStore) DataSets() []*AnnotationDataSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*AnnotationDataSet, 0, len(s.datasets))
	for _, d := range s.datasets {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// Key looks up a key within a dataset.
func (s *AnnotationStore) Key(set, key Ref) (*DataKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, err := s.keyRef(set, key)
	if err != nil {
		return nil, err
	}
	return s.datasets[ref.Set].keys[ref.Key], nil
}

// Keys returns the live keys of a dataset.
func (s *AnnotationStore) Keys(set Ref) ([]*DataKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, err := s.dataset(set)
	if err != nil {
		return nil, err
	}
	return d.liveKeys(), nil
}

func (s *AnnotationStore) keyRef(set, key Ref) (KeyRef, error) {
	d, err := s.dataset(set)
	if err != nil {
		return KeyRef{}, err
	}
	kh, ok := d.keyHandle(key)
	if !ok {
		return KeyRef{}, errors.NewNotFoundError("key %s in dataset %s", key, set)
	}
	return KeyRef{Set: d.handle, Key: kh}, nil
}

// AnnotationData looks up data within a dataset.
func (s *AnnotationStore) AnnotationData(set, data Ref) (*AnnotationData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, err := s.dataRef(set, data)
	if err != nil {
		return nil, err
	}
	return s.datasets[ref.Set].data[ref.Data], nil
}

func (s *AnnotationStore) dataRef(set, data Ref) (DataRef, error) {
	d, err := s.dataset(set)
	if err != nil {
		return DataRef{}, err
	}
	dh, ok := d.dataHandle(data)
	if !ok {
		return DataRef{}, errors.NewNotFoundError("data %s in dataset %s", data, set)
	}
	return DataRef{Set: d.handle, Data: dh}, nil
}

// liveData resolves a data reference held by an annotation.
func (s *AnnotationStore) liveData(ref DataRef) (*AnnotationData, bool) {
	if int(ref.Set) >= len(s.datasets) || s.datasets[ref.Set] == nil {
		return nil, false
	}
	d := s.datasets[ref.Set]
	if int(ref.Data) >= len(d.data) || d.data[ref.Data] == nil {
		return nil, false
	}
	return d.data[ref.Data], true
}

func (s *AnnotationStore) liveKey(ref KeyRef) (*DataKey, bool) {
	if int(ref.Set) >= len(s.datasets) || s.datasets[ref.Set] == nil {
		return nil, false
	}
	d := s.datasets[ref.Set]
	if int(ref.Key) >= len(d.keys) || d.keys[ref.Key] == nil {
		return nil, false
	}
	return d.keys[ref.Key], true
}
