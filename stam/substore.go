package stam

import (
	"slices"

	"github.com/teranos/stam/errors"
	"github.com/teranos/stam/logger"
)

// SubStore groups part of the store, typically everything that was loaded
// from, or will be written to, one included file. Like other entities a
// published SubStore never changes; membership edits publish a new one.
type SubStore struct {
	handle      SubStoreHandle
	id          string
	filename    string
	parent      SubStoreHandle
	hasParent   bool
	resources   []ResourceHandle
	datasets    []DataSetHandle
	annotations []AnnotationHandle
}

func (sub *SubStore) Handle() SubStoreHandle { return sub.handle }
func (sub *SubStore) ID() string             { return sub.id }
func (sub *SubStore) Filename() string       { return sub.filename }

// Parent returns the enclosing substore, if the substore is nested.
func (sub *SubStore) Parent() (SubStoreHandle, bool) { return sub.parent, sub.hasParent }

func (sub *SubStore) Resources() []ResourceHandle     { return slices.Clone(sub.resources) }
func (sub *SubStore) DataSets() []DataSetHandle       { return slices.Clone(sub.datasets) }
func (sub *SubStore) Annotations() []AnnotationHandle { return slices.Clone(sub.annotations) }

func (sub *SubStore) clone() *SubStore {
	out := *sub
	out.resources = slices.Clone(sub.resources)
	out.datasets = slices.Clone(sub.datasets)
	out.annotations = slices.Clone(sub.annotations)
	return &out
}

// SubStoreBuilder describes a substore to add.
type SubStoreBuilder struct {
	ID       string
	Filename string
	Parent   Ref
}

// SubStoreMembers lists entities to assign to a substore.
type SubStoreMembers struct {
	Resources   []Ref
	DataSets    []Ref
	Annotations []Ref
}

// AddSubStore adds an empty substore.
func (s *AnnotationStore) AddSubStore(b SubStoreBuilder) (SubStoreHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID != "" {
		if _, exists := s.substoreIDs[b.ID]; exists {
			return 0, errors.NewDuplicateIDError("substore", b.ID)
		}
	}
	h := SubStoreHandle(len(s.substores))
	sub := &SubStore{handle: h, id: b.ID, filename: b.Filename}
	if !b.Parent.IsZero() {
		parent, err := s.substore(b.Parent)
		if err != nil {
			return 0, err
		}
		sub.parent, sub.hasParent = parent.handle, true
	}
	s.substores = append(s.substores, sub)
	if b.ID != "" {
		s.substoreIDs[b.ID] = h
	}
	s.debugw("substore added", logger.FieldSubStore, b.ID, logger.FieldFile, b.Filename)
	return h, nil
}

// AddToSubStore assigns entities to a substore. Nothing is assigned unless
// every reference resolves.
func (s *AnnotationStore) AddToSubStore(ref Ref, m SubStoreMembers) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, err := s.substore(ref)
	if err != nil {
		return err
	}
	next := sub.clone()
	for _, r := range m.Resources {
		res, err := s.resource(r)
		if err != nil {
			return err
		}
		next.resources = insertSorted(next.resources, res.handle)
	}
	for _, r := range m.DataSets {
		d, err := s.dataset(r)
		if err != nil {
			return err
		}
		next.datasets = insertSorted(next.datasets, d.handle)
	}
	for _, r := range m.Annotations {
		a, err := s.annotation(r)
		if err != nil {
			return err
		}
		next.annotations = insertSorted(next.annotations, a.handle)
	}
	s.substores[sub.handle] = next
	s.debugw("substore members added", logger.FieldSubStore, sub.id,
		logger.FieldCount, len(m.Resources)+len(m.DataSets)+len(m.Annotations))
	return nil
}

// SubStore looks up a substore.
func (s *AnnotationStore) SubStore(ref Ref) (*SubStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.substore(ref)
}

func (s *AnnotationStore) substore(ref Ref) (*SubStore, error) {
	var h SubStoreHandle
	switch {
	case ref.byHandle:
		h = SubStoreHandle(ref.handle)
	case ref.id == "":
		return nil, errors.NewNotFoundError("substore %s", ref)
	default:
		found, ok := s.substoreIDs[ref.id]
		if !ok {
			n, temp := parseTempID(prefixSubStore, ref.id)
			if !temp {
				return nil, errors.NewNotFoundError("substore %s", ref)
			}
			found = SubStoreHandle(n)
		}
		h = found
	}
	if int(h) >= len(s.substores) || s.substores[h] == nil {
		return nil, errors.NewNotFoundError("substore %s", ref)
	}
	return s.substores[h], nil
}

// SubStores returns every substore in handle order.
func (s *AnnotationStore) SubStores() []*SubStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.DeleteFunc(slices.Clone(s.substores), func(sub *SubStore) bool { return sub == nil })
}

// SubStoreAnnotations returns the annotations assigned to a substore.
func (s *AnnotationStore) SubStoreAnnotations(ref Ref) Annotations {
	return newCollection(s, Chronological, func() ([]AnnotationHandle, error) {
		sub, err := s.substore(ref)
		if err != nil {
			return nil, err
		}
		return slices.Clone(sub.annotations), nil
	})
}

func (s *AnnotationStore) editSubStores(drop func(*SubStore) bool) {
	for i, sub := range s.substores {
		if sub == nil {
			continue
		}
		next := sub.clone()
		if drop(next) {
			s.substores[i] = next
		}
	}
}

func (s *AnnotationStore) dropFromSubStores(h AnnotationHandle) {
	s.editSubStores(func(sub *SubStore) bool {
		var ok bool
		sub.annotations, ok = removeSorted(sub.annotations, h)
		return ok
	})
}

func (s *AnnotationStore) dropDataSetFromSubStores(h DataSetHandle) {
	s.editSubStores(func(sub *SubStore) bool {
		var ok bool
		sub.datasets, ok = removeSorted(sub.datasets, h)
		return ok
	})
}

func (s *AnnotationStore) dropResourceFromSubStores(h ResourceHandle) {
	s.editSubStores(func(sub *SubStore) bool {
		var ok bool
		sub.resources, ok = removeSorted(sub.resources, h)
		return ok
	})
}

// PublicID returns the ID of the substore, or its temporary ID when it has none.
func (sub *SubStore) PublicID() string {
	if sub.id != "" {
		return sub.id
	}
	return tempID(prefixSubStore, uint32(sub.handle))
}
