package stam

import (
	"fmt"
	"strconv"
	"strings"
)

// Handles address entities inside their arena. They are stable for the
// lifetime of the store and never reused after removal.
type (
	ResourceHandle      uint32
	DataSetHandle       uint32
	DataKeyHandle       uint32
	DataHandle          uint32
	AnnotationHandle    uint32
	SubStoreHandle      uint32
	TextSelectionHandle uint32
)

// KeyRef addresses a key across the store.
type KeyRef struct {
	Set DataSetHandle
	Key DataKeyHandle
}

func (k KeyRef) String() string { return fmt.Sprintf("%d/%d", k.Set, k.Key) }

// DataRef addresses annotation data across the store.
type DataRef struct {
	Set  DataSetHandle
	Data DataHandle
}

func (d DataRef) String() string { return fmt.Sprintf("%d/%d", d.Set, d.Data) }

// Ref names an entity either by public ID or by handle. The zero Ref names nothing.
type Ref struct {
	id       string
	handle   uint32
	byHandle bool
}

// ByID refers to an entity by its public identifier.
func ByID(id string) Ref {
	return Ref{id: id}
}

// ByHandle refers to an entity by its handle.
func ByHandle[H ~uint32](h H) Ref {
	return Ref{handle: uint32(h), byHandle: true}
}

func (r Ref) IsZero() bool { return !r.byHandle && r.id == "" }

func (r Ref) String() string {
	if r.byHandle {
		return "#" + strconv.FormatUint(uint64(r.handle), 10)
	}
	return strconv.Quote(r.id)
}

// Prefixes tag generated and temporary identifiers with the kind of entity they name.
const (
	prefixAnnotation = 'A'
	prefixDataSet    = 'S'
	prefixData       = 'D'
	prefixResource   = 'R'
	prefixSubStore   = 'X'
	prefixKey        = 'K'
)

// tempID is the identifier export assigns to entities that have none, e.g. "!A12".
func tempID(prefix byte, handle uint32) string {
	return "!" + string(prefix) + strconv.FormatUint(uint64(handle), 10)
}

// parseTempID recovers the handle from a temporary identifier of the given kind.
func parseTempID(prefix byte, id string) (uint32, bool) {
	if len(id) < 3 || id[0] != '!' || id[1] != prefix {
		return 0, false
	}
	n, err := strconv.ParseUint(id[2:], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

// IsTempID reports whether id has the shape of a temporary identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, "!") && len(id) >= 3
}
