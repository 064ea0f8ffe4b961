package stam

import (
	"strings"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
)

// generatedIDLength is the length of a generated ID after its kind prefix.
const generatedIDLength = 21

// generateID returns a fixed-length random ASCII identifier tagged with prefix.
// Prefixes differ per entity kind, so generated IDs never collide across kinds.
func generateID(prefix byte) string {
	raw := uuid.New()
	encoded := base58.Encode(raw[:])
	if len(encoded) < generatedIDLength+1 {
		encoded = strings.Repeat("1", generatedIDLength+1-len(encoded)) + encoded
	}
	return string(prefix) + encoded[len(encoded)-generatedIDLength:]
}

// uniqueID generates IDs until taken reports one as free.
func uniqueID(prefix byte, taken func(string) bool) string {
	for {
		id := generateID(prefix)
		if !taken(id) {
			return id
		}
	}
}
