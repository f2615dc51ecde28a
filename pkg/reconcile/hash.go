package reconcile

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/seekmed/medharvest/pkg/concepts"
)

// Hash digests a concept's flattened fields in sorted field order, each
// name and value NUL-delimited. Two concepts with the same logical
// content always hash the same, regardless of map iteration order or
// nil-versus-empty maps. The concept id is not part of the digest.
func Hash(c concepts.Concept) string {
	fields := Flatten(c)
	h := sha256.New()
	for _, name := range sortedFieldNames(fields) {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(fields[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
