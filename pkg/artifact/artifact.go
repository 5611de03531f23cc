// Package artifact defines the identity, on-disk envelope and payload codecs
// for persisted learning state. An artifact is one (unit, key) blob; the
// payload bytes themselves are opaque to this package, only the framing
// around them (magic, version, codec kind, checksum) is defined here.
package artifact

import (
	"fmt"
	"hash/crc32"
	"path/filepath"
	"strings"
)

// FileExt is the extension of stored artifact files.
const FileExt = ".skp"

// ID identifies one persisted artifact as a (unit, key) pair.
type ID struct {
	Unit string
	Key  string
}

// NewID builds an ID from a unit and key.
func NewID(unit, key string) ID {
	return ID{Unit: unit, Key: key}
}

// String renders the ID as "unit/key".
func (id ID) String() string {
	return id.Unit + "/" + id.Key
}

// IsZero reports whether the ID is empty.
func (id ID) IsZero() bool {
	return id.Unit == "" && id.Key == ""
}

// Path returns the storage location of the artifact under root:
// <root>/<unit>/<key>.skp. One file per artifact, so corruption of one
// artifact never touches another's bytes.
func (id ID) Path(root string) string {
	return filepath.Join(root, id.Unit, id.Key+FileExt)
}

// ParseID parses "unit/key" back into an ID. Keys must not contain a
// path separator; everything after the first slash is the key.
func ParseID(s string) (ID, error) {
	unit, key, ok := strings.Cut(s, "/")
	if !ok || unit == "" || key == "" {
		return ID{}, fmt.Errorf("invalid artifact id %q (want unit/key)", s)
	}
	return ID{Unit: unit, Key: key}, nil
}

// PayloadSum computes the checksum of a logical payload (before codec
// framing). The cache uses it to detect saves that carry bytes identical
// to what is already durable.
func PayloadSum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}
