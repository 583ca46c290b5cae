package badger

import (
	"bytes"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/storage"
)

// Key prefixes for different data types
const (
	collectionPrefix   = "veccol:"
	vectorPrefix       = "vec:"
	catalogCurrentKey  = "catalog:current"
	catalogGenerations = "catalog:genseq"
)

// makeCollectionKey generates the marker key holding a collection's metadata.
func makeCollectionKey(name string) []byte {
	return []byte(collectionPrefix + name)
}

// makeVectorPrefix generates the prefix shared by every entry in a collection.
// Format: vec:name:
func makeVectorPrefix(name string) []byte {
	return []byte(vectorPrefix + name + ":")
}

// makeVectorKey generates the key for one entry.
// Format: vec:name:id, with the id MUS-encoded. Key order is not id order.
func makeVectorKey(name string, id core.ID) []byte {
	prefix := makeVectorPrefix(name)
	buf := make([]byte, 0, len(prefix)+core.IDMUS.Size(id))
	buf = append(buf, prefix...)
	return append(buf, storage.MarshalID(id)...)
}

// parseVectorKey extracts the id from a key built by makeVectorKey.
func parseVectorKey(name string, key []byte) (core.ID, error) {
	return storage.UnmarshalID(bytes.TrimPrefix(key, makeVectorPrefix(name)))
}

// parseCollectionKey extracts the collection name from a marker key.
func parseCollectionKey(key []byte) string {
	return string(bytes.TrimPrefix(key, []byte(collectionPrefix)))
}
