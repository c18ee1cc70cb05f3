package badger

import "fmt"

// Key prefixes for different data types
const (
	chunkRecordPrefix = "chunk"
	dedupDocPrefix    = "dedupdoc"
	dedupChunkPrefix  = "dedupchk"
	dedupSourcePrefix = "dedupsrc"
	dedupDimPrefix    = "dedupdim"
)

// makeChunkKey generates a key for a chunk record.
// Format: prefix:collection:id
func makeChunkKey(collection, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", chunkRecordPrefix, collection, id))
}

// makeCollectionPrefix generates the prefix shared by every key of one
// collection under the given data type prefix.
// Format: prefix:collection:
func makeCollectionPrefix(prefix, collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", prefix, collection))
}

// makeDedupKey generates a key for a dedup index entry.
// Format: prefix:collection:hash
func makeDedupKey(prefix, collection, hash string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", prefix, collection, hash))
}

// makeDimensionKey generates the key holding a collection's vector dimension.
// Format: prefix:collection
func makeDimensionKey(collection string) []byte {
	return []byte(fmt.Sprintf("%s:%s", dedupDimPrefix, collection))
}

// hashFromKey returns the part of key after the collection prefix.
func hashFromKey(key, prefix []byte) string {
	return string(key[len(prefix):])
}
