package storage

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/poiesic/kbingest/core"
)

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(record *core.ChunkRecord) ([]byte, error) {
	data, err := msgpack.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty data", ErrSerializationFailed)
	}
	var record core.ChunkRecord
	if err := msgpack.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalCount serializes a counter such as the chunk count kept with a
// document hash or a collection's vector dimension.
func MarshalCount(count int) ([]byte, error) {
	data, err := msgpack.Marshal(count)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalCount deserializes a counter.
func UnmarshalCount(data []byte) (int, error) {
	var count int
	if err := msgpack.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return count, nil
}
