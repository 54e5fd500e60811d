package badgerrepo

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for the different data types. Record metadata and content are
// stored under separate keys so listings never pull payloads off disk.
const (
	recordMetaPrefix    = "rec"
	recordContentPrefix = "reccont"
	recordDatePrefix    = "recd"
	recordIDSeq         = "recseq"
)

// makeRecordMetaKey generates the metadata key of a record by ID.
func makeRecordMetaKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s:%d", recordMetaPrefix, id))
}

// makeRecordContentKey generates the content key of a record by ID.
func makeRecordContentKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s:%d", recordContentPrefix, id))
}

// makeRecordDateKey generates a composite key for the fetch-date index.
// Format: prefix:timestamp:id
func makeRecordDateKey(unixMicro int64, id uint64) []byte {
	prefix := recordDatePrefix + ":"
	prefixBytes := []byte(prefix)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for ID
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(unixMicro))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], id)
	return buf
}

// parseRecordDateKey extracts timestamp and ID back out of a date index key.
func parseRecordDateKey(key []byte) (unixMicro int64, id uint64, ok bool) {
	prefixSize := len(recordDatePrefix) + 1
	if len(key) != prefixSize+16 {
		return 0, 0, false
	}
	unixMicro = int64(binary.BigEndian.Uint64(key[prefixSize:]))
	id = binary.BigEndian.Uint64(key[prefixSize+8:])
	return unixMicro, id, true
}
