package badgerrepo

import (
	"fmt"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"

	"github.com/policytrail/policytrail/storage"
)

// recordMeta is the persisted metadata of one record. Content lives under a
// separate key; the record ID lives in the key itself.
type recordMeta struct {
	serviceID     string
	termsType     string
	documentID    string
	mimeType      string
	fetchMicro    int64
	isFirstRecord bool
	isExtractOnly bool
	snapshotIDs   []string
}

// marshalRecordMeta serializes record metadata in MUS format.
func marshalRecordMeta(m recordMeta) []byte {
	size := ord.String.Size(m.serviceID) +
		ord.String.Size(m.termsType) +
		ord.String.Size(m.documentID) +
		ord.String.Size(m.mimeType) +
		varint.Int64.Size(m.fetchMicro) +
		ord.Bool.Size(m.isFirstRecord) +
		ord.Bool.Size(m.isExtractOnly) +
		varint.Int.Size(len(m.snapshotIDs))
	for _, id := range m.snapshotIDs {
		size += ord.String.Size(id)
	}

	buf := make([]byte, size)
	n := ord.String.Marshal(m.serviceID, buf)
	n += ord.String.Marshal(m.termsType, buf[n:])
	n += ord.String.Marshal(m.documentID, buf[n:])
	n += ord.String.Marshal(m.mimeType, buf[n:])
	n += varint.Int64.Marshal(m.fetchMicro, buf[n:])
	n += ord.Bool.Marshal(m.isFirstRecord, buf[n:])
	n += ord.Bool.Marshal(m.isExtractOnly, buf[n:])
	n += varint.Int.Marshal(len(m.snapshotIDs), buf[n:])
	for _, id := range m.snapshotIDs {
		n += ord.String.Marshal(id, buf[n:])
	}

	return buf
}

// unmarshalRecordMeta deserializes record metadata from bytes.
func unmarshalRecordMeta(data []byte) (recordMeta, error) {
	var m recordMeta
	var n, total int
	var err error

	if m.serviceID, n, err = ord.String.Unmarshal(data); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.termsType, n, err = ord.String.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.documentID, n, err = ord.String.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.mimeType, n, err = ord.String.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.fetchMicro, n, err = varint.Int64.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.isFirstRecord, n, err = ord.Bool.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n
	if m.isExtractOnly, n, err = ord.Bool.Unmarshal(data[total:]); err != nil {
		return m, corrupted(err)
	}
	total += n

	count, n, err := varint.Int.Unmarshal(data[total:])
	if err != nil {
		return m, corrupted(err)
	}
	total += n

	for i := 0; i < count; i++ {
		id, n, err := ord.String.Unmarshal(data[total:])
		if err != nil {
			return m, corrupted(err)
		}
		total += n
		m.snapshotIDs = append(m.snapshotIDs, id)
	}

	return m, nil
}

func corrupted(err error) error {
	return fmt.Errorf("%w: %w", storage.ErrCorruptedRecord, err)
}
