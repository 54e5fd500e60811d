package mongorepo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/policytrail/policytrail/core"
)

// recordDocument is the persisted shape of one record: exactly one document
// per record, metadata and content side by side. Field names are a durable
// wire format shared with other readers of the store.
type recordDocument struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	ServiceID     string        `bson:"serviceId"`
	TermsType     string        `bson:"termsType"`
	DocumentID    string        `bson:"documentId,omitempty"`
	FetchDate     time.Time     `bson:"fetchDate"`
	MimeType      string        `bson:"mimeType"`
	Content       []byte        `bson:"content,omitempty"`
	IsFirstRecord bool          `bson:"isFirstRecord,omitempty"`
	IsExtractOnly bool          `bson:"isExtractOnly,omitempty"`
	// Snapshot IDs are stored as the hex strings callers passed in, not as
	// ObjectIDs: they reference records of the snapshots repository, which
	// may live in a different backend entirely.
	SnapshotIDs []string  `bson:"snapshotIds,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
}

// toPersistence encodes a record into its document. The caller has resolved
// IsFirstRecord by then; content must be loaded.
func toPersistence(record *core.Record) (recordDocument, error) {
	content, err := record.Content()
	if err != nil {
		return recordDocument{}, err
	}

	return recordDocument{
		ServiceID:     record.ServiceID,
		TermsType:     record.TermsType,
		DocumentID:    record.DocumentID,
		FetchDate:     record.FetchDate.UTC(),
		MimeType:      record.MimeType,
		Content:       content,
		IsFirstRecord: record.FirstRecord(),
		IsExtractOnly: record.IsExtractOnly,
		SnapshotIDs:   record.SnapshotIDs,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// toDomain decodes a document into a Record. contentLoaded tells whether the
// query projected the content field in; listings leave it out and the record
// reports its content as not loaded.
func toDomain(kind core.RecordKind, doc recordDocument, contentLoaded bool) *core.Record {
	record := &core.Record{
		ID:            doc.ID.Hex(),
		Kind:          kind,
		ServiceID:     doc.ServiceID,
		TermsType:     doc.TermsType,
		DocumentID:    doc.DocumentID,
		FetchDate:     doc.FetchDate,
		MimeType:      doc.MimeType,
		IsFirstRecord: core.Bool(doc.IsFirstRecord),
	}

	if kind == core.KindVersion {
		record.IsExtractOnly = doc.IsExtractOnly
		record.SnapshotIDs = doc.SnapshotIDs
	}

	if contentLoaded {
		record.SetContent(doc.Content)
	}

	return record
}

// scopeFilter builds the query filter of one document scope. An absent
// document ID is stored as a missing field, so the empty scope matches both
// missing and empty values.
func scopeFilter(serviceID, termsType, documentID string) bson.M {
	filter := bson.M{
		"serviceId": serviceID,
		"termsType": termsType,
	}

	if documentID == "" {
		filter["documentId"] = bson.M{"$in": bson.A{nil, ""}}
	} else {
		filter["documentId"] = documentID
	}

	return filter
}
