package core

import (
	"time"
)

// MimeTypeMarkdown is the mime type of every Version record. Versions are
// always normalized Markdown, whatever the mime type of their source
// snapshots.
const MimeTypeMarkdown = "text/markdown"

// RecordKind distinguishes the two record specializations. Backends select
// their encode/decode behavior by switching on the kind rather than by
// inspecting the record at call time.
type RecordKind int

const (
	// KindSnapshot identifies raw fetched content in its original encoding.
	KindSnapshot RecordKind = iota + 1
	// KindVersion identifies extracted, normalized Markdown content.
	KindVersion
)

func (k RecordKind) String() string {
	switch k {
	case KindSnapshot:
		return "snapshot"
	case KindVersion:
		return "version"
	default:
		return "unknown"
	}
}

// Record is one persisted, immutable observation of a document for a given
// service, terms type and fetch date. A Record is either a Snapshot or a
// Version depending on its Kind.
//
// ID is assigned by the repository that persists the record and stays empty
// until then. Its format is backend-specific (commit hash, ObjectID hex,
// sequence hex) and must be treated as opaque by callers.
//
// The content payload lives in a private slot so that listing operations can
// return records without transferring payloads. Reading content that was
// never set or loaded is an error, not an empty value.
type Record struct {
	ID         string
	Kind       RecordKind
	ServiceID  string
	TermsType  string
	DocumentID string // Disambiguates multiple source documents for one terms type
	FetchDate  time.Time
	MimeType   string

	// IsFirstRecord is nil when the caller did not supply it; repositories
	// compute it at save time (true iff no prior record exists in scope).
	IsFirstRecord *bool

	// SnapshotIDs lists the source snapshots a Version was extracted from.
	// Empty for Snapshots.
	SnapshotIDs []string

	// IsExtractOnly marks a Version regenerated from existing snapshots due
	// to an extraction or declaration change rather than a real content
	// change. Always false for Snapshots.
	IsExtractOnly bool

	content []byte
	loaded  bool
}

// Content returns the record payload. It fails with ErrContentNotLoaded if
// the content was neither set at construction time nor populated through
// Repository.LoadRecordContent.
func (r *Record) Content() ([]byte, error) {
	if !r.loaded {
		return nil, ErrContentNotLoaded
	}
	return r.content, nil
}

// SetContent populates the record payload.
func (r *Record) SetContent(content []byte) {
	r.content = content
	r.loaded = true
}

// ContentLoaded reports whether the payload is available without an extra
// repository round trip.
func (r *Record) ContentLoaded() bool {
	return r.loaded
}

// FirstRecord reports the resolved first-record flag. It returns false when
// the flag has not been computed yet.
func (r *Record) FirstRecord() bool {
	return r.IsFirstRecord != nil && *r.IsFirstRecord
}

// SnapshotParams carries the fields needed to construct a Snapshot record.
type SnapshotParams struct {
	ServiceID     string
	TermsType     string
	DocumentID    string
	FetchDate     time.Time
	MimeType      string
	Content       []byte
	IsFirstRecord *bool
}

// NewSnapshot builds a Snapshot record, validating required fields before
// any I/O happens. The returned record has its content set.
func NewSnapshot(params SnapshotParams) (*Record, error) {
	if err := validateSnapshotParams(params); err != nil {
		return nil, err
	}

	record := &Record{
		Kind:          KindSnapshot,
		ServiceID:     params.ServiceID,
		TermsType:     params.TermsType,
		DocumentID:    params.DocumentID,
		FetchDate:     params.FetchDate,
		MimeType:      params.MimeType,
		IsFirstRecord: params.IsFirstRecord,
	}
	record.SetContent(params.Content)

	return record, nil
}

// VersionParams carries the fields needed to construct a Version record.
// The mime type is not a parameter: versions are always Markdown.
type VersionParams struct {
	ServiceID     string
	TermsType     string
	DocumentID    string
	FetchDate     time.Time
	Content       []byte
	SnapshotIDs   []string
	IsExtractOnly bool
	IsFirstRecord *bool
}

// NewVersion builds a Version record, validating required fields before any
// I/O happens. At least one source snapshot ID is required.
func NewVersion(params VersionParams) (*Record, error) {
	if err := validateVersionParams(params); err != nil {
		return nil, err
	}

	record := &Record{
		Kind:          KindVersion,
		ServiceID:     params.ServiceID,
		TermsType:     params.TermsType,
		DocumentID:    params.DocumentID,
		FetchDate:     params.FetchDate,
		MimeType:      MimeTypeMarkdown,
		SnapshotIDs:   params.SnapshotIDs,
		IsExtractOnly: params.IsExtractOnly,
		IsFirstRecord: params.IsFirstRecord,
	}
	record.SetContent(params.Content)

	return record, nil
}

// Bool returns a pointer to b, for callers supplying an explicit
// first-record flag.
func Bool(b bool) *bool {
	return &b
}
