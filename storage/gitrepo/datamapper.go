package gitrepo

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Commit subject prefixes are a durable wire format: they are how record
// semantics are recovered from plain git histories. Never change them
// without adding the previous vocabulary to the deprecated set below.
const (
	prefixFirstRecord = "First record of"
	prefixUpdate      = "Record new changes of"
	prefixExtractOnly = "Apply technical or declaration upgrade on"
)

// Deprecated subject prefixes from earlier engine releases. Still recognized
// when reading pre-existing histories, mapped onto the same semantics.
const (
	deprecatedPrefixFirstRecord = "Start tracking"
	deprecatedPrefixUpdate      = "Update"
	deprecatedPrefixExtractOnly = "Refilter"
)

// Body sentence templates carrying the source snapshot IDs of a version.
// IDs are recovered from the body by hex pattern matching, so the exact
// wording may evolve as long as the IDs stay embedded as hex words.
const (
	snapshotsSentenceSingular = "This version was recorded after extracting from snapshot %s"
	snapshotsSentencePlural   = "This version was recorded after extracting from snapshots %s"
)

// documentIDSeparator splits the terms type from the document ID in file
// names: `<termsType> #<documentId>.<ext>`. Part of the on-disk contract.
const documentIDSeparator = " #"

var hexIDRegexp = regexp.MustCompile(`\b[0-9a-f]{5,40}\b`)

var extensionsByMimeType = map[string]string{
	"text/html":        "html",
	"text/markdown":    "md",
	"text/plain":       "txt",
	"text/css":         "css",
	"application/pdf":  "pdf",
	"application/json": "json",
	"application/xml":  "xml",
	"text/xml":         "xml",
}

var mimeTypesByExtension = map[string]string{
	"html": "text/html",
	"htm":  "text/html",
	"md":   "text/markdown",
	"txt":  "text/plain",
	"css":  "text/css",
	"pdf":  "application/pdf",
	"json": "application/json",
	"xml":  "application/xml",
}

// commitInfo is the raw shape of one commit as read from the log, before
// decoding into a Record.
type commitInfo struct {
	hash    string
	subject string
	body    string
	date    time.Time
	files   []string
}

func subjectMatchesRecord(subject string) bool {
	return firstRecordSubject(subject) || extractOnlySubject(subject) || updateSubject(subject)
}

func firstRecordSubject(subject string) bool {
	return strings.HasPrefix(subject, prefixFirstRecord) || strings.HasPrefix(subject, deprecatedPrefixFirstRecord)
}

func extractOnlySubject(subject string) bool {
	return strings.HasPrefix(subject, prefixExtractOnly) || strings.HasPrefix(subject, deprecatedPrefixExtractOnly)
}

func updateSubject(subject string) bool {
	return strings.HasPrefix(subject, prefixUpdate) || strings.HasPrefix(subject, deprecatedPrefixUpdate)
}

// extension maps a mime type to the file extension used on disk. The second
// return value is false for unknown mime types; callers on a write path must
// treat that as an error, while lookups fall back to extension-agnostic
// matching.
func extension(mimeType string) (string, bool) {
	ext, ok := extensionsByMimeType[mimeType]
	return ext, ok
}

// generateFilePath builds the repository-relative path of a document scope:
// `<serviceId>/<termsType>[ #<documentId>].<ext>`.
func generateFilePath(serviceID, termsType, documentID, mimeType string) (string, error) {
	ext, ok := extension(mimeType)
	if !ok {
		return "", fmt.Errorf("%w: %q for %s/%s", storage.ErrUnknownMimeType, mimeType, serviceID, termsType)
	}

	return path.Join(serviceID, baseName(termsType, documentID)+"."+ext), nil
}

func baseName(termsType, documentID string) string {
	if documentID == "" {
		return termsType
	}
	return termsType + documentIDSeparator + documentID
}

// matchesScope reports whether a repository-relative file path belongs to
// the given (serviceID, termsType[, documentID]) scope, whatever its
// extension. This is the lookup-side counterpart of generateFilePath and the
// only place where "any extension" matching is allowed.
func matchesScope(filePath, serviceID, termsType, documentID string) bool {
	if path.Dir(filePath) != serviceID {
		return false
	}

	base := path.Base(filePath)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext) == baseName(termsType, documentID)
}

// parseFilePath decodes a repository-relative file path back into its scope
// and mime type.
func parseFilePath(filePath string) (serviceID, termsType, documentID, mimeType string, err error) {
	serviceID = path.Dir(filePath)
	if serviceID == "." || serviceID == "/" || strings.Contains(serviceID, "/") {
		return "", "", "", "", fmt.Errorf("%w: file %q is not under a service directory", storage.ErrCorruptedRecord, filePath)
	}

	base := path.Base(filePath)
	ext := path.Ext(base)
	name := strings.TrimSuffix(base, ext)

	termsType, documentID, _ = strings.Cut(name, documentIDSeparator)
	if termsType == "" {
		return "", "", "", "", fmt.Errorf("%w: file %q has no terms type", storage.ErrCorruptedRecord, filePath)
	}

	mimeType = mimeTypesByExtension[strings.TrimPrefix(ext, ".")]

	return serviceID, termsType, documentID, mimeType, nil
}

// toPersistence encodes a record into its commit message and file path.
func toPersistence(record *core.Record) (message, filePath string, err error) {
	filePath, err = generateFilePath(record.ServiceID, record.TermsType, record.DocumentID, record.MimeType)
	if err != nil {
		return "", "", err
	}

	prefix := prefixUpdate
	switch {
	case record.FirstRecord():
		prefix = prefixFirstRecord
	case record.Kind == core.KindVersion && record.IsExtractOnly:
		prefix = prefixExtractOnly
	}

	message = fmt.Sprintf("%s %s %s", prefix, record.ServiceID, record.TermsType)

	if record.Kind == core.KindVersion && len(record.SnapshotIDs) > 0 {
		sentence := snapshotsSentenceSingular
		if len(record.SnapshotIDs) > 1 {
			sentence = snapshotsSentencePlural
		}
		message += "\n\n" + fmt.Sprintf(sentence, strings.Join(record.SnapshotIDs, ", "))
	}

	return message, filePath, nil
}

// toDomain decodes a commit into a Record of the given kind. The commit is
// expected to touch exactly one file; anything else means the history was
// not written by this engine and is treated as corruption, never silently
// skipped.
func toDomain(kind core.RecordKind, ci commitInfo) (*core.Record, error) {
	if len(ci.files) != 1 {
		return nil, fmt.Errorf("%w: only one document should have been recorded in %s, but %d were: %s",
			storage.ErrCorruptedRecord, ci.hash, len(ci.files), strings.Join(ci.files, ", "))
	}

	serviceID, termsType, documentID, mimeType, err := parseFilePath(ci.files[0])
	if err != nil {
		return nil, fmt.Errorf("cannot decode commit %s: %w", ci.hash, err)
	}

	record := &core.Record{
		ID:            ci.hash,
		Kind:          kind,
		ServiceID:     serviceID,
		TermsType:     termsType,
		DocumentID:    documentID,
		FetchDate:     ci.date,
		MimeType:      mimeType,
		IsFirstRecord: core.Bool(firstRecordSubject(ci.subject)),
	}

	if kind == core.KindVersion {
		record.IsExtractOnly = extractOnlySubject(ci.subject)
		record.SnapshotIDs = hexIDRegexp.FindAllString(ci.body, -1)
	}

	return record, nil
}
