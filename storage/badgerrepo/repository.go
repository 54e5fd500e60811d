// Package badgerrepo implements the record repository on an embedded
// BadgerDB key-value store. It serves single-binary deployments that want
// neither a git working tree nor a database server. Record IDs are the hex
// form of a store-local sequence number.
package badgerrepo

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Config describes one BadgerDB-backed repository.
type Config struct {
	// Path of the database directory. Ignored when InMemory is set.
	Path string
	// InMemory keeps everything in process memory; used in tests.
	InMemory bool
}

// scopeMode selects how widely a metadata filter matches.
type scopeMode int

const (
	scopeExact   scopeMode = iota // serviceID, termsType and documentID
	scopeTerms                    // serviceID and termsType, any document
	scopeService                  // serviceID only
	scopeAll
)

// Repository is the embedded-store implementation of storage.Repository.
// Concurrency is handled by BadgerDB transactions; no extra locking is
// needed.
type Repository struct {
	kind    core.RecordKind
	config  Config
	logger  *slog.Logger
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.Repository = (*Repository)(nil)

// New creates a BadgerDB-backed repository for the given record kind. Call
// Initialize before use.
func New(config Config, kind core.RecordKind) (storage.Repository, error) {
	if config.Path == "" && !config.InMemory {
		return nil, fmt.Errorf("badgerrepo: a database path is required")
	}

	return &Repository{
		kind:   kind,
		config: config,
		logger: slog.Default().With("backend", "badger", "kind", kind.String()),
	}, nil
}

func (r *Repository) Initialize(ctx context.Context) error {
	backend, err := OpenBackend(r.config.Path, r.config.InMemory)
	if err != nil {
		return err
	}

	idSeq, err := backend.GetSequence(recordIDSeq)
	if err != nil {
		backend.Close()
		return err
	}

	r.backend = backend
	r.idSeq = idSeq

	return nil
}

func (r *Repository) Finalize(ctx context.Context) error {
	if r.backend == nil {
		return storage.ErrNotInitialized
	}

	if err := r.idSeq.Release(); err != nil {
		return err
	}
	return r.backend.Close()
}

func (r *Repository) Save(ctx context.Context, record *core.Record) (*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	content, err := record.Content()
	if err != nil {
		return nil, err
	}

	var saved bool
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		latestID, found, err := r.latestInScope(tx, record.ServiceID, record.TermsType, record.DocumentID)
		if err != nil {
			return err
		}

		if found {
			existing, err := readContent(tx, latestID)
			if err != nil {
				return err
			}
			if bytes.Equal(existing, content) {
				r.logger.Debug("content unchanged, skipping record",
					"service", record.ServiceID, "terms", record.TermsType)
				return nil
			}
		}

		if record.IsFirstRecord == nil {
			record.IsFirstRecord = core.Bool(!found)
		}

		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}

		meta := recordMeta{
			serviceID:     record.ServiceID,
			termsType:     record.TermsType,
			documentID:    record.DocumentID,
			mimeType:      record.MimeType,
			fetchMicro:    record.FetchDate.UnixMicro(),
			isFirstRecord: record.FirstRecord(),
			isExtractOnly: record.IsExtractOnly,
			snapshotIDs:   record.SnapshotIDs,
		}

		if err := tx.Set(makeRecordMetaKey(nextID), marshalRecordMeta(meta)); err != nil {
			return err
		}
		if err := tx.Set(makeRecordContentKey(nextID), content); err != nil {
			return err
		}
		if err := tx.Set(makeRecordDateKey(meta.fetchMicro, nextID), nil); err != nil {
			return err
		}

		record.ID = formatID(nextID)
		saved = true

		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	if !saved {
		return nil, nil
	}

	return record, nil
}

func (r *Repository) FindLatest(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error) {
	return r.findEdge(serviceID, termsType, documentID, scopeExact, true)
}

func (r *Repository) FindByDate(ctx context.Context, serviceID, termsType string, date time.Time, documentID string) (*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		entries, err := r.scopedEntries(tx, serviceID, termsType, documentID, scopeExact)
		if err != nil {
			return err
		}

		target := date.UnixMicro()
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].micro <= target {
				record, err = r.readRecord(tx, entries[i].id, true)
				return err
			}
		}
		return nil
	}, false)

	return record, err
}

func (r *Repository) FindByID(ctx context.Context, id string) (*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	numericID, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = r.readRecord(tx, numericID, true)
		return err
	}, false)

	return record, err
}

func (r *Repository) FindFirst(ctx context.Context, serviceID, termsType string) (*core.Record, error) {
	return r.findEdge(serviceID, termsType, "", scopeTerms, false)
}

func (r *Repository) FindPrevious(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(id, -1)
}

func (r *Repository) FindNext(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(id, +1)
}

func (r *Repository) findNeighbor(id string, direction int) (*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	numericID, ok := parseID(id)
	if !ok {
		return nil, nil
	}

	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		reference, err := readMeta(tx, numericID)
		if err != nil || reference == nil {
			return err
		}

		entries, err := r.scopedEntries(tx, reference.serviceID, reference.termsType, reference.documentID, scopeExact)
		if err != nil {
			return err
		}

		for i, entry := range entries {
			if entry.id == numericID {
				neighbor := i + direction
				if neighbor < 0 || neighbor >= len(entries) {
					return nil
				}
				record, err = r.readRecord(tx, entries[neighbor].id, true)
				return err
			}
		}
		return nil
	}, false)

	return record, err
}

func (r *Repository) FindAll(ctx context.Context, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing("", "", scopeAll, opts)
}

func (r *Repository) FindByService(ctx context.Context, serviceID string, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing(serviceID, "", scopeService, opts)
}

func (r *Repository) FindByServiceAndTermsType(ctx context.Context, serviceID, termsType string, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing(serviceID, termsType, scopeTerms, opts)
}

func (r *Repository) Count(ctx context.Context, serviceID, termsType string) (int, error) {
	if r.backend == nil {
		return 0, storage.ErrNotInitialized
	}

	mode := scopeAll
	switch {
	case serviceID != "" && termsType != "":
		mode = scopeTerms
	case serviceID != "":
		mode = scopeService
	}

	var count int
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		entries, err := r.scopedEntries(tx, serviceID, termsType, "", mode)
		if err != nil {
			return err
		}
		count = len(entries)
		return nil
	}, false)

	return count, err
}

func (r *Repository) Iterate(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		if r.backend == nil {
			yield(nil, storage.ErrNotInitialized)
			return
		}

		stopped := false
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(recordDatePrefix + ":")
			it := tx.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				_, id, ok := parseRecordDateKey(it.Item().Key())
				if !ok {
					continue
				}

				record, err := r.readRecord(tx, id, true)
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("%w: dangling index entry for record %s",
						storage.ErrCorruptedRecord, formatID(id))
				}

				if !yield(record, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		}, false)
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

func (r *Repository) RemoveAll(ctx context.Context) error {
	if r.backend == nil {
		return storage.ErrNotInitialized
	}

	if err := r.idSeq.Release(); err != nil {
		return err
	}
	if err := r.backend.DropAll(); err != nil {
		return err
	}

	idSeq, err := r.backend.GetSequence(recordIDSeq)
	if err != nil {
		return err
	}
	r.idSeq = idSeq

	return nil
}

func (r *Repository) LoadRecordContent(ctx context.Context, record *core.Record) error {
	if r.backend == nil {
		return storage.ErrNotInitialized
	}

	numericID, ok := parseID(record.ID)
	if !ok {
		return fmt.Errorf("%w: record ID %q is not a store ID", storage.ErrCorruptedRecord, record.ID)
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		content, err := readContent(tx, numericID)
		if err != nil {
			return err
		}
		if content == nil {
			return fmt.Errorf("%w: record %s no longer exists", storage.ErrCorruptedRecord, record.ID)
		}
		record.SetContent(content)
		return nil
	}, false)
}

// dateEntry is one fetch-date index hit, in ascending index order.
type dateEntry struct {
	micro int64
	id    uint64
}

// scopedEntries walks the fetch-date index ascending and keeps the entries
// whose metadata matches the scope.
func (r *Repository) scopedEntries(tx *badger.Txn, serviceID, termsType, documentID string, mode scopeMode) ([]dateEntry, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(recordDatePrefix + ":")
	opts.PrefetchValues = false
	it := tx.NewIterator(opts)
	defer it.Close()

	var entries []dateEntry
	for it.Rewind(); it.Valid(); it.Next() {
		micro, id, ok := parseRecordDateKey(it.Item().Key())
		if !ok {
			continue
		}

		if mode != scopeAll {
			meta, err := readMeta(tx, id)
			if err != nil {
				return nil, err
			}
			if meta == nil || !metaInScope(*meta, serviceID, termsType, documentID, mode) {
				continue
			}
		}

		entries = append(entries, dateEntry{micro: micro, id: id})
	}

	return entries, nil
}

func metaInScope(meta recordMeta, serviceID, termsType, documentID string, mode scopeMode) bool {
	if meta.serviceID != serviceID {
		return false
	}
	if mode == scopeService {
		return true
	}
	if meta.termsType != termsType {
		return false
	}
	return mode == scopeTerms || meta.documentID == documentID
}

// findEdge returns the newest (latest) or oldest record of a scope.
func (r *Repository) findEdge(serviceID, termsType, documentID string, mode scopeMode, latest bool) (*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	var record *core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		entries, err := r.scopedEntries(tx, serviceID, termsType, documentID, mode)
		if err != nil || len(entries) == 0 {
			return err
		}

		entry := entries[0]
		if latest {
			entry = entries[len(entries)-1]
		}

		record, err = r.readRecord(tx, entry.id, true)
		return err
	}, false)

	return record, err
}

// latestInScope returns the ID of the newest record of a scope, if any.
func (r *Repository) latestInScope(tx *badger.Txn, serviceID, termsType, documentID string) (uint64, bool, error) {
	entries, err := r.scopedEntries(tx, serviceID, termsType, documentID, scopeExact)
	if err != nil || len(entries) == 0 {
		return 0, false, err
	}
	return entries[len(entries)-1].id, true, nil
}

// findListing returns scoped records newest fetch date first, content not
// loaded, with pagination applied.
func (r *Repository) findListing(serviceID, termsType string, mode scopeMode, opts storage.QueryOptions) ([]*core.Record, error) {
	if r.backend == nil {
		return nil, storage.ErrNotInitialized
	}

	var records []*core.Record
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		entries, err := r.scopedEntries(tx, serviceID, termsType, "", mode)
		if err != nil {
			return err
		}

		for i := len(entries) - 1; i >= 0; i-- {
			record, err := r.readRecord(tx, entries[i].id, false)
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(records) {
			return nil, nil
		}
		records = records[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	return records, nil
}

// readMeta reads record metadata from the transaction; (nil, nil) when the
// record does not exist.
func readMeta(tx *badger.Txn, id uint64) (*recordMeta, error) {
	item, err := tx.Get(makeRecordMetaKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var meta recordMeta
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		meta, unmarshalErr = unmarshalRecordMeta(val)
		return unmarshalErr
	})
	if err != nil {
		return nil, err
	}

	return &meta, nil
}

// readContent reads record content from the transaction; (nil, nil) when the
// record does not exist.
func readContent(tx *badger.Txn, id uint64) ([]byte, error) {
	item, err := tx.Get(makeRecordContentKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	return item.ValueCopy(nil)
}

// readRecord assembles a domain record, optionally with its content.
func (r *Repository) readRecord(tx *badger.Txn, id uint64, withContent bool) (*core.Record, error) {
	meta, err := readMeta(tx, id)
	if err != nil || meta == nil {
		return nil, err
	}

	record := &core.Record{
		ID:            formatID(id),
		Kind:          r.kind,
		ServiceID:     meta.serviceID,
		TermsType:     meta.termsType,
		DocumentID:    meta.documentID,
		FetchDate:     time.UnixMicro(meta.fetchMicro).UTC(),
		MimeType:      meta.mimeType,
		IsFirstRecord: core.Bool(meta.isFirstRecord),
	}

	if r.kind == core.KindVersion {
		record.IsExtractOnly = meta.isExtractOnly
		record.SnapshotIDs = meta.snapshotIDs
	}

	if withContent {
		content, err := readContent(tx, id)
		if err != nil {
			return nil, err
		}
		if content == nil {
			return nil, fmt.Errorf("%w: record %s has no content", storage.ErrCorruptedRecord, record.ID)
		}
		record.SetContent(content)
	}

	return record, nil
}

func formatID(id uint64) string {
	return fmt.Sprintf("%016x", id)
}

func parseID(id string) (uint64, bool) {
	if len(id) != 16 {
		return 0, false
	}
	numericID, err := strconv.ParseUint(id, 16, 64)
	if err != nil {
		return 0, false
	}
	return numericID, true
}
