// Package mongorepo implements the record repository on top of a MongoDB
// collection: one document per record, carrying metadata and content side by
// side. Record IDs are the hex form of the document's ObjectID.
package mongorepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Config describes one MongoDB-backed repository.
type Config struct {
	// URI is the mongodb:// connection string.
	URI string
	// Database and Collection locate the records. One collection per record
	// kind.
	Database   string
	Collection string
}

// Repository is the document-store implementation of storage.Repository.
//
// Unlike the git backend it needs no coarse serialization: each save is a
// single insert and MongoDB guarantees per-document atomicity. The
// duplicate check before an insert is not atomic with it, so two concurrent
// saves of the same new content may both land; the read paths tolerate that
// because FindLatest orders by fetch date.
type Repository struct {
	kind       core.RecordKind
	config     Config
	logger     *slog.Logger
	client     *mongo.Client
	collection *mongo.Collection
}

var _ storage.Repository = (*Repository)(nil)

// New creates a MongoDB-backed repository for the given record kind. Call
// Initialize before use.
func New(config Config, kind core.RecordKind) (storage.Repository, error) {
	if config.URI == "" || config.Database == "" || config.Collection == "" {
		return nil, errors.New("mongorepo: URI, database and collection are required")
	}

	return &Repository{
		kind:   kind,
		config: config,
		logger: slog.Default().With("backend", "mongo", "kind", kind.String()),
	}, nil
}

func (r *Repository) Initialize(ctx context.Context) error {
	client, err := mongo.Connect(options.Client().ApplyURI(r.config.URI))
	if err != nil {
		return fmt.Errorf("cannot connect to %s: %w", r.config.Database, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot reach %s: %w", r.config.Database, err)
	}

	r.client = client
	r.collection = client.Database(r.config.Database).Collection(r.config.Collection)

	return r.ensureIndexes(ctx)
}

func (r *Repository) ensureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{
			{Key: "serviceId", Value: 1},
			{Key: "termsType", Value: 1},
			{Key: "documentId", Value: 1},
			{Key: "fetchDate", Value: -1},
		}},
		{Keys: bson.D{{Key: "fetchDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("cannot create indexes on %s: %w", r.config.Collection, err)
	}
	return nil
}

func (r *Repository) Finalize(ctx context.Context) error {
	if r.client == nil {
		return storage.ErrNotInitialized
	}
	return r.client.Disconnect(ctx)
}

func (r *Repository) Save(ctx context.Context, record *core.Record) (*core.Record, error) {
	if r.collection == nil {
		return nil, storage.ErrNotInitialized
	}

	content, err := record.Content()
	if err != nil {
		return nil, err
	}

	latest, err := r.findOne(ctx, scopeFilter(record.ServiceID, record.TermsType, record.DocumentID),
		options.FindOne().SetSort(bson.D{{Key: "fetchDate", Value: -1}}))
	if err != nil {
		return nil, err
	}

	if latest != nil && bytes.Equal(latest.Content, content) {
		r.logger.Debug("content unchanged, skipping record",
			"service", record.ServiceID, "terms", record.TermsType)
		return nil, nil
	}

	if record.IsFirstRecord == nil {
		record.IsFirstRecord = core.Bool(latest == nil)
	}

	doc, err := toPersistence(record)
	if err != nil {
		return nil, err
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("cannot insert record for %s %s: %w", record.ServiceID, record.TermsType, err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted ID type %T", result.InsertedID)
	}
	record.ID = id.Hex()

	return record, nil
}

func (r *Repository) FindLatest(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error) {
	return r.findOneRecord(ctx, scopeFilter(serviceID, termsType, documentID),
		options.FindOne().SetSort(bson.D{{Key: "fetchDate", Value: -1}}))
}

func (r *Repository) FindByDate(ctx context.Context, serviceID, termsType string, date time.Time, documentID string) (*core.Record, error) {
	filter := scopeFilter(serviceID, termsType, documentID)
	filter["fetchDate"] = bson.M{"$lte": date}

	return r.findOneRecord(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "fetchDate", Value: -1}}))
}

func (r *Repository) FindByID(ctx context.Context, id string) (*core.Record, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		// Not a document ID of this store, so it names no record.
		return nil, nil
	}

	return r.findOneRecord(ctx, bson.M{"_id": objectID}, options.FindOne())
}

func (r *Repository) FindFirst(ctx context.Context, serviceID, termsType string) (*core.Record, error) {
	return r.findOneRecord(ctx, bson.M{"serviceId": serviceID, "termsType": termsType},
		options.FindOne().SetSort(bson.D{{Key: "fetchDate", Value: 1}}))
}

func (r *Repository) FindPrevious(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(ctx, id, "$lt", -1)
}

func (r *Repository) FindNext(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(ctx, id, "$gt", 1)
}

func (r *Repository) findNeighbor(ctx context.Context, id string, comparison string, order int) (*core.Record, error) {
	reference, err := r.FindByID(ctx, id)
	if err != nil || reference == nil {
		return nil, err
	}

	filter := scopeFilter(reference.ServiceID, reference.TermsType, reference.DocumentID)
	filter["fetchDate"] = bson.M{comparison: reference.FetchDate}

	return r.findOneRecord(ctx, filter,
		options.FindOne().SetSort(bson.D{{Key: "fetchDate", Value: order}}))
}

func (r *Repository) FindAll(ctx context.Context, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing(ctx, bson.M{}, opts)
}

func (r *Repository) FindByService(ctx context.Context, serviceID string, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing(ctx, bson.M{"serviceId": serviceID}, opts)
}

func (r *Repository) FindByServiceAndTermsType(ctx context.Context, serviceID, termsType string, opts storage.QueryOptions) ([]*core.Record, error) {
	return r.findListing(ctx, bson.M{"serviceId": serviceID, "termsType": termsType}, opts)
}

func (r *Repository) Count(ctx context.Context, serviceID, termsType string) (int, error) {
	if r.collection == nil {
		return 0, storage.ErrNotInitialized
	}

	filter := bson.M{}
	if serviceID != "" {
		filter["serviceId"] = serviceID
		if termsType != "" {
			filter["termsType"] = termsType
		}
	}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, err
	}

	return int(count), nil
}

func (r *Repository) Iterate(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		if r.collection == nil {
			yield(nil, storage.ErrNotInitialized)
			return
		}

		cursor, err := r.collection.Find(ctx, bson.M{},
			options.Find().SetSort(bson.D{{Key: "fetchDate", Value: 1}}))
		if err != nil {
			yield(nil, err)
			return
		}
		defer cursor.Close(ctx)

		for cursor.Next(ctx) {
			var doc recordDocument
			if err := cursor.Decode(&doc); err != nil {
				yield(nil, fmt.Errorf("%w: %w", storage.ErrCorruptedRecord, err))
				return
			}
			if !yield(toDomain(r.kind, doc, true), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield(nil, err)
		}
	}
}

func (r *Repository) RemoveAll(ctx context.Context) error {
	if r.collection == nil {
		return storage.ErrNotInitialized
	}

	if err := r.collection.Drop(ctx); err != nil {
		return fmt.Errorf("cannot drop %s: %w", r.config.Collection, err)
	}

	return r.ensureIndexes(ctx)
}

func (r *Repository) LoadRecordContent(ctx context.Context, record *core.Record) error {
	if r.collection == nil {
		return storage.ErrNotInitialized
	}

	objectID, err := bson.ObjectIDFromHex(record.ID)
	if err != nil {
		return fmt.Errorf("%w: record ID %q is not a document ID", storage.ErrCorruptedRecord, record.ID)
	}

	doc, err := r.findOne(ctx, bson.M{"_id": objectID},
		options.FindOne().SetProjection(bson.M{"content": 1}))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: record %s no longer exists", storage.ErrCorruptedRecord, record.ID)
	}

	record.SetContent(doc.Content)

	return nil
}

// findOne runs a point query and maps absence to (nil, nil).
func (r *Repository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptionsBuilder) (*recordDocument, error) {
	if r.collection == nil {
		return nil, storage.ErrNotInitialized
	}

	var doc recordDocument
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *Repository) findOneRecord(ctx context.Context, filter bson.M, opts *options.FindOneOptionsBuilder) (*core.Record, error) {
	doc, err := r.findOne(ctx, filter, opts)
	if err != nil || doc == nil {
		return nil, err
	}

	return toDomain(r.kind, *doc, true), nil
}

// findListing runs a multi-record query, newest fetch date first, with the
// content field projected out. Callers load content on demand with
// LoadRecordContent.
func (r *Repository) findListing(ctx context.Context, filter bson.M, opts storage.QueryOptions) ([]*core.Record, error) {
	if r.collection == nil {
		return nil, storage.ErrNotInitialized
	}

	findOpts := options.Find().
		SetSort(bson.D{{Key: "fetchDate", Value: -1}}).
		SetProjection(bson.M{"content": 0})
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*core.Record
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %w", storage.ErrCorruptedRecord, err)
		}
		records = append(records, toDomain(r.kind, doc, false))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
