package storage

import (
	"context"
	"iter"
	"time"

	"github.com/policytrail/policytrail/core"
)

// QueryOptions carries pagination options for listing operations.
// A Limit of 0 means no limit.
type QueryOptions struct {
	Limit  int
	Offset int
}

// Repository models a collection of records with querying capabilities.
// One repository instance exclusively owns one store (working tree or
// collection) for its lifetime and persists exactly one record kind.
//
// All query methods return (nil, nil) when nothing matches; absence is not
// an error. Save returns (nil, nil) when the content is identical to the
// latest record in the same scope, so callers must check for a non-nil
// record to know whether anything was written.
type Repository interface {
	// Initialize acquires the underlying resources (open the database
	// connection, prepare the working tree). Call it once per repository
	// lifetime, before any other operation.
	Initialize(ctx context.Context) error

	// Finalize releases the underlying resources (close the connection,
	// push pending changes to the remote). The repository must not be used
	// afterwards.
	Finalize(ctx context.Context) error

	// Save persists the record if its content differs from the current
	// latest record in the same (serviceID, termsType, documentID) scope
	// and returns it augmented with its backend-assigned ID. It returns
	// (nil, nil) when nothing changed. When the record does not carry an
	// explicit first-record flag, Save computes it.
	Save(ctx context.Context, record *core.Record) (*core.Record, error)

	// FindLatest returns the most recent record in scope, content loaded.
	FindLatest(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error)

	// FindByDate returns the latest record in scope with FetchDate <= date,
	// content loaded.
	FindByDate(ctx context.Context, serviceID, termsType string, date time.Time, documentID string) (*core.Record, error)

	// FindByID returns the record with the given ID, content loaded.
	FindByID(ctx context.Context, id string) (*core.Record, error)

	// FindFirst returns the oldest record for the given service and terms
	// type.
	FindFirst(ctx context.Context, serviceID, termsType string) (*core.Record, error)

	// FindPrevious returns the chronological predecessor of the record with
	// the given ID, within the same scope.
	FindPrevious(ctx context.Context, id string) (*core.Record, error)

	// FindNext returns the chronological successor of the record with the
	// given ID, within the same scope.
	FindNext(ctx context.Context, id string) (*core.Record, error)

	// FindAll returns all records ordered by fetch date descending. Content
	// is not loaded; use LoadRecordContent on individual records.
	FindAll(ctx context.Context, opts QueryOptions) ([]*core.Record, error)

	// FindByService returns all records of one service, ordered by fetch
	// date descending, content not loaded.
	FindByService(ctx context.Context, serviceID string, opts QueryOptions) ([]*core.Record, error)

	// FindByServiceAndTermsType returns all records of one service and
	// terms type, ordered by fetch date descending, content not loaded.
	FindByServiceAndTermsType(ctx context.Context, serviceID, termsType string, opts QueryOptions) ([]*core.Record, error)

	// Count returns the number of records. Empty serviceID counts the whole
	// repository; empty termsType counts a whole service.
	Count(ctx context.Context, serviceID, termsType string) (int, error)

	// Iterate returns a lazy sequence over all records from oldest to most
	// recent fetch date, content loaded. Each call starts a fresh scan.
	Iterate(ctx context.Context) iter.Seq2[*core.Record, error]

	// RemoveAll destroys every record and re-initializes the store. Meant
	// for resets only; individual records are never deleted.
	RemoveAll(ctx context.Context) error

	// LoadRecordContent populates the content of a record obtained from a
	// listing operation.
	LoadRecordContent(ctx context.Context, record *core.Record) error
}
