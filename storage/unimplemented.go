package storage

import (
	"context"
	"iter"
	"time"

	"github.com/policytrail/policytrail/core"
)

// UnimplementedRepository is a defensive default for partial backends. Embed
// it in a Repository implementation to get an explicit "not implemented"
// error, naming the backend and the method, for every operation the backend
// does not override.
type UnimplementedRepository struct {
	// Backend is the name reported in error messages.
	Backend string
}

var _ Repository = (*UnimplementedRepository)(nil)

func (u *UnimplementedRepository) Initialize(ctx context.Context) error {
	return NotImplemented(u.Backend, "Initialize")
}

func (u *UnimplementedRepository) Finalize(ctx context.Context) error {
	return NotImplemented(u.Backend, "Finalize")
}

func (u *UnimplementedRepository) Save(ctx context.Context, record *core.Record) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "Save")
}

func (u *UnimplementedRepository) FindLatest(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindLatest")
}

func (u *UnimplementedRepository) FindByDate(ctx context.Context, serviceID, termsType string, date time.Time, documentID string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindByDate")
}

func (u *UnimplementedRepository) FindByID(ctx context.Context, id string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindByID")
}

func (u *UnimplementedRepository) FindFirst(ctx context.Context, serviceID, termsType string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindFirst")
}

func (u *UnimplementedRepository) FindPrevious(ctx context.Context, id string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindPrevious")
}

func (u *UnimplementedRepository) FindNext(ctx context.Context, id string) (*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindNext")
}

func (u *UnimplementedRepository) FindAll(ctx context.Context, opts QueryOptions) ([]*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindAll")
}

func (u *UnimplementedRepository) FindByService(ctx context.Context, serviceID string, opts QueryOptions) ([]*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindByService")
}

func (u *UnimplementedRepository) FindByServiceAndTermsType(ctx context.Context, serviceID, termsType string, opts QueryOptions) ([]*core.Record, error) {
	return nil, NotImplemented(u.Backend, "FindByServiceAndTermsType")
}

func (u *UnimplementedRepository) Count(ctx context.Context, serviceID, termsType string) (int, error) {
	return 0, NotImplemented(u.Backend, "Count")
}

func (u *UnimplementedRepository) Iterate(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		yield(nil, NotImplemented(u.Backend, "Iterate"))
	}
}

func (u *UnimplementedRepository) RemoveAll(ctx context.Context) error {
	return NotImplemented(u.Backend, "RemoveAll")
}

func (u *UnimplementedRepository) LoadRecordContent(ctx context.Context, record *core.Record) error {
	return NotImplemented(u.Backend, "LoadRecordContent")
}
