package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage/badgerrepo"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()

	snapshots, err := badgerrepo.NewMemoryRepository(core.KindSnapshot)
	require.NoError(t, err)
	versions, err := badgerrepo.NewMemoryRepository(core.KindVersion)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx := context.Background()
		_ = snapshots.Finalize(ctx)
		_ = versions.Finalize(ctx)
	})

	rec, err := New(snapshots, versions)
	require.NoError(t, err)

	return rec
}

func TestNewRequiresBothRepositories(t *testing.T) {
	snapshots, err := badgerrepo.NewMemoryRepository(core.KindSnapshot)
	require.NoError(t, err)
	defer snapshots.Finalize(context.Background())

	_, err = New(snapshots, nil)
	assert.Error(t, err)

	_, err = New(nil, nil)
	assert.Error(t, err)
}

func TestRecordSnapshotAndLatest(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	saved, err := rec.RecordSnapshot(ctx, core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.NotEmpty(t, saved.ID)

	latest, err := rec.LatestSnapshot(ctx, "ServiceA", "Terms of Service", "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, saved.ID, latest.ID)
}

func TestRecordSnapshotValidates(t *testing.T) {
	rec := newTestRecorder(t)

	_, err := rec.RecordSnapshot(context.Background(), core.SnapshotParams{
		TermsType: "Terms of Service",
		FetchDate: time.Now(),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	})
	assert.ErrorIs(t, err, core.ErrMissingServiceID)
}

func TestRecordVersionRequiresSnapshotIDs(t *testing.T) {
	rec := newTestRecorder(t)

	_, err := rec.RecordVersion(context.Background(), core.VersionParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Now(),
		Content:   []byte("# Terms"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data consistency")
	assert.Contains(t, err.Error(), "ServiceA")
}

func TestRecordExtractOnlyVersion(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	saved, err := rec.RecordExtractOnlyVersion(ctx, core.VersionParams{
		ServiceID:   "ServiceA",
		TermsType:   "Terms of Service",
		FetchDate:   time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		Content:     []byte("# Terms"),
		SnapshotIDs: []string{"a1b2c3"},
	})
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.True(t, saved.IsExtractOnly)
}

func TestRecordSnapshotDeduplicates(t *testing.T) {
	rec := newTestRecorder(t)
	ctx := context.Background()

	params := core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	}

	first, err := rec.RecordSnapshot(ctx, params)
	require.NoError(t, err)
	require.NotNil(t, first)

	params.FetchDate = params.FetchDate.Add(time.Hour)
	second, err := rec.RecordSnapshot(ctx, params)
	require.NoError(t, err)
	assert.Nil(t, second)
}
