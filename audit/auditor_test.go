package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
	"github.com/policytrail/policytrail/storage/badgerrepo"
)

func newMemoryRepo(t *testing.T, kind core.RecordKind) storage.Repository {
	t.Helper()

	repo, err := badgerrepo.NewMemoryRepository(kind)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.Finalize(context.Background())
	})

	return repo
}

func saveSnapshot(t *testing.T, repo storage.Repository, content string, date time.Time) *core.Record {
	t.Helper()

	snapshot, err := core.NewSnapshot(core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: date,
		MimeType:  "text/html",
		Content:   []byte(content),
	})
	require.NoError(t, err)

	saved, err := repo.Save(context.Background(), snapshot)
	require.NoError(t, err)
	require.NotNil(t, saved)

	return saved
}

func TestAuditCleanRepository(t *testing.T) {
	repo := newMemoryRepo(t, core.KindSnapshot)
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	saveSnapshot(t, repo, "A", base)
	saveSnapshot(t, repo, "B", base.Add(time.Hour))

	auditor, err := NewAuditor(repo)
	require.NoError(t, err)
	defer auditor.Release()

	report, err := auditor.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Records)
	assert.True(t, report.Ok())
}

func TestAuditResolvesSnapshotReferences(t *testing.T) {
	snapshots := newMemoryRepo(t, core.KindSnapshot)
	versions := newMemoryRepo(t, core.KindVersion)
	ctx := context.Background()

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	snapshot := saveSnapshot(t, snapshots, "<html/>", base)

	good, err := core.NewVersion(core.VersionParams{
		ServiceID:   "ServiceA",
		TermsType:   "Terms of Service",
		FetchDate:   base.Add(time.Minute),
		Content:     []byte("# Terms"),
		SnapshotIDs: []string{snapshot.ID},
	})
	require.NoError(t, err)
	_, err = versions.Save(ctx, good)
	require.NoError(t, err)

	bad, err := core.NewVersion(core.VersionParams{
		ServiceID:   "ServiceA",
		TermsType:   "Terms of Service",
		FetchDate:   base.Add(time.Hour),
		Content:     []byte("# Terms v2"),
		SnapshotIDs: []string{"00000000deadbeef"},
	})
	require.NoError(t, err)
	saved, err := versions.Save(ctx, bad)
	require.NoError(t, err)

	auditor, err := NewAuditor(versions, WithSnapshots(snapshots), WithPoolSize(2))
	require.NoError(t, err)
	defer auditor.Release()

	report, err := auditor.Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, saved.ID, report.Issues[0].RecordID)
	assert.Contains(t, report.Issues[0].Problem, "does not exist")
}

func TestAuditFlagsDuplicateFirstRecords(t *testing.T) {
	repo := newMemoryRepo(t, core.KindSnapshot)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	// Explicit flags bypass the derived-first logic, so a misbehaving writer
	// can mark two records as first.
	for i, content := range []string{"A", "B"} {
		snapshot, err := core.NewSnapshot(core.SnapshotParams{
			ServiceID:     "ServiceA",
			TermsType:     "Terms of Service",
			FetchDate:     base.Add(time.Duration(i) * time.Hour),
			MimeType:      "text/html",
			Content:       []byte(content),
			IsFirstRecord: core.Bool(true),
		})
		require.NoError(t, err)
		_, err = repo.Save(ctx, snapshot)
		require.NoError(t, err)
	}

	auditor, err := NewAuditor(repo)
	require.NoError(t, err)
	defer auditor.Release()

	report, err := auditor.Run(ctx)
	require.NoError(t, err)

	require.Len(t, report.Issues, 1)
	assert.Contains(t, report.Issues[0].Problem, "more than one first record")
}

func TestContentDigest(t *testing.T) {
	a := ContentDigest([]byte("A"))
	b := ContentDigest([]byte("B"))

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ContentDigest([]byte("A")))
}
