package gitrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
	"github.com/policytrail/policytrail/storage/storagetest"
)

func newTestRepository(t *testing.T, kind core.RecordKind) storage.Repository {
	t.Helper()

	repo, err := New(Config{
		Path:        t.TempDir(),
		AuthorName:  "Policytrail Bot",
		AuthorEmail: "bot@policytrail.example",
	}, kind)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(context.Background()))

	return repo
}

func TestRepositoryContract(t *testing.T) {
	storagetest.TestRepository(t, newTestRepository)
}

func TestFindByIDAbbreviatedHash(t *testing.T) {
	repo := newTestRepository(t, core.KindSnapshot)
	ctx := context.Background()

	snapshot, err := core.NewSnapshot(core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	})
	require.NoError(t, err)

	saved, err := repo.Save(ctx, snapshot)
	require.NoError(t, err)
	require.Len(t, saved.ID, 40)

	found, err := repo.FindByID(ctx, saved.ID[:8])
	require.NoError(t, err)
	require.NotNil(t, found)
	// The full hash is restored as the record ID even on abbreviated lookup.
	assert.Equal(t, saved.ID, found.ID)
}

func TestRecordsSurviveReopen(t *testing.T) {
	path := t.TempDir()
	ctx := context.Background()

	repo, err := New(Config{Path: path}, core.KindSnapshot)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(ctx))

	snapshot, err := core.NewSnapshot(core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	})
	require.NoError(t, err)
	saved, err := repo.Save(ctx, snapshot)
	require.NoError(t, err)
	require.NoError(t, repo.Finalize(ctx))

	reopened, err := New(Config{Path: path}, core.KindSnapshot)
	require.NoError(t, err)
	require.NoError(t, reopened.Initialize(ctx))

	found, err := reopened.FindByID(ctx, saved.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	content, err := found.Content()
	require.NoError(t, err)
	assert.Equal(t, "<html/>", string(content))
}

func TestIncidentalCommitsAreIgnored(t *testing.T) {
	path := t.TempDir()
	ctx := context.Background()

	store := &gitStore{path: path, authorName: "Ops", authorEmail: "ops@policytrail.example"}
	require.NoError(t, store.open())

	// Repository maintenance commits share a deprecated prefix with records
	// but touch files at the root, so they must not surface as records.
	require.NoError(t, os.WriteFile(filepath.Join(path, "README.md"), []byte("# Archive"), 0o644))
	_, err := store.commitFile("README.md", "Update README", time.Now())
	require.NoError(t, err)

	repo, err := New(Config{Path: path}, core.KindSnapshot)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(ctx))

	count, err := repo.Count(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	records, err := repo.FindAll(ctx, storage.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDeprecatedHistoryDecodes(t *testing.T) {
	path := t.TempDir()
	ctx := context.Background()

	// Replay a history as an earlier engine release would have written it.
	store := &gitStore{path: path, authorName: "Bot", authorEmail: "bot@policytrail.example"}
	require.NoError(t, store.open())

	writeAndCommit := func(relPath, content, message string, date time.Time) string {
		t.Helper()
		fullPath := filepath.Join(path, filepath.FromSlash(relPath))
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
		hash, err := store.commitFile(relPath, message, date)
		require.NoError(t, err)
		return hash
	}

	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	first := writeAndCommit("ServiceA/Terms of Service.md", "# v1",
		"Start tracking ServiceA Terms of Service", base)
	writeAndCommit("ServiceA/Terms of Service.md", "# v2",
		"Update ServiceA Terms of Service", base.Add(time.Hour))
	refiltered := writeAndCommit("ServiceA/Terms of Service.md", "# v2 refiltered",
		"Refilter ServiceA Terms of Service\n\n"+
			"This version was generated from the snapshot 7c87df1aa2c17b1e33da38a4c6ac7332a40c4d56",
		base.Add(2*time.Hour))

	repo, err := New(Config{Path: path}, core.KindVersion)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize(ctx))

	count, err := repo.Count(ctx, "ServiceA", "Terms of Service")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	oldest, err := repo.FindFirst(ctx, "ServiceA", "Terms of Service")
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, first, oldest.ID)
	assert.True(t, oldest.FirstRecord())

	latest, err := repo.FindLatest(ctx, "ServiceA", "Terms of Service", "")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, refiltered, latest.ID)
	assert.True(t, latest.IsExtractOnly)
	assert.Equal(t, []string{"7c87df1aa2c17b1e33da38a4c6ac7332a40c4d56"}, latest.SnapshotIDs)
}

func TestSaveRequiresInitialize(t *testing.T) {
	repo, err := New(Config{Path: t.TempDir()}, core.KindSnapshot)
	require.NoError(t, err)

	snapshot, err := core.NewSnapshot(core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: time.Now(),
		MimeType:  "text/html",
		Content:   []byte("<html/>"),
	})
	require.NoError(t, err)

	_, err = repo.Save(context.Background(), snapshot)
	assert.ErrorIs(t, err, storage.ErrNotInitialized)
}
