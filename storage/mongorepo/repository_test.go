package mongorepo

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
	"github.com/policytrail/policytrail/storage/storagetest"
)

// The contract tests need a live server. Point POLICYTRAIL_MONGO_URI at one
// (for instance mongodb://localhost:27017) to run them; they use throwaway
// collections in the policytrail_test database.
func mongoURI(t *testing.T) string {
	t.Helper()

	uri := os.Getenv("POLICYTRAIL_MONGO_URI")
	if uri == "" {
		t.Skip("POLICYTRAIL_MONGO_URI not set")
	}

	return uri
}

var collectionSequence int

func newTestRepository(t *testing.T, kind core.RecordKind) storage.Repository {
	t.Helper()

	collectionSequence++
	repo, err := New(Config{
		URI:        mongoURI(t),
		Database:   "policytrail_test",
		Collection: fmt.Sprintf("records_%d", collectionSequence),
	}, kind)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, repo.Initialize(ctx))
	t.Cleanup(func() {
		_ = repo.RemoveAll(ctx)
		_ = repo.Finalize(ctx)
	})

	return repo
}

func TestRepositoryContract(t *testing.T) {
	storagetest.TestRepository(t, newTestRepository)
}
