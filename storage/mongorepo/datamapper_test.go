package mongorepo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/policytrail/policytrail/core"
)

func TestToPersistenceVersion(t *testing.T) {
	fetchDate := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

	version, err := core.NewVersion(core.VersionParams{
		ServiceID:     "ServiceA",
		TermsType:     "Terms of Service",
		FetchDate:     fetchDate,
		Content:       []byte("# Terms"),
		SnapshotIDs:   []string{"0fae11eb297cd1b1"},
		IsExtractOnly: true,
		IsFirstRecord: core.Bool(false),
	})
	require.NoError(t, err)

	doc, err := toPersistence(version)
	require.NoError(t, err)

	assert.Equal(t, "ServiceA", doc.ServiceID)
	assert.Equal(t, "Terms of Service", doc.TermsType)
	assert.True(t, doc.FetchDate.Equal(fetchDate))
	assert.Equal(t, core.MimeTypeMarkdown, doc.MimeType)
	assert.Equal(t, []byte("# Terms"), doc.Content)
	assert.False(t, doc.IsFirstRecord)
	assert.True(t, doc.IsExtractOnly)
	assert.Equal(t, []string{"0fae11eb297cd1b1"}, doc.SnapshotIDs)
	assert.False(t, doc.CreatedAt.IsZero())
}

func TestToPersistenceRequiresLoadedContent(t *testing.T) {
	record := &core.Record{
		Kind:      core.KindSnapshot,
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
	}

	_, err := toPersistence(record)
	assert.ErrorIs(t, err, core.ErrContentNotLoaded)
}

func TestToDomainContentProjection(t *testing.T) {
	doc := recordDocument{
		ID:            bson.NewObjectID(),
		ServiceID:     "ServiceA",
		TermsType:     "Terms of Service",
		DocumentID:    "community",
		FetchDate:     time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		MimeType:      "text/html",
		Content:       []byte("<html/>"),
		IsFirstRecord: true,
	}

	loaded := toDomain(core.KindSnapshot, doc, true)
	assert.Equal(t, doc.ID.Hex(), loaded.ID)
	assert.Equal(t, "community", loaded.DocumentID)
	assert.True(t, loaded.FirstRecord())
	content, err := loaded.Content()
	require.NoError(t, err)
	assert.Equal(t, []byte("<html/>"), content)

	listed := toDomain(core.KindSnapshot, doc, false)
	_, err = listed.Content()
	assert.ErrorIs(t, err, core.ErrContentNotLoaded)
}

func TestToDomainSnapshotIgnoresVersionFields(t *testing.T) {
	doc := recordDocument{
		ID:          bson.NewObjectID(),
		ServiceID:   "ServiceA",
		TermsType:   "Terms of Service",
		SnapshotIDs: []string{"deadbeef01"},
	}

	record := toDomain(core.KindSnapshot, doc, false)
	assert.Empty(t, record.SnapshotIDs)
	assert.False(t, record.IsExtractOnly)
}

func TestScopeFilter(t *testing.T) {
	filter := scopeFilter("ServiceA", "Terms of Service", "community")
	assert.Equal(t, "community", filter["documentId"])

	// The empty scope matches documents that never had the field as well as
	// ones that stored it empty.
	filter = scopeFilter("ServiceA", "Terms of Service", "")
	assert.Equal(t, bson.M{"$in": bson.A{nil, ""}}, filter["documentId"])
}
