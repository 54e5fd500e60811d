// Copyright 2026 Policytrail Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storagetest runs the behavioral contract of storage.Repository
// against any backend. Backends with radically different primitives must
// stay behaviorally identical: same dedup rule, same ordering, same
// presence semantics. Every backend's test package calls TestRepository
// with its own factory.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Factory returns a fresh, initialized, empty repository for the given
// record kind. Implementations register cleanup with t.Cleanup.
type Factory func(t *testing.T, kind core.RecordKind) storage.Repository

// Fetch dates use whole seconds: the git backend stores timestamps at
// git's second resolution and MongoDB at millisecond resolution, and the
// contract must hold across all of them.
var baseDate = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

func snapshotAt(t *testing.T, content string, date time.Time) *core.Record {
	t.Helper()

	snapshot, err := core.NewSnapshot(core.SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: date,
		MimeType:  "text/html",
		Content:   []byte(content),
	})
	require.NoError(t, err)

	return snapshot
}

// TestRepository exercises the full repository contract.
func TestRepository(t *testing.T, factory Factory) {
	t.Run("SaveAssignsIDAndRoundTrips", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		saved, err := repo.Save(ctx, snapshotAt(t, "<html>A</html>", baseDate))
		require.NoError(t, err)
		require.NotNil(t, saved)
		require.NotEmpty(t, saved.ID)
		assert.True(t, saved.FirstRecord())

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)

		content, err := found.Content()
		require.NoError(t, err)
		assert.Equal(t, "<html>A</html>", string(content))
		assert.Equal(t, "ServiceA", found.ServiceID)
		assert.Equal(t, "Terms of Service", found.TermsType)
		assert.True(t, found.FetchDate.Equal(baseDate))
		assert.True(t, found.FirstRecord())
	})

	t.Run("FindByIDUnknown", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)

		found, err := repo.FindByID(context.Background(), "0123456789abcdef0123456789abcdef01234567")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("SaveDeduplicates", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		first, err := repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.True(t, first.FirstRecord())

		// Unchanged content: no record, no error, count untouched.
		duplicate, err := repo.Save(ctx, snapshotAt(t, "A", baseDate.Add(time.Hour)))
		require.NoError(t, err)
		assert.Nil(t, duplicate)

		count, err := repo.Count(ctx, "ServiceA", "Terms of Service")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		changed, err := repo.Save(ctx, snapshotAt(t, "B", baseDate.Add(2*time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, changed)
		assert.False(t, changed.FirstRecord())

		latest, err := repo.FindLatest(ctx, "ServiceA", "Terms of Service", "")
		require.NoError(t, err)
		require.NotNil(t, latest)
		content, err := latest.Content()
		require.NoError(t, err)
		assert.Equal(t, "B", string(content))
	})

	t.Run("FindByDate", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		_, err := repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)
		second, err := repo.Save(ctx, snapshotAt(t, "B", baseDate.Add(2*time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, second)

		// Between the two records: the earlier one was in force.
		found, err := repo.FindByDate(ctx, "ServiceA", "Terms of Service", baseDate.Add(time.Hour), "")
		require.NoError(t, err)
		require.NotNil(t, found)
		content, err := found.Content()
		require.NoError(t, err)
		assert.Equal(t, "A", string(content))

		// Exactly on a record's fetch date: that record matches.
		found, err = repo.FindByDate(ctx, "ServiceA", "Terms of Service", baseDate.Add(2*time.Hour), "")
		require.NoError(t, err)
		require.NotNil(t, found)
		content, err = found.Content()
		require.NoError(t, err)
		assert.Equal(t, "B", string(content))

		// Before the first record: nothing was in force.
		found, err = repo.FindByDate(ctx, "ServiceA", "Terms of Service", baseDate.Add(-time.Hour), "")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Navigation", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		first, err := repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)
		second, err := repo.Save(ctx, snapshotAt(t, "B", baseDate.Add(time.Hour)))
		require.NoError(t, err)
		third, err := repo.Save(ctx, snapshotAt(t, "C", baseDate.Add(2*time.Hour)))
		require.NoError(t, err)

		oldest, err := repo.FindFirst(ctx, "ServiceA", "Terms of Service")
		require.NoError(t, err)
		require.NotNil(t, oldest)
		assert.Equal(t, first.ID, oldest.ID)

		next, err := repo.FindNext(ctx, first.ID)
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, second.ID, next.ID)

		previous, err := repo.FindPrevious(ctx, third.ID)
		require.NoError(t, err)
		require.NotNil(t, previous)
		assert.Equal(t, second.ID, previous.ID)

		none, err := repo.FindPrevious(ctx, first.ID)
		require.NoError(t, err)
		assert.Nil(t, none)

		none, err = repo.FindNext(ctx, third.ID)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("IterateAscendingDespiteSaveOrder", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		// A corrective save can land with a fetch date older than the
		// current history. Chronology must come from fetch dates, never
		// from insertion order.
		_, err := repo.Save(ctx, snapshotAt(t, "B", baseDate.Add(time.Hour)))
		require.NoError(t, err)
		_, err = repo.Save(ctx, snapshotAt(t, "C", baseDate.Add(2*time.Hour)))
		require.NoError(t, err)
		_, err = repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)

		var contents []string
		var dates []time.Time
		for record, err := range repo.Iterate(ctx) {
			require.NoError(t, err)
			content, err := record.Content()
			require.NoError(t, err)
			contents = append(contents, string(content))
			dates = append(dates, record.FetchDate)
		}

		assert.Equal(t, []string{"A", "B", "C"}, contents)
		for i := 1; i < len(dates); i++ {
			assert.True(t, dates[i-1].Before(dates[i]), "dates must be strictly ascending")
		}
	})

	t.Run("FindAllDefersContent", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		_, err := repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)
		_, err = repo.Save(ctx, snapshotAt(t, "B", baseDate.Add(time.Hour)))
		require.NoError(t, err)

		records, err := repo.FindAll(ctx, storage.QueryOptions{})
		require.NoError(t, err)
		require.Len(t, records, 2)

		// Most recent first.
		assert.True(t, records[0].FetchDate.After(records[1].FetchDate))

		_, err = records[0].Content()
		assert.ErrorIs(t, err, core.ErrContentNotLoaded)

		require.NoError(t, repo.LoadRecordContent(ctx, records[0]))
		content, err := records[0].Content()
		require.NoError(t, err)
		assert.Equal(t, "B", string(content))
	})

	t.Run("FindAllPagination", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, err := repo.Save(ctx, snapshotAt(t, string(rune('A'+i)), baseDate.Add(time.Duration(i)*time.Hour)))
			require.NoError(t, err)
		}

		page, err := repo.FindAll(ctx, storage.QueryOptions{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.True(t, page[0].FetchDate.After(page[1].FetchDate))
		assert.True(t, page[0].FetchDate.Equal(baseDate.Add(2*time.Hour)))
	})

	t.Run("ScopedFindsAndCounts", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		save := func(service, terms, content string, date time.Time) {
			snapshot, err := core.NewSnapshot(core.SnapshotParams{
				ServiceID: service,
				TermsType: terms,
				FetchDate: date,
				MimeType:  "text/html",
				Content:   []byte(content),
			})
			require.NoError(t, err)
			saved, err := repo.Save(ctx, snapshot)
			require.NoError(t, err)
			require.NotNil(t, saved)
		}

		save("ServiceA", "Terms of Service", "A1", baseDate)
		save("ServiceA", "Terms of Service", "A2", baseDate.Add(time.Hour))
		save("ServiceA", "Privacy Policy", "P1", baseDate)
		save("ServiceB", "Terms of Service", "B1", baseDate)

		records, err := repo.FindByService(ctx, "ServiceA", storage.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, records, 3)

		records, err = repo.FindByServiceAndTermsType(ctx, "ServiceA", "Terms of Service", storage.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, records, 2)

		total, err := repo.Count(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 4, total)

		perService, err := repo.Count(ctx, "ServiceA", "")
		require.NoError(t, err)
		assert.Equal(t, 3, perService)

		perTerms, err := repo.Count(ctx, "ServiceA", "Privacy Policy")
		require.NoError(t, err)
		assert.Equal(t, 1, perTerms)
	})

	t.Run("DocumentIDIsolatesScopes", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		save := func(documentID, content string, date time.Time) *core.Record {
			snapshot, err := core.NewSnapshot(core.SnapshotParams{
				ServiceID:  "ServiceA",
				TermsType:  "Terms of Service",
				DocumentID: documentID,
				FetchDate:  date,
				MimeType:   "text/html",
				Content:    []byte(content),
			})
			require.NoError(t, err)
			saved, err := repo.Save(ctx, snapshot)
			require.NoError(t, err)
			return saved
		}

		plain := save("", "base", baseDate)
		require.NotNil(t, plain)
		assert.True(t, plain.FirstRecord())

		// Same content, different document ID: a different scope, so this
		// is a first record, not a duplicate.
		scoped := save("community", "base", baseDate.Add(time.Minute))
		require.NotNil(t, scoped)
		assert.True(t, scoped.FirstRecord())

		latest, err := repo.FindLatest(ctx, "ServiceA", "Terms of Service", "community")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, scoped.ID, latest.ID)

		latest, err = repo.FindLatest(ctx, "ServiceA", "Terms of Service", "")
		require.NoError(t, err)
		require.NotNil(t, latest)
		assert.Equal(t, plain.ID, latest.ID)
	})

	t.Run("ExplicitFirstRecordFlagIsKept", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		snapshot, err := core.NewSnapshot(core.SnapshotParams{
			ServiceID:     "ServiceA",
			TermsType:     "Terms of Service",
			FetchDate:     baseDate,
			MimeType:      "text/html",
			Content:       []byte("A"),
			IsFirstRecord: core.Bool(false),
		})
		require.NoError(t, err)

		saved, err := repo.Save(ctx, snapshot)
		require.NoError(t, err)
		require.NotNil(t, saved)

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.False(t, found.FirstRecord())
	})

	t.Run("VersionRoundTrip", func(t *testing.T) {
		repo := factory(t, core.KindVersion)
		ctx := context.Background()

		version, err := core.NewVersion(core.VersionParams{
			ServiceID:   "ServiceA",
			TermsType:   "Terms of Service",
			FetchDate:   baseDate,
			Content:     []byte("# Terms\n\nSome text."),
			SnapshotIDs: []string{"a1b2c3"},
		})
		require.NoError(t, err)

		saved, err := repo.Save(ctx, version)
		require.NoError(t, err)
		require.NotNil(t, saved)

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, []string{"a1b2c3"}, found.SnapshotIDs)
		assert.False(t, found.IsExtractOnly)
		assert.Equal(t, core.MimeTypeMarkdown, found.MimeType)
	})

	t.Run("ExtractOnlyRoundTrip", func(t *testing.T) {
		repo := factory(t, core.KindVersion)
		ctx := context.Background()

		_, err := repo.Save(ctx, mustVersion(t, "# Terms", baseDate, []string{"0fae11eb29"}, false))
		require.NoError(t, err)

		upgraded, err := repo.Save(ctx, mustVersion(t, "# Terms\n\nRe-extracted.", baseDate.Add(time.Hour), []string{"0fae11eb29"}, true))
		require.NoError(t, err)
		require.NotNil(t, upgraded)

		found, err := repo.FindByID(ctx, upgraded.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, found.IsExtractOnly)
		assert.False(t, found.FirstRecord())
	})

	t.Run("BinaryContentRoundTrip", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		// Not valid UTF-8; must survive byte for byte.
		payload := []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff, 0xfe, 0x0d, 0x0a, 0x80}

		snapshot, err := core.NewSnapshot(core.SnapshotParams{
			ServiceID: "ServiceA",
			TermsType: "Terms of Service",
			FetchDate: baseDate,
			MimeType:  "application/pdf",
			Content:   payload,
		})
		require.NoError(t, err)

		saved, err := repo.Save(ctx, snapshot)
		require.NoError(t, err)
		require.NotNil(t, saved)

		found, err := repo.FindByID(ctx, saved.ID)
		require.NoError(t, err)
		require.NotNil(t, found)

		content, err := found.Content()
		require.NoError(t, err)
		assert.Equal(t, payload, content)
	})

	t.Run("RemoveAllResets", func(t *testing.T) {
		repo := factory(t, core.KindSnapshot)
		ctx := context.Background()

		_, err := repo.Save(ctx, snapshotAt(t, "A", baseDate))
		require.NoError(t, err)

		require.NoError(t, repo.RemoveAll(ctx))

		count, err := repo.Count(ctx, "", "")
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		// The store is usable again right away, and history restarted.
		saved, err := repo.Save(ctx, snapshotAt(t, "A", baseDate.Add(time.Hour)))
		require.NoError(t, err)
		require.NotNil(t, saved)
		assert.True(t, saved.FirstRecord())
	})
}

func mustVersion(t *testing.T, content string, date time.Time, snapshotIDs []string, extractOnly bool) *core.Record {
	t.Helper()

	version, err := core.NewVersion(core.VersionParams{
		ServiceID:     "ServiceA",
		TermsType:     "Terms of Service",
		FetchDate:     date,
		Content:       []byte(content),
		SnapshotIDs:   snapshotIDs,
		IsExtractOnly: extractOnly,
	})
	require.NoError(t, err)

	return version
}
