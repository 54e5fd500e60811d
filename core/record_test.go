package core

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestSnapshotContentAccess(t *testing.T) {
	fetchDate := time.Date(2026, 1, 12, 9, 30, 0, 0, time.UTC)

	snapshot, err := NewSnapshot(SnapshotParams{
		ServiceID: "ServiceA",
		TermsType: "Terms of Service",
		FetchDate: fetchDate,
		MimeType:  "text/html",
		Content:   []byte("<html><body>hello</body></html>"),
	})
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}

	content, err := snapshot.Content()
	if err != nil {
		t.Fatalf("Content failed: %v", err)
	}
	if !bytes.Equal(content, []byte("<html><body>hello</body></html>")) {
		t.Fatalf("unexpected content: %q", content)
	}
	if snapshot.ID != "" {
		t.Fatalf("expected empty ID before persistence, got %q", snapshot.ID)
	}
	if snapshot.Kind != KindSnapshot {
		t.Fatalf("expected snapshot kind, got %v", snapshot.Kind)
	}
}

func TestContentNotLoaded(t *testing.T) {
	// Records decoded from a listing carry no content until loaded.
	record := &Record{
		Kind:      KindSnapshot,
		ServiceID: "ServiceA",
		TermsType: "Privacy Policy",
		FetchDate: time.Now().UTC(),
		MimeType:  "text/html",
	}

	if record.ContentLoaded() {
		t.Fatal("expected content not loaded")
	}

	_, err := record.Content()
	if !errors.Is(err, ErrContentNotLoaded) {
		t.Fatalf("expected ErrContentNotLoaded, got %v", err)
	}

	record.SetContent([]byte("loaded"))

	content, err := record.Content()
	if err != nil {
		t.Fatalf("Content failed after SetContent: %v", err)
	}
	if string(content) != "loaded" {
		t.Fatalf("unexpected content: %q", content)
	}
}

func TestVersionForcesMarkdownMimeType(t *testing.T) {
	version, err := NewVersion(VersionParams{
		ServiceID:   "ServiceA",
		TermsType:   "Terms of Service",
		FetchDate:   time.Now().UTC(),
		Content:     []byte("# Terms"),
		SnapshotIDs: []string{"0fae11eb297cd1b1cfc0ad397e9b07d8e222d9d7"},
	})
	if err != nil {
		t.Fatalf("NewVersion failed: %v", err)
	}

	if version.MimeType != MimeTypeMarkdown {
		t.Fatalf("expected %q, got %q", MimeTypeMarkdown, version.MimeType)
	}
	if version.Kind != KindVersion {
		t.Fatalf("expected version kind, got %v", version.Kind)
	}
}

func TestFirstRecordFlag(t *testing.T) {
	record := &Record{Kind: KindSnapshot}

	if record.FirstRecord() {
		t.Fatal("unresolved flag should read as false")
	}

	record.IsFirstRecord = Bool(true)
	if !record.FirstRecord() {
		t.Fatal("expected first record")
	}
}
