package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewSnapshotValidation(t *testing.T) {
	fetchDate := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		params  SnapshotParams
		wantErr error
	}{
		{
			name: "valid snapshot",
			params: SnapshotParams{
				ServiceID: "ServiceA",
				TermsType: "Terms of Service",
				FetchDate: fetchDate,
				MimeType:  "text/html",
				Content:   []byte("<html/>"),
			},
			wantErr: nil,
		},
		{
			name: "valid snapshot with document ID",
			params: SnapshotParams{
				ServiceID:  "ServiceA",
				TermsType:  "Terms of Service",
				DocumentID: "community",
				FetchDate:  fetchDate,
				MimeType:   "text/html",
				Content:    []byte("<html/>"),
			},
			wantErr: nil,
		},
		{
			name: "missing service ID",
			params: SnapshotParams{
				TermsType: "Terms of Service",
				FetchDate: fetchDate,
				MimeType:  "text/html",
				Content:   []byte("<html/>"),
			},
			wantErr: ErrMissingServiceID,
		},
		{
			name: "missing terms type",
			params: SnapshotParams{
				ServiceID: "ServiceA",
				FetchDate: fetchDate,
				MimeType:  "text/html",
				Content:   []byte("<html/>"),
			},
			wantErr: ErrMissingTermsType,
		},
		{
			name: "missing fetch date",
			params: SnapshotParams{
				ServiceID: "ServiceA",
				TermsType: "Terms of Service",
				MimeType:  "text/html",
				Content:   []byte("<html/>"),
			},
			wantErr: ErrMissingFetchDate,
		},
		{
			name: "missing mime type",
			params: SnapshotParams{
				ServiceID: "ServiceA",
				TermsType: "Terms of Service",
				FetchDate: fetchDate,
				Content:   []byte("<html/>"),
			},
			wantErr: ErrMissingMimeType,
		},
		{
			name: "empty content",
			params: SnapshotParams{
				ServiceID: "ServiceA",
				TermsType: "Terms of Service",
				FetchDate: fetchDate,
				MimeType:  "text/html",
			},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSnapshot(tt.params)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidSnapshot) {
				t.Fatalf("expected error to wrap ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestNewVersionValidation(t *testing.T) {
	fetchDate := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		params  VersionParams
		wantErr error
	}{
		{
			name: "valid version",
			params: VersionParams{
				ServiceID:   "ServiceA",
				TermsType:   "Terms of Service",
				FetchDate:   fetchDate,
				Content:     []byte("# Terms"),
				SnapshotIDs: []string{"a1b2c3"},
			},
			wantErr: nil,
		},
		{
			name: "valid extract-only version",
			params: VersionParams{
				ServiceID:     "ServiceA",
				TermsType:     "Terms of Service",
				FetchDate:     fetchDate,
				Content:       []byte("# Terms"),
				SnapshotIDs:   []string{"a1b2c3", "d4e5f6"},
				IsExtractOnly: true,
			},
			wantErr: nil,
		},
		{
			name: "missing snapshot IDs",
			params: VersionParams{
				ServiceID: "ServiceA",
				TermsType: "Terms of Service",
				FetchDate: fetchDate,
				Content:   []byte("# Terms"),
			},
			wantErr: ErrMissingSnapshotIDs,
		},
		{
			name: "blank snapshot ID",
			params: VersionParams{
				ServiceID:   "ServiceA",
				TermsType:   "Terms of Service",
				FetchDate:   fetchDate,
				Content:     []byte("# Terms"),
				SnapshotIDs: []string{""},
			},
			wantErr: ErrMissingSnapshotIDs,
		},
		{
			name: "missing service ID",
			params: VersionParams{
				TermsType:   "Terms of Service",
				FetchDate:   fetchDate,
				Content:     []byte("# Terms"),
				SnapshotIDs: []string{"a1b2c3"},
			},
			wantErr: ErrMissingServiceID,
		},
		{
			name: "empty content",
			params: VersionParams{
				ServiceID:   "ServiceA",
				TermsType:   "Terms of Service",
				FetchDate:   fetchDate,
				SnapshotIDs: []string{"a1b2c3"},
			},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVersion(tt.params)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidVersion) {
				t.Fatalf("expected error to wrap ErrInvalidVersion, got %v", err)
			}
		})
	}
}
