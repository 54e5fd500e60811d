// Package gitrepo implements the record repository on top of a git working
// tree. It is the boundary beyond which the usage of git is abstracted:
// commit hashes are used as opaque record IDs, commit messages carry the
// record metadata, and one file per document scope carries the content.
package gitrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Config describes one git-backed repository.
type Config struct {
	// Path of the working tree. One tree per record kind.
	Path string
	// Author identity used for every commit.
	AuthorName  string
	AuthorEmail string
	// RemoteURL, when set together with Publish, is where Finalize pushes.
	RemoteURL string
	Publish   bool
}

// Repository is the commit-log implementation of storage.Repository.
//
// Exactly one git operation may run against a working tree at a time, so
// every method takes the repository mutex; read/write splits are not safe
// because even reads touch the index. Distinct repositories (distinct
// working trees) run fully in parallel.
type Repository struct {
	kind    core.RecordKind
	config  Config
	store   *gitStore
	logger  *slog.Logger
	mu      sync.Mutex
	opened  bool
}

var _ storage.Repository = (*Repository)(nil)

// New creates a git-backed repository for the given record kind. Call
// Initialize before use.
func New(config Config, kind core.RecordKind) (storage.Repository, error) {
	if config.Path == "" {
		return nil, errors.New("gitrepo: a working tree path is required")
	}

	absPath, err := filepath.Abs(config.Path)
	if err != nil {
		return nil, err
	}
	config.Path = absPath

	return &Repository{
		kind:   kind,
		config: config,
		store: &gitStore{
			path:        absPath,
			authorName:  config.AuthorName,
			authorEmail: config.AuthorEmail,
			remoteURL:   config.RemoteURL,
		},
		logger: slog.Default().With("backend", "git", "kind", kind.String()),
	}, nil
}

func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.open(); err != nil {
		return err
	}
	r.opened = true

	return nil
}

func (r *Repository) Finalize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return storage.ErrNotInitialized
	}

	if r.config.Publish {
		return r.store.push(ctx)
	}

	return nil
}

func (r *Repository) Save(ctx context.Context, record *core.Record) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.opened {
		return nil, storage.ErrNotInitialized
	}

	if record.IsFirstRecord == nil {
		tracked, err := r.isTracked(record.ServiceID, record.TermsType, record.DocumentID)
		if err != nil {
			return nil, err
		}
		record.IsFirstRecord = core.Bool(!tracked)
	}

	message, relPath, err := toPersistence(record)
	if err != nil {
		return nil, err
	}

	content, err := record.Content()
	if err != nil {
		return nil, err
	}

	fullPath := filepath.Join(r.config.Path, filepath.FromSlash(relPath))

	// Dominant case: most fetches return an unchanged document. Compare
	// against the current state of the file before going anywhere near a
	// commit.
	if existing, err := os.ReadFile(fullPath); err == nil && bytes.Equal(existing, content) {
		r.logger.Debug("content unchanged, skipping record",
			"service", record.ServiceID, "terms", record.TermsType)
		return nil, nil
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return nil, fmt.Errorf("cannot create service directory for %s: %w", relPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0o644); err != nil {
		return nil, fmt.Errorf("cannot write %s: %w", relPath, err)
	}

	hash, err := r.store.commitFile(relPath, message, record.FetchDate)
	if err != nil {
		return nil, err
	}

	record.ID = hash

	return record, nil
}

func (r *Repository) FindLatest(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.scopedCommits(ctx, serviceID, termsType, documentID, false)
	if err != nil || len(commits) == 0 {
		return nil, err
	}

	return r.decodeLoaded(commits[len(commits)-1])
}

func (r *Repository) FindByDate(ctx context.Context, serviceID, termsType string, date time.Time, documentID string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.scopedCommits(ctx, serviceID, termsType, documentID, false)
	if err != nil {
		return nil, err
	}

	for i := len(commits) - 1; i >= 0; i-- {
		if !commits[i].date.After(date) {
			return r.decodeLoaded(commits[i])
		}
	}

	return nil, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := r.store.commitByID(id)
	if err != nil || info == nil {
		return nil, err
	}

	return r.decodeLoaded(*info)
}

func (r *Repository) FindFirst(ctx context.Context, serviceID, termsType string) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.scopedCommits(ctx, serviceID, termsType, "", true)
	if err != nil || len(commits) == 0 {
		return nil, err
	}

	return r.decodeLoaded(commits[0])
}

func (r *Repository) FindPrevious(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(ctx, id, -1)
}

func (r *Repository) FindNext(ctx context.Context, id string) (*core.Record, error) {
	return r.findNeighbor(ctx, id, +1)
}

// findNeighbor locates the record's position in the fetch-date ordering of
// its own scope and steps to the adjacent one.
func (r *Repository) findNeighbor(ctx context.Context, id string, direction int) (*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, err := r.store.commitByID(id)
	if err != nil || info == nil {
		return nil, err
	}

	reference, err := toDomain(r.kind, *info)
	if err != nil {
		return nil, err
	}

	commits, err := r.scopedCommits(ctx, reference.ServiceID, reference.TermsType, reference.DocumentID, false)
	if err != nil {
		return nil, err
	}

	for i, commit := range commits {
		if commit.hash == reference.ID {
			neighbor := i + direction
			if neighbor < 0 || neighbor >= len(commits) {
				return nil, nil
			}
			return r.decodeLoaded(commits[neighbor])
		}
	}

	return nil, nil
}

func (r *Repository) FindAll(ctx context.Context, opts storage.QueryOptions) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.store.listRecordCommits(ctx)
	if err != nil {
		return nil, err
	}

	return r.decodeListing(commits, opts)
}

func (r *Repository) FindByService(ctx context.Context, serviceID string, opts storage.QueryOptions) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.scopedCommits(ctx, serviceID, "", "", true)
	if err != nil {
		return nil, err
	}

	return r.decodeListing(commits, opts)
}

func (r *Repository) FindByServiceAndTermsType(ctx context.Context, serviceID, termsType string, opts storage.QueryOptions) ([]*core.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	commits, err := r.scopedCommits(ctx, serviceID, termsType, "", true)
	if err != nil {
		return nil, err
	}

	return r.decodeListing(commits, opts)
}

func (r *Repository) Count(ctx context.Context, serviceID, termsType string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var commits []commitInfo
	var err error
	if serviceID == "" {
		commits, err = r.store.listRecordCommits(ctx)
	} else {
		commits, err = r.scopedCommits(ctx, serviceID, termsType, "", true)
	}
	if err != nil {
		return 0, err
	}

	return len(commits), nil
}

func (r *Repository) Iterate(ctx context.Context) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		r.mu.Lock()
		commits, err := r.store.listRecordCommits(ctx)
		r.mu.Unlock()
		if err != nil {
			yield(nil, err)
			return
		}

		for _, commit := range commits {
			r.mu.Lock()
			record, err := r.decodeLoaded(commit)
			r.mu.Unlock()
			if !yield(record, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

func (r *Repository) RemoveAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.destroy()
}

func (r *Repository) LoadRecordContent(ctx context.Context, record *core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loadContent(record)
}

// loadContent reads the record's file straight from the commit's tree. The
// blob bytes are returned untouched, so binary payloads such as PDFs
// survive the round trip. Callers must hold the mutex.
func (r *Repository) loadContent(record *core.Record) error {
	relPath, err := generateFilePath(record.ServiceID, record.TermsType, record.DocumentID, record.MimeType)
	if err == nil {
		content, readErr := r.store.fileAtCommit(record.ID, relPath)
		if readErr == nil {
			record.SetContent(content)
			return nil
		}
		if !errors.Is(readErr, object.ErrFileNotFound) {
			return readErr
		}
	}

	// Unknown mime type or renamed extension: fall back to scope matching
	// across the files of the commit. Lookups may match any extension; only
	// writes require a known one.
	info, err := r.store.commitByID(record.ID)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("%w: record %s no longer exists", storage.ErrCorruptedRecord, record.ID)
	}

	for _, file := range info.files {
		if matchesScope(file, record.ServiceID, record.TermsType, record.DocumentID) {
			content, err := r.store.fileAtCommit(record.ID, file)
			if err != nil {
				return err
			}
			record.SetContent(content)
			return nil
		}
	}

	return fmt.Errorf("%w: no file for %s %s in commit %s", storage.ErrCorruptedRecord,
		record.ServiceID, record.TermsType, record.ID)
}

// scopedCommits lists record commits restricted to one scope. An empty
// termsType keeps every record of the service; anyDocument widens the match
// to every document ID of the terms type.
func (r *Repository) scopedCommits(ctx context.Context, serviceID, termsType, documentID string, anyDocument bool) ([]commitInfo, error) {
	commits, err := r.store.listRecordCommits(ctx)
	if err != nil {
		return nil, err
	}

	scoped := commits[:0:0]
	for _, commit := range commits {
		if len(commit.files) != 1 {
			continue // Surfaced as corruption by decode paths, not listings
		}

		file := commit.files[0]
		switch {
		case termsType == "":
			fileService, _, _, _, err := parseFilePath(file)
			if err != nil || fileService != serviceID {
				continue
			}
		case anyDocument:
			fileService, fileTerms, _, _, err := parseFilePath(file)
			if err != nil || fileService != serviceID || fileTerms != termsType {
				continue
			}
		default:
			if !matchesScope(file, serviceID, termsType, documentID) {
				continue
			}
		}

		scoped = append(scoped, commit)
	}

	return scoped, nil
}

// decodeLoaded decodes a commit and loads its content: point lookups need
// full payloads. Callers must hold the mutex.
func (r *Repository) decodeLoaded(info commitInfo) (*core.Record, error) {
	record, err := toDomain(r.kind, info)
	if err != nil {
		return nil, err
	}

	if err := r.loadContent(record); err != nil {
		return nil, err
	}

	return record, nil
}

// decodeListing decodes commits without loading content, newest fetch date
// first, applying pagination.
func (r *Repository) decodeListing(commits []commitInfo, opts storage.QueryOptions) ([]*core.Record, error) {
	records := make([]*core.Record, 0, len(commits))
	for i := len(commits) - 1; i >= 0; i-- {
		record, err := toDomain(r.kind, commits[i])
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(records) {
			return nil, nil
		}
		records = records[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(records) {
		records = records[:opts.Limit]
	}

	return records, nil
}

// isTracked reports whether any file for the scope exists at HEAD, whatever
// its extension.
func (r *Repository) isTracked(serviceID, termsType, documentID string) (bool, error) {
	files, err := r.store.filesAtHead()
	if err != nil {
		return false, err
	}

	for _, file := range files {
		if matchesScope(file, serviceID, termsType, documentID) {
			return true, nil
		}
	}

	return false, nil
}
