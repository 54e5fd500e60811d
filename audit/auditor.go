// Package audit walks a record repository and checks the integrity
// guarantees the store is supposed to uphold: decodable metadata, loadable
// content, chronological ordering, one first record per scope, and version
// records whose source snapshots actually exist.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Issue is one integrity finding on one record.
type Issue struct {
	RecordID string
	Problem  string
}

// Report sums up one audit run.
type Report struct {
	Records int
	Issues  []Issue
}

// Ok reports whether the audit found nothing wrong.
func (r *Report) Ok() bool {
	return len(r.Issues) == 0
}

// Auditor runs integrity checks over one repository. Per-record checks
// involve content digesting and cross-repository lookups, so they run on a
// worker pool while the iteration feeds them.
type Auditor struct {
	repository storage.Repository
	// snapshots is consulted to resolve version snapshot references. Nil
	// when auditing a snapshots repository.
	snapshots storage.Repository
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor) error

// WithPoolSize sets the worker pool size for per-record checks.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(a *Auditor) error {
		if size < 1 {
			size = 1
		}

		if a.pool != nil {
			a.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		a.pool = pool
		return nil
	}
}

// WithSnapshots provides the snapshots repository used to resolve the
// snapshot references of version records.
func WithSnapshots(snapshots storage.Repository) Option {
	return func(a *Auditor) error {
		a.snapshots = snapshots
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAuditor creates an auditor over the given repository.
func NewAuditor(repository storage.Repository, opts ...Option) (*Auditor, error) {
	if repository == nil {
		return nil, fmt.Errorf("a repository is required")
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	a := &Auditor{
		repository: repository,
		pool:       pool,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(a); optErr != nil {
			a.Release()
			return nil, optErr
		}
	}

	return a, nil
}

// Release frees the worker pool.
func (a *Auditor) Release() {
	if a.pool != nil {
		a.pool.Release()
	}
}

// scopeState tracks what the ordered iteration has seen per document scope.
type scopeState struct {
	lastDigest string
	firstSeen  bool
}

// Run iterates the whole repository in fetch-date order and reports every
// integrity issue found. Iteration errors abort the run; issues do not.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}
	scopes := make(map[string]*scopeState)

	var mu sync.Mutex
	var wg sync.WaitGroup

	addIssue := func(id, problem string) {
		mu.Lock()
		report.Issues = append(report.Issues, Issue{RecordID: id, Problem: problem})
		mu.Unlock()
	}

	for record, err := range a.repository.Iterate(ctx) {
		if err != nil {
			wg.Wait()
			return nil, err
		}

		report.Records++

		// Ordering state must be inspected in iteration order, before the
		// record is handed to the pool.
		content, err := record.Content()
		if err != nil {
			addIssue(record.ID, "content not loaded by iteration")
			continue
		}

		digest := ContentDigest(content)
		scopeKey := fmt.Sprintf("%s\x00%s\x00%s", record.ServiceID, record.TermsType, record.DocumentID)
		state, ok := scopes[scopeKey]
		if !ok {
			state = &scopeState{}
			scopes[scopeKey] = state
		}

		if state.lastDigest == digest {
			addIssue(record.ID, "identical to the preceding record of its scope, dedup should have suppressed it")
		}
		state.lastDigest = digest

		if record.FirstRecord() {
			if state.firstSeen {
				addIssue(record.ID, "scope has more than one first record")
			}
			state.firstSeen = true
		}

		rec := record
		wg.Add(1)
		if err := a.pool.Submit(func() {
			defer wg.Done()
			a.checkRecord(ctx, rec, addIssue)
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}

	wg.Wait()

	a.logger.Info("audit finished", "records", report.Records, "issues", len(report.Issues))

	return report, nil
}

func (a *Auditor) checkRecord(ctx context.Context, record *core.Record, addIssue func(id, problem string)) {
	if record.Kind != core.KindVersion {
		return
	}

	if len(record.SnapshotIDs) == 0 {
		addIssue(record.ID, "version has no source snapshots")
		return
	}

	if a.snapshots == nil {
		return
	}

	for _, snapshotID := range record.SnapshotIDs {
		snapshot, err := a.snapshots.FindByID(ctx, snapshotID)
		if err != nil {
			addIssue(record.ID, fmt.Sprintf("cannot resolve snapshot %s: %v", snapshotID, err))
			continue
		}
		if snapshot == nil {
			addIssue(record.ID, fmt.Sprintf("source snapshot %s does not exist", snapshotID))
		}
	}
}
