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


// Package recorder is the write façade over the two record repositories:
// one for raw snapshots, one for extracted versions. Orchestrators record
// through it and never talk to a backend directly.
package recorder

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// Recorder holds one repository per record kind. The repositories may use
// different backends.
type Recorder struct {
	snapshots storage.Repository
	versions  storage.Repository
}

// New creates a Recorder over the two repositories. Both are required.
func New(snapshots, versions storage.Repository) (*Recorder, error) {
	if snapshots == nil || versions == nil {
		return nil, errors.New("repositories should be defined both for snapshots and versions")
	}

	return &Recorder{snapshots: snapshots, versions: versions}, nil
}

// Initialize opens both repositories concurrently.
func (r *Recorder) Initialize(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.snapshots.Initialize(ctx) })
	g.Go(func() error { return r.versions.Initialize(ctx) })
	return g.Wait()
}

// Finalize releases both repositories concurrently; for a publishing git
// backend this is where commits are pushed.
func (r *Recorder) Finalize(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.snapshots.Finalize(ctx) })
	g.Go(func() error { return r.versions.Finalize(ctx) })
	return g.Wait()
}

// LatestSnapshot returns the most recent snapshot of a document scope, or
// nil when the scope was never recorded.
func (r *Recorder) LatestSnapshot(ctx context.Context, serviceID, termsType, documentID string) (*core.Record, error) {
	return r.snapshots.FindLatest(ctx, serviceID, termsType, documentID)
}

// RecordSnapshot validates and persists a raw snapshot. A nil record with a
// nil error means the content was unchanged and nothing was written.
func (r *Recorder) RecordSnapshot(ctx context.Context, params core.SnapshotParams) (*core.Record, error) {
	snapshot, err := core.NewSnapshot(params)
	if err != nil {
		return nil, err
	}

	return r.snapshots.Save(ctx, snapshot)
}

// RecordVersion validates and persists an extracted version. The source
// snapshot IDs are mandatory: a version that cannot be traced back to its
// snapshots is not auditable.
func (r *Recorder) RecordVersion(ctx context.Context, params core.VersionParams) (*core.Record, error) {
	if len(params.SnapshotIDs) == 0 {
		return nil, fmt.Errorf("a snapshot ID is required to ensure data consistency for %s's %s",
			params.ServiceID, params.TermsType)
	}

	version, err := core.NewVersion(params)
	if err != nil {
		return nil, err
	}

	return r.versions.Save(ctx, version)
}

// RecordExtractOnlyVersion persists a version regenerated from existing
// snapshots after an extraction or declaration change. Downstream consumers
// use the flag to suppress change notifications.
func (r *Recorder) RecordExtractOnlyVersion(ctx context.Context, params core.VersionParams) (*core.Record, error) {
	params.IsExtractOnly = true
	return r.RecordVersion(ctx, params)
}
