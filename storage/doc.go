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


// Package storage provides the storage abstraction layer for policytrail.
//
// This package defines the Repository interface that decouples record
// persistence from the archiving logic. Backends with radically different
// primitives implement the same contract with identical semantics:
//
//   - gitrepo: records encoded as commits in a git working tree, one file
//     per document scope, metadata in commit messages
//   - mongorepo: one MongoDB document per record
//   - badgerrepo: embedded BadgerDB store, for offline deployments and tests
//
// # Constructor Return Type Pattern
//
// Backend constructors return the storage.Repository interface rather than
// their concrete type:
//
//	repo, err := gitrepo.New(cfg, core.KindSnapshot)
//
// This keeps callers decoupled from backend specifics and lets deployments
// mix backends (for example git for snapshots, MongoDB for versions).
//
// # Uniform semantics
//
// Whatever the backend:
//
//   - Save deduplicates against the latest record in the same scope and
//     returns (nil, nil) when the content is unchanged
//   - listing operations defer content loading; Iterate loads eagerly
//   - Iterate and scoped listings order records by fetch date, never by
//     insertion order, because corrective saves can arrive out of
//     chronological order
//   - queries return (nil, nil) when nothing matches
//
// # Thread Safety
//
// Repository implementations must be safe for concurrent use. The git
// backend serializes all operations on one working tree internally; distinct
// repository instances always operate in parallel.
package storage
