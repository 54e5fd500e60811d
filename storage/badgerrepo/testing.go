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


package badgerrepo

import (
	"context"

	"github.com/policytrail/policytrail/core"
	"github.com/policytrail/policytrail/storage"
)

// NewMemoryRepository creates an initialized in-memory repository for
// testing. Caller must Finalize it when done.
func NewMemoryRepository(kind core.RecordKind) (storage.Repository, error) {
	repo, err := New(Config{InMemory: true}, kind)
	if err != nil {
		return nil, err
	}

	if err := repo.Initialize(context.Background()); err != nil {
		return nil, err
	}

	return repo, nil
}
