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


package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotImplemented indicates that a backend does not implement a
	// repository method.
	ErrNotImplemented = errors.New("not implemented")

	// ErrCorruptedRecord indicates that a stored record cannot be decoded
	// back into the domain model.
	ErrCorruptedRecord = errors.New("corrupted record")

	// ErrUnknownMimeType indicates a mime type with no known file extension
	// on a write path. The wildcard extension is reserved for lookups.
	ErrUnknownMimeType = errors.New("unknown mime type")

	// ErrNotInitialized indicates a repository was used before Initialize.
	ErrNotInitialized = errors.New("repository not initialized")
)

// NotImplemented builds the canonical error for a repository method a
// backend does not provide, naming both.
func NotImplemented(backend, method string) error {
	return fmt.Errorf("%w: %s in %s", ErrNotImplemented, method, backend)
}
