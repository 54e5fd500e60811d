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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidSnapshot indicates a Snapshot failed validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidVersion indicates a Version failed validation.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrMissingServiceID indicates the ServiceID field is missing.
	ErrMissingServiceID = errors.New("\"serviceId\" is missing")

	// ErrMissingTermsType indicates the TermsType field is missing.
	ErrMissingTermsType = errors.New("\"termsType\" is missing")

	// ErrMissingMimeType indicates the MimeType field is missing.
	ErrMissingMimeType = errors.New("\"mimeType\" is missing")

	// ErrMissingFetchDate indicates the FetchDate field is missing.
	ErrMissingFetchDate = errors.New("\"fetchDate\" is missing")

	// ErrEmptyContent indicates the content is empty or nil.
	ErrEmptyContent = errors.New("\"content\" is empty or null")

	// ErrMissingSnapshotIDs indicates a Version has no source snapshot IDs.
	ErrMissingSnapshotIDs = errors.New("\"snapshotIds\" is missing or empty")

	// ErrContentNotLoaded indicates record content was accessed before being
	// set or loaded.
	ErrContentNotLoaded = errors.New("content not loaded: set the content or load it with Repository.LoadRecordContent")
)
