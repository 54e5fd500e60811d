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

import (
	"fmt"
	"time"
)

// validateSnapshotParams validates Snapshot construction parameters.
//
// Validation rules:
//   - ServiceID, TermsType, MimeType must not be empty
//   - FetchDate must not be the zero time
//   - Content must not be empty or nil
//
// NOT validated:
//   - DocumentID (optional, only needed for multi-source terms)
//   - IsFirstRecord (nil means "compute at save time")
func validateSnapshotParams(params SnapshotParams) error {
	if err := validateCommonParams(params.ServiceID, params.TermsType, params.FetchDate, params.Content); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	if params.MimeType == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSnapshot, ErrMissingMimeType)
	}

	return nil
}

// validateVersionParams validates Version construction parameters.
//
// Validation rules:
//   - ServiceID, TermsType must not be empty
//   - FetchDate must not be the zero time
//   - Content must not be empty or nil
//   - SnapshotIDs must contain at least one non-empty ID
func validateVersionParams(params VersionParams) error {
	if err := validateCommonParams(params.ServiceID, params.TermsType, params.FetchDate, params.Content); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVersion, err)
	}

	if len(params.SnapshotIDs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidVersion, ErrMissingSnapshotIDs)
	}

	for _, id := range params.SnapshotIDs {
		if id == "" {
			return fmt.Errorf("%w: %w", ErrInvalidVersion, ErrMissingSnapshotIDs)
		}
	}

	return nil
}

func validateCommonParams(serviceID, termsType string, fetchDate time.Time, content []byte) error {
	if serviceID == "" {
		return ErrMissingServiceID
	}

	if termsType == "" {
		return ErrMissingTermsType
	}

	if fetchDate.IsZero() {
		return ErrMissingFetchDate
	}

	if len(content) == 0 {
		return ErrEmptyContent
	}

	return nil
}
