// Copyright 2019 Intel Corporation. All Rights Reserved.
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

package selectcore

import "github.com/pkg/errors"

// Error taxonomy (spec.md §7).
var (
	// ErrInvalidArgs covers missing job details, bitmaps with fewer set
	// bits than min_nodes, and unknown planner modes.
	ErrInvalidArgs = errors.New("invalid arguments")
	// ErrNoFit is returned when a selector cannot satisfy the job's demand.
	ErrNoFit = errors.New("no fitting node set found")
	// ErrExpandGRES is returned when job_expand is attempted with GRES
	// requested on either side of the merge.
	ErrExpandGRES = errors.New("cannot expand a job that requested GRES")
	// ErrInconsistentState covers underflow, missing PartCR, and
	// duplicate-release conditions; the operation has already continued
	// best-effort and the caller receives this only as a diagnostic.
	ErrInconsistentState = errors.New("inconsistent consumable-resource state")
	// ErrNoResources is returned by release_alloc when a job has no
	// resources to release (rem_tot found nothing).
	ErrNoResources = errors.New("job has no allocated resources")
)
