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

package selectcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/selectcore"
)

func runningMate(id uint32, nodeIdx []int, totalCPUs int, contiguous bool) *selectcore.JobRecord {
	return &selectcore.JobRecord{
		JobID:      id,
		State:      selectcore.JobRunning,
		NodeBitmap: bitmap.FromSlice(8, nodeIdx),
		TotalCPUs:  totalCPUs,
		Details:    selectcore.JobDetails{Contiguous: contiguous},
	}
}

func TestFindJobMateReusesMatchingFootprint(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.NotNil(t, sel)
	require.Equal(t, []int{2, 3, 4}, sel.List())
	require.Equal(t, 12, job.TotalCPUs)
}

// spec.md §9 Open Question: only RUNNING jobs are eligible mates, never
// pending or suspended-with-zero-priority ones.
func TestFindJobMateSkipsNonRunningJobs(t *testing.T) {
	pending := runningMate(1, []int{2, 3, 4}, 12, false)
	pending.State = selectcore.JobPending

	suspendedZeroPriority := runningMate(2, []int{2, 3, 4}, 12, false)
	suspendedZeroPriority.State = selectcore.JobSuspended
	suspendedZeroPriority.Priority = 0

	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}
	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{pending, suspendedZeroPriority}, 3, 3, 3)
	require.Nil(t, sel)
}

// A suspended job with a nonzero priority still counts as "running" per
// the suspended-with-zero-priority rule (spec.md §4.1/§9).
func TestFindJobMateAcceptsSuspendedWithNonzeroPriority(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	mate.State = selectcore.JobSuspended
	mate.Priority = 7

	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}
	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.NotNil(t, sel)
}

func TestFindJobMateRejectsWrongNodeCount(t *testing.T) {
	mate := runningMate(1, []int{2, 3}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateRejectsInsufficientCPUs(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 6, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateRejectsWhenCandidateExcludesMateNodes(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}

	// candidate excludes node 4, so the mate's footprint is not a subset.
	candidate := bitmap.FromSlice(8, []int{0, 1, 2, 3, 5, 6, 7})
	sel := selectcore.FindJobMate(job, candidate, []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateRejectsContiguityMismatch(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9, Contiguous: true}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateRequiresMateToCoverRequiredNodes(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{
		MinCPUs:  9,
		ReqNodes: bitmap.FromSlice(8, []int{5}),
	}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateRejectsMateOverlappingExcludedNodes(t *testing.T) {
	mate := runningMate(1, []int{2, 3, 4}, 12, false)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{
		MinCPUs:  9,
		ExcNodes: bitmap.FromSlice(8, []int{4}),
	}}

	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{mate}, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateReturnsNilOnEmptyRunningList(t *testing.T) {
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}
	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), nil, 3, 3, 3)
	require.Nil(t, sel)
}

func TestFindJobMateSkipsFirstMismatchAndTakesSecond(t *testing.T) {
	tooFewCPUs := runningMate(1, []int{0, 1, 2}, 4, false)
	goodMate := runningMate(2, []int{3, 4, 5}, 12, false)

	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 9}}
	sel := selectcore.FindJobMate(job, bitmap.NewFull(8), []*selectcore.JobRecord{tooFewCPUs, goodMate}, 3, 3, 3)
	require.NotNil(t, sel)
	require.Equal(t, []int{3, 4, 5}, sel.List())
	require.Equal(t, 12, job.TotalCPUs)
}
