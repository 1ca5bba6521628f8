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

// TestCoreJobLifecycle walks a job through node_init -> job_test(RUN_NOW)
// -> job_begin -> job_ready -> job_suspend -> job_resume -> job_fini, the
// state machine spec.md §4.7 describes, entirely through Core's public,
// mutex-guarded surface.
func TestCoreJobLifecycle(t *testing.T) {
	nodes := uniformNodes(4, 4)
	part := &selectcore.PartitionRecord{Name: "batch", Nodes: bitmap.NewFull(4)}

	core := selectcore.NewCore(nil, nil, nil)
	core.NodeInit(nodes, false)
	core.SetPartitions([]*selectcore.PartitionRecord{part})

	job := &selectcore.JobRecord{
		JobID:     1,
		Partition: part,
		Details:   selectcore.JobDetails{MinCPUs: 8},
		State:     selectcore.JobPending,
	}

	res, err := core.JobTest(job, bitmap.NewFull(4), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.NoError(t, err)
	require.Equal(t, 2, res.Bitmap.Count())
	require.Equal(t, res.TotalCPUs, job.TotalCPUs)

	require.NoError(t, core.JobBegin(job, res.Bitmap))
	require.Equal(t, selectcore.JobRunning, job.State)
	require.True(t, core.JobReady(job))

	require.NoError(t, core.JobSuspend(job))
	require.Equal(t, selectcore.JobSuspended, job.State)

	require.NoError(t, core.JobResume(job))
	require.Equal(t, selectcore.JobRunning, job.State)

	require.NoError(t, core.JobFini(job))
	require.Equal(t, selectcore.JobPending, job.State)

	snap := core.Snapshot()
	require.NotNil(t, snap)
	require.False(t, snap.TestRun(job.JobID))
}

// A second job cannot land on a fully-allocated cluster without
// preemption; job_test(RUN_NOW) must fail and leave the registry
// untouched.
func TestCoreJobTestRunNowFailsOnFullCluster(t *testing.T) {
	nodes := uniformNodes(2, 4)
	part := &selectcore.PartitionRecord{Name: "batch", Nodes: bitmap.NewFull(2)}

	core := selectcore.NewCore(nil, nil, nil)
	core.NodeInit(nodes, false)
	core.SetPartitions([]*selectcore.PartitionRecord{part})

	holder := &selectcore.JobRecord{JobID: 1, Partition: part, Details: selectcore.JobDetails{MinCPUs: 8}}
	res, err := core.JobTest(holder, bitmap.NewFull(2), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.NoError(t, err)
	require.NoError(t, core.JobBegin(holder, res.Bitmap))

	job := &selectcore.JobRecord{JobID: 2, Partition: part, Details: selectcore.JobDetails{MinCPUs: 8}}
	_, err = core.JobTest(job, bitmap.NewFull(2), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.ErrorIs(t, err, selectcore.ErrNoFit)
}

// job_test rejects malformed arguments before ever touching the registry
// (spec.md §4.7 failure semantics, EINVAL).
func TestCoreJobTestRejectsInvalidArgs(t *testing.T) {
	core := selectcore.NewCore(nil, nil, nil)
	core.NodeInit(uniformNodes(4, 4), false)

	_, err := core.JobTest(nil, bitmap.NewFull(4), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.ErrorIs(t, err, selectcore.ErrInvalidArgs)

	job := &selectcore.JobRecord{Details: selectcore.JobDetails{MinCPUs: 8}}
	_, err = core.JobTest(job, bitmap.FromSlice(4, []int{0}), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.ErrorIs(t, err, selectcore.ErrInvalidArgs, "candidate has fewer set bits than min_nodes")
}

// reconfigure frees and rebuilds the registry from the current world
// without losing a previously committed allocation (spec.md §6).
func TestCoreReconfigurePreservesCommittedAllocations(t *testing.T) {
	nodes := uniformNodes(4, 4)
	part := &selectcore.PartitionRecord{Name: "batch", Nodes: bitmap.NewFull(4)}

	core := selectcore.NewCore(nil, nil, nil)
	core.NodeInit(nodes, false)
	core.SetPartitions([]*selectcore.PartitionRecord{part})

	job := &selectcore.JobRecord{JobID: 1, Partition: part, State: selectcore.JobRunning}
	res, err := core.JobTest(job, bitmap.NewFull(4), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.NoError(t, err)
	require.NoError(t, core.JobBegin(job, res.Bitmap))

	core.SetJobs([]*selectcore.JobRecord{job})
	require.NoError(t, core.Reconfigure())

	snap := core.Snapshot()
	require.True(t, snap.TestRun(job.JobID))
}

// job_ready reports false once any held node starts powering down.
func TestCoreJobReadyFalseWhenNodePowerSaving(t *testing.T) {
	nodes := uniformNodes(2, 4)
	part := &selectcore.PartitionRecord{Name: "batch", Nodes: bitmap.NewFull(2)}

	core := selectcore.NewCore(nil, nil, nil)
	core.NodeInit(nodes, false)
	core.SetPartitions([]*selectcore.PartitionRecord{part})

	job := &selectcore.JobRecord{JobID: 1, Partition: part}
	res, err := core.JobTest(job, bitmap.NewFull(2), 2, 2, 2, selectcore.ModeRunNow, nil)
	require.NoError(t, err)
	require.NoError(t, core.JobBegin(job, res.Bitmap))
	require.True(t, core.JobReady(job))

	nodes[0].State = selectcore.NodePowerSave
	require.False(t, core.JobReady(job))
}
