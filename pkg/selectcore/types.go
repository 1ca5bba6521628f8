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

// Package selectcore implements the core of a node-selection plugin for a
// batch job scheduler: consumable-resource accounting, availability
// filtering, flat and topology-aware best-fit node selection, allocation
// bookkeeping, and the will-run/run-now/test-only planner.
package selectcore

import (
	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
)

// NoVal is the sentinel for "unset" numeric fields (spec.md §9).
const NoVal = ^uint32(0)

// NodeState is a bit-set of node health/power flags.
type NodeState uint32

const (
	// NodeDown marks a node unavailable for any allocation.
	NodeDown NodeState = 1 << iota
	// NodePowerSave marks a node powered down to save energy.
	NodePowerSave
	// NodePowerUp marks a node in the process of powering up.
	NodePowerUp
	// NodeCompleting marks a node still draining a just-finished job.
	NodeCompleting
	// NodeAllocated marks a node with at least one job allocated to it.
	NodeAllocated
)

// Has reports whether all bits of flag are set in s.
func (s NodeState) Has(flag NodeState) bool {
	return s&flag == flag
}

// HWInfo is the hardware shape of a node: CPU and memory capacity.
type HWInfo struct {
	CPUs       int
	Sockets    int
	Cores      int
	Threads    int
	RealMemory uint64
}

// NodeRecord is the read-only collaborator record for a cluster node
// (spec.md §3 NodeRecord). The core never mutates it.
type NodeRecord struct {
	Index     int
	Name      string
	Configured HWInfo
	Live      HWInfo
	Gres      gres.NodeGres
	Partitions []string
	State     NodeState
}

// Available reports whether the node may be offered as a selection
// candidate at all (supplemented feature: DOWN-node pre-filtering,
// SPEC_FULL.md "Node state exclusions").
func (n *NodeRecord) Available() bool {
	return !n.State.Has(NodeDown)
}

// Ready reports whether the node is neither powering down nor up
// (spec.md §6, job_ready).
func (n *NodeRecord) Ready() bool {
	return !n.State.Has(NodePowerSave) && !n.State.Has(NodePowerUp)
}

// EffectiveCPUs returns the CPU count to use for accounting, honoring the
// fast-schedule flag (spec.md §4.2 "effective CPU/memory").
func (n *NodeRecord) EffectiveCPUs(fastSchedule bool) int {
	if fastSchedule {
		return n.Configured.CPUs
	}
	return n.Live.CPUs
}

// EffectiveMemory returns the real memory to use for accounting, honoring
// the fast-schedule flag.
func (n *NodeRecord) EffectiveMemory(fastSchedule bool) uint64 {
	if fastSchedule {
		return n.Configured.RealMemory
	}
	return n.Live.RealMemory
}

// ShareFlag encodes a partition's max_share field: the low bits are the
// numeric share cap, SharedForce forces sharing regardless of per-job
// preference (spec.md §3 PartitionRecord).
type ShareFlag uint32

const (
	// SharedForceBit forces all jobs on the partition to share nodes.
	SharedForceBit ShareFlag = 1 << 31
	// shareMask isolates the numeric share-cap bits.
	shareMask ShareFlag = SharedForceBit - 1
)

// Cap returns the numeric share cap encoded in the flag.
func (f ShareFlag) Cap() uint32 {
	return uint32(f & shareMask)
}

// Forced reports whether SharedForceBit is set.
func (f ShareFlag) Forced() bool {
	return f&SharedForceBit != 0
}

// PartitionRecord is the read-only collaborator record for a partition
// (spec.md §3 PartitionRecord).
type PartitionRecord struct {
	Name      string
	Nodes     *bitmap.Bitmap
	MaxShare  ShareFlag
}

// JobState is the lifecycle state of a job under the core's control
// (spec.md §4.7 state machine).
type JobState int

const (
	// JobPending is a job not yet allocated.
	JobPending JobState = iota
	// JobRunning is a job with committed node resources.
	JobRunning
	// JobSuspended is a running job temporarily relieved of its CPU share.
	JobSuspended
)

// PreemptMode selects how a preemptable job is released (spec.md glossary).
type PreemptMode int

const (
	// PreemptRequeue releases the job entirely and requeues it.
	PreemptRequeue PreemptMode = iota
	// PreemptCheckpoint releases the job entirely, checkpointing state externally.
	PreemptCheckpoint
	// PreemptCancel releases the job entirely, cancelling it.
	PreemptCancel
	// PreemptSuspend releases only the job's run-accounting, keeping its
	// total-job-count/GRES/memory footprint (suspend-style release).
	PreemptSuspend
)

// ReleaseAll reports whether this preempt mode implies mode_remove_all=true
// on release_alloc (spec.md §4.7 RUN_NOW preemption).
func (m PreemptMode) ReleaseAll() bool {
	return m == PreemptRequeue || m == PreemptCheckpoint || m == PreemptCancel
}

// JobDetails is the resource-request portion of a JobRecord
// (spec.md §3 JobRecord.details).
type JobDetails struct {
	MinCPUs         int
	MinNodes        int
	ReqNodes        *bitmap.Bitmap
	ExcNodes        *bitmap.Bitmap
	Contiguous      bool
	Shared          int // 0 means exclusive-use
	MemSpec         uint64
	CPUsPerTask     int
	NTasksPerNode   int
}

// PerCPUMem reports whether MemSpec's high bit (MEM_PER_CPU) is set.
func (d *JobDetails) PerCPUMem() bool {
	return d.MemSpec&(1<<63) != 0
}

// MemValue returns the numeric memory amount encoded in MemSpec.
func (d *JobDetails) MemValue() uint64 {
	return d.MemSpec &^ (1 << 63)
}

// EffectiveMinCPUs reconciles min_cpus against the task shape
// (SPEC_FULL.md supplemented feature #1, grounded on
// select_linear.c's _xlate_task_cnt): when ntasks_per_node and
// cpus_per_task together demand more CPUs per node than MinCPUs alone
// would, MinCPUs is clamped up.
func (d *JobDetails) EffectiveMinCPUs() int {
	if d.NTasksPerNode <= 0 || d.CPUsPerTask <= 0 {
		return d.MinCPUs
	}
	shaped := d.NTasksPerNode * d.CPUsPerTask
	if shaped > d.MinCPUs {
		return shaped
	}
	return d.MinCPUs
}

// AllocRecord is the per-job allocation bookkeeping structure, called
// "job resources" in spec.md §3.
type AllocRecord struct {
	Nodes          *bitmap.Bitmap
	NodeList       string
	NCPUs          int
	Cpus           []int
	CpusUsed       []int
	MemoryAlloc    []uint64
	MemoryUsed     []uint64
	CPUArrayValue  []int
	CPUArrayReps   []int
	CPUArrayCnt    int
	NHosts         int
	coreBitmaps    map[int]*bitmap.Bitmap // implementation-internal, per-node core bitmap
}

// JobRecord is the read-write collaborator record for a pending or running
// job (spec.md §3 JobRecord).
type JobRecord struct {
	JobID       uint32
	Partition   *PartitionRecord
	Details     JobDetails
	NodeBitmap  *bitmap.Bitmap
	Gres        gres.JobGres
	TotalCPUs   int
	EndTime     int64
	Priority    uint32
	State       JobState
	Alloc       *AllocRecord
	StartTime   int64
	PartNodesMissing bool
}

// IsRunning reports whether the job counts toward the run-set, applying
// the suspended-with-zero-priority rule from spec.md §4.1/§9 and
// SPEC_FULL.md's supplemented feature #5.
func (j *JobRecord) IsRunning() bool {
	switch j.State {
	case JobRunning:
		return true
	case JobSuspended:
		return j.Priority != 0
	default:
		return false
	}
}

// SwitchRecord is the read-only collaborator record for a network switch
// in the topology tree (spec.md §3 SwitchRecord).
type SwitchRecord struct {
	Name      string
	Level     int
	Nodes     *bitmap.Bitmap
	LinkSpeed uint32
}

// IsLeaf reports whether this switch is a leaf (level 0).
func (s *SwitchRecord) IsLeaf() bool {
	return s.Level == 0
}

// SelectMode is the mode passed to the availability filter and planner.
type SelectMode int

const (
	// ModeTestOnly ignores memory headroom and sharing caps (spec.md §4.2/4.7).
	ModeTestOnly SelectMode = iota
	// ModeRunNow attempts immediate placement.
	ModeRunNow
	// ModeWillRun computes when a job could run.
	ModeWillRun
)
