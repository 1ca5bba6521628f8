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

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/config"
	"github.com/jamestiotio/selectcore/pkg/log"
	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

var coreLog = log.Get("core")

// Core is the process-wide context spec.md §9 calls for: the registry
// lock, the lazily-built CRState, the read-only collaborator tables, and
// configuration. Every public method acquires the lock on entry and
// releases it on every exit path (spec.md §5 "scoped acquisition").
type Core struct {
	mu sync.Mutex

	cfg          *config.Flags
	gresService  gres.Service
	procsOracle  procs.Oracle
	fastSchedule bool

	nodes      []*NodeRecord
	partitions []*PartitionRecord
	switches   []*SwitchRecord
	jobs       []*JobRecord

	cr *CRState
}

// NewCore constructs a Core with the given configuration; nil cfg uses
// config.Default().
func NewCore(cfg *config.Flags, gresService gres.Service, procsOracle procs.Oracle) *Core {
	if cfg == nil {
		cfg = config.Default()
	}
	if gresService == nil {
		gresService = gres.NewReference()
	}
	if procsOracle == nil {
		procsOracle = procs.NewReference()
	}
	return &Core{
		cfg:          cfg,
		gresService:  gresService,
		procsOracle:  procsOracle,
		fastSchedule: cfg.SelectFastSchedule,
	}
}

// NodeInit resets the registry to uninitialized and records the current
// node table and fast-schedule flag (spec.md §6 node_init).
func (c *Core) NodeInit(nodes []*NodeRecord, fastSchedule bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes = nodes
	c.fastSchedule = fastSchedule
	c.cr = nil
}

// SetPartitions replaces the partition table used by future rebuilds.
func (c *Core) SetPartitions(partitions []*PartitionRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.partitions = partitions
}

// SetSwitches replaces the switch (topology) table used by future job
// tests and reservations.
func (c *Core) SetSwitches(switches []*SwitchRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switches = switches
}

// SetJobs replaces the job table the planner consults for job-mate
// matching and preemption scans.
func (c *Core) SetJobs(jobs []*JobRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = jobs
}

// ensureBuilt lazily builds CRState on first use under the lock (spec.md
// §5 "build-on-demand race"). Caller must already hold c.mu.
func (c *Core) ensureBuilt() error {
	if c.cr != nil {
		return nil
	}
	cr := NewCRState(len(c.nodes), c.gresService, c.fastSchedule)
	if err := cr.InitFromWorld(c.partitions, c.jobs, c.nodes); err != nil {
		coreLog.Error("init_from_world: %v", err)
	}
	c.cr = cr
	return nil
}

// Reconfigure frees and rebuilds the registry from the current world
// (spec.md §6 reconfigure).
func (c *Core) Reconfigure() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cr != nil {
		c.cr.Free()
	}
	c.cr = nil
	return c.ensureBuilt()
}

func (c *Core) params() *PlanParams {
	return &PlanParams{
		Nodes:        c.nodes,
		Switches:     c.switches,
		Oracle:       c.procsOracle,
		FastSchedule: c.fastSchedule,
		Running:      c.jobs,
	}
}

// JobTest is the composite filter->selector->planner entry point
// (spec.md §6 job_test). Nodes of candidate that are not Available (DOWN)
// are dropped before planning; candidate itself is not modified. On success
// it returns the selection in PlanResult.Bitmap, sets job.TotalCPUs and,
// for ModeWillRun, job.StartTime.
func (c *Core) JobTest(job *JobRecord, candidate *bitmap.Bitmap, minNodes, maxNodes, reqNodes int, mode SelectMode, preemptable []PreemptCandidate) (*PlanResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if job == nil || candidate == nil || candidate.Count() < minNodes {
		return nil, ErrInvalidArgs
	}
	if err := c.ensureBuilt(); err != nil {
		return nil, err
	}

	p := c.params()
	p.MinNodes, p.MaxNodes, p.ReqNodes = minNodes, maxNodes, reqNodes
	if job.Partition != nil {
		p.MaxShare = int(job.Partition.MaxShare.Cap())
	}

	avail := candidate.Clone()
	candidate.ForEachSet(func(idx int) bool {
		if idx < len(c.nodes) && !c.nodes[idx].Available() {
			avail.Clear(idx)
		}
		return true
	})

	var result *PlanResult
	var err error
	switch mode {
	case ModeTestOnly:
		result, err = TestOnly(c.cr, job, avail, p)
	case ModeRunNow:
		result, err = RunNow(c.cr, job, avail, p, preemptable)
	case ModeWillRun:
		result, err = WillRun(c.cr, job, avail, p, preemptable, time.Now().Unix())
	default:
		return nil, ErrInvalidArgs
	}
	if err != nil {
		return nil, err
	}

	job.TotalCPUs = result.TotalCPUs
	if mode == ModeWillRun {
		job.StartTime = result.StartTime
	}
	return result, nil
}

// JobBegin commits a job_test's placement to the live registry (spec.md
// §6 job_begin).
func (c *Core) JobBegin(job *JobRecord, selected *bitmap.Bitmap) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	prev := job.State
	job.State = JobRunning
	if err := CommitAlloc(c.cr, job, c.nodes, selected, c.fastSchedule); err != nil {
		job.State = prev
		return err
	}
	return nil
}

// JobReady reports whether every node assigned to job is neither
// POWER_SAVE nor POWER_UP (spec.md §6 job_ready).
func (c *Core) JobReady(job *JobRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if job.NodeBitmap == nil {
		return false
	}
	ready := true
	job.NodeBitmap.ForEachSet(func(idx int) bool {
		if idx < 0 || idx >= len(c.nodes) {
			return true
		}
		if !c.nodes[idx].Ready() {
			ready = false
			return false
		}
		return true
	})
	return ready
}

// JobExpand merges src's allocation into dst (spec.md §6 job_expand).
func (c *Core) JobExpand(dst, src *JobRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dst == src {
		return errors.Wrap(ErrInvalidArgs, "job_expand: self-merge")
	}
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	return JobExpand(c.cr, dst, src, c.nodes, c.fastSchedule)
}

// JobResized releases one node from job (spec.md §6 job_resized).
func (c *Core) JobResized(job *JobRecord, nodeIdx int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	return ReleaseOneNode(c.cr, job, nodeIdx)
}

// JobFini fully releases job's resources (spec.md §6 job_fini).
func (c *Core) JobFini(job *JobRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	if err := ReleaseAlloc(c.cr, job, true); err != nil {
		return err
	}
	job.State = JobPending
	return nil
}

// JobSuspend releases only job's run-side accounting (spec.md §6
// job_suspend).
func (c *Core) JobSuspend(job *JobRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	if err := ReleaseAlloc(c.cr, job, false); err != nil {
		return err
	}
	job.State = JobSuspended
	return nil
}

// JobResume re-commits job's run-side accounting after a suspend
// (spec.md §6 job_resume).
func (c *Core) JobResume(job *JobRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureBuilt(); err != nil {
		return err
	}
	prev := job.State
	job.State = JobRunning
	if err := commitAllocBookkeeping(c.cr, job, false); err != nil {
		job.State = prev
		return err
	}
	return nil
}

// ResvTest picks nodeCnt nodes for a reservation (spec.md §6 resv_test).
func (c *Core) ResvTest(avail *bitmap.Bitmap, nodeCnt int) (*bitmap.Bitmap, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ResvTest(c.switches, avail, nodeCnt)
}

// Snapshot returns a point-in-time clone of the registry for read-only
// consumers such as the Prometheus collector, or nil if the registry has
// not been built yet.
func (c *Core) Snapshot() *CRState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cr == nil {
		return nil
	}
	return c.cr.Clone()
}

// NodeInfoSetAll computes per-node alloc_cpus for every node (spec.md §6
// nodeinfo_set_all). lastUpdate is accepted for API parity; state-save is
// out of scope so it is otherwise unused.
func (c *Core) NodeInfoSetAll(lastUpdate int64) []*NodeInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return NodeInfoSetAll(c.nodes, c.fastSchedule)
}
