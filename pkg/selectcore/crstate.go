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
	multierror "github.com/hashicorp/go-multierror"

	"github.com/jamestiotio/selectcore/pkg/log"
	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
)

// slotGrowIncrement is the fixed increment the run/total job-ID arrays
// grow by (spec.md §3: "The arrays grow by a fixed increment (16)").
const slotGrowIncrement = 16

// PartCR is the per-node, per-partition job-count bookkeeping entry
// (spec.md §3 PartCR). All PartCRs for a node form an ordered list keyed
// by partition identity, mirroring the original's singly-linked
// part_cr_record chain.
type PartCR struct {
	Partition *PartitionRecord
	RunJobCnt uint32
	TotJobCnt uint32
	next      *PartCR
}

// NodeCR is the per-node consumable-resource accounting entry
// (spec.md §3 NodeCR).
type NodeCR struct {
	AllocMemory  uint64
	ExclusiveCnt uint32
	parts        *PartCR
	Gres         *gres.Snapshot
}

// Parts returns the PartCR chain for this node, head first.
func (n *NodeCR) Parts() *PartCR {
	return n.parts
}

// Next returns the next PartCR in this node's chain, or nil at the end.
func (pc *PartCR) Next() *PartCR {
	return pc.next
}

// find locates the PartCR for the given partition, or nil.
func (n *NodeCR) find(p *PartitionRecord) *PartCR {
	for pc := n.parts; pc != nil; pc = pc.next {
		if pc.Partition == p {
			return pc
		}
	}
	return nil
}

// CRState is the consumable-resource registry: per-node counters plus the
// compacted run/total job-ID arrays (spec.md §3 CRState).
type CRState struct {
	Nodes []NodeCR
	// RunSet/TotSet store job IDs with 0 meaning an empty (tombstoned)
	// slot (spec.md §3, §9 "sparse growable job-ID arrays with tombstone
	// 0"). Duplicate adds are allowed; the first zero slot wins.
	RunSet []uint32
	TotSet []uint32

	gresService  gres.Service
	fastSchedule bool
	log          log.Logger
}

// NewCRState allocates an empty CRState sized for nodeCount nodes.
func NewCRState(nodeCount int, gresService gres.Service, fastSchedule bool) *CRState {
	if gresService == nil {
		gresService = gres.NewReference()
	}
	nodes := make([]NodeCR, nodeCount)
	for i := range nodes {
		nodes[i].Gres = gresService.Dup(nil)
	}
	return &CRState{
		Nodes:        nodes,
		gresService:  gresService,
		fastSchedule: fastSchedule,
		log:          log.Get("crstate"),
	}
}

// logClamp logs an accounting underflow at error severity, downgrading to
// debug when FastSchedule is disabled and a live/configured CPU mismatch
// plausibly explains the discrepancy (spec.md §4.1 failure semantics).
func (cr *CRState) logClamp(liveMismatch bool, format string, args ...interface{}) {
	if !cr.fastSchedule && liveMismatch {
		cr.log.Debug(format, args...)
		return
	}
	cr.log.Error(format, args...)
}

// addSlot appends jobID to arr, reusing the lowest-index zero slot before
// growing by slotGrowIncrement (spec.md §4.1, SPEC_FULL.md supplemented
// feature #3: preserve low-to-high scan order for reproducibility).
func addSlot(arr []uint32, jobID uint32) []uint32 {
	for i, v := range arr {
		if v == 0 {
			arr[i] = jobID
			return arr
		}
	}
	grown := make([]uint32, len(arr)+slotGrowIncrement)
	copy(grown, arr)
	grown[len(arr)] = jobID
	return grown
}

// remSlots zeroes every slot matching jobID (duplicates are possible since
// AddRun/AddTot never dedupe) and reports whether at least one was found.
func remSlots(arr []uint32, jobID uint32) bool {
	found := false
	for i, v := range arr {
		if v == jobID {
			arr[i] = 0
			found = true
		}
	}
	return found
}

func testSlots(arr []uint32, jobID uint32) bool {
	for _, v := range arr {
		if v == jobID {
			return true
		}
	}
	return false
}

// AddRun appends jobID to the run set.
func (cr *CRState) AddRun(jobID uint32) {
	cr.RunSet = addSlot(cr.RunSet, jobID)
}

// AddTot appends jobID to the total set.
func (cr *CRState) AddTot(jobID uint32) {
	cr.TotSet = addSlot(cr.TotSet, jobID)
}

// RemRun zeroes every run-set slot matching jobID.
func (cr *CRState) RemRun(jobID uint32) bool {
	return remSlots(cr.RunSet, jobID)
}

// RemTot zeroes every total-set slot matching jobID.
func (cr *CRState) RemTot(jobID uint32) bool {
	return remSlots(cr.TotSet, jobID)
}

// TestRun reports whether jobID is present in the run set.
func (cr *CRState) TestRun(jobID uint32) bool {
	return testSlots(cr.RunSet, jobID)
}

// TestTot reports whether jobID is present in the total set.
func (cr *CRState) TestTot(jobID uint32) bool {
	return testSlots(cr.TotSet, jobID)
}

// Clone deep-copies the CRState: the node array, every PartCR chain, GRES
// snapshots (via gres.Service.Dup), and both job-ID arrays (spec.md §4.1
// clone()).
func (cr *CRState) Clone() *CRState {
	out := &CRState{
		Nodes:        make([]NodeCR, len(cr.Nodes)),
		RunSet:       append([]uint32(nil), cr.RunSet...),
		TotSet:       append([]uint32(nil), cr.TotSet...),
		gresService:  cr.gresService,
		fastSchedule: cr.fastSchedule,
		log:          cr.log,
	}
	for i := range cr.Nodes {
		src := &cr.Nodes[i]
		dst := &out.Nodes[i]
		dst.AllocMemory = src.AllocMemory
		dst.ExclusiveCnt = src.ExclusiveCnt
		dst.Gres = cr.gresService.Dup(src.Gres)
		var tail *PartCR
		for pc := src.parts; pc != nil; pc = pc.next {
			cp := &PartCR{Partition: pc.Partition, RunJobCnt: pc.RunJobCnt, TotJobCnt: pc.TotJobCnt}
			if tail == nil {
				dst.parts = cp
			} else {
				tail.next = cp
			}
			tail = cp
		}
	}
	return out
}

// Free releases resources held by the registry. State-save/restore across
// process restarts is explicitly out of scope (spec.md §1); Free is a
// best-effort release for API parity with the original's cr_fini, not a
// persistence operation.
func (cr *CRState) Free() {
	cr.Nodes = nil
	cr.RunSet = nil
	cr.TotSet = nil
}

// InitFromWorld (re)builds PartCR chains from current partition
// membership, clears every node's GRES allocation, then replays the same
// per-node bookkeeping commit_alloc would perform for every
// running-or-suspended job (spec.md §4.1 init_from_world).
//
// Partitions are walked in the order given, not node order
// (SPEC_FULL.md supplemented feature #4), so PartCR chain order is
// deterministic and stable across rebuilds.
func (cr *CRState) InitFromWorld(partitions []*PartitionRecord, jobs []*JobRecord, nodes []*NodeRecord) error {
	for i := range cr.Nodes {
		cr.Nodes[i].parts = nil
		cr.gresService.Clear(cr.Nodes[i].Gres)
	}

	for _, part := range partitions {
		part.Nodes.ForEachSet(func(idx int) bool {
			if idx < 0 || idx >= len(cr.Nodes) {
				return true
			}
			n := &cr.Nodes[idx]
			if n.find(part) == nil {
				pc := &PartCR{Partition: part}
				pc.next = n.parts
				n.parts = pc
			}
			return true
		})
	}

	var errs *multierror.Error
	for _, job := range jobs {
		if job.State != JobRunning && job.State != JobSuspended {
			continue
		}
		if job.Alloc == nil && job.NodeBitmap != nil {
			job.Alloc = buildAllocRecord(job, nodes, job.NodeBitmap, cr.fastSchedule)
		}
		if err := commitAllocBookkeeping(cr, job, true); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
