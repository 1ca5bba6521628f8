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
	"github.com/pkg/errors"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
)

// buildAllocRecord derives a job_resources-equivalent structure from a
// selected node bitmap: per-host CPU counts, a run-length encoding of
// those counts (spec.md §3 AllocRecord "cpu_array_value/reps", mirroring
// job_resources_t in the original), and per-host memory charges.
func buildAllocRecord(job *JobRecord, nodes []*NodeRecord, selected *bitmap.Bitmap, fastSchedule bool) *AllocRecord {
	idx := selected.List()
	nhosts := len(idx)
	cpus := make([]int, nhosts)
	memAlloc := make([]uint64, nhosts)

	jobMem := job.Details.MemValue()
	perCPU := job.Details.PerCPUMem()

	ncpus := 0
	for i, nodeIdx := range idx {
		var c int
		if nodeIdx >= 0 && nodeIdx < len(nodes) {
			c = nodes[nodeIdx].EffectiveCPUs(fastSchedule)
		}
		cpus[i] = c
		ncpus += c
		if perCPU {
			memAlloc[i] = jobMem * uint64(c)
		} else {
			memAlloc[i] = jobMem
		}
	}

	var values, reps []int
	for _, c := range cpus {
		if len(values) > 0 && values[len(values)-1] == c {
			reps[len(reps)-1]++
			continue
		}
		values = append(values, c)
		reps = append(reps, 1)
	}

	return &AllocRecord{
		Nodes:         selected.Clone(),
		NodeList:      selected.String(),
		NCPUs:         ncpus,
		Cpus:          cpus,
		CpusUsed:      make([]int, nhosts),
		MemoryAlloc:   memAlloc,
		MemoryUsed:    make([]uint64, nhosts),
		CPUArrayValue: values,
		CPUArrayReps:  reps,
		CPUArrayCnt:   len(values),
		NHosts:        nhosts,
		coreBitmaps:   make(map[int]*bitmap.Bitmap, nhosts),
	}
}

// partCRFor returns the PartCR entry for p on node, creating one on demand
// if the node's chain predates p's membership (spec.md §4.6: partition
// membership can change between init_from_world rebuilds).
func partCRFor(n *NodeCR, p *PartitionRecord) *PartCR {
	if pc := n.find(p); pc != nil {
		return pc
	}
	pc := &PartCR{Partition: p}
	pc.next = n.parts
	n.parts = pc
	return pc
}

// commitAllocBookkeeping applies job.Alloc's footprint to the registry.
// When modeAll is true it applies the job's full footprint: memory,
// exclusive-use count, GRES, the PartCR tot counter and the total set
// (spec.md §4.6 commit_alloc, and §4.1 init_from_world which replays every
// running-or-suspended job this way). When modeAll is false only the
// run side is touched, the reactivation job_resume performs after a
// suspend that left memory/GRES/exclusive-use and tot counters untouched
// (spec.md §4.7 job_resume). In either mode the run side (the PartCR run
// counter and the run set) is applied only when job.IsRunning() holds, so
// a suspended job with priority 0 is not counted as running.
func commitAllocBookkeeping(cr *CRState, job *JobRecord, modeAll bool) error {
	if job.Alloc == nil || job.Alloc.Nodes == nil {
		return errors.Wrapf(ErrInvalidArgs, "job %d has no allocation to commit", job.JobID)
	}

	var errs *multierror.Error
	idx := job.Alloc.Nodes.List()
	exclusive := job.Details.Shared == 0

	for i, nodeIdx := range idx {
		if nodeIdx < 0 || nodeIdx >= len(cr.Nodes) {
			errs = multierror.Append(errs, errors.Wrapf(ErrInconsistentState, "job %d: node index %d out of range", job.JobID, nodeIdx))
			continue
		}
		ncr := &cr.Nodes[nodeIdx]

		if modeAll {
			if exclusive {
				ncr.ExclusiveCnt++
			}
			if i < len(job.Alloc.MemoryAlloc) {
				ncr.AllocMemory += job.Alloc.MemoryAlloc[i]
			}
			if err := cr.gresService.Alloc(job.Gres, gres.NodeGres{}, ncr.Gres); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "job %d: gres alloc on node %d", job.JobID, nodeIdx))
			}
			pc := partCRFor(ncr, job.Partition)
			pc.TotJobCnt++
		}

		if job.IsRunning() {
			pc := partCRFor(ncr, job.Partition)
			pc.RunJobCnt++
		}
	}

	if modeAll {
		cr.AddTot(job.JobID)
	}
	if job.IsRunning() {
		cr.AddRun(job.JobID)
	}

	return errs.ErrorOrNil()
}

// CommitAlloc builds an AllocRecord for job from the selected node bitmap
// and commits its full footprint to the registry (spec.md §4.6
// commit_alloc).
func CommitAlloc(cr *CRState, job *JobRecord, nodes []*NodeRecord, selected *bitmap.Bitmap, fastSchedule bool) error {
	if selected == nil || selected.IsEmpty() {
		return errors.Wrap(ErrInvalidArgs, "commit_alloc: empty node set")
	}
	job.Alloc = buildAllocRecord(job, nodes, selected, fastSchedule)
	job.NodeBitmap = selected.Clone()
	job.TotalCPUs = job.Alloc.NCPUs
	return commitAllocBookkeeping(cr, job, true)
}

// releaseAllocBookkeeping is the inverse of commitAllocBookkeeping.
// modeRemoveAll mirrors PreemptMode.ReleaseAll: true releases memory,
// exclusive-use, GRES, and both counters; false (a suspend) releases only
// the run-side counters. Run-side counters are released only when the job
// was in the run set; a job absent from the total set yields
// ErrNoResources and nothing is released.
func releaseAllocBookkeeping(cr *CRState, job *JobRecord, modeRemoveAll bool) error {
	if job.Alloc == nil || job.Alloc.Nodes == nil {
		return errors.Wrap(ErrNoResources, "release_alloc")
	}
	if !cr.TestTot(job.JobID) {
		return errors.Wrapf(ErrNoResources, "release_alloc: job %d not in total set", job.JobID)
	}
	isRunning := cr.RemRun(job.JobID)

	var errs *multierror.Error
	idx := job.Alloc.Nodes.List()
	exclusive := job.Details.Shared == 0

	for i, nodeIdx := range idx {
		if nodeIdx < 0 || nodeIdx >= len(cr.Nodes) {
			errs = multierror.Append(errs, errors.Wrapf(ErrInconsistentState, "job %d: node index %d out of range", job.JobID, nodeIdx))
			continue
		}
		ncr := &cr.Nodes[nodeIdx]
		pc := ncr.find(job.Partition)

		if isRunning && pc != nil && pc.RunJobCnt > 0 {
			pc.RunJobCnt--
		} else if isRunning && pc != nil {
			cr.logClamp(false, "release_alloc: job %d run_job_cnt underflow on node %d", job.JobID, nodeIdx)
		}

		if modeRemoveAll {
			if exclusive {
				if ncr.ExclusiveCnt > 0 {
					ncr.ExclusiveCnt--
				} else {
					cr.logClamp(false, "release_alloc: job %d exclusive_cnt underflow on node %d", job.JobID, nodeIdx)
				}
			}
			if i < len(job.Alloc.MemoryAlloc) {
				if ncr.AllocMemory >= job.Alloc.MemoryAlloc[i] {
					ncr.AllocMemory -= job.Alloc.MemoryAlloc[i]
				} else {
					cr.logClamp(true, "release_alloc: job %d alloc_memory underflow on node %d", job.JobID, nodeIdx)
					ncr.AllocMemory = 0
				}
			}
			if err := cr.gresService.Dealloc(job.Gres, gres.NodeGres{}, ncr.Gres); err != nil {
				errs = multierror.Append(errs, errors.Wrapf(err, "job %d: gres dealloc on node %d", job.JobID, nodeIdx))
			}
			if pc != nil {
				if pc.TotJobCnt > 0 {
					pc.TotJobCnt--
				} else {
					cr.logClamp(false, "release_alloc: job %d tot_job_cnt underflow on node %d", job.JobID, nodeIdx)
				}
			}
		}
	}

	if modeRemoveAll {
		cr.RemTot(job.JobID)
	}

	return errs.ErrorOrNil()
}

// ReleaseAlloc releases job's resources from the registry. When
// modeRemoveAll is false only run-side accounting is released (spec.md
// §4.7 job_suspend); the AllocRecord is kept intact so job_resume can
// reconstitute run-side accounting later. When true the AllocRecord is
// discarded entirely.
func ReleaseAlloc(cr *CRState, job *JobRecord, modeRemoveAll bool) error {
	if err := releaseAllocBookkeeping(cr, job, modeRemoveAll); err != nil {
		return err
	}
	if modeRemoveAll {
		job.Alloc = nil
		job.NodeBitmap = nil
	}
	return nil
}

// ReleaseOneNode shrinks a running job's allocation by a single node
// (spec.md §4.6 release_one_node, used by job_resized to hand a node
// back without tearing down the whole allocation).
func ReleaseOneNode(cr *CRState, job *JobRecord, nodeIdx int) error {
	if job.Alloc == nil || job.Alloc.Nodes == nil || !job.Alloc.Nodes.IsSet(nodeIdx) {
		return errors.Wrapf(ErrInvalidArgs, "release_one_node: job %d does not hold node %d", job.JobID, nodeIdx)
	}

	hostPos := -1
	for i, n := range job.Alloc.Nodes.List() {
		if n == nodeIdx {
			hostPos = i
			break
		}
	}

	if nodeIdx >= 0 && nodeIdx < len(cr.Nodes) {
		ncr := &cr.Nodes[nodeIdx]
		exclusive := job.Details.Shared == 0
		pc := ncr.find(job.Partition)
		if pc != nil {
			if job.IsRunning() && pc.RunJobCnt > 0 {
				pc.RunJobCnt--
			}
			if pc.TotJobCnt > 0 {
				pc.TotJobCnt--
			}
		}
		if exclusive && ncr.ExclusiveCnt > 0 {
			ncr.ExclusiveCnt--
		}
		if hostPos >= 0 && hostPos < len(job.Alloc.MemoryAlloc) {
			if ncr.AllocMemory >= job.Alloc.MemoryAlloc[hostPos] {
				ncr.AllocMemory -= job.Alloc.MemoryAlloc[hostPos]
			} else {
				ncr.AllocMemory = 0
			}
		}
		if err := cr.gresService.Dealloc(job.Gres, gres.NodeGres{}, ncr.Gres); err != nil {
			return errors.Wrapf(err, "release_one_node: job %d node %d", job.JobID, nodeIdx)
		}
	}

	job.Alloc.Nodes.Clear(nodeIdx)
	if job.NodeBitmap != nil {
		job.NodeBitmap.Clear(nodeIdx)
	}
	if hostPos >= 0 {
		if hostPos < len(job.Alloc.Cpus) {
			job.TotalCPUs -= job.Alloc.Cpus[hostPos]
			job.Alloc.Cpus = append(job.Alloc.Cpus[:hostPos], job.Alloc.Cpus[hostPos+1:]...)
		}
		if hostPos < len(job.Alloc.MemoryAlloc) {
			job.Alloc.MemoryAlloc = append(job.Alloc.MemoryAlloc[:hostPos], job.Alloc.MemoryAlloc[hostPos+1:]...)
		}
		if hostPos < len(job.Alloc.CpusUsed) {
			job.Alloc.CpusUsed = append(job.Alloc.CpusUsed[:hostPos], job.Alloc.CpusUsed[hostPos+1:]...)
		}
		if hostPos < len(job.Alloc.MemoryUsed) {
			job.Alloc.MemoryUsed = append(job.Alloc.MemoryUsed[:hostPos], job.Alloc.MemoryUsed[hostPos+1:]...)
		}
	}
	job.Alloc.NHosts--
	job.Alloc.NodeList = job.Alloc.Nodes.String()
	delete(job.Alloc.coreBitmaps, nodeIdx)

	return nil
}

// JobExpand merges src's allocation into dst and tears src down
// entirely, refusing the merge if either job requested GRES (spec.md
// §4.6 job_expand: "GRES accounting does not support merged jobs").
func JobExpand(cr *CRState, dst, src *JobRecord, nodes []*NodeRecord, fastSchedule bool) error {
	if dst == src {
		return errors.Wrap(ErrInvalidArgs, "job_expand: self-merge")
	}
	if len(dst.Gres.Request) > 0 || len(src.Gres.Request) > 0 {
		return ErrExpandGRES
	}
	if dst.Alloc == nil || src.Alloc == nil {
		return errors.Wrap(ErrInvalidArgs, "job_expand: both jobs must be allocated")
	}

	srcNodes := src.Alloc.Nodes.Clone()
	if err := ReleaseAlloc(cr, src, true); err != nil {
		return errors.Wrap(err, "job_expand: releasing donor job")
	}

	merged := dst.Alloc.Nodes.Or(srcNodes)
	if err := ReleaseAlloc(cr, dst, true); err != nil {
		return errors.Wrap(err, "job_expand: re-committing receiving job")
	}
	return CommitAlloc(cr, dst, nodes, merged, fastSchedule)
}
