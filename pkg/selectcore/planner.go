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
	"math"
	"sort"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/log"
	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

var plannerLog = log.Get("planner")

// PreemptCandidate pairs a running/suspended job eligible for preemption
// with the release style its preempt mode implies (spec.md glossary
// "Preemptable").
type PreemptCandidate struct {
	Job  *JobRecord
	Mode PreemptMode
}

// PlanResult is what job_test reports back to the caller on success
// (spec.md §6 job_test).
type PlanResult struct {
	Bitmap     *bitmap.Bitmap
	TotalCPUs  int
	StartTime  int64
	Preemptees []*JobRecord
}

// PlanParams bundles the read-only collaborators every planner mode needs;
// it exists purely to keep the exported entry points' signatures short.
type PlanParams struct {
	Nodes        []*NodeRecord
	Switches     []*SwitchRecord
	Oracle       procs.Oracle
	FastSchedule bool
	MinNodes     int
	MaxNodes     int
	ReqNodes     int
	MaxShare     int
	Running      []*JobRecord
}

func runSelect(cr *CRState, job *JobRecord, candidate *bitmap.Bitmap, p *PlanParams) (*bitmap.Bitmap, int, error) {
	if len(p.Switches) > 0 {
		return TopoSelect(p.Switches, candidate, job, p.Nodes, p.Oracle, p.FastSchedule, p.MinNodes, p.MaxNodes, p.ReqNodes)
	}
	return FlatSelect(candidate, job, p.Nodes, p.Oracle, p.FastSchedule, p.MinNodes, p.MaxNodes, p.ReqNodes)
}

// TestOnly answers "is there any conceivable allocation", ignoring memory
// headroom and sharing caps, and using total (not allocated) GRES capacity
// (spec.md §4.7 TEST_ONLY). It never mutates cr or job.Details.
func TestOnly(cr *CRState, job *JobRecord, candidate *bitmap.Bitmap, p *PlanParams) (*PlanResult, error) {
	filtered, count := CountAvailable(cr, p.Nodes, job, candidate, math.MaxUint32, math.MaxUint32, ModeTestOnly)
	if count < p.MinNodes {
		return nil, ErrNoFit
	}

	savedMem := job.Details.MemSpec
	job.Details.MemSpec = 0
	sel, totalCPUs, err := runSelect(cr, job, filtered, p)
	job.Details.MemSpec = savedMem
	if err != nil {
		return nil, err
	}
	return &PlanResult{Bitmap: sel, TotalCPUs: totalCPUs}, nil
}

// RunNow attempts immediate placement, escalating the sharing caps it is
// willing to tolerate, then falling back to preemption of the supplied
// candidates (spec.md §4.7 RUN_NOW).
func RunNow(cr *CRState, job *JobRecord, candidate *bitmap.Bitmap, p *PlanParams, preemptable []PreemptCandidate) (*PlanResult, error) {
	sel, totalCPUs, err := tryRunNow(cr, job, candidate, p)
	if err == nil {
		return &PlanResult{Bitmap: sel, TotalCPUs: totalCPUs}, nil
	}

	if len(preemptable) == 0 {
		return nil, ErrNoFit
	}

	clone := cr.Clone()
	defer clone.Free()

	var removed []*JobRecord
	for _, cand := range preemptable {
		if err := releaseAllocBookkeeping(clone, cand.Job, cand.Mode.ReleaseAll()); err != nil {
			plannerLog.Debug("run_now: preempting job %d: %v", cand.Job.JobID, err)
		}
		removed = append(removed, cand.Job)

		filtered, count := CountAvailable(clone, p.Nodes, job, candidate, uint32(p.MaxShare), math.MaxUint32, ModeRunNow)
		if count < p.MinNodes {
			continue
		}
		sel, totalCPUs, err := runSelect(clone, job, filtered, p)
		if err != nil {
			continue
		}
		return &PlanResult{Bitmap: sel, TotalCPUs: totalCPUs, Preemptees: overlapping(removed, sel)}, nil
	}

	return nil, ErrNoFit
}

// tryRunNow is the caps-escalation loop shared by RunNow and WillRun's
// immediate-placement attempt: outer max_run_job climbs from 0 to
// MaxShare, inner sus_jobs steps 0, 4 except on the final outer iteration
// where it jumps to unbounded (spec.md §4.7 RUN_NOW).
func tryRunNow(cr *CRState, job *JobRecord, candidate *bitmap.Bitmap, p *PlanParams) (*bitmap.Bitmap, int, error) {
	prevCount := -1
	for runCap := 0; runCap <= p.MaxShare; runCap++ {
		susSteps := []uint32{0, 4}
		if runCap == p.MaxShare {
			susSteps = []uint32{math.MaxUint32 - uint32(runCap)}
		}
		for _, sus := range susSteps {
			totCap := uint32(runCap) + sus
			filtered, count := CountAvailable(cr, p.Nodes, job, candidate, uint32(runCap), totCap, ModeRunNow)
			if count <= prevCount || count < p.MinNodes {
				continue
			}
			prevCount = count

			var sel *bitmap.Bitmap
			if runCap > 0 {
				sel = FindJobMate(job, filtered, p.Running, p.MinNodes, p.MaxNodes, p.ReqNodes)
			}
			if sel != nil {
				return sel, job.TotalCPUs, nil
			}

			sel, totalCPUs, err := runSelect(cr, job, filtered, p)
			if err == nil {
				return sel, totalCPUs, nil
			}
		}
	}
	return nil, 0, ErrNoFit
}

// overlapping returns the subset of removed whose committed node bitmap
// overlaps the final selection (spec.md §4.7: "the list of preemptee jobs
// whose nodes actually overlap the final bitmap").
func overlapping(removed []*JobRecord, sel *bitmap.Bitmap) []*JobRecord {
	var out []*JobRecord
	for _, j := range removed {
		if j.NodeBitmap != nil && j.NodeBitmap.Overlaps(sel) {
			out = append(out, j)
		}
	}
	return out
}

// WillRun answers "when can this job run", trying immediate placement
// first, then releasing all of preemptable as "must-preempt-now", then
// falling back to simulating the natural termination of the remaining
// (non-preemptable) running/suspended jobs in ascending end-time order
// (spec.md §4.7 WILL_RUN; grounded on select_linear.c's _will_run_test).
func WillRun(cr *CRState, job *JobRecord, candidate *bitmap.Bitmap, p *PlanParams, preemptable []PreemptCandidate, now int64) (*PlanResult, error) {
	immediate := *p
	immediate.MaxShare = p.MaxShare - 1
	if immediate.MaxShare < 0 {
		immediate.MaxShare = 0
	}
	sel, totalCPUs, err := tryRunNow(cr, job, candidate, &immediate)
	if err == nil {
		return &PlanResult{Bitmap: sel, TotalCPUs: totalCPUs, StartTime: now}, nil
	}

	clone := cr.Clone()
	defer clone.Free()

	preempted := make(map[uint32]bool, len(preemptable))
	var removed []*JobRecord
	for _, cand := range preemptable {
		preempted[cand.Job.JobID] = true
		if err := releaseAllocBookkeeping(clone, cand.Job, cand.Mode.ReleaseAll()); err != nil {
			plannerLog.Debug("will_run: preempting job %d: %v", cand.Job.JobID, err)
		}
		removed = append(removed, cand.Job)
	}
	if filtered, count := CountAvailable(clone, p.Nodes, job, candidate, uint32(p.MaxShare), math.MaxUint32, ModeRunNow); count >= p.MinNodes {
		if sel, totalCPUs, err := runSelect(clone, job, filtered, p); err == nil {
			return &PlanResult{
				Bitmap:     sel,
				TotalCPUs:  totalCPUs,
				StartTime:  now + 1,
				Preemptees: overlapping(removed, sel),
			}, nil
		}
	}

	var future []*JobRecord
	for _, cand := range p.Running {
		if preempted[cand.JobID] || !cand.IsRunning() {
			continue
		}
		if cand.EndTime <= 0 {
			continue // zero end_time is an error; the job is skipped as a termination candidate
		}
		future = append(future, cand)
	}
	sort.Slice(future, func(i, j int) bool { return future[i].EndTime < future[j].EndTime })

	for _, cand := range future {
		if err := releaseAllocBookkeeping(clone, cand, true); err != nil {
			plannerLog.Debug("will_run: awaiting natural termination of job %d: %v", cand.JobID, err)
		}
		removed = append(removed, cand)

		filtered, count := CountAvailable(clone, p.Nodes, job, candidate, uint32(p.MaxShare), math.MaxUint32, ModeRunNow)
		if count < p.MinNodes {
			continue
		}
		sel, totalCPUs, err := runSelect(clone, job, filtered, p)
		if err != nil {
			continue
		}
		startTime := cand.EndTime
		if startTime <= now {
			startTime = now + 1
		}
		return &PlanResult{
			Bitmap:     sel,
			TotalCPUs:  totalCPUs,
			StartTime:  startTime,
			Preemptees: overlapping(removed, sel),
		}, nil
	}

	return nil, ErrNoFit
}
