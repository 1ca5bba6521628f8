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
	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/log"
	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
)

var filterLog = log.Get("filter")

// CountAvailable builds the sub-bitmap of nodes in "in" that can host job
// under the chosen sharing policy, returning both the filtered bitmap and
// its population count (spec.md §4.2 count_available).
func CountAvailable(cr *CRState, nodes []*NodeRecord, job *JobRecord, in *bitmap.Bitmap, runCap, totCap uint32, mode SelectMode) (*bitmap.Bitmap, int) {
	out := bitmap.New(in.Size())
	count := 0

	in.ForEachSet(func(idx int) bool {
		if idx >= len(nodes) || idx >= len(cr.Nodes) {
			return true
		}
		node := nodes[idx]
		ncr := &cr.Nodes[idx]

		cpuCnt := node.EffectiveCPUs(cr.fastSchedule)

		// 1. GRES fit.
		useTotal := mode == ModeTestOnly
		bound := cr.gresService.Test(job.Gres, node.Gres, ncr.Gres, useTotal)
		if bound != gres.NoGresRequired && bound < cpuCnt {
			return true
		}

		// 2. TEST_ONLY accepts once GRES fits, skipping everything below.
		if mode == ModeTestOnly {
			out.Set(idx)
			count++
			return true
		}

		// 3. Memory fit.
		jobMem := job.Details.MemValue()
		if job.Details.PerCPUMem() {
			jobMem *= uint64(cpuCnt)
		}
		if ncr.AllocMemory+jobMem > node.EffectiveMemory(cr.fastSchedule) {
			return true
		}

		// 4. Exclusive-use fit.
		if ncr.ExclusiveCnt > 0 {
			return true
		}

		// 5. Sharing caps.
		var run, tot uint32
		for pc := ncr.Parts(); pc != nil; pc = pc.next {
			run += pc.RunJobCnt
			tot += pc.TotJobCnt
		}
		if run > runCap || tot > totCap {
			return true
		}

		out.Set(idx)
		count++
		return true
	})

	filterLog.Debug("count_available(job=%d, mode=%v, run_cap=%d, tot_cap=%d) => %d/%d nodes",
		job.JobID, mode, runCap, totCap, count, in.Count())

	return out, count
}
