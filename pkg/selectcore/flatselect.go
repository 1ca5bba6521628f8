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
	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

var flatLog = log.Get("flatselect")

// EnoughNodes is the enough-nodes predicate named throughout spec.md §4.3
// and §4.4: avail >= (req>min ? rem+min-req : rem).
func EnoughNodes(avail, rem, min, req int) bool {
	if req > min {
		return avail >= rem+min-req
	}
	return avail >= rem
}

// consecRun is a maximal interval of candidate node indices (spec.md §4.3
// glossary "Consecutive run").
type consecRun struct {
	start, end    int
	nodeCount     int
	cpuSum        int
	firstRequired int // node index of first required bit in this run, -1 if none
}

func (r *consecRun) sufficient(remCPUs, remNodes, minNodes, reqNodes int) bool {
	return r.cpuSum >= remCPUs && EnoughNodes(r.nodeCount, remNodes, minNodes, reqNodes)
}

// preferRun reports whether a is strictly preferred over b under the
// tie-break order of spec.md §4.3: (a) required-carrying beats not,
// (b) sufficient beats insufficient, (c) tightest cpu sum among
// sufficient runs, (d) largest cpu sum among insufficient runs.
func preferRun(a, b *consecRun, remCPUs, remNodes, minNodes, reqNodes int) bool {
	aReq, bReq := a.firstRequired != -1, b.firstRequired != -1
	if aReq != bReq {
		return aReq
	}
	aSuff := a.sufficient(remCPUs, remNodes, minNodes, reqNodes)
	bSuff := b.sufficient(remCPUs, remNodes, minNodes, reqNodes)
	if aSuff != bSuff {
		return aSuff
	}
	if aSuff {
		return a.cpuSum < b.cpuSum
	}
	return a.cpuSum > b.cpuSum
}

// FlatSelect is the flat, one-dimensional best-fit selector (spec.md
// §4.3). It scans candidate in node-index order, partitions it into
// maximal consecutive runs, and iteratively commits the best-fit run
// until CPU and node demand is satisfied.
func FlatSelect(candidate *bitmap.Bitmap, job *JobRecord, nodes []*NodeRecord, oracle procs.Oracle, fastSchedule bool, minNodes, maxNodes, reqNodes int) (*bitmap.Bitmap, int, error) {
	if oracle == nil {
		oracle = procs.NewReference()
	}

	if candidate.Count() < minNodes {
		return nil, 0, ErrNoFit
	}

	required := job.Details.ReqNodes
	if required != nil && !candidate.IsSuperset(required) {
		return nil, 0, ErrNoFit
	}

	idxList := candidate.List()
	availCPU, totalCPU := cpuTables(candidate, job, nodes, oracle, fastSchedule)

	output := candidate.Clone()
	remCPUs := job.Details.EffectiveMinCPUs()
	remNodes := reqNodes
	if minNodes > remNodes {
		remNodes = minNodes
	}
	remMaxNodes := maxNodes
	totalAccum := 0

	var runs []*consecRun
	var cur *consecRun
	prev := -2
	for _, idx := range idxList {
		if idx != prev+1 {
			cur = &consecRun{start: idx, end: idx, firstRequired: -1}
			runs = append(runs, cur)
		} else {
			cur.end = idx
		}
		prev = idx

		isRequired := required != nil && required.IsSet(idx)
		if isRequired {
			remNodes--
			remCPUs -= availCPU[idx]
			remMaxNodes--
			totalAccum += totalCPU[idx]
			if cur.firstRequired == -1 {
				cur.firstRequired = idx
			}
		} else {
			output.Clear(idx)
			cur.nodeCount++
			cur.cpuSum += availCPU[idx]
		}
	}

	if job.Details.Contiguous && required != nil && !required.IsEmpty() {
		carriers := 0
		for _, r := range runs {
			if r.firstRequired != -1 {
				carriers++
			}
		}
		if carriers > 1 {
			return nil, 0, ErrNoFit
		}
	}

	commit := func(r *consecRun) {
		if remMaxNodes <= 0 || (remNodes <= 0 && remCPUs <= 0) {
			return
		}
		setIdx := func(i int) bool {
			if output.IsSet(i) {
				return false
			}
			if remMaxNodes <= 0 {
				return true
			}
			output.Set(i)
			remCPUs -= availCPU[i]
			remNodes--
			remMaxNodes--
			totalAccum += totalCPU[i]
			return remMaxNodes == 0 || (remNodes <= 0 && remCPUs <= 0)
		}
		if r.firstRequired != -1 {
			stop := false
			for i := r.firstRequired; i <= r.end && !stop; i++ {
				stop = setIdx(i)
			}
			if !stop {
				for i := r.firstRequired - 1; i >= r.start && !stop; i-- {
					stop = setIdx(i)
				}
			}
		} else {
			for i := r.start; i <= r.end; i++ {
				if setIdx(i) {
					break
				}
			}
		}
	}

	for {
		var best *consecRun
		for _, r := range runs {
			if r.nodeCount <= 0 {
				continue
			}
			if best == nil || preferRun(r, best, remCPUs, remNodes, minNodes, reqNodes) {
				best = r
			}
		}
		if best == nil {
			break
		}

		if job.Details.Contiguous {
			if !best.sufficient(remCPUs, remNodes, minNodes, reqNodes) {
				return nil, 0, ErrNoFit
			}
			commit(best)
			best.cpuSum, best.nodeCount = 0, 0
			flatLog.Debug("flat selector: job %d satisfied by contiguous run [%d,%d]", job.JobID, best.start, best.end)
			return output, totalAccum, nil
		}

		commit(best)
		best.cpuSum, best.nodeCount = 0, 0

		if remCPUs <= 0 && remNodes <= 0 {
			flatLog.Debug("flat selector: job %d satisfied => %s", job.JobID, output)
			return output, totalAccum, nil
		}
	}

	if remCPUs <= 0 && EnoughNodes(0, remNodes, minNodes, reqNodes) {
		return output, totalAccum, nil
	}
	return nil, 0, ErrNoFit
}
