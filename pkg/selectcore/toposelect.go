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

var topoLog = log.Get("toposelect")

// switchState is the per-switch working state the topology-aware selector
// mutates in place through its six phases (spec.md §4.4).
type switchState struct {
	rec       *SwitchRecord
	bits      *bitmap.Bitmap // remaining, not-yet-admitted candidate nodes under this switch
	cpuSum    int
	nodeCount int
	required  bool
}

// TopoSelect is the topology-aware best-fit selector (spec.md §4.4): it
// organizes nodes by switch, picks the lowest-level switch whose subtree
// satisfies demand with fewest excess nodes, then picks leaves within that
// subtree by best fit.
func TopoSelect(switches []*SwitchRecord, candidate *bitmap.Bitmap, job *JobRecord, nodes []*NodeRecord, oracle procs.Oracle, fastSchedule bool, minNodes, maxNodes, reqNodes int) (*bitmap.Bitmap, int, error) {
	size := candidate.Size()
	availCPU, totalCPU := cpuTables(candidate, job, nodes, oracle, fastSchedule)

	required := job.Details.ReqNodes

	states := make([]*switchState, len(switches))
	availNodes := bitmap.New(size)
	for i, sw := range switches {
		st := &switchState{rec: sw, bits: sw.Nodes.And(candidate)}
		if required != nil {
			st.required = sw.Nodes.Overlaps(required)
		}
		states[i] = st
		availNodes = availNodes.Or(st.bits)
	}

	output := bitmap.New(size)
	remCPUs := job.Details.EffectiveMinCPUs()
	remNodes := reqNodes
	if minNodes > remNodes {
		remNodes = minNodes
	}
	remMaxNodes := maxNodes
	totalAccum := 0

	admit := func(idx int) {
		output.Set(idx)
		availNodes.Clear(idx)
		for _, st := range states {
			st.bits.Clear(idx)
		}
		remCPUs -= availCPU[idx]
		remNodes--
		remMaxNodes--
		totalAccum += totalCPU[idx]
	}

	// Phase 1: required-nodes pre-admit.
	if required != nil && !required.IsEmpty() {
		if !availNodes.IsSuperset(required) {
			return nil, 0, ErrNoFit
		}
		required.ForEachSet(func(idx int) bool {
			admit(idx)
			return true
		})
	}

	satisfied := func() bool {
		return remNodes <= 0 && remCPUs <= 0
	}

	// Phase 2: gravitate around required leaf switches.
	if !satisfied() {
		for _, st := range states {
			if !st.rec.IsLeaf() || !st.required {
				continue
			}
			for _, idx := range st.bits.List() {
				if remMaxNodes <= 0 || satisfied() {
					break
				}
				admit(idx)
			}
			if remMaxNodes <= 0 || satisfied() {
				break
			}
		}
	}

	if satisfied() || remMaxNodes <= 0 {
		topoLog.Debug("topology selector: job %d satisfied by required admission => %s", job.JobID, output)
		if remCPUs <= 0 && EnoughNodes(0, remNodes, minNodes, reqNodes) {
			return output, totalAccum, nil
		}
		return nil, 0, ErrNoFit
	}

	// Phase 3: recompute per-switch CPU sums/node counts from remaining bits.
	for _, st := range states {
		st.nodeCount = st.bits.Count()
		sum := 0
		st.bits.ForEachSet(func(idx int) bool {
			sum += availCPU[idx]
			return true
		})
		st.cpuSum = sum
	}

	// Phase 4: pick the lowest-level switch satisfying demand, tie-break
	// by minimum node count.
	var chosen *switchState
	for _, st := range states {
		if st.cpuSum < remCPUs || !EnoughNodes(st.nodeCount, remNodes, minNodes, reqNodes) {
			continue
		}
		switch {
		case chosen == nil:
			chosen = st
		case st.rec.Level < chosen.rec.Level:
			chosen = st
		case st.rec.Level == chosen.rec.Level && st.nodeCount < chosen.nodeCount:
			chosen = st
		}
	}
	if chosen == nil {
		return nil, 0, ErrNoFit
	}
	topoLog.Debug("topology selector: job %d chooses switch %q (level %d)", job.JobID, chosen.rec.Name, chosen.rec.Level)

	// Phase 5: leaf restriction -- only leaves fully inside the chosen
	// switch's static subtree remain eligible.
	for _, st := range states {
		if !st.rec.IsLeaf() || !chosen.rec.Nodes.IsSuperset(st.rec.Nodes) {
			st.nodeCount = 0
			st.cpuSum = 0
		}
	}

	// Phase 6: leaf best-fit consumption loop.
	for {
		var best *switchState
		for _, st := range states {
			if st.nodeCount <= 0 {
				continue
			}
			if best == nil {
				best = st
				continue
			}
			bestSuff := best.cpuSum >= remCPUs && EnoughNodes(best.nodeCount, remNodes, minNodes, reqNodes)
			stSuff := st.cpuSum >= remCPUs && EnoughNodes(st.nodeCount, remNodes, minNodes, reqNodes)
			switch {
			case stSuff != bestSuff:
				if stSuff {
					best = st
				}
			case stSuff && st.cpuSum < best.cpuSum:
				best = st
			case !stSuff && st.cpuSum > best.cpuSum:
				best = st
			}
		}
		if best == nil {
			break
		}
		for _, idx := range best.bits.List() {
			if remMaxNodes <= 0 || satisfied() {
				break
			}
			if !output.IsSet(idx) {
				admit(idx)
			}
		}
		best.nodeCount, best.cpuSum = 0, 0
		if satisfied() || remMaxNodes <= 0 {
			break
		}
	}

	if remCPUs <= 0 && EnoughNodes(0, remNodes, minNodes, reqNodes) {
		return output, totalAccum, nil
	}
	return nil, 0, ErrNoFit
}
