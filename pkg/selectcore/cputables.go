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
	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

// cpuTables computes, for every node index set in candidate, the
// procs_oracle-provided available CPU count and the node's raw total CPU
// count. Both selectors need this split: "available CPUs" drives demand
// satisfaction, "total CPUs" is what gets reported back as job.TotalCPUs
// (spec.md §4.3 commit rule).
func cpuTables(candidate *bitmap.Bitmap, job *JobRecord, nodes []*NodeRecord, oracle procs.Oracle, fastSchedule bool) (avail, total map[int]int) {
	if oracle == nil {
		oracle = procs.NewReference()
	}
	idxList := candidate.List()
	avail = make(map[int]int, len(idxList))
	total = make(map[int]int, len(idxList))
	for _, idx := range idxList {
		if idx >= len(nodes) {
			continue
		}
		n := nodes[idx]
		t := n.EffectiveCPUs(fastSchedule)
		total[idx] = t
		avail[idx] = oracle.AvailableCPUs(procs.Request{
			CPUsPerTask:   job.Details.CPUsPerTask,
			NTasksPerNode: job.Details.NTasksPerNode,
			MinCPUs:       job.Details.EffectiveMinCPUs(),
		}, procs.HW{CPUs: t, Sockets: n.Configured.Sockets, Cores: n.Configured.Cores, Threads: n.Configured.Threads})
	}
	return avail, total
}
