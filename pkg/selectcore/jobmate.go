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

import "github.com/jamestiotio/selectcore/pkg/bitmap"

var jobMateLog = flatLog // shares the flat selector's log source; same package concern

// FindJobMate looks for a single already-running job whose footprint can
// be reused wholesale for job, short-circuiting the (potentially much
// more expensive) best-fit selectors (spec.md §4.5 find_job_mate). It is
// a best-effort heuristic: a miss is not an error, just a nil bitmap.
func FindJobMate(job *JobRecord, candidate *bitmap.Bitmap, running []*JobRecord, minNodes, maxNodes, reqNodes int) *bitmap.Bitmap {
	required := job.Details.ReqNodes
	excluded := job.Details.ExcNodes

	for _, scan := range running {
		if !scan.IsRunning() {
			continue
		}
		if scan.NodeBitmap == nil || scan.NodeBitmap.Count() != reqNodes {
			continue
		}
		if scan.TotalCPUs < job.Details.MinCPUs {
			continue
		}
		if !candidate.IsSuperset(scan.NodeBitmap) {
			continue
		}
		if scan.Details.Contiguous != job.Details.Contiguous {
			continue
		}
		if required != nil && !required.IsEmpty() && !scan.NodeBitmap.IsSuperset(required) {
			continue
		}
		if excluded != nil && scan.NodeBitmap.Overlaps(excluded) {
			continue
		}

		jobMateLog.Debug("find_job_mate: job %d mates with job %d on %s", job.JobID, scan.JobID, scan.NodeBitmap)
		job.TotalCPUs = scan.TotalCPUs
		return scan.NodeBitmap.Clone()
	}

	return nil
}
