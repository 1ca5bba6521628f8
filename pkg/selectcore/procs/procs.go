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

// Package procs models the procs_oracle collaborator that spec.md §1
// places out of scope: "CPU/socket/core/thread arithmetic — provided by a
// procs_oracle that given limits, task shapes, and hardware topology
// returns an available-CPU count per node". This package defines that
// oracle's interface and a reference implementation.
package procs

// Request describes the shape the oracle needs to compute an available
// CPU count for a single node.
type Request struct {
	CPUsPerTask   int
	NTasksPerNode int
	MinCPUs       int
}

// HW describes the hardware a node has to offer the oracle.
type HW struct {
	CPUs    int
	Sockets int
	Cores   int
	Threads int
}

// Oracle computes the number of CPUs a node can offer a job, given the
// job's task shape and the node's hardware topology (spec.md §1).
type Oracle interface {
	AvailableCPUs(req Request, hw HW) int
}

// reference is a deterministic, topology-naive Oracle: it simply reports
// the node's full CPU count, since real socket/core/thread packing math is
// explicitly out of scope for this core (spec.md §1).
type reference struct{}

// NewReference returns the in-memory reference procs oracle.
func NewReference() Oracle {
	return reference{}
}

func (reference) AvailableCPUs(req Request, hw HW) int {
	return hw.CPUs
}
