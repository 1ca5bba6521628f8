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

// Package gres models the generic-resource (GRES) collaborator that
// spec.md §1 places out of scope: "GRES allocation math — assumed to be
// provided by a gres_service with the operations listed in §6". This
// package defines that service's interface and a deterministic in-memory
// reference implementation good enough to exercise every call site in the
// core; it does not model real device/plugin GRES semantics.
package gres

import "math"

// NoGresRequired is the sentinel CPU bound Test returns when a job makes
// no GRES request at all (spec.md §4.2 step 1).
const NoGresRequired = -1

// Unbounded is returned by Test when GRES availability imposes no
// restriction tighter than the node's own CPU count.
const Unbounded = math.MaxInt32

// NodeGres is an opaque per-node GRES state handle.
type NodeGres struct {
	// Total maps GRES name to the count available on the node.
	Total map[string]int
}

// JobGres is an opaque per-job GRES request.
type JobGres struct {
	// Request maps GRES name to the count requested by the job.
	Request map[string]int
}

// Snapshot is an opaque, deep-copyable GRES allocation state held by a
// NodeCR (spec.md §3: "GRES state handle").
type Snapshot struct {
	Allocated map[string]int
}

// Service is the external collaborator the registry calls into for all
// GRES accounting (spec.md §6).
type Service interface {
	// Test returns a CPU bound the node can support for the given
	// request, or NoGresRequired if job makes no GRES request. If
	// useTotal is set, availability is computed against total GRES
	// capacity rather than the allocated snapshot (TEST_ONLY mode,
	// spec.md §4.2 step 1).
	Test(job JobGres, node NodeGres, snap *Snapshot, useTotal bool) int
	// Alloc records a GRES allocation for a job on a node.
	Alloc(job JobGres, node NodeGres, snap *Snapshot) error
	// Dealloc releases a GRES allocation for a job on a node.
	Dealloc(job JobGres, node NodeGres, snap *Snapshot) error
	// Dup deep-copies a GRES snapshot (used by CRState.Clone, spec.md §4.1).
	Dup(snap *Snapshot) *Snapshot
	// Clear resets a GRES snapshot to empty (used by init_from_world).
	Clear(snap *Snapshot)
}

// reference is the deterministic in-memory Service used when no other
// collaborator is wired in; it tracks allocated-count-per-GRES-name and
// never models device affinity, topology or plugin-specific math.
type reference struct{}

// NewReference returns the in-memory reference GRES service.
func NewReference() Service {
	return reference{}
}

func (reference) Test(job JobGres, node NodeGres, snap *Snapshot, useTotal bool) int {
	if len(job.Request) == 0 {
		return NoGresRequired
	}
	for name, want := range job.Request {
		if want <= 0 {
			continue
		}
		total := node.Total[name]
		have := total
		if !useTotal && snap != nil {
			have = total - snap.Allocated[name]
		}
		if have < want {
			// Insufficient GRES of this kind anywhere on the node: no
			// CPU count can compensate, so the node fails the fit.
			return 0
		}
	}
	return Unbounded
}

func (reference) Alloc(job JobGres, node NodeGres, snap *Snapshot) error {
	if snap.Allocated == nil {
		snap.Allocated = make(map[string]int)
	}
	for name, want := range job.Request {
		snap.Allocated[name] += want
	}
	return nil
}

func (reference) Dealloc(job JobGres, node NodeGres, snap *Snapshot) error {
	if snap.Allocated == nil {
		return nil
	}
	for name, want := range job.Request {
		snap.Allocated[name] -= want
		if snap.Allocated[name] < 0 {
			snap.Allocated[name] = 0
		}
	}
	return nil
}

func (reference) Dup(snap *Snapshot) *Snapshot {
	if snap == nil {
		return &Snapshot{Allocated: make(map[string]int)}
	}
	cp := make(map[string]int, len(snap.Allocated))
	for k, v := range snap.Allocated {
		cp[k] = v
	}
	return &Snapshot{Allocated: cp}
}

func (reference) Clear(snap *Snapshot) {
	if snap != nil {
		snap.Allocated = make(map[string]int)
	}
}
