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
	"encoding/binary"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

// nodeInfoMagic is the fixed 16-bit magic every unpacked NodeInfo carries
// (spec.md §6 wire format).
const nodeInfoMagic = 0x82ad

// NodeInfo is the only bit-exact wire surface the core defines: a single
// packed 16-bit alloc_cpus count per node (spec.md §6).
type NodeInfo struct {
	magic     uint16
	AllocCPUs uint16
}

// NewNodeInfo allocates a NodeInfo carrying the fixed magic, mirroring the
// original's unpack-time allocation.
func NewNodeInfo(allocCPUs uint16) *NodeInfo {
	return &NodeInfo{magic: nodeInfoMagic, AllocCPUs: allocCPUs}
}

// Pack encodes n's alloc_cpus as two big-endian bytes.
func (n *NodeInfo) Pack() []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, n.AllocCPUs)
	return buf
}

// UnpackNodeInfo decodes a packed alloc_cpus field into a freshly
// allocated NodeInfo stamped with the fixed magic.
func UnpackNodeInfo(data []byte) (*NodeInfo, error) {
	if len(data) < 2 {
		return nil, ErrInvalidArgs
	}
	return NewNodeInfo(binary.BigEndian.Uint16(data)), nil
}

// Free validates the magic before releasing a NodeInfo, returning
// ErrInvalidArgs on a missing or corrupt magic (spec.md §6).
func (n *NodeInfo) Free() error {
	if n.magic != nodeInfoMagic {
		return ErrInvalidArgs
	}
	n.magic = 0
	return nil
}

// NodeInfoSetAll computes alloc_cpus for every node: the node's effective
// CPU count while ALLOCATED or COMPLETING, else 0 (spec.md §6
// nodeinfo_set_all).
func NodeInfoSetAll(nodes []*NodeRecord, fastSchedule bool) []*NodeInfo {
	out := make([]*NodeInfo, len(nodes))
	for i, n := range nodes {
		var cpus uint16
		if n.State.Has(NodeAllocated) || n.State.Has(NodeCompleting) {
			cpus = uint16(n.EffectiveCPUs(fastSchedule))
		}
		out[i] = NewNodeInfo(cpus)
	}
	return out
}

// ResvTest picks node_cnt nodes for a reservation out of avail using the
// same topology best-fit skeleton as the topology-aware selector, but with
// no CPU demand -- node count is the only constraint (spec.md §6
// resv_test).
func ResvTest(switches []*SwitchRecord, avail *bitmap.Bitmap, nodeCnt int) (*bitmap.Bitmap, error) {
	placeholder := &JobRecord{Details: JobDetails{MinNodes: nodeCnt}}
	if len(switches) == 0 {
		if avail.Count() < nodeCnt {
			return nil, ErrNoFit
		}
		return avail.PickN(nodeCnt), nil
	}

	sel, _, err := TopoSelect(switches, avail, placeholder, nil, zeroOracle{}, false, nodeCnt, avail.Size(), nodeCnt)
	if err != nil {
		return nil, err
	}
	return sel, nil
}

// zeroOracle reports zero available CPUs for every request; ResvTest uses
// it because a reservation carries no CPU demand, and cpuTables would
// otherwise fall back to the full-capacity reference oracle.
type zeroOracle struct{}

func (zeroOracle) AvailableCPUs(req procs.Request, hw procs.HW) int { return 0 }
