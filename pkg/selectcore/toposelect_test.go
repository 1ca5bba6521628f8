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

package selectcore_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/selectcore"
)

// twoLeafTree builds two 4-node leaves under a single covering spine, the
// fixture named in S5.
func twoLeafTree(size int) []*selectcore.SwitchRecord {
	leaf0 := &selectcore.SwitchRecord{Name: "leaf0", Level: 0, Nodes: bitmap.FromSlice(size, []int{0, 1, 2, 3})}
	leaf1 := &selectcore.SwitchRecord{Name: "leaf1", Level: 0, Nodes: bitmap.FromSlice(size, []int{4, 5, 6, 7})}
	spine := &selectcore.SwitchRecord{Name: "spine0", Level: 1, Nodes: bitmap.NewFull(size)}
	return []*selectcore.SwitchRecord{leaf0, leaf1, spine}
}

// S5: the spine is the only switch whose subtree satisfies a 6-node
// demand, so it is chosen over either leaf. Leaf best-fit inside it then
// exhausts one leaf entirely before spilling into the other -- the same
// commit order the flat selector uses for a consecutive run -- rather
// than splitting the demand evenly across leaves.
func TestTopoSelectSpreadsAcrossLeavesUnderSpine(t *testing.T) {
	nodes := uniformNodes(8, 4)
	switches := twoLeafTree(8)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{}}

	sel, _, err := selectcore.TopoSelect(switches, bitmap.NewFull(8), job, nodes, nil, false, 6, 6, 6)
	require.NoError(t, err)
	require.Equal(t, 6, sel.Count())

	inLeaf0 := sel.And(bitmap.FromSlice(8, []int{0, 1, 2, 3})).Count()
	inLeaf1 := sel.And(bitmap.FromSlice(8, []int{4, 5, 6, 7})).Count()
	require.Equal(t, 4, inLeaf0)
	require.Equal(t, 2, inLeaf1)
}

// A single leaf already satisfies a 3-node demand, so the selector must
// not gravitate up to the spine.
func TestTopoSelectPrefersLeafWhenSufficient(t *testing.T) {
	nodes := uniformNodes(8, 4)
	switches := twoLeafTree(8)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{}}

	sel, _, err := selectcore.TopoSelect(switches, bitmap.NewFull(8), job, nodes, nil, false, 3, 3, 3)
	require.NoError(t, err)
	require.Equal(t, 3, sel.Count())

	inLeaf0 := sel.And(bitmap.FromSlice(8, []int{0, 1, 2, 3})).Count()
	inLeaf1 := sel.And(bitmap.FromSlice(8, []int{4, 5, 6, 7})).Count()
	require.True(t, inLeaf0 == 3 || inLeaf1 == 3)
}

// A required node pre-admits and pulls the rest of the demand from its
// own leaf first via Phase 2 gravitation.
func TestTopoSelectGravitatesToRequiredLeaf(t *testing.T) {
	nodes := uniformNodes(8, 4)
	switches := twoLeafTree(8)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{
		ReqNodes: bitmap.FromSlice(8, []int{4}),
	}}

	sel, _, err := selectcore.TopoSelect(switches, bitmap.NewFull(8), job, nodes, nil, false, 3, 3, 3)
	require.NoError(t, err)
	require.True(t, sel.IsSet(4))
	require.Equal(t, 3, sel.And(bitmap.FromSlice(8, []int{4, 5, 6, 7})).Count())
}

func TestTopoSelectFailsWhenDemandExceedsCluster(t *testing.T) {
	nodes := uniformNodes(8, 4)
	switches := twoLeafTree(8)
	job := &selectcore.JobRecord{Details: selectcore.JobDetails{}}

	_, _, err := selectcore.TopoSelect(switches, bitmap.NewFull(8), job, nodes, nil, false, 9, 9, 9)
	require.ErrorIs(t, err, selectcore.ErrNoFit)
}
