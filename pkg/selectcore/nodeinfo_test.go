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

func TestNodeInfoPackUnpackRoundTrip(t *testing.T) {
	for _, cpus := range []uint16{0, 1, 17, 65535} {
		n := selectcore.NewNodeInfo(cpus)
		got, err := selectcore.UnpackNodeInfo(n.Pack())
		require.NoError(t, err)
		require.Equal(t, n.AllocCPUs, got.AllocCPUs)
	}
}

func TestNodeInfoUnpackRejectsShortBuffer(t *testing.T) {
	_, err := selectcore.UnpackNodeInfo([]byte{0x01})
	require.ErrorIs(t, err, selectcore.ErrInvalidArgs)
}

func TestNodeInfoFreeValidatesMagic(t *testing.T) {
	n := selectcore.NewNodeInfo(4)
	require.NoError(t, n.Free())
	require.ErrorIs(t, n.Free(), selectcore.ErrInvalidArgs, "freeing twice trips the magic check")
}

func TestNodeInfoSetAllReportsAllocatedNodesOnly(t *testing.T) {
	nodes := uniformNodes(3, 8)
	nodes[0].State = selectcore.NodeAllocated
	nodes[1].State = selectcore.NodeCompleting

	infos := selectcore.NodeInfoSetAll(nodes, false)
	require.Len(t, infos, 3)
	require.EqualValues(t, 8, infos[0].AllocCPUs)
	require.EqualValues(t, 8, infos[1].AllocCPUs)
	require.EqualValues(t, 0, infos[2].AllocCPUs)
}

func TestResvTestFlatPicksAnyNNodes(t *testing.T) {
	sel, err := selectcore.ResvTest(nil, bitmap.NewFull(8), 3)
	require.NoError(t, err)
	require.Equal(t, 3, sel.Count())
}

func TestResvTestFlatFailsWhenTooFew(t *testing.T) {
	_, err := selectcore.ResvTest(nil, bitmap.NewFull(2), 3)
	require.ErrorIs(t, err, selectcore.ErrNoFit)
}

func TestResvTestTopologyRestrictsToNodeCount(t *testing.T) {
	switches := twoLeafTree(8)
	sel, err := selectcore.ResvTest(switches, bitmap.NewFull(8), 5)
	require.NoError(t, err)
	require.Equal(t, 5, sel.Count())
}
