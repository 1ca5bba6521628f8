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

package gres_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/selectcore/pkg/selectcore/gres"
)

func TestTestNoRequest(t *testing.T) {
	svc := gres.NewReference()
	bound := svc.Test(gres.JobGres{}, gres.NodeGres{}, nil, false)
	require.Equal(t, gres.NoGresRequired, bound)
}

func TestTestSufficientAndInsufficient(t *testing.T) {
	svc := gres.NewReference()
	node := gres.NodeGres{Total: map[string]int{"gpu": 2}}
	job := gres.JobGres{Request: map[string]int{"gpu": 1}}
	snap := &gres.Snapshot{Allocated: map[string]int{"gpu": 1}}

	require.Equal(t, gres.Unbounded, svc.Test(job, node, snap, false))

	snap.Allocated["gpu"] = 2
	require.Equal(t, 0, svc.Test(job, node, snap, false))

	require.Equal(t, gres.Unbounded, svc.Test(job, node, snap, true))
}

func TestAllocDeallocRoundTrip(t *testing.T) {
	svc := gres.NewReference()
	snap := svc.Dup(nil)
	job := gres.JobGres{Request: map[string]int{"gpu": 2}}
	node := gres.NodeGres{Total: map[string]int{"gpu": 4}}

	require.NoError(t, svc.Alloc(job, node, snap))
	require.Equal(t, 2, snap.Allocated["gpu"])

	require.NoError(t, svc.Dealloc(job, node, snap))
	require.Equal(t, 0, snap.Allocated["gpu"])
}

func TestDeallocClampsAtZero(t *testing.T) {
	svc := gres.NewReference()
	snap := svc.Dup(nil)
	job := gres.JobGres{Request: map[string]int{"gpu": 3}}

	require.NoError(t, svc.Dealloc(job, gres.NodeGres{}, snap))
	require.Equal(t, 0, snap.Allocated["gpu"])
}

func TestDupIsIndependent(t *testing.T) {
	svc := gres.NewReference()
	snap := &gres.Snapshot{Allocated: map[string]int{"gpu": 1}}
	dup := svc.Dup(snap)
	dup.Allocated["gpu"] = 9

	require.Equal(t, 1, snap.Allocated["gpu"])
}

func TestClear(t *testing.T) {
	svc := gres.NewReference()
	snap := &gres.Snapshot{Allocated: map[string]int{"gpu": 5}}
	svc.Clear(snap)
	require.Empty(t, snap.Allocated)
}
