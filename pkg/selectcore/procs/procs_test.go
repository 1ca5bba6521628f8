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

package procs_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jamestiotio/selectcore/pkg/selectcore/procs"
)

func TestReferenceReportsFullCapacity(t *testing.T) {
	oracle := procs.NewReference()
	got := oracle.AvailableCPUs(procs.Request{MinCPUs: 4}, procs.HW{CPUs: 16, Sockets: 2, Cores: 8, Threads: 16})
	require.Equal(t, 16, got)
}
