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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jamestiotio/selectcore/pkg/bitmap"
	"github.com/jamestiotio/selectcore/pkg/config"
	logger "github.com/jamestiotio/selectcore/pkg/log"
	"github.com/jamestiotio/selectcore/pkg/selectcore"
)

var log = logger.Get("select-core-demo")

func main() {
	configPath := flag.String("config", "", "Path to a YAML configuration file; unset uses built-in defaults.")
	nodeCount := flag.Int("nodes", 8, "Number of synthetic nodes to build.")
	cpusPerNode := flag.Int("cpus-per-node", 4, "CPUs per synthetic node.")
	minNodes := flag.Int("min-nodes", 3, "Job min_nodes.")
	reqNodes := flag.Int("req-nodes", 3, "Job req_nodes.")
	minCPUs := flag.Int("min-cpus", 12, "Job min_cpus.")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load configuration: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	nodes := make([]*selectcore.NodeRecord, *nodeCount)
	for i := range nodes {
		nodes[i] = &selectcore.NodeRecord{
			Index:      i,
			Name:       fmt.Sprintf("node%d", i),
			Configured: selectcore.HWInfo{CPUs: *cpusPerNode, RealMemory: 64 << 30},
			Live:       selectcore.HWInfo{CPUs: *cpusPerNode, RealMemory: 64 << 30},
		}
	}

	partition := &selectcore.PartitionRecord{
		Name:     "default",
		Nodes:    bitmap.NewFull(*nodeCount),
		MaxShare: 1,
	}

	core := selectcore.NewCore(cfg, nil, nil)
	core.NodeInit(nodes, cfg.SelectFastSchedule)
	core.SetPartitions([]*selectcore.PartitionRecord{partition})

	job := &selectcore.JobRecord{
		JobID:     1,
		Partition: partition,
		Details: selectcore.JobDetails{
			MinCPUs:  *minCPUs,
			MinNodes: *minNodes,
		},
	}

	candidate := bitmap.NewFull(*nodeCount)
	result, err := core.JobTest(job, candidate, *minNodes, *nodeCount, *reqNodes, selectcore.ModeRunNow, nil)
	if err != nil {
		log.Error("job_test failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("selected nodes: %s (total_cpus=%d)\n", result.Bitmap, result.TotalCPUs)

	if err := core.JobBegin(job, result.Bitmap); err != nil {
		log.Error("job_begin failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("job %d committed on %s\n", job.JobID, job.NodeBitmap)
}
