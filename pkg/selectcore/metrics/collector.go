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

// Package metrics exposes the consumable-resource registry as Prometheus
// gauges, the direct analogue of
// github.com/intel/cri-resource-manager/pkg/policycollector exposing
// policy pool occupancy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jamestiotio/selectcore/pkg/selectcore"
)

var (
	allocMemoryDesc = prometheus.NewDesc(
		"selectcore_node_alloc_memory_bytes",
		"Memory currently allocated to jobs on this node.",
		[]string{"node"}, nil,
	)
	exclusiveCntDesc = prometheus.NewDesc(
		"selectcore_node_exclusive_count",
		"Number of exclusive-use jobs holding this node.",
		[]string{"node"}, nil,
	)
	runJobCntDesc = prometheus.NewDesc(
		"selectcore_node_partition_run_job_count",
		"Running job count for this node within a partition.",
		[]string{"node", "partition"}, nil,
	)
	totJobCntDesc = prometheus.NewDesc(
		"selectcore_node_partition_total_job_count",
		"Running-or-suspended job count for this node within a partition.",
		[]string{"node", "partition"}, nil,
	)
)

// NodeCollector reports per-node consumable-resource accounting as
// Prometheus gauges. Each Collect reads a Snapshot (a clone) of the
// Core's registry, taken under the Core's mutex.
type NodeCollector struct {
	core  *selectcore.Core
	nodes []*selectcore.NodeRecord
}

// NewNodeCollector returns a NodeCollector over core's registry,
// labeling gauges with names from nodes (index-aligned with the node
// table the core was initialized with).
func NewNodeCollector(core *selectcore.Core, nodes []*selectcore.NodeRecord) *NodeCollector {
	return &NodeCollector{core: core, nodes: nodes}
}

// Describe implements prometheus.Collector.
func (c *NodeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- allocMemoryDesc
	ch <- exclusiveCntDesc
	ch <- runJobCntDesc
	ch <- totJobCntDesc
}

// Collect implements prometheus.Collector.
func (c *NodeCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.core.Snapshot()
	if snap == nil {
		return
	}
	for i, ncr := range snap.Nodes {
		name := nodeName(c.nodes, i)

		ch <- prometheus.MustNewConstMetric(allocMemoryDesc, prometheus.GaugeValue, float64(ncr.AllocMemory), name)
		ch <- prometheus.MustNewConstMetric(exclusiveCntDesc, prometheus.GaugeValue, float64(ncr.ExclusiveCnt), name)

		for pc := ncr.Parts(); pc != nil; pc = pc.Next() {
			if pc.Partition == nil {
				continue
			}
			ch <- prometheus.MustNewConstMetric(runJobCntDesc, prometheus.GaugeValue, float64(pc.RunJobCnt), name, pc.Partition.Name)
			ch <- prometheus.MustNewConstMetric(totJobCntDesc, prometheus.GaugeValue, float64(pc.TotJobCnt), name, pc.Partition.Name)
		}
	}
}

func nodeName(nodes []*selectcore.NodeRecord, idx int) string {
	if idx >= 0 && idx < len(nodes) && nodes[idx] != nil {
		return nodes[idx].Name
	}
	return "unknown"
}
