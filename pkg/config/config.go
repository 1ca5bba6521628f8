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

// Package config carries the process-wide configuration flags named in
// the core's data model: select_fast_schedule and cr_type, plus two
// RUN_NOW share/suspend stepping fields. Of these, pkg/selectcore reads
// only SelectFastSchedule. Loading follows the
// same sigs.k8s.io/yaml-based shape as
// github.com/intel/cri-resource-manager/pkg/config.
package config

import (
	"os"

	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"
)

// CRType enumerates which consumable-resource accounting is selected
// (spec.md §3). The registry does not read it: per-node memory is
// accounted and filtered on whatever value is configured.
type CRType uint32

const (
	// CRNone names the configuration with no memory-aware accounting.
	CRNone CRType = 0
	// CRMemory names the configuration with per-node memory accounting.
	CRMemory CRType = 1 << iota
)

// NoShareLimit is the sentinel meaning "no sharing cap configured"
// (spec.md §9, NO_SHARE_LIMIT = 0xFFFE).
const NoShareLimit = 0xFFFE

// Flags holds the process-wide configuration consumed by the core.
type Flags struct {
	// SelectFastSchedule, when true, directs the core to read CPU/memory
	// from configured (not live) node attributes.
	SelectFastSchedule bool `json:"select_fast_schedule"`
	// CRType records which consumable-resource accounting is configured;
	// the core does not consult it (see CRType).
	CRType CRType `json:"cr_type"`
	// MaxShareSteps is loaded from max_share_steps. The planner does not
	// read it: its outer max_run_job loop is bounded by the job
	// partition's max_share.
	MaxShareSteps int `json:"max_share_steps"`
	// SuspendJobStep is loaded from suspend_job_step. The planner does
	// not read it: its inner sus_jobs steps are the fixed values 0 and 4.
	SuspendJobStep int `json:"suspend_job_step"`
}

// Default returns the zero-value-safe default configuration.
func Default() *Flags {
	return &Flags{
		SelectFastSchedule: false,
		CRType:             CRMemory,
		MaxShareSteps:      0,
		SuspendJobStep:     4,
	}
}

// Load reads and unmarshals a YAML configuration file into a Flags,
// seeded with Default() so a partial file is still usable.
func Load(path string) (*Flags, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read configuration file %q", path)
	}
	f := Default()
	if err := yaml.Unmarshal(raw, f); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal configuration from %q", path)
	}
	return f, nil
}

// MemPerCPU is the high bit of a per-node memory field marking it as a
// per-CPU (rather than per-node) request (spec.md §6, §9).
const MemPerCPU uint64 = 1 << 63

// SplitMemSpec decodes a raw per-node memory field into its numeric value
// and the per-CPU flag.
func SplitMemSpec(raw uint64) (value uint64, perCPU bool) {
	return raw &^ MemPerCPU, raw&MemPerCPU != 0
}

// MakeMemSpec encodes a numeric memory value and the per-CPU flag into the
// wire representation used by JobRecord.Details.
func MakeMemSpec(value uint64, perCPU bool) uint64 {
	if perCPU {
		return value | MemPerCPU
	}
	return value &^ MemPerCPU
}
