// Copyright 2026 fanjia1024
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
	"fmt"

	"github.com/shirou/gopsutil/mem"
	"github.com/spf13/cobra"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
)

// decideOptions 离线判定参数
type decideOptions struct {
	memory      float64
	unsupported bool
	threshold   float64
	policy      string
	override    string // "" | on | off
}

// decideResult decide / probe 的输出
type decideResult struct {
	Decision gate.Decision       `json:"decision"`
	Status   gate.MemoryStatus   `json:"status"`
	Context  gate.EmulationState `json:"context"`
}

func (o decideOptions) signal() gate.MemorySignal {
	if o.unsupported {
		return gate.Unsupported(gate.SourceCapability)
	}
	return gate.Reading(o.memory, gate.SourceCapability)
}

// decide 用一个临时 Gate 计算判定结果
func decide(o decideOptions, sig gate.MemorySignal) (decideResult, error) {
	unsupported, err := gate.ParseUnsupportedPolicy(o.policy)
	if err != nil {
		return decideResult{}, err
	}
	policy, err := gate.NewPolicy(o.threshold, unsupported)
	if err != nil {
		return decideResult{}, err
	}

	g := gate.New(policy)
	d := g.Initialize(sig)
	switch o.override {
	case "":
	case "on":
		d = g.SetManualOverride(true, true)
	case "off":
		d = g.SetManualOverride(true, false)
	default:
		return decideResult{}, fmt.Errorf("--override must be on or off, got %q", o.override)
	}
	return decideResult{Decision: d, Status: policy.Status(d.Signal), Context: gate.StateOf(d)}, nil
}

func addPolicyFlags(cmd *cobra.Command, o *decideOptions) {
	cmd.Flags().Float64Var(&o.threshold, "threshold", gate.DefaultDeviceMemoryLimit, "device memory threshold in GB")
	cmd.Flags().StringVar(&o.policy, "policy", string(gate.Permissive), "decision when memory is unreported: permissive|conservative")
	cmd.Flags().StringVar(&o.override, "override", "", "manual override: on|off")
}

func newDecideCmd() *cobra.Command {
	var o decideOptions
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate the animation gate for a given device memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !o.unsupported && !cmd.Flags().Changed("memory") {
				return fmt.Errorf("either --memory or --unsupported is required")
			}
			res, err := decide(o, o.signal())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Float64Var(&o.memory, "memory", 0, "device memory in GB")
	cmd.Flags().BoolVar(&o.unsupported, "unsupported", false, "treat the client as not reporting device memory")
	addPolicyFlags(cmd, &o)
	return cmd
}

// probeSignal 将主机物理内存按 navigator.deviceMemory 的取值规则换算成信号
func probeSignal(totalBytes uint64) gate.MemorySignal {
	gb := clienthint.RoundDeviceMemory(totalBytes)
	if gb <= 0 {
		return gate.Unsupported(gate.SourceCapability)
	}
	return gate.Reading(gb, gate.SourceCapability)
}

func newProbeCmd() *cobra.Command {
	var o decideOptions
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Decide for this host as a browser capability query would report it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return fmt.Errorf("read host memory: %w", err)
			}
			res, err := decide(o, probeSignal(vm.Total))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	addPolicyFlags(cmd, &o)
	return cmd
}
