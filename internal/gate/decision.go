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

package gate

import "encoding/json"

// Decision 当前是否播放动画的权威答案；EffectiveAllowed 不存储，每次由其余三个字段计算
type Decision struct {
	AutomaticAllowed     bool
	ManualOverrideActive bool
	ManualOverrideValue  bool
	Signal               MemorySignal
}

// EffectiveAllowed 覆盖生效时取覆盖值，否则取自动判定
func (d Decision) EffectiveAllowed() bool {
	return Effective(d.ManualOverrideActive, d.ManualOverrideValue, d.AutomaticAllowed)
}

type decisionJSON struct {
	AutomaticAllowed     bool         `json:"automatic_allowed"`
	ManualOverrideActive bool         `json:"manual_override_active"`
	ManualOverrideValue  bool         `json:"manual_override_value"`
	EffectiveAllowed     bool         `json:"effective_allowed"`
	Signal               MemorySignal `json:"signal"`
}

// MarshalJSON 输出时附带计算出的 effective_allowed
func (d Decision) MarshalJSON() ([]byte, error) {
	return json.Marshal(decisionJSON{
		AutomaticAllowed:     d.AutomaticAllowed,
		ManualOverrideActive: d.ManualOverrideActive,
		ManualOverrideValue:  d.ManualOverrideValue,
		EffectiveAllowed:     d.EffectiveAllowed(),
		Signal:               d.Signal,
	})
}

// UnmarshalJSON 忽略输入中的 effective_allowed
func (d *Decision) UnmarshalJSON(b []byte) error {
	var raw decisionJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.AutomaticAllowed = raw.AutomaticAllowed
	d.ManualOverrideActive = raw.ManualOverrideActive
	d.ManualOverrideValue = raw.ManualOverrideValue
	d.Signal = raw.Signal
	return nil
}

// MemoryStatus 页面布局展示的内存状态
type MemoryStatus struct {
	DeviceMemory float64      `json:"deviceMemory"`
	OverLoaded   bool         `json:"overLoaded"`
	Unsupported  bool         `json:"unsupported"`
	Source       SignalSource `json:"source"`
	Heap         *HeapMetrics `json:"heap,omitempty"`
}

// Status 由信号与策略得到展示用内存状态
func (p Policy) Status(s MemorySignal) MemoryStatus {
	return MemoryStatus{
		DeviceMemory: s.DeviceMemoryGB,
		OverLoaded:   p.Overloaded(s),
		Unsupported:  !s.Supported,
		Source:       s.Source,
		Heap:         s.Heap,
	}
}
