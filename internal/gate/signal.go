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

import "math"

// SignalSource 内存信号来源
type SignalSource string

const (
	// SourceNone 无任何读数
	SourceNone SignalSource = "none"
	// SourceHeader 来自请求头 Device-Memory（首屏）
	SourceHeader SignalSource = "header"
	// SourceCapability 来自页面运行时能力查询（navigator.deviceMemory），优先级高于 header
	SourceCapability SignalSource = "capability"
)

// HeapMetrics 页面上报的 JS 堆指标，仅用于展示，不参与判定
type HeapMetrics struct {
	JSHeapSizeLimit     float64 `json:"js_heap_size_limit"`
	TotalJSHeapSize     float64 `json:"total_js_heap_size"`
	UsedJSHeapSize      float64 `json:"used_js_heap_size"`
	UsedJSHeapSizeRatio float64 `json:"used_js_heap_size_ratio"`
}

// NewHeapMetrics 根据三项原始值计算占用比例；limit 为 0 时比例为 0
func NewHeapMetrics(limit, total, used float64) *HeapMetrics {
	h := &HeapMetrics{
		JSHeapSizeLimit: limit,
		TotalJSHeapSize: total,
		UsedJSHeapSize:  used,
	}
	if limit > 0 {
		h.UsedJSHeapSizeRatio = used / limit
	}
	return h
}

// MemorySignal 客户端设备内存的最佳估计
type MemorySignal struct {
	DeviceMemoryGB float64      `json:"device_memory_gb"`
	Supported      bool         `json:"supported"`
	Source         SignalSource `json:"source"`
	Heap           *HeapMetrics `json:"heap,omitempty"`
}

// Unsupported 返回无读数信号
func Unsupported(source SignalSource) MemorySignal {
	if source == "" {
		source = SourceNone
	}
	return MemorySignal{Source: source}
}

// Reading 返回一个读数信号；非有限值或 <= 0 归一为 unsupported
func Reading(gb float64, source SignalSource) MemorySignal {
	if math.IsNaN(gb) || math.IsInf(gb, 0) || gb <= 0 {
		return Unsupported(source)
	}
	return MemorySignal{DeviceMemoryGB: gb, Supported: true, Source: source}
}

// WithHeap 附加堆指标
func (s MemorySignal) WithHeap(h *HeapMetrics) MemorySignal {
	s.Heap = h
	return s
}

// Equal 比较判定相关字段与来源（堆指标不参与）
func (s MemorySignal) Equal(o MemorySignal) bool {
	if s.Supported != o.Supported || s.Source != o.Source {
		return false
	}
	return !s.Supported || s.DeviceMemoryGB == o.DeviceMemoryGB
}
