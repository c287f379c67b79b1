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

// Package clienthint 解析客户端提示请求头（Device-Memory 等）并生成 Accept-CH 协商头
package clienthint

import (
	"math"
	"strconv"
	"strings"

	"memory-animation/internal/gate"
)

// 请求头名（查找时大小写不敏感，由调用方的 header 实现保证）
const (
	HeaderDeviceMemory      = "Device-Memory"
	HeaderSecCHDeviceMemory = "Sec-CH-Device-Memory"
	HeaderDPR               = "DPR"
	HeaderWidth             = "Width"
	HeaderViewportWidth     = "Viewport-Width"
	HeaderECT               = "ECT"
	HeaderAcceptCH          = "Accept-CH"
	HeaderAcceptCHLifetime  = "Accept-CH-Lifetime"
	HeaderVary              = "Vary"
)

var validECT = map[string]struct{}{
	"slow-2g": {},
	"2g":      {},
	"3g":      {},
	"4g":      {},
}

// Hints 一次请求携带的客户端提示
type Hints struct {
	Memory        gate.MemorySignal `json:"memory"`
	DPR           float64           `json:"dpr,omitempty"`
	Width         float64           `json:"width,omitempty"`
	ViewportWidth float64           `json:"viewport_width,omitempty"`
	ECT           string            `json:"ect,omitempty"`
}

// ParseDeviceMemory 解析 Device-Memory 头的值；缺失或非法一律归一为 unsupported
func ParseDeviceMemory(value string) gate.MemorySignal {
	v, ok := parsePositive(value)
	if !ok {
		return gate.Unsupported(gate.SourceHeader)
	}
	return gate.Reading(v, gate.SourceHeader)
}

// FromHeaders 通过 get 读取请求头并组装 Hints
func FromHeaders(get func(string) string) Hints {
	raw := get(HeaderDeviceMemory)
	if strings.TrimSpace(raw) == "" {
		raw = get(HeaderSecCHDeviceMemory)
	}
	h := Hints{Memory: ParseDeviceMemory(raw)}
	h.DPR, _ = parsePositive(get(HeaderDPR))
	h.Width, _ = parsePositive(get(HeaderWidth))
	h.ViewportWidth, _ = parsePositive(get(HeaderViewportWidth))
	ect := strings.ToLower(strings.TrimSpace(get(HeaderECT)))
	if _, ok := validECT[ect]; ok {
		h.ECT = ect
	}
	return h
}

// SeedEstimate 页面能力查询的初始值：header 有读数用 header，否则用默认值
func SeedEstimate(header gate.MemorySignal, defaultLimit float64) float64 {
	if header.Supported {
		return header.DeviceMemoryGB
	}
	return defaultLimit
}

// RoundDeviceMemory 按 Device Memory API 的方式量化：取最接近的 2 的幂，夹在 [0.25, 8] GB
func RoundDeviceMemory(totalBytes uint64) float64 {
	if totalBytes == 0 {
		return 0
	}
	gb := float64(totalBytes) / (1 << 30)
	rounded := math.Exp2(math.Round(math.Log2(gb)))
	return math.Min(8, math.Max(0.25, rounded))
}

func parsePositive(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}
