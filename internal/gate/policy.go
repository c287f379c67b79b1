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

import (
	"fmt"
	"strings"

	"memory-animation/pkg/errors"
)

const (
	// DefaultDeviceMemoryLimit 阈值默认值（GB），低于此值视为过载
	DefaultDeviceMemoryLimit = 4.0
)

// UnsupportedPolicy 无内存读数时的默认策略
type UnsupportedPolicy string

const (
	// Permissive 无读数时允许动画（默认）
	Permissive UnsupportedPolicy = "permissive"
	// Conservative 无读数时禁止动画
	Conservative UnsupportedPolicy = "conservative"
)

// ParseUnsupportedPolicy 解析策略名，空串为 Permissive
func ParseUnsupportedPolicy(s string) (UnsupportedPolicy, error) {
	switch UnsupportedPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Permissive:
		return Permissive, nil
	case Conservative:
		return Conservative, nil
	default:
		return "", errors.Wrapf(errors.ErrInvalidArg, "unknown unsupported policy %q", s)
	}
}

// Allows 无读数时该策略是否允许动画
func (p UnsupportedPolicy) Allows() bool {
	return p != Conservative
}

// Policy 阈值判定策略
type Policy struct {
	Threshold   float64           `json:"threshold"`
	Unsupported UnsupportedPolicy `json:"unsupported"`
}

// NewPolicy 创建策略；threshold 必须为正数
func NewPolicy(threshold float64, unsupported UnsupportedPolicy) (Policy, error) {
	if !(threshold > 0) {
		return Policy{}, errors.Wrapf(errors.ErrInvalidArg, "threshold must be positive, got %v", threshold)
	}
	if unsupported == "" {
		unsupported = Permissive
	}
	if unsupported != Permissive && unsupported != Conservative {
		return Policy{}, fmt.Errorf("%w: unknown unsupported policy %q", errors.ErrInvalidArg, unsupported)
	}
	return Policy{Threshold: threshold, Unsupported: unsupported}, nil
}

// DefaultPolicy 阈值 4GB、无读数时允许
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultDeviceMemoryLimit, Unsupported: Permissive}
}

// Automatic 自动判定：有读数时 >= 阈值即允许（恰好等于阈值允许），无读数时按 Unsupported 策略
func (p Policy) Automatic(s MemorySignal) bool {
	if !s.Supported {
		return p.Unsupported.Allows()
	}
	return s.DeviceMemoryGB >= p.Threshold
}

// Overloaded 设备内存低于阈值；无读数时不视为过载
func (p Policy) Overloaded(s MemorySignal) bool {
	return s.Supported && s.DeviceMemoryGB < p.Threshold
}

// Effective 手动覆盖优先的决策表：
//
//	active=true  -> value
//	active=false -> automatic
func Effective(active, value, automatic bool) bool {
	if active {
		return value
	}
	return automatic
}
