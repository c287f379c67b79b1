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

// CheckedEvent 复选框类 UI 事件
type CheckedEvent interface {
	Checked() bool
}

// CheckboxEvent 最简单的 CheckedEvent 实现（HTTP 请求体解码后使用）
type CheckboxEvent bool

// Checked 实现 CheckedEvent
func (e CheckboxEvent) Checked() bool { return bool(e) }

// EmulationState 下游消费者看到的上下文值
type EmulationState struct {
	ManualEnabled    bool `json:"manualEnabled"`
	IsAnimationOn    bool `json:"isAnimationOn"`
	AnimationAllowed bool `json:"animationAllowed"`
}

// EmulationContext 绑定在 Gate 上的消费者上下文：状态 + 两个处理函数
type EmulationContext struct {
	gate *Gate
}

// NewEmulationContext 创建消费者上下文
func NewEmulationContext(g *Gate) *EmulationContext {
	return &EmulationContext{gate: g}
}

// State 当前上下文值
func (c *EmulationContext) State() EmulationState {
	return StateOf(c.gate.Decision())
}

// EnableManualAnimationHandler 设置手动覆盖开关
func (c *EmulationContext) EnableManualAnimationHandler(flag bool) EmulationState {
	return StateOf(c.gate.EnableManual(flag))
}

// ToggleAnimationHandler 从事件读取 checked 作为覆盖值
func (c *EmulationContext) ToggleAnimationHandler(ev CheckedEvent) EmulationState {
	if ev == nil {
		return c.State()
	}
	return StateOf(c.gate.SetOverrideValue(ev.Checked()))
}

// StateOf 由 Decision 投影出上下文值
func StateOf(d Decision) EmulationState {
	return EmulationState{
		ManualEnabled:    d.ManualOverrideActive,
		IsAnimationOn:    d.ManualOverrideValue,
		AnimationAllowed: d.EffectiveAllowed(),
	}
}
