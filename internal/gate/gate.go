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
	"errors"
	"sync"
)

var (
	ErrSubscriberExists   = errors.New("subscriber already exists")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrNilListener        = errors.New("listener cannot be nil")
)

// Listener 接收每次状态迁移后完整重算的 Decision
type Listener func(Decision)

type subscriber struct {
	id string
	fn Listener
}

// Snapshot 重建 Gate 所需的全部输入
type Snapshot struct {
	Signal               MemorySignal `json:"signal"`
	ManualOverrideActive bool         `json:"manual_override_active"`
	ManualOverrideValue  bool         `json:"manual_override_value"`
}

// Gate 会话级动画开关：持有内存信号与手动覆盖，向订阅者推送 Decision。
//
// 状态迁移在 mu 下完成；通知按迁移顺序同步投递。
// Listener 中可以调用 Decision()，但不能同步调用会修改状态的方法。
type Gate struct {
	policy Policy

	mu           sync.Mutex
	signal       MemorySignal
	manualActive bool
	manualValue  bool
	subscribers  []subscriber

	// 通知按迁移顺序发放的序号依次投递
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	issued     uint64
	served     uint64
}

// New 创建 Gate；初始无信号、无覆盖，覆盖值默认 true
func New(policy Policy) *Gate {
	g := &Gate{
		policy:      policy,
		signal:      Unsupported(SourceNone),
		manualValue: true,
	}
	g.notifyCond = sync.NewCond(&g.notifyMu)
	return g
}

// Policy 返回判定策略
func (g *Gate) Policy() Policy {
	return g.policy
}

// Initialize 安装首个信号并清除手动覆盖
func (g *Gate) Initialize(signal MemorySignal) Decision {
	d, _ := g.transition(func() bool {
		g.signal = signal
		g.manualActive = false
		g.manualValue = true
		return true
	})
	return d
}

// SetManualOverride 同时设置覆盖开关与覆盖值
func (g *Gate) SetManualOverride(active, value bool) Decision {
	d, _ := g.transition(func() bool {
		g.manualActive = active
		g.manualValue = value
		return true
	})
	return d
}

// EnableManual 仅切换覆盖开关，保留覆盖值
func (g *Gate) EnableManual(active bool) Decision {
	d, _ := g.transition(func() bool {
		g.manualActive = active
		return true
	})
	return d
}

// SetOverrideValue 仅设置覆盖值，不改变覆盖开关
func (g *Gate) SetOverrideValue(value bool) Decision {
	d, _ := g.transition(func() bool {
		g.manualValue = value
		return true
	})
	return d
}

// UpdateSignal 用更新的读数重算自动判定，手动覆盖保持不变。
// 已有 capability 读数时，header 读数被忽略（返回 applied=false，不通知）。
// unsupported 不是读数：已有有效读数时保留原读数，只带上新的堆指标。
func (g *Gate) UpdateSignal(signal MemorySignal) (Decision, bool) {
	return g.transition(func() bool {
		if g.signal.Source == SourceCapability && signal.Source != SourceCapability {
			return false
		}
		if !signal.Supported && g.signal.Supported {
			if signal.Heap != nil {
				g.signal.Heap = signal.Heap
			}
			return false
		}
		g.signal = signal
		return true
	})
}

// Restore 按快照恢复全部输入，不做来源优先级检查
func (g *Gate) Restore(s Snapshot) Decision {
	d, _ := g.transition(func() bool {
		g.signal = s.Signal
		g.manualActive = s.ManualOverrideActive
		g.manualValue = s.ManualOverrideValue
		return true
	})
	return d
}

// Decision 纯读取
func (g *Gate) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decisionLocked()
}

// Snapshot 返回当前输入
func (g *Gate) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Signal:               g.signal,
		ManualOverrideActive: g.manualActive,
		ManualOverrideValue:  g.manualValue,
	}
}

// Status 当前信号的展示状态
func (g *Gate) Status() MemoryStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.policy.Status(g.signal)
}

// Subscribe 注册订阅者，按注册顺序投递
func (g *Gate) Subscribe(id string, fn Listener) error {
	if fn == nil {
		return ErrNilListener
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.subscribers {
		if s.id == id {
			return ErrSubscriberExists
		}
	}
	g.subscribers = append(g.subscribers, subscriber{id: id, fn: fn})
	return nil
}

// Unsubscribe 移除订阅者
func (g *Gate) Unsubscribe(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, s := range g.subscribers {
		if s.id == id {
			g.subscribers = append(g.subscribers[:i:i], g.subscribers[i+1:]...)
			return nil
		}
	}
	return ErrSubscriberNotFound
}

// SubscriberCount 当前订阅者数量
func (g *Gate) SubscriberCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subscribers)
}

func (g *Gate) decisionLocked() Decision {
	return Decision{
		AutomaticAllowed:     g.policy.Automatic(g.signal),
		ManualOverrideActive: g.manualActive,
		ManualOverrideValue:  g.manualValue,
		Signal:               g.signal,
	}
}

// transition 在 mu 下执行 mutate 并领取通知序号；投递时按序号排队，等待期间不持有 mu
func (g *Gate) transition(mutate func() bool) (Decision, bool) {
	g.mu.Lock()
	applied := mutate()
	d := g.decisionLocked()
	if !applied {
		g.mu.Unlock()
		return d, false
	}
	subs := make([]subscriber, len(g.subscribers))
	copy(subs, g.subscribers)
	ticket := g.issued
	g.issued++
	g.mu.Unlock()

	g.notifyMu.Lock()
	defer g.notifyMu.Unlock()
	for g.served != ticket {
		g.notifyCond.Wait()
	}
	defer func() {
		g.served++
		g.notifyCond.Broadcast()
	}()

	for _, s := range subs {
		s.fn(d)
	}
	return d, true
}
