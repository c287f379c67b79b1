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

package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
	"memory-animation/internal/storage/cache"
	"memory-animation/pkg/errors"
	"memory-animation/pkg/log"
	"memory-animation/pkg/metrics"
)

// ErrSessionNotFound 会话不存在（内存与快照缓存均未命中）
var ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "session")

const (
	snapshotKeyPrefix  = "session:"
	snapshotListenerID = "session.snapshot"
	metricsListenerID  = "session.metrics"
	snapshotTimeout    = 2 * time.Second
)

// DecisionListener 附加到每个会话 Gate 上的监听器，额外携带会话 ID
type DecisionListener func(sessionID string, d gate.Decision)

// Manager 管理会话生命周期：进程内持有存活 Gate，快照镜像到 cache.Store 以便重启或跨副本恢复
type Manager struct {
	store     SessionStore
	policy    gate.Policy
	snapshots cache.Store
	ttl       time.Duration
	logger    *log.Logger

	mu        sync.Mutex
	listeners []namedListener

	// 同一 ID 的并发恢复合并为一次
	restoring singleflight.Group
}

type namedListener struct {
	id string
	fn DecisionListener
}

// Option Manager 可选项
type Option func(*Manager)

// WithSnapshotCache 每次状态迁移把快照写入 c，有效期 ttl
func WithSnapshotCache(c cache.Store, ttl time.Duration) Option {
	return func(m *Manager) {
		m.snapshots = c
		m.ttl = ttl
	}
}

// WithLogger 设置日志
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithListener 为之后创建或恢复的每个会话挂载监听器
func WithListener(id string, fn DecisionListener) Option {
	return func(m *Manager) {
		m.listeners = append(m.listeners, namedListener{id: id, fn: fn})
	}
}

// NewManager 创建 Manager
func NewManager(store SessionStore, policy gate.Policy, opts ...Option) *Manager {
	m := &Manager{store: store, policy: policy}
	for _, o := range opts {
		o(m)
	}
	if m.logger == nil {
		m.logger, _ = log.NewLogger(nil)
	}
	return m
}

// Policy 所有会话共用的判定策略
func (m *Manager) Policy() gate.Policy {
	return m.policy
}

// Create 创建新会话，以请求头信号初始化 Gate
func (m *Manager) Create(ctx context.Context, hints clienthint.Hints) (*Session, error) {
	s := New("", m.policy)
	s.SetHints(hints)
	m.attach(s)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(err, "put session")
	}
	metrics.ObserveSignal(string(hints.Memory.Source), hints.Memory.Supported)
	s.Gate.Initialize(hints.Memory)
	metrics.SessionsActive.Set(float64(m.store.Len()))
	m.logger.Debug("session created", "session_id", s.ID, "device_memory", hints.Memory.DeviceMemoryGB, "supported", hints.Memory.Supported)
	return s, nil
}

// Get 按 ID 获取会话；进程内未命中时尝试从快照恢复
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrSessionNotFound
	}
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}
	return m.rehydrate(ctx, id)
}

// GetOrCreate 取已有会话并用本次请求头刷新信号；不存在则新建（不沿用客户端给的 ID）
func (m *Manager) GetOrCreate(ctx context.Context, id string, hints clienthint.Hints) (*Session, bool, error) {
	s, err := m.Get(ctx, id)
	if errors.IsNotFound(err) {
		s, err = m.Create(ctx, hints)
		return s, true, err
	}
	if err != nil {
		return nil, false, err
	}
	s.SetHints(hints)
	// 缺失的 header 不覆盖已有读数
	if hints.Memory.Supported {
		m.UpdateSignal(s, hints.Memory)
	}
	return s, false, nil
}

// UpdateSignal 更新会话的内存信号并计数
func (m *Manager) UpdateSignal(s *Session, signal gate.MemorySignal) (gate.Decision, bool) {
	metrics.ObserveSignal(string(signal.Source), signal.Supported)
	s.Touch()
	return s.Gate.UpdateSignal(signal)
}

// Delete 删除会话及其快照
func (m *Manager) Delete(ctx context.Context, id string) error {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if s != nil {
		m.detach(s)
		if err := m.store.Delete(ctx, id); err != nil {
			return err
		}
	}
	if m.snapshots != nil {
		if err := m.snapshots.Delete(ctx, snapshotKeyPrefix+id); err != nil {
			return errors.Wrap(err, "delete snapshot")
		}
	}
	metrics.SessionsActive.Set(float64(m.store.Len()))
	return nil
}

// Sweep 清理空闲超过 idle 的进程内会话，并清掉快照缓存中已过期的条目，返回清理的会话数量
func (m *Manager) Sweep(ctx context.Context, idle time.Duration) (int, error) {
	if p, ok := m.snapshots.(cache.Purger); ok {
		purged, err := p.PurgeExpired(ctx)
		if err != nil {
			return 0, errors.Wrap(err, "purge snapshots")
		}
		if purged > 0 {
			m.logger.Debug("expired snapshots purged", "count", purged)
		}
	}

	ids, err := m.store.IdleBefore(ctx, time.Now().Add(-idle))
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if s, _ := m.store.Get(ctx, id); s != nil {
			m.detach(s)
		}
		if err := m.store.Delete(ctx, id); err != nil {
			return 0, err
		}
	}
	if len(ids) > 0 {
		metrics.SessionsActive.Set(float64(m.store.Len()))
		m.logger.Info("idle sessions swept", "count", len(ids))
	}
	return len(ids), nil
}

// IDs 进程内存活会话 ID（无序）
func (m *Manager) IDs(ctx context.Context) ([]string, error) {
	return m.store.IDs(ctx)
}

// Count 进程内存活会话数
func (m *Manager) Count() int {
	return m.store.Len()
}

func (m *Manager) rehydrate(ctx context.Context, id string) (*Session, error) {
	if m.snapshots == nil {
		return nil, ErrSessionNotFound
	}
	v, err, _ := m.restoring.Do(id, func() (interface{}, error) {
		return m.restore(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// restore 从快照重建会话；先复查进程内存储，已被其他请求恢复时直接返回
func (m *Manager) restore(ctx context.Context, id string) (*Session, error) {
	if s, err := m.store.Get(ctx, id); err != nil || s != nil {
		return s, err
	}
	var snap gate.Snapshot
	if err := m.snapshots.Get(ctx, snapshotKeyPrefix+id, &snap); err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "load snapshot")
	}
	s := New(id, m.policy)
	s.Gate.Restore(snap)
	m.attach(s)
	if err := m.store.Put(ctx, s); err != nil {
		return nil, errors.Wrap(err, "put session")
	}
	metrics.SessionsActive.Set(float64(m.store.Len()))
	m.logger.Info("session restored from snapshot", "session_id", id)
	return s, nil
}

func (m *Manager) attach(s *Session) {
	id := s.ID
	_ = s.Gate.Subscribe(metricsListenerID, func(d gate.Decision) {
		metrics.ObserveDecision(d.EffectiveAllowed())
	})
	if m.snapshots != nil {
		_ = s.Gate.Subscribe(snapshotListenerID, func(d gate.Decision) {
			m.saveSnapshot(id, d)
		})
	}
	m.mu.Lock()
	ls := append([]namedListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range ls {
		fn := l.fn
		if err := s.Gate.Subscribe(l.id, func(d gate.Decision) { fn(id, d) }); err != nil {
			m.logger.Warn("attach listener failed", "session_id", id, "listener", l.id, "error", err)
		}
	}
}

func (m *Manager) detach(s *Session) {
	_ = s.Gate.Unsubscribe(metricsListenerID)
	_ = s.Gate.Unsubscribe(snapshotListenerID)
	m.mu.Lock()
	ls := append([]namedListener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range ls {
		_ = s.Gate.Unsubscribe(l.id)
	}
}

func (m *Manager) saveSnapshot(id string, d gate.Decision) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	snap := gate.Snapshot{
		Signal:               d.Signal,
		ManualOverrideActive: d.ManualOverrideActive,
		ManualOverrideValue:  d.ManualOverrideValue,
	}
	if err := m.snapshots.Set(ctx, snapshotKeyPrefix+id, snap, m.ttl); err != nil {
		m.logger.Warn("save session snapshot failed", "session_id", id, "error", err)
	}
}
