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
	"sync"
	"time"

	"github.com/google/uuid"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
)

// Session 一个浏览器会话：唯一的 Gate 持有者
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	Gate    *gate.Gate
	Context *gate.EmulationContext

	hints clienthint.Hints
	mu    sync.RWMutex
}

// NewID 生成会话 ID
func NewID() string {
	return "session-" + uuid.New().String()
}

// New 创建新 Session（id 为空时自动生成）
func New(id string, policy gate.Policy) *Session {
	now := time.Now()
	if id == "" {
		id = NewID()
	}
	g := gate.New(policy)
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Gate:      g,
		Context:   gate.NewEmulationContext(g),
	}
}

// Hints 最近一次请求携带的客户端提示
func (s *Session) Hints() clienthint.Hints {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hints
}

// SetHints 记录客户端提示并刷新活跃时间
func (s *Session) SetHints(h clienthint.Hints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints = h
	s.UpdatedAt = time.Now()
}

// Touch 刷新活跃时间
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdatedAt = time.Now()
}

// LastActive 最近活跃时间
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.UpdatedAt
}
