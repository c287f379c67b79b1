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

package app

import (
	"fmt"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
	"memory-animation/internal/runtime/session"
	"memory-animation/internal/storage/cache"
	"memory-animation/pkg/config"
	"memory-animation/pkg/log"
)

// Bootstrap 统一初始化：供 api 与 cli 复用，避免在 cmd 内组装策略与存储
type Bootstrap struct {
	Config      *config.Config
	Logger      *log.Logger
	Policy      gate.Policy
	Negotiation clienthint.Negotiation
	Cache       cache.Store
	Sessions    *session.Manager
}

// NewPolicy 由动画配置构建判定策略
func NewPolicy(cfg config.AnimationConfig) (gate.Policy, error) {
	unsupported, err := gate.ParseUnsupportedPolicy(cfg.UnsupportedPolicy)
	if err != nil {
		return gate.Policy{}, err
	}
	return gate.NewPolicy(cfg.DeviceMemoryLimit, unsupported)
}

// NewNegotiation 由配置构建 Accept-CH 协商
func NewNegotiation(cfg *config.Config) clienthint.Negotiation {
	n := clienthint.DefaultNegotiation()
	if len(cfg.ClientHints.Accept) > 0 {
		n.Accept = append([]string(nil), cfg.ClientHints.Accept...)
	}
	n.Lifetime = cfg.ClientHintsLifetime()
	return n
}

// NewBootstrap 根据配置创建 Bootstrap（Logger/Policy/Cache/Sessions）
func NewBootstrap(cfg *config.Config) (*Bootstrap, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger, err := log.NewLogger(&log.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   cfg.Log.File,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}

	policy, err := NewPolicy(cfg.Animation)
	if err != nil {
		return nil, fmt.Errorf("初始化动画策略failed: %w", err)
	}

	store, err := cache.NewCache(cfg.Storage.Cache)
	if err != nil {
		return nil, fmt.Errorf("初始化缓存failed: %w", err)
	}

	sessions := session.NewManager(session.NewMemoryStore(), policy,
		session.WithSnapshotCache(store, cfg.SessionTTL()),
		session.WithLogger(logger),
	)

	return &Bootstrap{
		Config:      cfg,
		Logger:      logger,
		Policy:      policy,
		Negotiation: NewNegotiation(cfg),
		Cache:       store,
		Sessions:    sessions,
	}, nil
}

// Close 释放缓存连接
func (b *Bootstrap) Close() error {
	if b.Cache != nil {
		return b.Cache.Close()
	}
	return nil
}
