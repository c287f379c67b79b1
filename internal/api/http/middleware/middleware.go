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

package middleware

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"golang.org/x/time/rate"

	"memory-animation/internal/clienthint"
	"memory-animation/pkg/metrics"
)

// Middleware 中间件管理器
type Middleware struct {
	allowOrigins []string

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	now      func() time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewMiddleware 创建新的中间件管理器；allowOrigins 为空时允许任意来源
func NewMiddleware(allowOrigins ...string) *Middleware {
	return &Middleware{
		allowOrigins: allowOrigins,
		limiters:     make(map[string]*ipLimiter),
		now:          time.Now,
	}
}

func (m *Middleware) originAllowed(origin string) bool {
	if len(m.allowOrigins) == 0 {
		return true
	}
	for _, o := range m.allowOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// CORS CORS 中间件
func (m *Middleware) CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		if origin == "" || m.originAllowed(origin) {
			if origin == "" {
				origin = "*"
			}
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Device-Memory, Sec-CH-Device-Memory")
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Max-Age", "86400")
		}

		if string(c.Method()) == consts.MethodOptions {
			c.AbortWithStatus(consts.StatusNoContent)
			return
		}

		c.Next(ctx)
	}
}

// ClientHints 在每个响应上声明 Accept-CH / Accept-CH-Lifetime，并对 Device-Memory 追加 Vary
func (m *Middleware) ClientHints(n clienthint.Negotiation) app.HandlerFunc {
	pairs := n.Headers()
	return func(ctx context.Context, c *app.RequestContext) {
		for _, p := range pairs {
			if p.Name == clienthint.HeaderVary {
				c.Response.Header.Add(p.Name, p.Value)
				continue
			}
			c.Header(p.Name, p.Value)
		}
		c.Next(ctx)
	}
}

// RateLimit 按客户端 IP 的令牌桶限流；rps <= 0 时不限流
func (m *Middleware) RateLimit(rps float64, burst int) app.HandlerFunc {
	if burst <= 0 {
		burst = 1
	}
	return func(ctx context.Context, c *app.RequestContext) {
		if rps <= 0 {
			c.Next(ctx)
			return
		}
		if !m.limiter(c.ClientIP(), rps, burst).Allow() {
			c.JSON(consts.StatusTooManyRequests, map[string]string{
				"error": "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}

func (m *Middleware) limiter(key string, rps float64, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.limiters[key]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[key] = l
	}
	l.lastSeen = m.now()
	return l.limiter
}

// EvictIdle 删除 idle 内没有请求的 IP 限流器，返回删除数量
func (m *Middleware) EvictIdle(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k, l := range m.limiters {
		if l.lastSeen.Before(cutoff) {
			delete(m.limiters, k)
			n++
		}
	}
	return n
}

// LimiterCount 当前跟踪的客户端 IP 数
func (m *Middleware) LimiterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.limiters)
}

// AccessLog 请求日志与耗时指标
func (m *Middleware) AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		latency := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Response.StatusCode()
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(latency.Seconds())
		hlog.CtxInfof(ctx, "%s %s | %d | %s | %s", c.Method(), c.Path(), status, c.ClientIP(), latency)
	}
}
