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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"

	"memory-animation/internal/api/http/middleware"
	"memory-animation/internal/clienthint"
)

// Router HTTP 路由器
type Router struct {
	handler    *Handler
	middleware *middleware.Middleware

	metricsEnabled bool
	rateLimitRPS   float64
	rateLimitBurst int
}

// NewRouter 创建新的 HTTP 路由器
func NewRouter(handler *Handler, middleware *middleware.Middleware) *Router {
	return &Router{
		handler:        handler,
		middleware:     middleware,
		metricsEnabled: true,
	}
}

// SetMetricsEnabled 是否暴露 /metrics
func (r *Router) SetMetricsEnabled(enabled bool) {
	r.metricsEnabled = enabled
}

// SetRateLimit 会话写接口按 IP 限流；rps <= 0 关闭
func (r *Router) SetRateLimit(rps float64, burst int) {
	r.rateLimitRPS = rps
	r.rateLimitBurst = burst
}

// Negotiation 当前使用的 Accept-CH 协商
func (r *Router) Negotiation() clienthint.Negotiation {
	return r.handler.negotiation
}

// Build 创建 Hertz 服务并注册路由
func (r *Router) Build(addr string, opts ...config.Option) *server.Hertz {
	opts = append([]config.Option{server.WithHostPorts(addr)}, opts...)
	h := server.Default(opts...)

	h.Use(r.middleware.AccessLog())
	h.Use(r.middleware.CORS())
	h.Use(r.middleware.ClientHints(r.handler.negotiation))

	h.GET("/", r.handler.Page)
	if r.metricsEnabled {
		h.GET("/metrics", r.handler.Metrics)
	}

	api := h.Group("/api")
	api.GET("/health", r.handler.HealthCheck)

	// 限流只作用于修改状态的路由
	rl := r.middleware.RateLimit(r.rateLimitRPS, r.rateLimitBurst)
	sessions := api.Group("/sessions")
	{
		sessions.POST("", rl, r.handler.CreateSession)
		sessions.GET("/:id", r.handler.GetSession)
		sessions.DELETE("/:id", rl, r.handler.DeleteSession)
		sessions.GET("/:id/status", r.handler.MemoryStatus)
		sessions.GET("/:id/context", r.handler.EmulationContext)
		sessions.POST("/:id/signal", rl, r.handler.UpdateSignal)
		sessions.POST("/:id/override", rl, r.handler.SetOverride)
		sessions.POST("/:id/manual", rl, r.handler.EnableManual)
		sessions.POST("/:id/toggle", rl, r.handler.ToggleAnimation)
	}

	return h
}
