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
	"bytes"
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
	"memory-animation/internal/runtime/session"
	"memory-animation/pkg/errors"
	"memory-animation/pkg/metrics"
	"memory-animation/pkg/tracing"
	"memory-animation/pkg/utils"
)

const (
	defaultCookieName = "animgate_session"
	defaultCookieTTL  = 30 * time.Minute
)

// Handler HTTP 处理器
type Handler struct {
	sessions            *session.Manager
	negotiation         clienthint.Negotiation
	defaultDeviceMemory float64
	cookieName          string
	cookieTTL           time.Duration
}

// NewHandler 创建新的 HTTP 处理器
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{
		sessions:            sessions,
		negotiation:         clienthint.DefaultNegotiation(),
		defaultDeviceMemory: gate.DefaultDeviceMemoryLimit,
		cookieName:          defaultCookieName,
		cookieTTL:           defaultCookieTTL,
	}
}

// SetNegotiation 设置 Accept-CH 协商（页面 meta 标签使用同一份）
func (h *Handler) SetNegotiation(n clienthint.Negotiation) {
	h.negotiation = n
}

// SetDefaultDeviceMemory 设置页面能力查询的初始值（DEFAULT_DEVICE_MEMORY_LIMIT）
func (h *Handler) SetDefaultDeviceMemory(gb float64) {
	h.defaultDeviceMemory = utils.PositiveFloat(gb, gate.DefaultDeviceMemoryLimit)
}

// SetCookie 设置会话 cookie 名与有效期
func (h *Handler) SetCookie(name string, ttl time.Duration) {
	h.cookieName = utils.CoalesceString(name, defaultCookieName)
	if ttl > 0 {
		h.cookieTTL = ttl
	}
}

// sessionView 会话接口统一响应
type sessionView struct {
	SessionID string              `json:"session_id"`
	Decision  gate.Decision       `json:"decision"`
	Context   gate.EmulationState `json:"context"`
	Status    gate.MemoryStatus   `json:"status"`
	Hints     clienthint.Hints    `json:"hints"`
	Policy    gate.Policy         `json:"policy"`
}

func (h *Handler) view(s *session.Session, d gate.Decision) sessionView {
	policy := s.Gate.Policy()
	return sessionView{
		SessionID: s.ID,
		Decision:  d,
		Context:   gate.StateOf(d),
		Status:    policy.Status(d.Signal),
		Hints:     s.Hints(),
		Policy:    policy,
	}
}

func requestHints(c *app.RequestContext) clienthint.Hints {
	return clienthint.FromHeaders(func(name string) string {
		return string(c.GetHeader(name))
	})
}

func (h *Handler) setSessionCookie(c *app.RequestContext, id string) {
	c.SetCookie(h.cookieName, id, int(h.cookieTTL/time.Second), "/", "", protocol.CookieSameSiteLaxMode, false, true)
}

// lookup 按路径参数取会话；失败时已写入响应
func (h *Handler) lookup(ctx context.Context, c *app.RequestContext) (*session.Session, bool) {
	id := c.Param("id")
	if id == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "session id is required"})
		return nil, false
	}
	s, err := h.sessions.Get(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "session not found"})
			return nil, false
		}
		hlog.CtxErrorf(ctx, "load session %s: %v", id, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to load session"})
		return nil, false
	}
	return s, true
}

// HealthCheck 健康检查
// GET /api/health
func (h *Handler) HealthCheck(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
		"service":   "animgate-api",
		"sessions":  h.sessions.Count(),
	})
}

// Metrics Prometheus 文本格式
// GET /metrics
func (h *Handler) Metrics(ctx context.Context, c *app.RequestContext) {
	var buf bytes.Buffer
	if err := metrics.WritePrometheus(&buf); err != nil {
		hlog.CtxErrorf(ctx, "write metrics: %v", err)
		c.String(consts.StatusInternalServerError, "failed to gather metrics")
		return
	}
	c.Data(consts.StatusOK, "text/plain; version=0.0.4; charset=utf-8", buf.Bytes())
}

// CreateSession 以请求头信号创建会话
// POST /api/sessions
func (h *Handler) CreateSession(ctx context.Context, c *app.RequestContext) {
	s, err := h.sessions.Create(ctx, requestHints(c))
	if err != nil {
		hlog.CtxErrorf(ctx, "create session: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}
	h.setSessionCookie(c, s.ID)
	c.JSON(consts.StatusCreated, h.view(s, s.Gate.Decision()))
}

// GetSession 当前决策
// GET /api/sessions/:id
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	c.JSON(consts.StatusOK, h.view(s, s.Gate.Decision()))
}

// MemoryStatus 布局展示用的内存状态
// GET /api/sessions/:id/status
func (h *Handler) MemoryStatus(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	c.JSON(consts.StatusOK, s.Gate.Status())
}

// EmulationContext 消费者上下文值
// GET /api/sessions/:id/context
func (h *Handler) EmulationContext(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	c.JSON(consts.StatusOK, s.Context.State())
}

// DeleteSession 删除会话
// DELETE /api/sessions/:id
func (h *Handler) DeleteSession(ctx context.Context, c *app.RequestContext) {
	id := c.Param("id")
	if err := h.sessions.Delete(ctx, id); err != nil {
		hlog.CtxErrorf(ctx, "delete session %s: %v", id, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
		return
	}
	c.Status(consts.StatusNoContent)
}

// signalRequest 页面能力查询结果（navigator.deviceMemory + performance.memory）
type signalRequest struct {
	DeviceMemory    *float64 `json:"device_memory"`
	Unsupported     bool     `json:"unsupported"`
	JSHeapSizeLimit float64  `json:"js_heap_size_limit"`
	TotalJSHeapSize float64  `json:"total_js_heap_size"`
	UsedJSHeapSize  float64  `json:"used_js_heap_size"`
}

func (r signalRequest) signal() gate.MemorySignal {
	var sig gate.MemorySignal
	if r.Unsupported || r.DeviceMemory == nil {
		sig = gate.Unsupported(gate.SourceCapability)
	} else {
		sig = gate.Reading(*r.DeviceMemory, gate.SourceCapability)
	}
	if r.JSHeapSizeLimit > 0 || r.TotalJSHeapSize > 0 || r.UsedJSHeapSize > 0 {
		sig = sig.WithHeap(gate.NewHeapMetrics(r.JSHeapSizeLimit, r.TotalJSHeapSize, r.UsedJSHeapSize))
	}
	return sig
}

// UpdateSignal 页面上报能力查询读数，优先于 header
// POST /api/sessions/:id/signal
func (h *Handler) UpdateSignal(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	var req signalRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "invalid signal body"})
		return
	}
	ctx, span := tracing.StartGateSpan(ctx, s.ID, "signal")
	defer span.End()
	d, _ := h.sessions.UpdateSignal(s, req.signal())
	tracing.RecordDecision(span, d.AutomaticAllowed, d.ManualOverrideActive, d.EffectiveAllowed())
	hlog.CtxDebugf(ctx, "session %s capability signal: memory=%v supported=%v", s.ID, d.Signal.DeviceMemoryGB, d.Signal.Supported)
	c.JSON(consts.StatusOK, h.view(s, d))
}

type overrideRequest struct {
	Active *bool `json:"active"`
	Value  *bool `json:"value"`
}

// SetOverride 同时设置覆盖开关与覆盖值
// POST /api/sessions/:id/override
func (h *Handler) SetOverride(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	var req overrideRequest
	if err := c.BindJSON(&req); err != nil || req.Active == nil || req.Value == nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "active and value are required"})
		return
	}
	_, span := tracing.StartGateSpan(ctx, s.ID, "override")
	defer span.End()
	s.Touch()
	d := s.Gate.SetManualOverride(*req.Active, *req.Value)
	metrics.ObserveOverride(*req.Active)
	tracing.RecordDecision(span, d.AutomaticAllowed, d.ManualOverrideActive, d.EffectiveAllowed())
	c.JSON(consts.StatusOK, h.view(s, d))
}

type manualRequest struct {
	Enabled *bool `json:"enabled"`
}

// EnableManual enableManualAnimationHandler
// POST /api/sessions/:id/manual
func (h *Handler) EnableManual(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	var req manualRequest
	if err := c.BindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "enabled is required"})
		return
	}
	_, span := tracing.StartGateSpan(ctx, s.ID, "manual")
	defer span.End()
	s.Touch()
	st := s.Context.EnableManualAnimationHandler(*req.Enabled)
	metrics.ObserveOverride(*req.Enabled)
	d := s.Gate.Decision()
	tracing.RecordDecision(span, d.AutomaticAllowed, d.ManualOverrideActive, st.AnimationAllowed)
	c.JSON(consts.StatusOK, st)
}

type toggleRequest struct {
	Value *bool `json:"checked"`
}

// Checked 实现 gate.CheckedEvent
func (r toggleRequest) Checked() bool {
	return r.Value != nil && *r.Value
}

// ToggleAnimation toggleAnimationHandler：复选框事件的 checked 作为覆盖值
// POST /api/sessions/:id/toggle
func (h *Handler) ToggleAnimation(ctx context.Context, c *app.RequestContext) {
	s, ok := h.lookup(ctx, c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.BindJSON(&req); err != nil || req.Value == nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "checked is required"})
		return
	}
	_, span := tracing.StartGateSpan(ctx, s.ID, "toggle")
	defer span.End()
	s.Touch()
	st := s.Context.ToggleAnimationHandler(req)
	metrics.ObserveOverride(st.ManualEnabled)
	d := s.Gate.Decision()
	tracing.RecordDecision(span, d.AutomaticAllowed, d.ManualOverrideActive, st.AnimationAllowed)
	c.JSON(consts.StatusOK, st)
}
