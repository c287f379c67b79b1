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
	"encoding/json"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"memory-animation/internal/api/http/middleware"
	"memory-animation/internal/gate"
	"memory-animation/internal/runtime/session"
	"memory-animation/pkg/metrics"
)

type viewResponse struct {
	SessionID string `json:"session_id"`
	Decision  struct {
		AutomaticAllowed     bool `json:"automatic_allowed"`
		ManualOverrideActive bool `json:"manual_override_active"`
		EffectiveAllowed     bool `json:"effective_allowed"`
	} `json:"decision"`
	Context gate.EmulationState `json:"context"`
	Status  gate.MemoryStatus   `json:"status"`
}

func newTestHandler() (*Handler, *session.Manager) {
	m := session.NewManager(session.NewMemoryStore(), gate.DefaultPolicy())
	return NewHandler(m), m
}

func jsonBody(s string) *ut.Body {
	return &ut.Body{Body: bytes.NewReader([]byte(s)), Len: len(s)}
}

func emptyBody() *ut.Body {
	return &ut.Body{Body: bytes.NewReader(nil), Len: 0}
}

func decodeView(t *testing.T, body []byte) viewResponse {
	t.Helper()
	var v viewResponse
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, body)
	}
	return v
}

func TestHealthCheck(t *testing.T) {
	h := server.Default(server.WithHostPorts(":0"))
	handler, _ := newTestHandler()
	h.GET("/api/health", func(ctx context.Context, c *app.RequestContext) {
		handler.HealthCheck(ctx, c)
	})
	w := ut.PerformRequest(h.Engine, "GET", "/api/health", emptyBody())
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Errorf("HealthCheck status: got %d", resp.StatusCode())
	}
	if !bytes.Contains(resp.Body(), []byte("ok")) {
		t.Errorf("HealthCheck body: %s", resp.Body())
	}
}

func TestCreateSession_FromDeviceMemoryHeader(t *testing.T) {
	handler, m := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody(), ut.Header{Key: "Device-Memory", Value: "2"})
	if got := w.Result().StatusCode(); got != 201 {
		t.Fatalf("status = %d, want 201", got)
	}
	v := decodeView(t, w.Result().Body())
	if v.SessionID == "" {
		t.Fatal("missing session_id")
	}
	if v.Decision.EffectiveAllowed || !v.Status.OverLoaded {
		t.Errorf("2GB device should be overloaded and not animate: %+v", v)
	}
	if m.Count() != 1 {
		t.Errorf("sessions = %d, want 1", m.Count())
	}
}

func TestCreateSession_WithoutHeaderIsPermissive(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	v := decodeView(t, w.Result().Body())
	if !v.Decision.EffectiveAllowed || !v.Status.Unsupported {
		t.Errorf("missing header should be unsupported and allowed: %+v", v)
	}
}

func TestSessionLifecycle(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody(), ut.Header{Key: "Device-Memory", Value: "8"})
	v := decodeView(t, w.Result().Body())
	if !v.Decision.EffectiveAllowed {
		t.Fatalf("8GB device should animate: %+v", v)
	}
	base := "/api/sessions/" + v.SessionID

	// 能力查询读数下降到 2GB
	w = ut.PerformRequest(s.Engine, "POST", base+"/signal", jsonBody(`{"device_memory":2,"js_heap_size_limit":100,"used_js_heap_size":50}`))
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("signal status = %d: %s", got, w.Result().Body())
	}
	v = decodeView(t, w.Result().Body())
	if v.Decision.EffectiveAllowed || v.Decision.AutomaticAllowed {
		t.Errorf("after 2GB signal: %+v", v.Decision)
	}
	if v.Status.Heap == nil || v.Status.Heap.UsedJSHeapSizeRatio != 0.5 {
		t.Errorf("heap metrics not carried: %+v", v.Status.Heap)
	}

	// 手动覆盖强制开启
	w = ut.PerformRequest(s.Engine, "POST", base+"/override", jsonBody(`{"active":true,"value":true}`))
	v = decodeView(t, w.Result().Body())
	if !v.Decision.EffectiveAllowed || !v.Decision.ManualOverrideActive {
		t.Errorf("override on: %+v", v.Decision)
	}

	// 复选框取消勾选
	w = ut.PerformRequest(s.Engine, "POST", base+"/toggle", jsonBody(`{"checked":false}`))
	var st gate.EmulationState
	if err := json.Unmarshal(w.Result().Body(), &st); err != nil {
		t.Fatalf("decode toggle: %v", err)
	}
	if st.AnimationAllowed || st.IsAnimationOn || !st.ManualEnabled {
		t.Errorf("toggle off: %+v", st)
	}

	// 关闭手动模式后回到自动判定
	w = ut.PerformRequest(s.Engine, "POST", base+"/manual", jsonBody(`{"enabled":false}`))
	if err := json.Unmarshal(w.Result().Body(), &st); err != nil {
		t.Fatalf("decode manual: %v", err)
	}
	if st.AnimationAllowed || st.ManualEnabled {
		t.Errorf("manual off: %+v", st)
	}

	w = ut.PerformRequest(s.Engine, "GET", base+"/context", emptyBody())
	if err := json.Unmarshal(w.Result().Body(), &st); err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if st.ManualEnabled || st.AnimationAllowed {
		t.Errorf("context: %+v", st)
	}

	w = ut.PerformRequest(s.Engine, "GET", base+"/status", emptyBody())
	var status gate.MemoryStatus
	if err := json.Unmarshal(w.Result().Body(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.DeviceMemory != 2 || !status.OverLoaded || status.Source != gate.SourceCapability {
		t.Errorf("status: %+v", status)
	}

	w = ut.PerformRequest(s.Engine, "DELETE", base, emptyBody())
	if got := w.Result().StatusCode(); got != 204 {
		t.Errorf("delete status = %d, want 204", got)
	}
	w = ut.PerformRequest(s.Engine, "GET", base, emptyBody())
	if got := w.Result().StatusCode(); got != 404 {
		t.Errorf("get after delete status = %d, want 404", got)
	}
}

func TestUpdateSignal_UnsupportedKeepsHeaderReading(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody(), ut.Header{Key: "Device-Memory", Value: "2"})
	v := decodeView(t, w.Result().Body())

	w = ut.PerformRequest(s.Engine, "POST", "/api/sessions/"+v.SessionID+"/signal",
		jsonBody(`{"unsupported":true,"js_heap_size_limit":100,"used_js_heap_size":25}`))
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("signal status = %d: %s", got, w.Result().Body())
	}
	v = decodeView(t, w.Result().Body())
	if v.Decision.EffectiveAllowed || v.Status.Unsupported || !v.Status.OverLoaded {
		t.Errorf("unsupported capability must keep the 2GB header reading: %+v", v)
	}
	if v.Status.DeviceMemory != 2 || v.Status.Source != gate.SourceHeader {
		t.Errorf("status = %+v, want 2GB from header", v.Status)
	}
	if v.Status.Heap == nil || v.Status.Heap.UsedJSHeapSizeRatio != 0.25 {
		t.Errorf("heap metrics not carried: %+v", v.Status.Heap)
	}
}

func TestUpdateSignal_UnsupportedWithoutHeader(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	v := decodeView(t, w.Result().Body())

	w = ut.PerformRequest(s.Engine, "POST", "/api/sessions/"+v.SessionID+"/signal", jsonBody(`{"unsupported":true}`))
	v = decodeView(t, w.Result().Body())
	if !v.Decision.EffectiveAllowed || !v.Status.Unsupported {
		t.Errorf("unsupported capability without a reading should allow animation: %+v", v)
	}
}

func TestOverrideRoutes_CountOverrides(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	base := "/api/sessions/" + decodeView(t, w.Result().Body()).SessionID

	steps := []struct {
		path   string
		body   string
		active string
	}{
		{"/manual", `{"enabled":true}`, "true"},
		{"/toggle", `{"checked":false}`, "true"},
		{"/override", `{"active":false,"value":true}`, "false"},
		{"/toggle", `{"checked":true}`, "false"},
	}
	for _, st := range steps {
		counter := metrics.OverridesTotal.WithLabelValues(st.active)
		before := testutil.ToFloat64(counter)
		w := ut.PerformRequest(s.Engine, "POST", base+st.path, jsonBody(st.body))
		if got := w.Result().StatusCode(); got != 200 {
			t.Fatalf("POST %s status = %d", st.path, got)
		}
		if got := testutil.ToFloat64(counter); got != before+1 {
			t.Errorf("POST %s %s: overrides_total{active=%s} = %v, want %v", st.path, st.body, st.active, got, before+1)
		}
	}
}

func TestSessionRoutes_ValidationErrors(t *testing.T) {
	handler, _ := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/api/sessions/missing", emptyBody())
	if got := w.Result().StatusCode(); got != 404 {
		t.Errorf("unknown session status = %d, want 404", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte(`"error":"session not found"`)) {
		t.Errorf("unexpected body: %s", w.Result().Body())
	}

	w = ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	v := decodeView(t, w.Result().Body())
	base := "/api/sessions/" + v.SessionID

	cases := []struct {
		path string
		body string
	}{
		{"/override", `{"active":true}`},
		{"/override", `not json`},
		{"/manual", `{}`},
		{"/toggle", `{}`},
		{"/signal", `{"device_memory":"lots"}`},
	}
	for _, tc := range cases {
		w := ut.PerformRequest(s.Engine, "POST", base+tc.path, jsonBody(tc.body))
		if got := w.Result().StatusCode(); got != 400 {
			t.Errorf("POST %s %s status = %d, want 400", tc.path, tc.body, got)
		}
	}
}

func TestPage_RendersDecisionAndHints(t *testing.T) {
	handler, m := newTestHandler()
	s := NewRouter(handler, middleware.NewMiddleware()).Build(":0")

	w := ut.PerformRequest(s.Engine, "GET", "/", emptyBody(), ut.Header{Key: "Device-Memory", Value: "2"})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("page status = %d", resp.StatusCode())
	}
	body := resp.Body()
	for _, want := range []string{
		`http-equiv="Accept-CH" content="DPR, Width, Viewport-Width, ECT, Device-Memory"`,
		`http-equiv="Accept-CH-Lifetime" content="86400"`,
		`data-animate="false"`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("page missing %q", want)
		}
	}
	if got := string(resp.Header.Peek("Accept-CH")); got != "DPR, Width, Viewport-Width, ECT, Device-Memory" {
		t.Errorf("Accept-CH header = %q", got)
	}
	if m.Count() != 1 {
		t.Fatalf("sessions = %d, want 1", m.Count())
	}

	// 携带会话 cookie 的后续导航复用会话
	var id string
	for _, sid := range sessionIDs(t, m) {
		id = sid
	}
	w = ut.PerformRequest(s.Engine, "GET", "/", emptyBody(),
		ut.Header{Key: "Cookie", Value: defaultCookieName + "=" + id},
		ut.Header{Key: "Device-Memory", Value: "8"})
	if !bytes.Contains(w.Result().Body(), []byte(`data-animate="true"`)) {
		t.Errorf("second navigation should animate with 8GB header")
	}
	if m.Count() != 1 {
		t.Errorf("sessions = %d, want 1 after cookie reuse", m.Count())
	}
}

func sessionIDs(t *testing.T, m *session.Manager) []string {
	t.Helper()
	ids, err := m.IDs(context.Background())
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	return ids
}
