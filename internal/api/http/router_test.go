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
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"memory-animation/internal/api/http/middleware"
)

func buildRouterForTest(metricsEnabled bool) *server.Hertz {
	h, _ := newTestHandler()
	mw := middleware.NewMiddleware()
	r := NewRouter(h, mw)
	r.SetMetricsEnabled(metricsEnabled)
	return r.Build(":0")
}

func TestRouter_MetricsRouteDisabled(t *testing.T) {
	s := buildRouterForTest(false)

	w := ut.PerformRequest(s.Engine, "GET", "/metrics", emptyBody())
	if got := w.Result().StatusCode(); got != 404 {
		t.Fatalf("GET /metrics status = %d, want 404", got)
	}
}

func TestRouter_MetricsRouteEnabled(t *testing.T) {
	s := buildRouterForTest(true)

	// 先产生一次决策，确保计数器有样本
	ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody(), ut.Header{Key: "Device-Memory", Value: "8"})

	w := ut.PerformRequest(s.Engine, "GET", "/metrics", emptyBody())
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("GET /metrics status = %d, want 200", got)
	}
	if !bytes.Contains(w.Result().Body(), []byte("animgate_decisions_total")) {
		t.Fatalf("metrics body missing decision counter: %s", w.Result().Body())
	}
}

func TestRouter_ClientHintHeadersOnEveryResponse(t *testing.T) {
	s := buildRouterForTest(true)

	for _, path := range []string{"/api/health", "/api/sessions/missing", "/"} {
		w := ut.PerformRequest(s.Engine, "GET", path, emptyBody())
		resp := w.Result()
		if got := string(resp.Header.Peek("Accept-CH")); got != "DPR, Width, Viewport-Width, ECT, Device-Memory" {
			t.Errorf("%s Accept-CH = %q", path, got)
		}
		if got := string(resp.Header.Peek("Accept-CH-Lifetime")); got != "86400" {
			t.Errorf("%s Accept-CH-Lifetime = %q", path, got)
		}
		if got := string(resp.Header.Peek("Vary")); got != "Device-Memory" {
			t.Errorf("%s Vary = %q", path, got)
		}
	}
}

func TestRouter_RateLimitSessions(t *testing.T) {
	h, _ := newTestHandler()
	r := NewRouter(h, middleware.NewMiddleware())
	r.SetRateLimit(0.001, 1)
	s := r.Build(":0")

	w := ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	if got := w.Result().StatusCode(); got != 201 {
		t.Fatalf("first request status = %d, want 201", got)
	}
	w = ut.PerformRequest(s.Engine, "POST", "/api/sessions", emptyBody())
	if got := w.Result().StatusCode(); got != 429 {
		t.Fatalf("second request status = %d, want 429", got)
	}

	// 读接口不限流
	for i := 0; i < 3; i++ {
		w = ut.PerformRequest(s.Engine, "GET", "/api/health", emptyBody())
		if got := w.Result().StatusCode(); got != 200 {
			t.Fatalf("health status = %d, want 200", got)
		}
	}
}
