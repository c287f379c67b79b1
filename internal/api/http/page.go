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
	"embed"
	"html/template"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
)

//go:embed templates/index.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// pageData 页面渲染数据
type pageData struct {
	SessionID    string
	MetaTags     []clienthint.Pair
	Status       gate.MemoryStatus
	Context      gate.EmulationState
	Threshold    float64
	SeedEstimate float64
}

// Page 布局入口：读取 Device-Memory 请求头建立或刷新会话，渲染初始决策
// GET /
func (h *Handler) Page(ctx context.Context, c *app.RequestContext) {
	hints := requestHints(c)
	s, created, err := h.sessions.GetOrCreate(ctx, string(c.Cookie(h.cookieName)), hints)
	if err != nil {
		hlog.CtxErrorf(ctx, "resolve page session: %v", err)
		c.String(consts.StatusInternalServerError, "failed to resolve session")
		return
	}
	if created {
		h.setSessionCookie(c, s.ID)
	}

	d := s.Gate.Decision()
	policy := s.Gate.Policy()
	data := pageData{
		SessionID:    s.ID,
		MetaTags:     h.negotiation.MetaTags(),
		Status:       policy.Status(d.Signal),
		Context:      gate.StateOf(d),
		Threshold:    policy.Threshold,
		SeedEstimate: clienthint.SeedEstimate(hints.Memory, h.defaultDeviceMemory),
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		hlog.CtxErrorf(ctx, "render page: %v", err)
		c.String(consts.StatusInternalServerError, "failed to render page")
		return
	}
	c.Data(consts.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
