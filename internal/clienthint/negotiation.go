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

package clienthint

import (
	"strconv"
	"strings"
	"time"
)

// DefaultLifetime Accept-CH-Lifetime 默认值（一天）
const DefaultLifetime = 86400 * time.Second

// DefaultAccept 默认请求的提示列表
var DefaultAccept = []string{HeaderDPR, HeaderWidth, HeaderViewportWidth, HeaderECT, HeaderDeviceMemory}

// Pair 一个响应头（或 meta http-equiv）键值
type Pair struct {
	Name  string
	Value string
}

// Negotiation 服务端希望客户端在后续请求中携带的提示及其缓存时长
type Negotiation struct {
	Accept   []string
	Lifetime time.Duration
}

// DefaultNegotiation DPR, Width, Viewport-Width, ECT, Device-Memory；有效期 86400 秒
func DefaultNegotiation() Negotiation {
	accept := make([]string, len(DefaultAccept))
	copy(accept, DefaultAccept)
	return Negotiation{Accept: accept, Lifetime: DefaultLifetime}
}

// Headers 响应头：Accept-CH、Accept-CH-Lifetime、Vary
func (n Negotiation) Headers() []Pair {
	if len(n.Accept) == 0 {
		return nil
	}
	out := n.MetaTags()
	if n.requests(HeaderDeviceMemory) {
		out = append(out, Pair{Name: HeaderVary, Value: HeaderDeviceMemory})
	}
	return out
}

// MetaTags 页面 <meta http-equiv> 标签内容（不含 Vary）
func (n Negotiation) MetaTags() []Pair {
	if len(n.Accept) == 0 {
		return nil
	}
	out := []Pair{{Name: HeaderAcceptCH, Value: strings.Join(n.Accept, ", ")}}
	if secs := int64(n.Lifetime / time.Second); secs > 0 {
		out = append(out, Pair{Name: HeaderAcceptCHLifetime, Value: strconv.FormatInt(secs, 10)})
	}
	return out
}

func (n Negotiation) requests(name string) bool {
	for _, a := range n.Accept {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
