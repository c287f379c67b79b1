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

package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-animation/internal/gate"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

type decideOutput struct {
	Decision struct {
		AutomaticAllowed bool `json:"automatic_allowed"`
		EffectiveAllowed bool `json:"effective_allowed"`
	} `json:"decision"`
	Status gate.MemoryStatus `json:"status"`
}

func TestDecideCmd(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want bool
	}{
		{"low memory", []string{"--memory", "2"}, false},
		{"at threshold", []string{"--memory", "4"}, true},
		{"unsupported permissive", []string{"--unsupported"}, true},
		{"unsupported conservative", []string{"--unsupported", "--policy", "conservative"}, false},
		{"override on", []string{"--memory", "1", "--override", "on"}, true},
		{"override off", []string{"--memory", "8", "--override", "off"}, false},
		{"custom threshold", []string{"--memory", "2", "--threshold", "2"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runCLI(t, append([]string{"decide"}, tc.args...)...)
			require.NoError(t, err)
			var res decideOutput
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tc.want, res.Decision.EffectiveAllowed)
		})
	}
}

func TestDecideCmd_Errors(t *testing.T) {
	_, err := runCLI(t, "decide")
	assert.Error(t, err)

	_, err = runCLI(t, "decide", "--memory", "2", "--override", "maybe")
	assert.Error(t, err)

	_, err = runCLI(t, "decide", "--memory", "2", "--threshold", "0")
	assert.Error(t, err)

	_, err = runCLI(t, "decide", "--memory", "2", "--policy", "strict")
	assert.Error(t, err)
}

func TestProbeSignal(t *testing.T) {
	const gib = 1 << 30
	assert.Equal(t, gate.Reading(8, gate.SourceCapability), probeSignal(16*gib))
	assert.Equal(t, gate.Reading(4, gate.SourceCapability), probeSignal(3*gib+gib/2))
	assert.False(t, probeSignal(0).Supported)

	res, err := decide(decideOptions{threshold: 4, policy: "permissive"}, probeSignal(2*gib))
	require.NoError(t, err)
	assert.False(t, res.Decision.EffectiveAllowed())
	assert.True(t, res.Status.OverLoaded)
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "animgate cli "))
}

func TestClient_StatusAndOverride(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/s1":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"session_id":"s1"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/sessions/s1/override":
			var body map[string]bool
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"session_id": "s1", "active": body["active"], "value": body["value"]})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"session not found"}`))
		}
	}))
	defer srv.Close()

	c := newClient(srv.URL)
	got, err := getSession(c, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got["session_id"])

	got, err = postOverride(c, "s1", true, false)
	require.NoError(t, err)
	assert.Equal(t, true, got["active"])
	assert.Equal(t, false, got["value"])

	_, err = getSession(c, "missing")
	assert.ErrorContains(t, err, "session not found")
}
