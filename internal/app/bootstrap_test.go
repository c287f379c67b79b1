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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memory-animation/internal/clienthint"
	"memory-animation/internal/gate"
	"memory-animation/pkg/config"
	"memory-animation/pkg/errors"
)

func TestNewBootstrap_Defaults(t *testing.T) {
	b, err := NewBootstrap(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.Equal(t, gate.DefaultPolicy(), b.Policy)
	assert.Equal(t, clienthint.DefaultNegotiation(), b.Negotiation)
	require.NotNil(t, b.Sessions)

	s, err := b.Sessions.Create(context.Background(), clienthint.Hints{Memory: gate.Reading(2, gate.SourceHeader)})
	require.NoError(t, err)
	assert.False(t, s.Gate.Decision().EffectiveAllowed())
}

func TestNewBootstrap_CustomPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Animation.DeviceMemoryLimit = 2
	cfg.Animation.UnsupportedPolicy = "conservative"
	cfg.ClientHints.Accept = []string{"Device-Memory"}
	cfg.ClientHints.Lifetime = "1h"

	b, err := NewBootstrap(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	assert.Equal(t, 2.0, b.Policy.Threshold)
	assert.Equal(t, gate.Conservative, b.Policy.Unsupported)
	assert.Equal(t, []string{"Device-Memory"}, b.Negotiation.Accept)
	assert.Equal(t, time.Hour, b.Negotiation.Lifetime)
}

func TestNewPolicy_Invalid(t *testing.T) {
	_, err := NewPolicy(config.AnimationConfig{DeviceMemoryLimit: 4, UnsupportedPolicy: "maybe"})
	assert.True(t, errors.IsInvalidArg(err))

	_, err = NewPolicy(config.AnimationConfig{DeviceMemoryLimit: 0, UnsupportedPolicy: "permissive"})
	assert.True(t, errors.IsInvalidArg(err))
}
