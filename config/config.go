// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package config holds the engine's tunables (§5's timer table defaults
// plus domain/participant identity) and decodes them from either a typed
// EngineConfig or an untyped map, the way the teacher's Config struct is
// populated from CLI flags or a JSON override file.
package config

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/xtaci/rtps/wire"
)

// EngineConfig is every tunable a running participant needs (spec §5/§6).
// Its mapstructure tags mirror the teacher's Config struct field-naming
// style (lower-case, no underscores) rather than spec.md's snake_case.
type EngineConfig struct {
	DomainID   uint16   `mapstructure:"domain"`
	Interfaces []string `mapstructure:"interfaces"`
	DomainTag  string   `mapstructure:"domaintag"`

	// ParticipantLease overrides the SPDP lease_duration this
	// participant advertises and the Participant-lease timer checks
	// peers against (spec §9 Open Question: kept at 20s, not the
	// RTPS-specified 100s, for compatibility with the source's peers).
	ParticipantLease wire.Duration `mapstructure:"-"`

	ParticipantMessagePeriod wire.Duration `mapstructure:"-"`
	HeartbeatPeriod          wire.Duration `mapstructure:"-"`
	NackResponseDelay        wire.Duration `mapstructure:"-"`
	HeartbeatResponseDelay   wire.Duration `mapstructure:"-"`

	// AutomaticLivelinessAssertPeriod is the EventLoop timer that
	// refreshes every local Automatic-liveliness writer's lease (spec
	// §5's fixed 10s row).
	AutomaticLivelinessAssertPeriod wire.Duration `mapstructure:"-"`

	PushMode bool `mapstructure:"pushmode"`
	Quiet    bool `mapstructure:"quiet"`
}

// Default returns the spec §5 timer defaults plus domain 0, push mode
// on — the values a participant runs with absent any override.
func Default() EngineConfig {
	return EngineConfig{
		DomainID:                        0,
		ParticipantLease:                wire.Duration{Seconds: 20},
		ParticipantMessagePeriod:        wire.Duration{Seconds: 3},
		HeartbeatPeriod:                 wire.Duration{Seconds: 2},
		NackResponseDelay:               wire.DurationZero,
		HeartbeatResponseDelay:          wire.DurationZero,
		AutomaticLivelinessAssertPeriod: wire.Duration{Seconds: 10},
		PushMode:                        true,
	}
}

// Decode populates an EngineConfig from either a map[string]interface{}
// (the façade's untyped override source) or an already-typed
// EngineConfig value. A map is overlaid onto Default(), so keys it does
// not supply keep their defaults; a typed EngineConfig is returned as
// is, with no defaults filled in; nil yields Default(). The map path
// mirrors the teacher's parseJSONConfig overlay onto
// CLI-flag defaults, but via mapstructure instead of encoding/json since
// the façade may hand the engine either shape (spec "AMBIENT STACK").
func Decode(input interface{}) (EngineConfig, error) {
	cfg := Default()
	if input == nil {
		return cfg, nil
	}
	if typed, ok := input.(EngineConfig); ok {
		return typed, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return EngineConfig{}, errors.Wrap(err, "config: build decoder")
	}
	if err := decoder.Decode(input); err != nil {
		return EngineConfig{}, errors.Wrap(err, "config: decode")
	}
	return cfg, nil
}
