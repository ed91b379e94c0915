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

package config

import "testing"

func TestDefaultMatchesTimerTable(t *testing.T) {
	cfg := Default()
	if cfg.ParticipantLease.Seconds != 20 {
		t.Errorf("ParticipantLease = %v, want 20s", cfg.ParticipantLease)
	}
	if cfg.HeartbeatPeriod.Seconds != 2 {
		t.Errorf("HeartbeatPeriod = %v, want 2s", cfg.HeartbeatPeriod)
	}
	if !cfg.PushMode {
		t.Error("expected PushMode to default true")
	}
}

func TestDecodeNilReturnsDefault(t *testing.T) {
	cfg, err := Decode(nil)
	if err != nil {
		t.Fatalf("Decode(nil) failed: %v", err)
	}
	want := Default()
	if cfg.DomainID != want.DomainID || cfg.PushMode != want.PushMode || cfg.ParticipantLease != want.ParticipantLease {
		t.Errorf("Decode(nil) = %+v, want %+v", cfg, want)
	}
}

func TestDecodeTypedPassesThrough(t *testing.T) {
	want := Default()
	want.DomainID = 7
	cfg, err := Decode(want)
	if err != nil {
		t.Fatalf("Decode(EngineConfig) failed: %v", err)
	}
	if cfg.DomainID != 7 {
		t.Errorf("DomainID = %d, want 7", cfg.DomainID)
	}
}

func TestDecodeMapOverlaysDefaults(t *testing.T) {
	cfg, err := Decode(map[string]interface{}{
		"domain":     3,
		"domaintag":  "lab",
		"pushmode":   false,
		"interfaces": []string{"eth0"},
	})
	if err != nil {
		t.Fatalf("Decode(map) failed: %v", err)
	}
	if cfg.DomainID != 3 {
		t.Errorf("DomainID = %d, want 3", cfg.DomainID)
	}
	if cfg.DomainTag != "lab" {
		t.Errorf("DomainTag = %q, want lab", cfg.DomainTag)
	}
	if cfg.PushMode {
		t.Error("expected PushMode overridden to false")
	}
	if len(cfg.Interfaces) != 1 || cfg.Interfaces[0] != "eth0" {
		t.Errorf("Interfaces = %v, want [eth0]", cfg.Interfaces)
	}
	// Unset fields still carry the spec §5 timer defaults (mapstructure:"-").
	if cfg.HeartbeatPeriod.Seconds != 2 {
		t.Errorf("HeartbeatPeriod = %v, want 2s default preserved", cfg.HeartbeatPeriod)
	}
}
