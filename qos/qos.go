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

// Package qos implements the DDS QoS policy set and the Writer/Reader
// compatibility matrix used at endpoint-matching time (spec §4.4).
package qos

import (
	"fmt"
	"strings"

	"github.com/xtaci/rtps/wire"
)

// Durability orders Volatile < TransientLocal (spec §4.4); Transient and
// Persistent durability (disk/durability-service backed) are out of
// scope for this core (spec Non-goals).
type Durability int

const (
	DurabilityVolatile Durability = iota
	DurabilityTransientLocal
)

// Ownership selects shared or exclusive instance ownership.
type Ownership int

const (
	OwnershipShared Ownership = iota
	OwnershipExclusive
)

// LivelinessKind orders Automatic < ManualByParticipant < ManualByTopic
// (spec §4.4).
type LivelinessKind int

const (
	LivelinessAutomatic LivelinessKind = iota
	LivelinessManualByParticipant
	LivelinessManualByTopic
)

// ReliabilityKind orders BestEffort < Reliable (spec §4.4).
type ReliabilityKind int

const (
	ReliabilityBestEffort ReliabilityKind = iota + 1
	ReliabilityReliable
)

// DestinationOrderKind orders ByReceptionTimestamp < BySourceTimestamp
// (spec §4.4).
type DestinationOrderKind int

const (
	DestinationOrderByReceptionTimestamp DestinationOrderKind = iota
	DestinationOrderBySourceTimestamp
)

// HistoryKind selects whether a HistoryCache retains every sample or
// only the most recent Depth (spec §3/§4.2).
type HistoryKind int

const (
	HistoryKeepLast HistoryKind = iota
	HistoryKeepAll
)

// Liveliness bundles kind and lease duration (spec §3).
type Liveliness struct {
	Kind          LivelinessKind
	LeaseDuration wire.Duration
}

// Deadline bounds the maximum expected period between samples.
type Deadline struct {
	Period wire.Duration
}

// LatencyBudget is a hint about the acceptable delay before delivery.
type LatencyBudget struct {
	Duration wire.Duration
}

// History bounds depth when Kind is KeepLast.
type History struct {
	Kind  HistoryKind
	Depth int32
}

// ResourceLimits bounds cache growth; 0 or negative fields mean
// unlimited in this core (spec §4.2 does not enforce hard caps beyond
// History KeepLast depth).
type ResourceLimits struct {
	MaxSamples             int32
	MaxInstances           int32
	MaxSamplesPerInstance  int32
}

// Policies is the full QoS policy set attached to a Reader, Writer, or
// Topic (spec §3/§4.4). Combine treats a field as explicitly set only
// when it was assigned through the matching With* builder.
type Policies struct {
	Durability        Durability
	Deadline          Deadline
	LatencyBudget     LatencyBudget
	Ownership         Ownership
	OwnershipStrength int32
	Liveliness        Liveliness
	Reliability       ReliabilityKind
	DestinationOrder  DestinationOrderKind
	History           History
	ResourceLimits    ResourceLimits
	UserData          []byte

	set map[string]bool
}

// Default returns the RTPS-spec default policy set: Volatile durability,
// BestEffort reliability, Automatic liveliness with infinite lease,
// ByReceptionTimestamp ordering, KeepLast history with depth 1.
func Default() Policies {
	return Policies{
		Durability:       DurabilityVolatile,
		Deadline:         Deadline{Period: wire.DurationInfinite},
		LatencyBudget:    LatencyBudget{Duration: wire.DurationZero},
		Ownership:        OwnershipShared,
		Liveliness:       Liveliness{Kind: LivelinessAutomatic, LeaseDuration: wire.DurationInfinite},
		Reliability:      ReliabilityBestEffort,
		DestinationOrder: DestinationOrderByReceptionTimestamp,
		History:          History{Kind: HistoryKeepLast, Depth: 1},
	}
}

// markSet tags a field name as user-overridden so Combine knows to
// prefer it over a base policy's value.
func (p *Policies) markSet(names ...string) {
	if p.set == nil {
		p.set = make(map[string]bool)
	}
	for _, n := range names {
		p.set[n] = true
	}
}

// WithDurability marks Durability as explicitly set.
func (p Policies) WithDurability(d Durability) Policies {
	p.Durability = d
	p.markSet("Durability")
	return p
}

// WithReliability marks Reliability as explicitly set.
func (p Policies) WithReliability(r ReliabilityKind) Policies {
	p.Reliability = r
	p.markSet("Reliability")
	return p
}

// WithHistory marks History as explicitly set.
func (p Policies) WithHistory(h History) Policies {
	p.History = h
	p.markSet("History")
	return p
}

// WithLiveliness marks Liveliness as explicitly set.
func (p Policies) WithLiveliness(l Liveliness) Policies {
	p.Liveliness = l
	p.markSet("Liveliness")
	return p
}

// WithDeadline marks Deadline as explicitly set.
func (p Policies) WithDeadline(d Deadline) Policies {
	p.Deadline = d
	p.markSet("Deadline")
	return p
}

// Combine layers override on top of base: any field override marked
// explicitly set replaces base's value for that field; everything else
// is inherited from base (spec §4.4 — "combine overwrites only policies
// the user marked as set").
func Combine(base, override Policies) Policies {
	result := base
	for field := range override.set {
		switch field {
		case "Durability":
			result.Durability = override.Durability
		case "Reliability":
			result.Reliability = override.Reliability
		case "History":
			result.History = override.History
		case "Liveliness":
			result.Liveliness = override.Liveliness
		case "Deadline":
			result.Deadline = override.Deadline
		case "LatencyBudget":
			result.LatencyBudget = override.LatencyBudget
		case "Ownership":
			result.Ownership = override.Ownership
		case "DestinationOrder":
			result.DestinationOrder = override.DestinationOrder
		}
	}
	result.set = mergedSet(base.set, override.set)
	return result
}

func mergedSet(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// IncompatibilityReason explains why offered and requested policies
// failed to match (spec §4.4/§9 scenario 5).
type IncompatibilityReason struct {
	Policy string
	Detail string
}

func (r IncompatibilityReason) Error() string {
	return fmt.Sprintf("%s incompatible: %s", r.Policy, r.Detail)
}

// IsCompatibleWith checks whether offered (Writer side) satisfies
// requested (Reader side), per the ordering rules of spec §4.4. It
// returns every violated policy so the caller can report a complete
// reason. There is one function for both directions: a match is always
// evaluated as offered.IsCompatibleWith(requested) (P7).
func (offered Policies) IsCompatibleWith(requested Policies) []IncompatibilityReason {
	var reasons []IncompatibilityReason

	if offered.Durability < requested.Durability {
		reasons = append(reasons, IncompatibilityReason{"durability", "offered durability weaker than requested"})
	}
	if requested.Deadline.Period.Less(offered.Deadline.Period) {
		reasons = append(reasons, IncompatibilityReason{"deadline", "offered period exceeds requested period"})
	}
	if requested.LatencyBudget.Duration.Less(offered.LatencyBudget.Duration) {
		reasons = append(reasons, IncompatibilityReason{"latency_budget", "offered budget exceeds requested budget"})
	}
	if offered.Ownership != requested.Ownership {
		reasons = append(reasons, IncompatibilityReason{"ownership", "ownership kinds differ"})
	}
	if offered.Liveliness.Kind < requested.Liveliness.Kind {
		reasons = append(reasons, IncompatibilityReason{"liveliness", "offered liveliness kind weaker than requested"})
	}
	if requested.Liveliness.LeaseDuration.Less(offered.Liveliness.LeaseDuration) {
		reasons = append(reasons, IncompatibilityReason{"liveliness", "offered lease duration exceeds requested lease duration"})
	}
	if offered.Reliability < requested.Reliability {
		reasons = append(reasons, IncompatibilityReason{"reliability", "offered reliability weaker than requested"})
	}
	if offered.DestinationOrder < requested.DestinationOrder {
		reasons = append(reasons, IncompatibilityReason{"destination_order", "offered ordering weaker than requested"})
	}
	return reasons
}

// Summary renders a list of IncompatibilityReason as a single message
// suitable for an OfferedIncompatibleQos/RequestedIncompatibleQos
// status event.
func Summary(reasons []IncompatibilityReason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = r.Error()
	}
	return strings.Join(parts, "; ")
}
