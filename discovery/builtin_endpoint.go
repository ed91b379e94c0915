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

// Package discovery implements SPDP, SEDP, ParticipantMessage and the
// shared DiscoveryDB (spec §4.8, §3).
package discovery

// BuiltinEndpointSet is the bitmask of built-in endpoints a participant
// advertises in its SPDPdiscoveredParticipantData (spec §3,
// PID_BUILTIN_ENDPOINT_SET). Only the endpoints this core actually
// implements are defined; Security/TypeLookup bits from the RTPS
// spec's fuller table are out of scope (spec Non-goals) and are never
// set or checked.
type BuiltinEndpointSet uint32

const (
	BuiltinEndpointParticipantAnnouncer BuiltinEndpointSet = 1 << 0
	BuiltinEndpointParticipantDetector  BuiltinEndpointSet = 1 << 1
	BuiltinEndpointPublicationsAnnouncer  BuiltinEndpointSet = 1 << 2
	BuiltinEndpointPublicationsDetector   BuiltinEndpointSet = 1 << 3
	BuiltinEndpointSubscriptionsAnnouncer BuiltinEndpointSet = 1 << 4
	BuiltinEndpointSubscriptionsDetector  BuiltinEndpointSet = 1 << 5
	BuiltinEndpointParticipantMessageWriter BuiltinEndpointSet = 1 << 10
	BuiltinEndpointParticipantMessageReader BuiltinEndpointSet = 1 << 11
)

// DefaultBuiltinEndpoints is what this implementation always advertises:
// every built-in endpoint it actually runs.
const DefaultBuiltinEndpoints = BuiltinEndpointParticipantAnnouncer |
	BuiltinEndpointParticipantDetector |
	BuiltinEndpointPublicationsAnnouncer |
	BuiltinEndpointPublicationsDetector |
	BuiltinEndpointSubscriptionsAnnouncer |
	BuiltinEndpointSubscriptionsDetector |
	BuiltinEndpointParticipantMessageWriter |
	BuiltinEndpointParticipantMessageReader

// Has reports whether e is set in the bitmask.
func (b BuiltinEndpointSet) Has(e BuiltinEndpointSet) bool { return b&e != 0 }
