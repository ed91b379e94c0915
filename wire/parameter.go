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

package wire

import "github.com/pkg/errors"

// ParameterID identifies one entry of a ParameterList (spec §6,
// non-exhaustive list of what must be recognized on discovery records).
type ParameterID uint16

const (
	PIDPad                         ParameterID = 0x0000
	PIDSentinel                    ParameterID = 0x0001
	PIDParticipantLeaseDuration    ParameterID = 0x0002
	PIDTimeBasedFilter             ParameterID = 0x0004
	PIDTopicName                   ParameterID = 0x0005
	PIDOwnershipStrength           ParameterID = 0x0006
	PIDTypeName                    ParameterID = 0x0007
	PIDDomainID                    ParameterID = 0x000f
	PIDReliability                 ParameterID = 0x001a
	PIDLiveliness                  ParameterID = 0x001b
	PIDDurability                  ParameterID = 0x001d
	PIDDurabilityService           ParameterID = 0x001e
	PIDOwnership                   ParameterID = 0x001f
	PIDPresentation                ParameterID = 0x0021
	PIDDeadline                    ParameterID = 0x0023
	PIDDestinationOrder            ParameterID = 0x0025
	PIDLatencyBudget               ParameterID = 0x0027
	PIDPartition                   ParameterID = 0x0029
	PIDLifespan                    ParameterID = 0x002b
	PIDUserData                    ParameterID = 0x002c
	PIDGroupData                   ParameterID = 0x002d
	PIDTopicData                   ParameterID = 0x002e
	PIDUnicastLocator              ParameterID = 0x002f
	PIDMulticastLocator            ParameterID = 0x0030
	PIDDefaultUnicastLocator       ParameterID = 0x0031
	PIDMetatrafficUnicastLocator   ParameterID = 0x0032
	PIDMetatrafficMulticastLocator ParameterID = 0x0033
	PIDDefaultMulticastLocator     ParameterID = 0x0048
	PIDTransportPriority           ParameterID = 0x0049
	PIDExpectsInlineQoS            ParameterID = 0x0043
	PIDBuiltinEndpointSet          ParameterID = 0x0058
	PIDEndpointGUID                ParameterID = 0x005a
	PIDParticipantGUID             ParameterID = 0x0050
	PIDProtocolVersion             ParameterID = 0x0015
	PIDVendorID                    ParameterID = 0x0016
	PIDTypeMaxSizeSerialized       ParameterID = 0x0060
	PIDResourceLimits              ParameterID = 0x0041
	PIDHistory                     ParameterID = 0x0040
	PIDDomainTag                   ParameterID = 0x4014
	PIDParticipantManualLivelinessCount ParameterID = 0x0034
)

// mandatoryUnderstandBit marks a PID as "reject the record if unknown"
// (spec §6); IDs with the top bit clear may be silently skipped.
const mandatoryUnderstandBit = 0x8000

func (p ParameterID) RequiresUnderstanding() bool {
	return uint16(p)&mandatoryUnderstandBit != 0
}

// Parameter is one (id, value) entry of a ParameterList; the on-wire
// length is always recomputed from len(Value) when encoding.
type Parameter struct {
	ID    ParameterID
	Value []byte
}

// ParameterList is a PID/length/value sequence terminated by
// PID_SENTINEL, 4-byte-aligned per entry (spec §4.1).
type ParameterList struct {
	Parameters []Parameter
}

// Get returns the first parameter with the given id, if any.
func (pl ParameterList) Get(id ParameterID) (Parameter, bool) {
	for _, p := range pl.Parameters {
		if p.ID == id {
			return p, true
		}
	}
	return Parameter{}, false
}

// GetAll returns every parameter with the given id, in order (locator
// lists repeat a PID, spec §4.1).
func (pl ParameterList) GetAll(id ParameterID) []Parameter {
	var out []Parameter
	for _, p := range pl.Parameters {
		if p.ID == id {
			out = append(out, p)
		}
	}
	return out
}

// Add appends a parameter.
func (pl *ParameterList) Add(id ParameterID, value []byte) {
	pl.Parameters = append(pl.Parameters, Parameter{ID: id, Value: value})
}

// AddU32 appends a parameter carrying a single big/little-endian u32.
func (pl *ParameterList) AddU32(id ParameterID, v uint32, order Endian) {
	enc := newEncoder(order)
	enc.u32(v)
	pl.Add(id, enc.buf)
}

// AddLocator appends a parameter carrying one Locator (24 bytes).
func (pl *ParameterList) AddLocator(id ParameterID, l Locator, order Endian) {
	enc := newEncoder(order)
	enc.locator(l)
	pl.Add(id, enc.buf)
}

// AddString appends a parameter carrying a CDR string: u32 length
// (including the NUL terminator) followed by the bytes and NUL.
func (pl *ParameterList) AddString(id ParameterID, s string, order Endian) {
	enc := newEncoder(order)
	enc.u32(uint32(len(s) + 1))
	enc.raw([]byte(s))
	enc.u8(0)
	pl.Add(id, enc.buf)
}

// EncodeParameterList serializes pl, 4-byte-aligning every entry's value
// unconditionally and appending PID_SENTINEL (spec §4.1/§9 — the source's
// alignment bug is not reproduced).
func EncodeParameterList(pl ParameterList, order Endian) []byte {
	enc := newEncoder(order)
	for _, p := range pl.Parameters {
		padded := pad4Len(len(p.Value))
		enc.u16(uint16(p.ID))
		enc.u16(uint16(padded))
		enc.raw(p.Value)
		for i := len(p.Value); i < padded; i++ {
			enc.u8(0)
		}
	}
	enc.u16(uint16(PIDSentinel))
	enc.u16(0)
	return enc.buf
}

func pad4Len(n int) int {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// DecodeParameterList parses a ParameterList from buf starting at
// offset 0, stopping at PID_SENTINEL. An unknown mandatory-understand
// PID aborts the whole record (spec §6/§7); an unknown optional PID is
// kept in the returned list like any other parameter.
func DecodeParameterList(buf []byte, order Endian) (ParameterList, int, error) {
	dec := newDecoder(order, buf)
	var pl ParameterList
	for {
		id, err := dec.u16()
		if err != nil {
			return pl, dec.pos, errors.Wrap(err, "wire: parameter list truncated before sentinel")
		}
		length, err := dec.u16()
		if err != nil {
			return pl, dec.pos, err
		}
		if ParameterID(id) == PIDSentinel {
			return pl, dec.pos, nil
		}
		value, err := dec.raw(int(length))
		if err != nil {
			return pl, dec.pos, err
		}
		pid := ParameterID(id)
		if pid.RequiresUnderstanding() && !knownParameterID(pid) {
			return pl, dec.pos, errors.Errorf("wire: unknown mandatory-understand parameter id %#04x", id)
		}
		if knownParameterID(pid) || !pid.RequiresUnderstanding() {
			pl.Parameters = append(pl.Parameters, Parameter{ID: pid, Value: append([]byte(nil), value...)})
		}
	}
}

func knownParameterID(id ParameterID) bool {
	switch id {
	case PIDPad, PIDSentinel, PIDParticipantLeaseDuration, PIDTimeBasedFilter, PIDTopicName,
		PIDOwnershipStrength, PIDTypeName, PIDDomainID, PIDReliability, PIDLiveliness, PIDDurability,
		PIDDurabilityService, PIDOwnership, PIDPresentation, PIDDeadline, PIDDestinationOrder,
		PIDLatencyBudget, PIDPartition, PIDLifespan, PIDUserData, PIDGroupData, PIDTopicData,
		PIDUnicastLocator, PIDMulticastLocator, PIDDefaultUnicastLocator, PIDMetatrafficUnicastLocator,
		PIDMetatrafficMulticastLocator, PIDDefaultMulticastLocator, PIDTransportPriority,
		PIDExpectsInlineQoS, PIDBuiltinEndpointSet, PIDEndpointGUID, PIDParticipantGUID,
		PIDProtocolVersion, PIDVendorID, PIDTypeMaxSizeSerialized, PIDResourceLimits, PIDHistory,
		PIDDomainTag, PIDParticipantManualLivelinessCount:
		return true
	default:
		return false
	}
}

// RepresentationIdentifier selects the CDR flavor of a SerializedPayload
// (spec §4.1).
type RepresentationIdentifier uint16

const (
	ReprCDRBE   RepresentationIdentifier = 0x0000
	ReprCDRLE   RepresentationIdentifier = 0x0001
	ReprPLCDRBE RepresentationIdentifier = 0x0002
	ReprPLCDRLE RepresentationIdentifier = 0x0003
)

// SerializedPayload is a 4-byte representation header plus opaque
// payload bytes (spec §4.1).
type SerializedPayload struct {
	Representation RepresentationIdentifier
	Data           []byte
}

// Encode serializes the payload: 2-byte representation id, 2 reserved
// option bytes, then the raw data.
func (p SerializedPayload) Encode() []byte {
	buf := make([]byte, 4, 4+len(p.Data))
	buf[0] = byte(p.Representation >> 8)
	buf[1] = byte(p.Representation)
	buf[2] = 0
	buf[3] = 0
	buf = append(buf, p.Data...)
	return buf
}

// DecodeSerializedPayload parses a SerializedPayload occupying the rest
// of buf.
func DecodeSerializedPayload(buf []byte) (SerializedPayload, error) {
	if len(buf) < 4 {
		return SerializedPayload{}, errors.New("wire: serialized payload shorter than its 4-byte header")
	}
	repr := RepresentationIdentifier(uint16(buf[0])<<8 | uint16(buf[1]))
	return SerializedPayload{Representation: repr, Data: append([]byte(nil), buf[4:]...)}, nil
}
