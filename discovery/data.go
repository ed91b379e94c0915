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

package discovery

import (
	"github.com/pkg/errors"

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

// SPDPdiscoveredParticipantData is the record a participant broadcasts
// over SPDP and stores (per remote participant) in DiscoveryDB (spec
// §3, §4.8).
type SPDPdiscoveredParticipantData struct {
	DomainID                       uint16
	DomainTag                      string
	ProtocolVersion                wire.ProtocolVersion
	GUID                           guid.GUID
	VendorID                       [2]byte
	ExpectsInlineQoS               bool
	AvailableBuiltinEndpoints      BuiltinEndpointSet
	MetatrafficUnicastLocatorList  []wire.Locator
	MetatrafficMulticastLocatorList []wire.Locator
	DefaultUnicastLocatorList      []wire.Locator
	DefaultMulticastLocatorList    []wire.Locator
	ManualLivelinessCount          *uint32
	LeaseDuration                  wire.Duration
}

// EncodeSPDPParticipantData serializes p as a ParameterList (spec §3;
// the RTPS 2.3 PID table, "Table 9.14 — ParameterId mapping and default
// values" — unset optional fields are simply omitted).
func EncodeSPDPParticipantData(p SPDPdiscoveredParticipantData, order wire.Endian) []byte {
	var pl wire.ParameterList
	pl.AddU32(wire.PIDDomainID, uint32(p.DomainID), order)
	if p.DomainTag != "" {
		pl.AddString(wire.PIDDomainTag, p.DomainTag, order)
	}
	guidBytes := p.GUID.Bytes()
	pl.Add(wire.PIDParticipantGUID, guidBytes[:])
	pl.Add(wire.PIDVendorID, []byte{p.VendorID[0], p.VendorID[1]})
	if p.ExpectsInlineQoS {
		pl.AddU32(wire.PIDExpectsInlineQoS, 1, order)
	}
	pl.AddU32(wire.PIDBuiltinEndpointSet, uint32(p.AvailableBuiltinEndpoints), order)
	for _, l := range p.MetatrafficUnicastLocatorList {
		pl.AddLocator(wire.PIDMetatrafficUnicastLocator, l, order)
	}
	for _, l := range p.MetatrafficMulticastLocatorList {
		pl.AddLocator(wire.PIDMetatrafficMulticastLocator, l, order)
	}
	for _, l := range p.DefaultUnicastLocatorList {
		pl.AddLocator(wire.PIDDefaultUnicastLocator, l, order)
	}
	for _, l := range p.DefaultMulticastLocatorList {
		pl.AddLocator(wire.PIDDefaultMulticastLocator, l, order)
	}
	if p.LeaseDuration != (wire.Duration{}) {
		pl.AddU32(wire.PIDParticipantLeaseDuration, uint32(p.LeaseDuration.Seconds), order)
	}
	if p.ManualLivelinessCount != nil {
		pl.AddU32(wire.PIDParticipantManualLivelinessCount, *p.ManualLivelinessCount, order)
	}
	return wire.EncodeParameterList(pl, order)
}

// DecodeSPDPParticipantData parses the fields this core understands out
// of an inbound SPDP ParameterList; missing optional fields keep their
// zero value, except LeaseDuration, which defaults to 100s when the
// lease parameter is absent (spec §4.8).
func DecodeSPDPParticipantData(buf []byte, order wire.Endian) (SPDPdiscoveredParticipantData, error) {
	pl, _, err := wire.DecodeParameterList(buf, order)
	if err != nil {
		return SPDPdiscoveredParticipantData{}, errors.Wrap(err, "discovery: decode SPDP participant data")
	}
	var p SPDPdiscoveredParticipantData
	p.LeaseDuration = wire.Duration{Seconds: 100}

	if v, ok := pl.Get(wire.PIDDomainID); ok && len(v.Value) >= 4 {
		p.DomainID = uint16(decodeU32(v.Value, order))
	}
	if v, ok := pl.Get(wire.PIDDomainTag); ok {
		p.DomainTag = decodeCDRString(v.Value)
	}
	if v, ok := pl.Get(wire.PIDParticipantGUID); ok && len(v.Value) == guid.Length {
		var prefix guid.GuidPrefix
		var eid guid.EntityId
		copy(prefix[:], v.Value[:guid.PrefixLength])
		copy(eid[:], v.Value[guid.PrefixLength:])
		p.GUID = guid.New(prefix, eid)
	}
	if v, ok := pl.Get(wire.PIDVendorID); ok && len(v.Value) >= 2 {
		p.VendorID = [2]byte{v.Value[0], v.Value[1]}
	}
	if v, ok := pl.Get(wire.PIDExpectsInlineQoS); ok && len(v.Value) >= 4 {
		p.ExpectsInlineQoS = decodeU32(v.Value, order) != 0
	}
	if v, ok := pl.Get(wire.PIDBuiltinEndpointSet); ok && len(v.Value) >= 4 {
		p.AvailableBuiltinEndpoints = BuiltinEndpointSet(decodeU32(v.Value, order))
	}
	p.MetatrafficUnicastLocatorList = decodeLocators(pl.GetAll(wire.PIDMetatrafficUnicastLocator), order)
	p.MetatrafficMulticastLocatorList = decodeLocators(pl.GetAll(wire.PIDMetatrafficMulticastLocator), order)
	p.DefaultUnicastLocatorList = decodeLocators(pl.GetAll(wire.PIDDefaultUnicastLocator), order)
	p.DefaultMulticastLocatorList = decodeLocators(pl.GetAll(wire.PIDDefaultMulticastLocator), order)
	if v, ok := pl.Get(wire.PIDParticipantLeaseDuration); ok && len(v.Value) >= 4 {
		p.LeaseDuration = wire.Duration{Seconds: int32(decodeU32(v.Value, order))}
	}
	if v, ok := pl.Get(wire.PIDParticipantManualLivelinessCount); ok && len(v.Value) >= 4 {
		count := decodeU32(v.Value, order)
		p.ManualLivelinessCount = &count
	}
	return p, nil
}

func decodeU32(b []byte, order wire.Endian) uint32 {
	if order == wire.LittleEndian {
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	}
	return uint32(b[3]) | uint32(b[2])<<8 | uint32(b[1])<<16 | uint32(b[0])<<24
}

func decodeLocators(params []wire.Parameter, order wire.Endian) []wire.Locator {
	var out []wire.Locator
	for _, p := range params {
		if len(p.Value) < 24 {
			continue
		}
		kind := wire.LocatorKind(int32(decodeU32(p.Value[0:4], order)))
		port := decodeU32(p.Value[4:8], order)
		var addr [16]byte
		copy(addr[:], p.Value[8:24])
		out = append(out, wire.Locator{Kind: kind, Port: port, Address: addr})
	}
	return out
}

// BuiltinTopicData carries the topic/type name and QoS every
// DiscoveredWriterData/DiscoveredReaderData advertises alongside its
// proxy (spec §3's "publication/subscription proxy concatenated with
// builtin topic data").
type BuiltinTopicData struct {
	TopicName string
	TypeName  string
	QoS       qos.Policies
}

// DiscoveredWriterData is what SEDP's publications-announcer Writer
// sends for each local user Writer (spec §3, §4.8).
type DiscoveredWriterData struct {
	GUID                        guid.GUID
	UnicastLocatorList          []wire.Locator
	MulticastLocatorList        []wire.Locator
	DataMaxSizeSerialized       int32
	BuiltinTopicData            BuiltinTopicData
}

// DiscoveredReaderData is SEDP's subscriptions-announcer analogue.
type DiscoveredReaderData struct {
	GUID                 guid.GUID
	ExpectsInlineQoS     bool
	UnicastLocatorList   []wire.Locator
	MulticastLocatorList []wire.Locator
	BuiltinTopicData     BuiltinTopicData
}

// EncodeDiscoveredWriterData serializes d as a ParameterList (spec §3:
// "serialized as a parameter list (PID/length/value triples terminated
// by PID_SENTINEL)").
func EncodeDiscoveredWriterData(d DiscoveredWriterData, order wire.Endian) []byte {
	var pl wire.ParameterList
	guidBytes := d.GUID.Bytes()
	pl.Add(wire.PIDEndpointGUID, guidBytes[:])
	for _, l := range d.UnicastLocatorList {
		pl.AddLocator(wire.PIDUnicastLocator, l, order)
	}
	for _, l := range d.MulticastLocatorList {
		pl.AddLocator(wire.PIDMulticastLocator, l, order)
	}
	pl.AddU32(wire.PIDTypeMaxSizeSerialized, uint32(d.DataMaxSizeSerialized), order)
	pl.AddString(wire.PIDTopicName, d.BuiltinTopicData.TopicName, order)
	pl.AddString(wire.PIDTypeName, d.BuiltinTopicData.TypeName, order)
	addQoSParameters(&pl, d.BuiltinTopicData.QoS, order)
	return wire.EncodeParameterList(pl, order)
}

// DecodeDiscoveredWriterData is EncodeDiscoveredWriterData's inverse.
func DecodeDiscoveredWriterData(buf []byte, order wire.Endian) (DiscoveredWriterData, error) {
	pl, _, err := wire.DecodeParameterList(buf, order)
	if err != nil {
		return DiscoveredWriterData{}, errors.Wrap(err, "discovery: decode discovered writer data")
	}
	var d DiscoveredWriterData
	if v, ok := pl.Get(wire.PIDEndpointGUID); ok && len(v.Value) == guid.Length {
		d.GUID = guidFromBytes(v.Value)
	}
	d.UnicastLocatorList = decodeLocators(pl.GetAll(wire.PIDUnicastLocator), order)
	d.MulticastLocatorList = decodeLocators(pl.GetAll(wire.PIDMulticastLocator), order)
	if v, ok := pl.Get(wire.PIDTypeMaxSizeSerialized); ok && len(v.Value) >= 4 {
		d.DataMaxSizeSerialized = int32(decodeU32(v.Value, order))
	}
	d.BuiltinTopicData = decodeBuiltinTopicData(pl, order)
	return d, nil
}

// EncodeDiscoveredReaderData serializes d as a ParameterList.
func EncodeDiscoveredReaderData(d DiscoveredReaderData, order wire.Endian) []byte {
	var pl wire.ParameterList
	guidBytes := d.GUID.Bytes()
	pl.Add(wire.PIDEndpointGUID, guidBytes[:])
	if d.ExpectsInlineQoS {
		pl.AddU32(wire.PIDExpectsInlineQoS, 1, order)
	}
	for _, l := range d.UnicastLocatorList {
		pl.AddLocator(wire.PIDUnicastLocator, l, order)
	}
	for _, l := range d.MulticastLocatorList {
		pl.AddLocator(wire.PIDMulticastLocator, l, order)
	}
	pl.AddString(wire.PIDTopicName, d.BuiltinTopicData.TopicName, order)
	pl.AddString(wire.PIDTypeName, d.BuiltinTopicData.TypeName, order)
	addQoSParameters(&pl, d.BuiltinTopicData.QoS, order)
	return wire.EncodeParameterList(pl, order)
}

// DecodeDiscoveredReaderData is EncodeDiscoveredReaderData's inverse.
func DecodeDiscoveredReaderData(buf []byte, order wire.Endian) (DiscoveredReaderData, error) {
	pl, _, err := wire.DecodeParameterList(buf, order)
	if err != nil {
		return DiscoveredReaderData{}, errors.Wrap(err, "discovery: decode discovered reader data")
	}
	var d DiscoveredReaderData
	if v, ok := pl.Get(wire.PIDEndpointGUID); ok && len(v.Value) == guid.Length {
		d.GUID = guidFromBytes(v.Value)
	}
	if v, ok := pl.Get(wire.PIDExpectsInlineQoS); ok && len(v.Value) >= 4 {
		d.ExpectsInlineQoS = decodeU32(v.Value, order) != 0
	}
	d.UnicastLocatorList = decodeLocators(pl.GetAll(wire.PIDUnicastLocator), order)
	d.MulticastLocatorList = decodeLocators(pl.GetAll(wire.PIDMulticastLocator), order)
	d.BuiltinTopicData = decodeBuiltinTopicData(pl, order)
	return d, nil
}

func guidFromBytes(b []byte) guid.GUID {
	var prefix guid.GuidPrefix
	var eid guid.EntityId
	copy(prefix[:], b[:guid.PrefixLength])
	copy(eid[:], b[guid.PrefixLength:])
	return guid.New(prefix, eid)
}

// addQoSParameters encodes the subset of QoS policies the RTPS spec's
// PID table carries on SEDP records (spec §4.1/§4.4): reliability and
// durability kind, the two discriminators endpoint matching actually
// compares across the wire.
func addQoSParameters(pl *wire.ParameterList, q qos.Policies, order wire.Endian) {
	pl.AddU32(wire.PIDReliability, uint32(q.Reliability), order)
	pl.AddU32(wire.PIDDurability, uint32(q.Durability), order)
}

func decodeBuiltinTopicData(pl wire.ParameterList, order wire.Endian) BuiltinTopicData {
	var b BuiltinTopicData
	b.QoS = qos.Default()
	if v, ok := pl.Get(wire.PIDTopicName); ok {
		b.TopicName = decodeCDRString(v.Value)
	}
	if v, ok := pl.Get(wire.PIDTypeName); ok {
		b.TypeName = decodeCDRString(v.Value)
	}
	if v, ok := pl.Get(wire.PIDReliability); ok && len(v.Value) >= 4 {
		b.QoS.Reliability = qos.ReliabilityKind(decodeU32(v.Value, order))
	}
	if v, ok := pl.Get(wire.PIDDurability); ok && len(v.Value) >= 4 {
		b.QoS.Durability = qos.Durability(decodeU32(v.Value, order))
	}
	return b
}

// decodeCDRString reads the u32-length-prefixed, NUL-terminated string
// AddString writes. The length is read little-endian first and, when
// that value does not fit b, big-endian; the ASCII text that follows is
// the same bytes in either byte order.
func decodeCDRString(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	n := int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
	if n <= 0 || 4+n > len(b)+1 {
		n = int(b[0])<<24 | int(b[1])<<16 | int(b[2])<<8 | int(b[3])
	}
	if n <= 0 || 4+n > len(b)+1 {
		return ""
	}
	end := 4 + n - 1 // exclude the NUL terminator
	if end < 4 || end > len(b) {
		return ""
	}
	return string(b[4:end])
}

// ParticipantMessageKind distinguishes an automatic from a manual
// liveliness assertion carried by ParticipantMessageData (spec §4.8,
// "rtps spec 9.6.2.1").
type ParticipantMessageKind [4]byte

var (
	ParticipantMessageKindUnknown                 = ParticipantMessageKind{0x00, 0x00, 0x00, 0x00}
	ParticipantMessageKindAutomaticLivelinessUpdate = ParticipantMessageKind{0x00, 0x00, 0x00, 0x01}
	ParticipantMessageKindManualLivelinessUpdate    = ParticipantMessageKind{0x00, 0x00, 0x00, 0x02}
)

// ParticipantMessageData is the payload carried by the ParticipantMessage
// built-in Writer/Reader pair to refresh remote-writer liveliness (spec
// §4.8).
type ParticipantMessageData struct {
	GUID guid.GUID
	Kind ParticipantMessageKind
	Data []byte
}

// EncodeParticipantMessageData serializes m as raw CDR: guid (16),
// kind (4), then a u32-length-prefixed opaque data blob.
func EncodeParticipantMessageData(m ParticipantMessageData, order wire.Endian) []byte {
	guidBytes := m.GUID.Bytes()
	out := make([]byte, 0, guid.Length+4+4+len(m.Data))
	out = append(out, guidBytes[:]...)
	out = append(out, m.Kind[:]...)
	out = appendU32(out, uint32(len(m.Data)), order)
	out = append(out, m.Data...)
	return out
}

// DecodeParticipantMessageData is EncodeParticipantMessageData's
// inverse.
func DecodeParticipantMessageData(buf []byte, order wire.Endian) (ParticipantMessageData, error) {
	if len(buf) < guid.Length+4+4 {
		return ParticipantMessageData{}, errors.New("discovery: participant message data too short")
	}
	var m ParticipantMessageData
	m.GUID = guidFromBytes(buf[:guid.Length])
	copy(m.Kind[:], buf[guid.Length:guid.Length+4])
	n := decodeU32(buf[guid.Length+4:guid.Length+8], order)
	start := guid.Length + 8
	if start+int(n) > len(buf) {
		return ParticipantMessageData{}, errors.New("discovery: participant message data blob length out of range")
	}
	m.Data = append([]byte(nil), buf[start:start+int(n)]...)
	return m, nil
}

func appendU32(b []byte, v uint32, order wire.Endian) []byte {
	if order == wire.LittleEndian {
		return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
