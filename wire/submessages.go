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

// Flag bits beyond bit 0 (endianness), per submessage kind (spec §4.1).
const (
	FlagFinal      uint8 = 1 << 1 // ACKNACK, HEARTBEAT
	FlagLiveliness uint8 = 1 << 2 // HEARTBEAT
	FlagInvalidate uint8 = 1 << 1 // INFO_TS
	FlagMulticast  uint8 = 1 << 1 // INFO_REPLY, INFO_REPLY_IP4
	FlagInlineQoS  uint8 = 1 << 1 // DATA, DATA_FRAG
	FlagDataFlag   uint8 = 1 << 2 // DATA
	FlagKeyFlag    uint8 = 1 << 3 // DATA, DATA_FRAG
)

func wrap(kind SubmessageKind, flags uint8, order Endian, body []byte) []byte {
	f := SubmessageFlags(flags)
	if order == LittleEndian {
		f |= flagEndianBit
	}
	hdr := encodeSubmessageHeader(kind, f, uint16(len(body)), order)
	return append(hdr, body...)
}

// --- ACKNACK ---

type AckNack struct {
	ReaderID  [4]byte
	WriterID  [4]byte
	ReaderSNState *SequenceNumberSet
	Count     uint32
	Final     bool
}

func EncodeAckNack(a AckNack, order Endian) []byte {
	enc := newEncoder(order)
	enc.entityID(a.ReaderID)
	enc.entityID(a.WriterID)
	enc.sequenceNumberSet(a.ReaderSNState)
	enc.u32(a.Count)
	var flags uint8
	if a.Final {
		flags |= FlagFinal
	}
	return wrap(KindAckNack, flags, order, enc.buf)
}

func DecodeAckNack(body []byte, flags SubmessageFlags) (AckNack, error) {
	dec := newDecoder(flags.Endian(), body)
	var a AckNack
	var err error
	if a.ReaderID, err = dec.entityID(); err != nil {
		return a, err
	}
	if a.WriterID, err = dec.entityID(); err != nil {
		return a, err
	}
	if a.ReaderSNState, err = dec.sequenceNumberSet(); err != nil {
		return a, err
	}
	if a.Count, err = dec.u32(); err != nil {
		return a, err
	}
	a.Final = flags.Has(FlagFinal)
	return a, nil
}

// --- HEARTBEAT ---

type Heartbeat struct {
	ReaderID   [4]byte
	WriterID   [4]byte
	FirstSN    SequenceNumber
	LastSN     SequenceNumber
	Count      uint32
	Final      bool
	Liveliness bool
}

func EncodeHeartbeat(h Heartbeat, order Endian) []byte {
	enc := newEncoder(order)
	enc.entityID(h.ReaderID)
	enc.entityID(h.WriterID)
	enc.sequenceNumber(h.FirstSN)
	enc.sequenceNumber(h.LastSN)
	enc.u32(h.Count)
	var flags uint8
	if h.Final {
		flags |= FlagFinal
	}
	if h.Liveliness {
		flags |= FlagLiveliness
	}
	return wrap(KindHeartbeat, flags, order, enc.buf)
}

// ValidateHeartbeat enforces "last_sn < first_sn - 1" as a protocol
// error to be logged and ignored (spec §7), not a parse failure.
func ValidateHeartbeat(h Heartbeat) error {
	if h.LastSN < h.FirstSN-1 {
		return errors.Errorf("wire: heartbeat last_sn %d < first_sn-1 %d", h.LastSN, h.FirstSN-1)
	}
	return nil
}

func DecodeHeartbeat(body []byte, flags SubmessageFlags) (Heartbeat, error) {
	dec := newDecoder(flags.Endian(), body)
	var h Heartbeat
	var err error
	if h.ReaderID, err = dec.entityID(); err != nil {
		return h, err
	}
	if h.WriterID, err = dec.entityID(); err != nil {
		return h, err
	}
	if h.FirstSN, err = dec.sequenceNumber(); err != nil {
		return h, err
	}
	if h.LastSN, err = dec.sequenceNumber(); err != nil {
		return h, err
	}
	if h.Count, err = dec.u32(); err != nil {
		return h, err
	}
	h.Final = flags.Has(FlagFinal)
	h.Liveliness = flags.Has(FlagLiveliness)
	return h, nil
}

// --- GAP ---

type Gap struct {
	ReaderID  [4]byte
	WriterID  [4]byte
	GapStart  SequenceNumber
	GapList   *SequenceNumberSet
}

func EncodeGap(g Gap, order Endian) []byte {
	enc := newEncoder(order)
	enc.entityID(g.ReaderID)
	enc.entityID(g.WriterID)
	enc.sequenceNumber(g.GapStart)
	enc.sequenceNumberSet(g.GapList)
	return wrap(KindGap, 0, order, enc.buf)
}

func DecodeGap(body []byte, flags SubmessageFlags) (Gap, error) {
	dec := newDecoder(flags.Endian(), body)
	var g Gap
	var err error
	if g.ReaderID, err = dec.entityID(); err != nil {
		return g, err
	}
	if g.WriterID, err = dec.entityID(); err != nil {
		return g, err
	}
	if g.GapStart, err = dec.sequenceNumber(); err != nil {
		return g, err
	}
	if g.GapList, err = dec.sequenceNumberSet(); err != nil {
		return g, err
	}
	return g, nil
}

// --- INFO_TS ---

type InfoTimestamp struct {
	Invalidate bool
	Timestamp  Timestamp
}

func EncodeInfoTimestamp(m InfoTimestamp, order Endian) []byte {
	enc := newEncoder(order)
	var flags uint8
	if m.Invalidate {
		flags |= FlagInvalidate
	} else {
		enc.timestamp(m.Timestamp)
	}
	return wrap(KindInfoTS, flags, order, enc.buf)
}

func DecodeInfoTimestamp(body []byte, flags SubmessageFlags) (InfoTimestamp, error) {
	var m InfoTimestamp
	m.Invalidate = flags.Has(FlagInvalidate)
	if m.Invalidate {
		return m, nil
	}
	dec := newDecoder(flags.Endian(), body)
	ts, err := dec.timestamp()
	if err != nil {
		return m, err
	}
	m.Timestamp = ts
	return m, nil
}

// --- INFO_SRC ---

type InfoSource struct {
	ProtocolVersion ProtocolVersion
	VendorID        [2]byte
	GuidPrefix      [12]byte
}

func EncodeInfoSource(m InfoSource, order Endian) []byte {
	enc := newEncoder(order)
	enc.u32(0) // unused
	enc.u8(m.ProtocolVersion.Major)
	enc.u8(m.ProtocolVersion.Minor)
	enc.raw(m.VendorID[:])
	enc.guidPrefix(m.GuidPrefix)
	return wrap(KindInfoSrc, 0, order, enc.buf)
}

func DecodeInfoSource(body []byte, flags SubmessageFlags) (InfoSource, error) {
	dec := newDecoder(flags.Endian(), body)
	var m InfoSource
	if _, err := dec.u32(); err != nil {
		return m, err
	}
	major, err := dec.u8()
	if err != nil {
		return m, err
	}
	minor, err := dec.u8()
	if err != nil {
		return m, err
	}
	m.ProtocolVersion = ProtocolVersion{Major: major, Minor: minor}
	vendor, err := dec.raw(2)
	if err != nil {
		return m, err
	}
	copy(m.VendorID[:], vendor)
	if m.GuidPrefix, err = dec.guidPrefix(); err != nil {
		return m, err
	}
	return m, nil
}

// --- INFO_DST ---

type InfoDestination struct {
	GuidPrefix [12]byte
}

func EncodeInfoDestination(m InfoDestination, order Endian) []byte {
	enc := newEncoder(order)
	enc.guidPrefix(m.GuidPrefix)
	return wrap(KindInfoDst, 0, order, enc.buf)
}

func DecodeInfoDestination(body []byte, flags SubmessageFlags) (InfoDestination, error) {
	dec := newDecoder(flags.Endian(), body)
	var m InfoDestination
	var err error
	if m.GuidPrefix, err = dec.guidPrefix(); err != nil {
		return m, err
	}
	return m, nil
}

// --- INFO_REPLY / INFO_REPLY_IP4 ---

type InfoReply struct {
	UnicastLocatorList   []Locator
	Multicast            bool
	MulticastLocatorList []Locator
}

func EncodeInfoReply(m InfoReply, order Endian) []byte {
	enc := newEncoder(order)
	enc.u32(uint32(len(m.UnicastLocatorList)))
	for _, l := range m.UnicastLocatorList {
		enc.locator(l)
	}
	var flags uint8
	if m.Multicast {
		flags |= FlagMulticast
		enc.u32(uint32(len(m.MulticastLocatorList)))
		for _, l := range m.MulticastLocatorList {
			enc.locator(l)
		}
	}
	return wrap(KindInfoReply, flags, order, enc.buf)
}

func DecodeInfoReply(body []byte, flags SubmessageFlags) (InfoReply, error) {
	dec := newDecoder(flags.Endian(), body)
	var m InfoReply
	n, err := dec.u32()
	if err != nil {
		return m, err
	}
	for i := uint32(0); i < n; i++ {
		l, err := dec.locator()
		if err != nil {
			return m, err
		}
		m.UnicastLocatorList = append(m.UnicastLocatorList, l)
	}
	m.Multicast = flags.Has(FlagMulticast)
	if m.Multicast {
		n, err := dec.u32()
		if err != nil {
			return m, err
		}
		for i := uint32(0); i < n; i++ {
			l, err := dec.locator()
			if err != nil {
				return m, err
			}
			m.MulticastLocatorList = append(m.MulticastLocatorList, l)
		}
	}
	return m, nil
}

type InfoReplyIP4 struct {
	UnicastLocator   Locator
	Multicast        bool
	MulticastLocator Locator
}

func EncodeInfoReplyIP4(m InfoReplyIP4, order Endian) []byte {
	enc := newEncoder(order)
	enc.locator(m.UnicastLocator)
	var flags uint8
	if m.Multicast {
		flags |= FlagMulticast
		enc.locator(m.MulticastLocator)
	}
	return wrap(KindInfoReplyIP4, flags, order, enc.buf)
}

func DecodeInfoReplyIP4(body []byte, flags SubmessageFlags) (InfoReplyIP4, error) {
	dec := newDecoder(flags.Endian(), body)
	var m InfoReplyIP4
	var err error
	if m.UnicastLocator, err = dec.locator(); err != nil {
		return m, err
	}
	m.Multicast = flags.Has(FlagMulticast)
	if m.Multicast {
		if m.MulticastLocator, err = dec.locator(); err != nil {
			return m, err
		}
	}
	return m, nil
}

// --- NACK_FRAG ---

type NackFrag struct {
	ReaderID      [4]byte
	WriterID      [4]byte
	WriterSN      SequenceNumber
	FragmentNumberState *FragmentNumberSet
	Count         uint32
}

func EncodeNackFrag(m NackFrag, order Endian) []byte {
	enc := newEncoder(order)
	enc.entityID(m.ReaderID)
	enc.entityID(m.WriterID)
	enc.sequenceNumber(m.WriterSN)
	enc.fragmentNumberSet(m.FragmentNumberState)
	enc.u32(m.Count)
	return wrap(KindNackFrag, 0, order, enc.buf)
}

func DecodeNackFrag(body []byte, flags SubmessageFlags) (NackFrag, error) {
	dec := newDecoder(flags.Endian(), body)
	var m NackFrag
	var err error
	if m.ReaderID, err = dec.entityID(); err != nil {
		return m, err
	}
	if m.WriterID, err = dec.entityID(); err != nil {
		return m, err
	}
	if m.WriterSN, err = dec.sequenceNumber(); err != nil {
		return m, err
	}
	if m.FragmentNumberState, err = dec.fragmentNumberSet(); err != nil {
		return m, err
	}
	if m.Count, err = dec.u32(); err != nil {
		return m, err
	}
	return m, nil
}

// --- HEARTBEAT_FRAG ---

type HeartbeatFrag struct {
	ReaderID        [4]byte
	WriterID        [4]byte
	WriterSN        SequenceNumber
	LastFragmentNum uint32
	Count           uint32
}

func EncodeHeartbeatFrag(m HeartbeatFrag, order Endian) []byte {
	enc := newEncoder(order)
	enc.entityID(m.ReaderID)
	enc.entityID(m.WriterID)
	enc.sequenceNumber(m.WriterSN)
	enc.u32(m.LastFragmentNum)
	enc.u32(m.Count)
	return wrap(KindHeartbeatFrag, 0, order, enc.buf)
}

func DecodeHeartbeatFrag(body []byte, flags SubmessageFlags) (HeartbeatFrag, error) {
	dec := newDecoder(flags.Endian(), body)
	var m HeartbeatFrag
	var err error
	if m.ReaderID, err = dec.entityID(); err != nil {
		return m, err
	}
	if m.WriterID, err = dec.entityID(); err != nil {
		return m, err
	}
	if m.WriterSN, err = dec.sequenceNumber(); err != nil {
		return m, err
	}
	if m.LastFragmentNum, err = dec.u32(); err != nil {
		return m, err
	}
	if m.Count, err = dec.u32(); err != nil {
		return m, err
	}
	return m, nil
}

// --- DATA ---

// octetsToInlineQoS is always 16 in this implementation (spec §4.1): the
// fixed fields between the flags and where inline QoS would start sum to
// 16 bytes (extra_flags(2)+octets_to_inline_qos(2)+reader_id(4)+writer_id(4)+writer_sn(8) = 20;
// the count is measured *after* the octets_to_inline_qos field itself, i.e.
// reader_id+writer_id+writer_sn = 16).
const octetsToInlineQoS = 16

type Data struct {
	ReaderID         [4]byte
	WriterID         [4]byte
	WriterSN         SequenceNumber
	InlineQoS        *ParameterList
	SerializedPayload *SerializedPayload
}

// ValidateData enforces writer_sn > 0 as a protocol error (spec §7).
func ValidateData(d Data) error {
	if d.WriterSN <= 0 {
		return errors.Errorf("wire: data writer_sn %d <= 0", int64(d.WriterSN))
	}
	return nil
}

func EncodeData(d Data, order Endian) []byte {
	enc := newEncoder(order)
	enc.u16(0) // extra_flags, reserved
	enc.u16(octetsToInlineQoS)
	enc.entityID(d.ReaderID)
	enc.entityID(d.WriterID)
	enc.sequenceNumber(d.WriterSN)

	var flags uint8
	if d.InlineQoS != nil {
		flags |= FlagInlineQoS
		enc.raw(EncodeParameterList(*d.InlineQoS, order))
	}
	if d.SerializedPayload != nil {
		if d.SerializedPayload.Representation == ReprPLCDRBE || d.SerializedPayload.Representation == ReprPLCDRLE {
			flags |= FlagKeyFlag
		} else {
			flags |= FlagDataFlag
		}
		enc.raw(d.SerializedPayload.Encode())
	}
	return wrap(KindData, flags, order, enc.buf)
}

func DecodeData(body []byte, flags SubmessageFlags) (Data, error) {
	dec := newDecoder(flags.Endian(), body)
	var d Data
	if _, err := dec.u16(); err != nil { // extra_flags
		return d, err
	}
	octets, err := dec.u16()
	if err != nil {
		return d, err
	}
	if octets > octetsToInlineQoS {
		if err := dec.skip(int(octets) - octetsToInlineQoS); err != nil {
			return d, err
		}
	}
	if d.ReaderID, err = dec.entityID(); err != nil {
		return d, err
	}
	if d.WriterID, err = dec.entityID(); err != nil {
		return d, err
	}
	if d.WriterSN, err = dec.sequenceNumber(); err != nil {
		return d, err
	}
	if flags.Has(FlagInlineQoS) {
		pl, n, err := DecodeParameterList(dec.buf[dec.pos:], flags.Endian())
		if err != nil {
			return d, errors.Wrap(err, "wire: data inline qos")
		}
		dec.pos += n
		d.InlineQoS = &pl
	}
	if flags.Has(FlagDataFlag) || flags.Has(FlagKeyFlag) {
		payload, err := DecodeSerializedPayload(dec.buf[dec.pos:])
		if err != nil {
			return d, errors.Wrap(err, "wire: data serialized payload")
		}
		d.SerializedPayload = &payload
	}
	return d, nil
}

// --- DATA_FRAG ---

type DataFrag struct {
	ReaderID             [4]byte
	WriterID             [4]byte
	WriterSN             SequenceNumber
	FragmentStartingNum  uint32
	FragmentsInSubmessage uint16
	FragmentSize         uint16
	DataSize             uint32
	InlineQoS            *ParameterList
	FragmentData         []byte
}

func EncodeDataFrag(d DataFrag, order Endian) []byte {
	enc := newEncoder(order)
	enc.u16(0)
	enc.u16(octetsToInlineQoS)
	enc.entityID(d.ReaderID)
	enc.entityID(d.WriterID)
	enc.sequenceNumber(d.WriterSN)
	enc.u32(d.FragmentStartingNum)
	enc.u16(d.FragmentsInSubmessage)
	enc.u16(d.FragmentSize)
	enc.u32(d.DataSize)

	var flags uint8
	if d.InlineQoS != nil {
		flags |= FlagInlineQoS
		enc.raw(EncodeParameterList(*d.InlineQoS, order))
	}
	enc.raw(d.FragmentData)
	return wrap(KindDataFrag, flags, order, enc.buf)
}

func DecodeDataFrag(body []byte, flags SubmessageFlags) (DataFrag, error) {
	dec := newDecoder(flags.Endian(), body)
	var d DataFrag
	if _, err := dec.u16(); err != nil {
		return d, err
	}
	octets, err := dec.u16()
	if err != nil {
		return d, err
	}
	if octets > octetsToInlineQoS {
		if err := dec.skip(int(octets) - octetsToInlineQoS); err != nil {
			return d, err
		}
	}
	if d.ReaderID, err = dec.entityID(); err != nil {
		return d, err
	}
	if d.WriterID, err = dec.entityID(); err != nil {
		return d, err
	}
	if d.WriterSN, err = dec.sequenceNumber(); err != nil {
		return d, err
	}
	if d.FragmentStartingNum, err = dec.u32(); err != nil {
		return d, err
	}
	if d.FragmentsInSubmessage, err = dec.u16(); err != nil {
		return d, err
	}
	if d.FragmentSize, err = dec.u16(); err != nil {
		return d, err
	}
	if d.DataSize, err = dec.u32(); err != nil {
		return d, err
	}
	if flags.Has(FlagInlineQoS) {
		pl, n, err := DecodeParameterList(dec.buf[dec.pos:], flags.Endian())
		if err != nil {
			return d, errors.Wrap(err, "wire: data_frag inline qos")
		}
		dec.pos += n
		d.InlineQoS = &pl
	}
	// DataFrag carries opaque fragment bytes; this core parses the
	// header but does not reassemble (spec Non-goals).
	d.FragmentData = append([]byte(nil), dec.buf[dec.pos:]...)
	return d, nil
}

// EncodePad emits an empty PAD submessage.
func EncodePad(order Endian) []byte {
	return wrap(KindPad, 0, order, nil)
}
