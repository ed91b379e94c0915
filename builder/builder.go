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

// Package builder implements MessageBuilder: a fluent accumulator of
// submessages that emits a complete RTPS Message (spec §4.7).
package builder

import (
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/wire"
)

// Builder accumulates already-encoded submessages behind a Header seeded
// from the owning participant's GuidPrefix (spec §4.7). Each
// per-submessage method hands its fields to wire's own Encode*
// function, which writes the submessage header including its body
// length, so Builder's job is purely sequencing and header assembly.
type Builder struct {
	guidPrefix [12]byte
	order      wire.Endian
	subs       [][]byte
}

// New starts a builder for a message to be sent from guidPrefix.
func New(guidPrefix [12]byte, order wire.Endian) *Builder {
	return &Builder{guidPrefix: guidPrefix, order: order}
}

// InfoTimestamp appends an INFO_TS submessage carrying now.
func (b *Builder) InfoTimestamp(now wire.Timestamp) *Builder {
	b.subs = append(b.subs, wire.EncodeInfoTimestamp(wire.InfoTimestamp{Timestamp: now}, b.order))
	return b
}

// InfoDestination appends an INFO_DST submessage addressing prefix.
func (b *Builder) InfoDestination(prefix [12]byte) *Builder {
	b.subs = append(b.subs, wire.EncodeInfoDestination(wire.InfoDestination{GuidPrefix: prefix}, b.order))
	return b
}

// Data appends a DATA submessage.
func (b *Builder) Data(d wire.Data) *Builder {
	b.subs = append(b.subs, wire.EncodeData(d, b.order))
	return b
}

// DataFrag appends a DATA_FRAG submessage.
func (b *Builder) DataFrag(d wire.DataFrag) *Builder {
	b.subs = append(b.subs, wire.EncodeDataFrag(d, b.order))
	return b
}

// Heartbeat appends a HEARTBEAT submessage.
func (b *Builder) Heartbeat(readerID, writerID [4]byte, firstSN, lastSN wire.SequenceNumber, count uint32, final, liveliness bool) *Builder {
	b.subs = append(b.subs, wire.EncodeHeartbeat(wire.Heartbeat{
		ReaderID: readerID, WriterID: writerID, FirstSN: firstSN, LastSN: lastSN,
		Count: count, Final: final, Liveliness: liveliness,
	}, b.order))
	return b
}

// Gap appends a GAP submessage.
func (b *Builder) Gap(readerID, writerID [4]byte, gapStart wire.SequenceNumber, gapList *wire.SequenceNumberSet) *Builder {
	b.subs = append(b.subs, wire.EncodeGap(wire.Gap{ReaderID: readerID, WriterID: writerID, GapStart: gapStart, GapList: gapList}, b.order))
	return b
}

// AckNack appends an ACKNACK submessage.
func (b *Builder) AckNack(readerID, writerID [4]byte, state *wire.SequenceNumberSet, count uint32, final bool) *Builder {
	b.subs = append(b.subs, wire.EncodeAckNack(wire.AckNack{
		ReaderID: readerID, WriterID: writerID, ReaderSNState: state, Count: count, Final: final,
	}, b.order))
	return b
}

// NackFrag appends a NACK_FRAG submessage.
func (b *Builder) NackFrag(readerID, writerID [4]byte, writerSN wire.SequenceNumber, state *wire.FragmentNumberSet, count uint32) *Builder {
	b.subs = append(b.subs, wire.EncodeNackFrag(wire.NackFrag{
		ReaderID: readerID, WriterID: writerID, WriterSN: writerSN, FragmentNumberState: state, Count: count,
	}, b.order))
	return b
}

// Build assembles the accumulated submessages behind a Header, resets
// the builder, and returns the wire bytes ready to send.
func (b *Builder) Build() []byte {
	header := wire.Header{Version: wire.CurrentProtocolVersion, VendorID: [2]byte(guid.VendorIDThis), GuidPrefix: b.guidPrefix}
	out := wire.Encode(header, b.order, b.subs)
	b.subs = nil
	return out
}
