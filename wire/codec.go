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

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Endian selects the byte order a submessage is encoded/decoded with,
// governed per-submessage by the flags byte's bit 0 (spec §4.1).
type Endian bool

const (
	BigEndian    Endian = false
	LittleEndian Endian = true
)

func (e Endian) order() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// encoder accumulates bytes for one submessage body.
type encoder struct {
	order binary.ByteOrder
	buf   []byte
}

func newEncoder(e Endian) *encoder {
	return &encoder{order: e.order()}
}

func (w *encoder) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *encoder) u16(v uint16) { b := make([]byte, 2); w.order.PutUint16(b, v); w.buf = append(w.buf, b...) }
func (w *encoder) u32(v uint32) { b := make([]byte, 4); w.order.PutUint32(b, v); w.buf = append(w.buf, b...) }
func (w *encoder) u64(v uint64) { b := make([]byte, 8); w.order.PutUint64(b, v); w.buf = append(w.buf, b...) }
func (w *encoder) i32(v int32)  { w.u32(uint32(v)) }
func (w *encoder) raw(b []byte) { w.buf = append(w.buf, b...) }

func (w *encoder) pad4() {
	for len(w.buf)%4 != 0 {
		w.buf = append(w.buf, 0)
	}
}

func (w *encoder) sequenceNumber(s SequenceNumber) {
	w.i32(s.High())
	w.u32(s.Low())
}

func (w *encoder) locator(l Locator) {
	w.i32(int32(l.Kind))
	w.u32(l.Port)
	w.raw(l.Address[:])
}

func (w *encoder) timestamp(t Timestamp) {
	w.i32(t.Seconds)
	w.u32(t.Fraction)
}

func (w *encoder) duration(d Duration) {
	w.i32(d.Seconds)
	w.u32(d.Fraction)
}

func (w *encoder) guidPrefix(p [12]byte) { w.raw(p[:]) }
func (w *encoder) entityID(e [4]byte)    { w.raw(e[:]) }

func (w *encoder) sequenceNumberSet(s *SequenceNumberSet) {
	w.sequenceNumber(s.Base)
	w.u32(s.NumBits)
	for _, word := range s.bitmapWords() {
		w.u32(word)
	}
}

func (w *encoder) fragmentNumberSet(s *FragmentNumberSet) {
	w.u32(uint32(s.Base))
	w.u32(s.NumBits)
	for _, word := range s.bitmapWords() {
		w.u32(word)
	}
}

// decoder consumes bytes from one submessage body.
type decoder struct {
	order binary.ByteOrder
	buf   []byte
	pos   int
}

func newDecoder(e Endian, buf []byte) *decoder {
	return &decoder{order: e.order(), buf: buf}
}

func (r *decoder) remaining() int { return len(r.buf) - r.pos }

func (r *decoder) need(n int) error {
	if r.remaining() < n {
		return errors.Errorf("wire: short buffer, need %d bytes, have %d", n, r.remaining())
	}
	return nil
}

func (r *decoder) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *decoder) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := r.order.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *decoder) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := r.order.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *decoder) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := r.order.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *decoder) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *decoder) raw(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *decoder) skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

func (r *decoder) pad4() error {
	for r.pos%4 != 0 {
		if _, err := r.u8(); err != nil {
			return err
		}
	}
	return nil
}

func (r *decoder) sequenceNumber() (SequenceNumber, error) {
	hi, err := r.i32()
	if err != nil {
		return 0, err
	}
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	return SequenceNumberFromParts(hi, lo), nil
}

func (r *decoder) locator() (Locator, error) {
	var l Locator
	kind, err := r.i32()
	if err != nil {
		return l, err
	}
	port, err := r.u32()
	if err != nil {
		return l, err
	}
	addr, err := r.raw(16)
	if err != nil {
		return l, err
	}
	l.Kind = LocatorKind(kind)
	l.Port = port
	copy(l.Address[:], addr)
	return l, nil
}

func (r *decoder) timestamp() (Timestamp, error) {
	s, err := r.i32()
	if err != nil {
		return Timestamp{}, err
	}
	f, err := r.u32()
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Seconds: s, Fraction: f}, nil
}

func (r *decoder) duration() (Duration, error) {
	s, err := r.i32()
	if err != nil {
		return Duration{}, err
	}
	f, err := r.u32()
	if err != nil {
		return Duration{}, err
	}
	return Duration{Seconds: s, Fraction: f}, nil
}

func (r *decoder) guidPrefix() ([12]byte, error) {
	var p [12]byte
	b, err := r.raw(12)
	if err != nil {
		return p, err
	}
	copy(p[:], b)
	return p, nil
}

func (r *decoder) entityID() ([4]byte, error) {
	var e [4]byte
	b, err := r.raw(4)
	if err != nil {
		return e, err
	}
	copy(e[:], b)
	return e, nil
}

// sequenceNumberSet decodes a SequenceNumberSet, special-casing the
// base=0/numBits=0 preemptive-ping shape some peers send (spec §9, P3)
// which would otherwise fail the base>=1 validity check.
func (r *decoder) sequenceNumberSet() (*SequenceNumberSet, error) {
	base, err := r.sequenceNumber()
	if err != nil {
		return nil, err
	}
	numBits, err := r.u32()
	if err != nil {
		return nil, err
	}
	if base == 0 && numBits == 0 {
		return NewSequenceNumberSet(0), nil
	}
	numWords := int((numBits + 31) / 32)
	words := make([]uint32, numWords)
	for i := range words {
		w, err := r.u32()
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return sequenceNumberSetFromWords(base, numBits, words)
}

func (r *decoder) fragmentNumberSet() (*FragmentNumberSet, error) {
	base, err := r.u32()
	if err != nil {
		return nil, err
	}
	numBits, err := r.u32()
	if err != nil {
		return nil, err
	}
	numWords := int((numBits + 31) / 32)
	words := make([]uint32, numWords)
	for i := range words {
		w, err := r.u32()
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return fragmentNumberSetFromWords(FragmentNumber(base), numBits, words)
}
