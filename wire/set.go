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
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// MaxSetBits is the largest numBits a SequenceNumberSet/FragmentNumberSet
// may carry on the wire (spec §3).
const MaxSetBits = 256

// SequenceNumberSet is a base sequence number plus a bitmap of up to 256
// bits, used by ACKNACK and GAP (spec §3).
type SequenceNumberSet struct {
	Base    SequenceNumber
	NumBits uint32
	bits    *bitset.BitSet
}

// NewSequenceNumberSet builds an empty set based at base.
func NewSequenceNumberSet(base SequenceNumber) *SequenceNumberSet {
	return &SequenceNumberSet{Base: base, NumBits: 0, bits: bitset.New(MaxSetBits)}
}

// Add marks seq (which must be >= Base) present in the set, growing
// NumBits to cover it.
func (s *SequenceNumberSet) Add(seq SequenceNumber) {
	if s.bits == nil {
		s.bits = bitset.New(MaxSetBits)
	}
	offset := uint(seq - s.Base)
	if offset >= MaxSetBits {
		return
	}
	s.bits.Set(offset)
	if uint32(offset+1) > s.NumBits {
		s.NumBits = uint32(offset + 1)
	}
}

// Has reports whether seq is set.
func (s *SequenceNumberSet) Has(seq SequenceNumber) bool {
	if s.bits == nil || seq < s.Base {
		return false
	}
	offset := uint(seq - s.Base)
	if offset >= MaxSetBits {
		return false
	}
	return s.bits.Test(offset)
}

// Sequences returns every set member in ascending order.
func (s *SequenceNumberSet) Sequences() []SequenceNumber {
	if s.bits == nil {
		return nil
	}
	var out []SequenceNumber
	for i, ok := s.bits.NextSet(0); ok && i < uint(s.NumBits); i, ok = s.bits.NextSet(i + 1) {
		out = append(out, s.Base+SequenceNumber(i))
	}
	return out
}

// Empty reports whether the set carries no members (used to detect the
// ACKNACK{base=0,num_bits=0} preemptive ping, spec §9/P3).
func (s *SequenceNumberSet) Empty() bool {
	return s.NumBits == 0
}

// bitmapWords returns the set's bitmap as ceil(NumBits/32) big-endian
// 32-bit words, the on-wire representation (spec §3).
func (s *SequenceNumberSet) bitmapWords() []uint32 {
	numWords := int((s.NumBits + 31) / 32)
	words := make([]uint32, numWords)
	if s.bits == nil {
		return words
	}
	for i, ok := s.bits.NextSet(0); ok && i < uint(s.NumBits); i, ok = s.bits.NextSet(i + 1) {
		word := i / 32
		bitInWord := 31 - (i % 32)
		words[word] |= 1 << uint(bitInWord)
	}
	return words
}

// sequenceNumberSetFromWords rebuilds a set from its wire bitmap words.
func sequenceNumberSetFromWords(base SequenceNumber, numBits uint32, words []uint32) (*SequenceNumberSet, error) {
	if numBits > MaxSetBits {
		return nil, errors.Errorf("wire: SequenceNumberSet numBits %d out of [0,%d]", numBits, MaxSetBits)
	}
	wantWords := int((numBits + 31) / 32)
	if len(words) != wantWords {
		return nil, errors.Errorf("wire: SequenceNumberSet bitmap has %d words, want %d", len(words), wantWords)
	}
	if base < 1 {
		return nil, errors.Errorf("wire: SequenceNumberSet base %d must be >= 1", int64(base))
	}
	s := NewSequenceNumberSet(base)
	s.NumBits = numBits
	for word, w := range words {
		for bitInWord := 0; bitInWord < 32; bitInWord++ {
			offset := uint(word*32 + bitInWord)
			if offset >= uint(numBits) {
				break
			}
			if w&(1<<uint(31-bitInWord)) != 0 {
				s.bits.Set(offset)
			}
		}
	}
	return s, nil
}

// FragmentNumber is a 1-based fragment index within a DATA_FRAG run.
type FragmentNumber uint32

// FragmentNumberSet mirrors SequenceNumberSet but is indexed by
// FragmentNumber (used by NACK_FRAG, spec §3).
type FragmentNumberSet struct {
	Base    FragmentNumber
	NumBits uint32
	bits    *bitset.BitSet
}

// NewFragmentNumberSet builds an empty set based at base.
func NewFragmentNumberSet(base FragmentNumber) *FragmentNumberSet {
	return &FragmentNumberSet{Base: base, bits: bitset.New(MaxSetBits)}
}

// Add marks fragment present, growing NumBits to cover it.
func (s *FragmentNumberSet) Add(fragment FragmentNumber) {
	if s.bits == nil {
		s.bits = bitset.New(MaxSetBits)
	}
	offset := uint(fragment - s.Base)
	if offset >= MaxSetBits {
		return
	}
	s.bits.Set(offset)
	if uint32(offset+1) > s.NumBits {
		s.NumBits = uint32(offset + 1)
	}
}

// Fragments returns every set member in ascending order.
func (s *FragmentNumberSet) Fragments() []FragmentNumber {
	if s.bits == nil {
		return nil
	}
	var out []FragmentNumber
	for i, ok := s.bits.NextSet(0); ok && i < uint(s.NumBits); i, ok = s.bits.NextSet(i + 1) {
		out = append(out, s.Base+FragmentNumber(i))
	}
	return out
}

func (s *FragmentNumberSet) bitmapWords() []uint32 {
	numWords := int((s.NumBits + 31) / 32)
	words := make([]uint32, numWords)
	if s.bits == nil {
		return words
	}
	for i, ok := s.bits.NextSet(0); ok && i < uint(s.NumBits); i, ok = s.bits.NextSet(i + 1) {
		word := i / 32
		bitInWord := 31 - (i % 32)
		words[word] |= 1 << uint(bitInWord)
	}
	return words
}

func fragmentNumberSetFromWords(base FragmentNumber, numBits uint32, words []uint32) (*FragmentNumberSet, error) {
	if numBits < 1 || numBits > MaxSetBits {
		return nil, errors.Errorf("wire: FragmentNumberSet numBits %d out of [1,%d]", numBits, MaxSetBits)
	}
	wantWords := int((numBits + 31) / 32)
	if len(words) != wantWords {
		return nil, errors.Errorf("wire: FragmentNumberSet bitmap has %d words, want %d", len(words), wantWords)
	}
	s := NewFragmentNumberSet(base)
	s.NumBits = numBits
	for word, w := range words {
		for bitInWord := 0; bitInWord < 32; bitInWord++ {
			offset := uint(word*32 + bitInWord)
			if offset >= uint(numBits) {
				break
			}
			if w&(1<<uint(31-bitInWord)) != 0 {
				s.bits.Set(offset)
			}
		}
	}
	return s, nil
}
