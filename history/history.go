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

// Package history implements the per-endpoint HistoryCache (spec §4.2):
// the ordered set of CacheChanges a Writer or Reader currently holds.
package history

import (
	"sort"
	"sync"

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/wire"
)

// ChangeKind classifies a CacheChange's payload state (spec §4.2).
type ChangeKind int

const (
	ChangeKindAlive ChangeKind = iota
	ChangeKindAliveFiltered
	ChangeKindNotAliveDisposed
	ChangeKindNotAliveUnregistered
)

// InstanceHandle identifies a keyed data instance; this core does not
// implement keyed-topic instance tracking, so it is always the zero
// value (one instance per topic, spec Non-goals).
type InstanceHandle [16]byte

// CacheChange is one sample held in a HistoryCache (spec §4.2).
type CacheChange struct {
	Kind           ChangeKind
	WriterGUID     guid.GUID
	SequenceNumber wire.SequenceNumber
	SourceTimestamp wire.Timestamp
	InstanceHandle InstanceHandle
	InlineQoS      *wire.ParameterList
	Data           *wire.SerializedPayload
}

// Cache is a thread-safe, sequence-number-ordered store of CacheChanges
// (spec §4.2). Readers and Writers each own one.
type Cache struct {
	mu      sync.RWMutex
	changes map[wire.SequenceNumber]CacheChange
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{changes: make(map[wire.SequenceNumber]CacheChange)}
}

// Add inserts the change keyed by its sequence number, failing if one
// is already present instead of silently overwriting it (spec §4.2's
// add_change contract).
func (c *Cache) Add(change CacheChange) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.changes[change.SequenceNumber]; exists {
		return false
	}
	c.changes[change.SequenceNumber] = change
	return true
}

// Get returns the change at seq, if present.
func (c *Cache) Get(seq wire.SequenceNumber) (CacheChange, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.changes[seq]
	return ch, ok
}

// Remove deletes the change at seq, if present.
func (c *Cache) Remove(seq wire.SequenceNumber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.changes, seq)
}

// RemoveAll empties the cache.
func (c *Cache) RemoveAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = make(map[wire.SequenceNumber]CacheChange)
}

// Len reports the number of changes currently held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.changes)
}

// MinSeqNum returns the lowest sequence number held, or 0 if empty
// (spec §4.2).
func (c *Cache) MinSeqNum() wire.SequenceNumber {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.changes) == 0 {
		return 0
	}
	min := wire.SequenceNumber(1<<63 - 1)
	for sn := range c.changes {
		if sn < min {
			min = sn
		}
	}
	return min
}

// MaxSeqNum returns the highest sequence number held, or 0 if empty
// (spec §4.2).
func (c *Cache) MaxSeqNum() wire.SequenceNumber {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var max wire.SequenceNumber
	for sn := range c.changes {
		if sn > max {
			max = sn
		}
	}
	return max
}

// Changes returns every held change, ordered by ascending sequence
// number.
func (c *Cache) Changes() []CacheChange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]CacheChange, 0, len(c.changes))
	for _, ch := range c.changes {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

// ChangesSince returns every held change with sequence number > after,
// ordered ascending — the set a late-joining or catching-up reader
// still needs.
func (c *Cache) ChangesSince(after wire.SequenceNumber) []CacheChange {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []CacheChange
	for sn, ch := range c.changes {
		if sn > after {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	return out
}

// TakeReady returns every held change in ascending sequence-number order
// and removes it from the cache in the same step, so a caller's
// delivered watermark never needs tracking separately (spec §4.2's
// get_ready_changes, a one-line operation there — here made explicit so
// a Reader's Take() is atomic with respect to concurrent Add calls).
func (c *Cache) TakeReady() []CacheChange {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CacheChange, 0, len(c.changes))
	for _, ch := range c.changes {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceNumber < out[j].SequenceNumber })
	c.changes = make(map[wire.SequenceNumber]CacheChange)
	return out
}
