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

// Package proxy implements ReaderProxy and WriterProxy: the per-peer
// delivery-state tables a Writer keeps about each matched Reader, and a
// Reader keeps about each matched Writer (spec §4.2/§4.4).
package proxy

import (
	"sync"

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

// ChangeForReaderStatus is a Writer-side per-sequence-number delivery
// state (spec §4.2).
type ChangeForReaderStatus int

const (
	StatusUnsent ChangeForReaderStatus = iota
	StatusUnacknowledged
	StatusRequested
	StatusAcknowledged
	StatusUnderway
)

// ChangeForReader tracks one sequence number's delivery state to a
// single matched reader.
type ChangeForReader struct {
	SeqNum     wire.SequenceNumber
	Status     ChangeForReaderStatus
	IsRelevant bool
}

// ChangeFromWriterStatus is a Reader-side per-sequence-number receipt
// state (spec §4.2).
type ChangeFromWriterStatus int

const (
	StatusUnknown ChangeFromWriterStatus = iota
	StatusMissing
	StatusReceived
	StatusLost
)

// ChangeFromWriter tracks one sequence number's receipt state from a
// single matched writer.
type ChangeFromWriter struct {
	SeqNum     wire.SequenceNumber
	Status     ChangeFromWriterStatus
	IsRelevant bool
}

// locatorsOrDefault returns explicit when non-empty, else def —
// matching "a locator lookup returns the explicit list if non-empty
// else the default list" (spec §3).
func locatorsOrDefault(explicit, def []wire.Locator) []wire.Locator {
	if len(explicit) > 0 {
		return explicit
	}
	return def
}

// ReaderProxy is a Writer's view of one matched Reader (spec §3/§4.2).
type ReaderProxy struct {
	mu sync.Mutex

	RemoteReaderGUID          guid.GUID
	ExpectsInlineQoS          bool
	UnicastLocatorList        []wire.Locator
	MulticastLocatorList      []wire.Locator
	DefaultUnicastLocatorList []wire.Locator
	DefaultMulticastLocatorList []wire.Locator
	QoS                       qos.Policies

	cacheState map[wire.SequenceNumber]ChangeForReader
}

// NewReaderProxy builds a ReaderProxy and seeds its cache-state map from
// every sequence number currently in the writer's history: Unsent in
// push mode, Unacknowledged otherwise (spec §4.2).
func NewReaderProxy(remoteReaderGUID guid.GUID, expectsInlineQoS bool, unicast, multicast, defaultUnicast, defaultMulticast []wire.Locator, q qos.Policies, existingSeqNums []wire.SequenceNumber, pushMode bool) *ReaderProxy {
	status := StatusUnsent
	if !pushMode {
		status = StatusUnacknowledged
	}
	cacheState := make(map[wire.SequenceNumber]ChangeForReader, len(existingSeqNums))
	for _, sn := range existingSeqNums {
		cacheState[sn] = ChangeForReader{SeqNum: sn, Status: status, IsRelevant: true}
	}
	return &ReaderProxy{
		RemoteReaderGUID:            remoteReaderGUID,
		ExpectsInlineQoS:            expectsInlineQoS,
		UnicastLocatorList:          unicast,
		MulticastLocatorList:        multicast,
		DefaultUnicastLocatorList:   defaultUnicast,
		DefaultMulticastLocatorList: defaultMulticast,
		QoS:                         q,
		cacheState:                  cacheState,
	}
}

// UnicastLocators returns the proxy's effective unicast locator list.
func (p *ReaderProxy) UnicastLocators() []wire.Locator {
	return locatorsOrDefault(p.UnicastLocatorList, p.DefaultUnicastLocatorList)
}

// MulticastLocators returns the proxy's effective multicast locator list.
func (p *ReaderProxy) MulticastLocators() []wire.Locator {
	return locatorsOrDefault(p.MulticastLocatorList, p.DefaultMulticastLocatorList)
}

// UpdateCacheState inserts or replaces the per-sequence-number state.
func (p *ReaderProxy) UpdateCacheState(seqNum wire.SequenceNumber, isRelevant bool, status ChangeForReaderStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cacheState == nil {
		p.cacheState = make(map[wire.SequenceNumber]ChangeForReader)
	}
	p.cacheState[seqNum] = ChangeForReader{SeqNum: seqNum, Status: status, IsRelevant: isRelevant}
}

// AckedChangesSet moves every change with SeqNum <= committedSeqNum to
// Acknowledged (spec §4.5, handling ACKNACK).
func (p *ReaderProxy) AckedChangesSet(committedSeqNum wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn, cfr := range p.cacheState {
		if sn <= committedSeqNum {
			cfr.Status = StatusAcknowledged
			p.cacheState[sn] = cfr
		}
	}
}

// RequestedChangesSet moves every listed sequence number to Requested,
// creating an entry if one does not yet exist (spec §4.5, handling
// ACKNACK — corrected from the source's map-iteration bug which only
// matched entries already present by coincidence of key).
func (p *ReaderProxy) RequestedChangesSet(seqNums []wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sn := range seqNums {
		cfr, ok := p.cacheState[sn]
		if !ok {
			cfr = ChangeForReader{SeqNum: sn, IsRelevant: true}
		}
		cfr.Status = StatusRequested
		p.cacheState[sn] = cfr
	}
}

// RequestedChanges returns every change in Requested state.
func (p *ReaderProxy) RequestedChanges() []ChangeForReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changesWithStatus(StatusRequested)
}

// UnsentChanges returns every change in Unsent state.
func (p *ReaderProxy) UnsentChanges() []ChangeForReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changesWithStatus(StatusUnsent)
}

// UnacknowledgedChanges returns every change not yet Acknowledged.
func (p *ReaderProxy) UnacknowledgedChanges() []ChangeForReader {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ChangeForReader
	for _, cfr := range p.cacheState {
		if cfr.Status != StatusAcknowledged {
			out = append(out, cfr)
		}
	}
	return out
}

func (p *ReaderProxy) changesWithStatus(status ChangeForReaderStatus) []ChangeForReader {
	var out []ChangeForReader
	for _, cfr := range p.cacheState {
		if cfr.Status == status {
			out = append(out, cfr)
		}
	}
	return out
}

// NextRequestedChange returns the lowest-sequence-number Requested
// change, if any.
func (p *ReaderProxy) NextRequestedChange() (ChangeForReader, bool) {
	return lowest(p.RequestedChanges())
}

// NextUnsentChange returns the lowest-sequence-number Unsent change, if
// any.
func (p *ReaderProxy) NextUnsentChange() (ChangeForReader, bool) {
	return lowest(p.UnsentChanges())
}

func lowest(changes []ChangeForReader) (ChangeForReader, bool) {
	if len(changes) == 0 {
		return ChangeForReader{}, false
	}
	best := changes[0]
	for _, c := range changes[1:] {
		if c.SeqNum < best.SeqNum {
			best = c
		}
	}
	return best, true
}

// IsSeqNumAcked reports whether sn is specifically Acknowledged; an
// entry the proxy has never heard of (never sent, never requested) is
// not considered acked (spec §4.2's KeepAll eviction gate).
func (p *ReaderProxy) IsSeqNumAcked(sn wire.SequenceNumber) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfr, ok := p.cacheState[sn]
	return ok && cfr.Status == StatusAcknowledged
}

// IsAcked reports whether every relevant change is Acknowledged.
func (p *ReaderProxy) IsAcked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cfr := range p.cacheState {
		if cfr.IsRelevant && cfr.Status != StatusAcknowledged {
			return false
		}
	}
	return true
}

// MarkUnderway transitions sn to Underway (spec §4.5, "mark the
// corresponding ChangeForReader as Underway").
func (p *ReaderProxy) MarkUnderway(sn wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cfr, ok := p.cacheState[sn]
	if !ok {
		cfr = ChangeForReader{SeqNum: sn, IsRelevant: true}
	}
	cfr.Status = StatusUnderway
	p.cacheState[sn] = cfr
}

// WriterProxy is a Reader's view of one matched Writer (spec §3/§4.2).
type WriterProxy struct {
	mu sync.Mutex

	RemoteWriterGUID            guid.GUID
	UnicastLocatorList          []wire.Locator
	MulticastLocatorList        []wire.Locator
	DefaultUnicastLocatorList   []wire.Locator
	DefaultMulticastLocatorList []wire.Locator
	DataMaxSizeSerialized       int32
	QoS                         qos.Policies

	cacheState map[wire.SequenceNumber]ChangeFromWriter
}

// NewWriterProxy builds an empty WriterProxy.
func NewWriterProxy(remoteWriterGUID guid.GUID, unicast, multicast, defaultUnicast, defaultMulticast []wire.Locator, dataMaxSizeSerialized int32, q qos.Policies) *WriterProxy {
	return &WriterProxy{
		RemoteWriterGUID:            remoteWriterGUID,
		UnicastLocatorList:          unicast,
		MulticastLocatorList:        multicast,
		DefaultUnicastLocatorList:   defaultUnicast,
		DefaultMulticastLocatorList: defaultMulticast,
		DataMaxSizeSerialized:       dataMaxSizeSerialized,
		QoS:                         q,
		cacheState:                  make(map[wire.SequenceNumber]ChangeFromWriter),
	}
}

// UnicastLocators returns the proxy's effective unicast locator list.
func (p *WriterProxy) UnicastLocators() []wire.Locator {
	return locatorsOrDefault(p.UnicastLocatorList, p.DefaultUnicastLocatorList)
}

// MulticastLocators returns the proxy's effective multicast locator list.
func (p *WriterProxy) MulticastLocators() []wire.Locator {
	return locatorsOrDefault(p.MulticastLocatorList, p.DefaultMulticastLocatorList)
}

func (p *WriterProxy) updateCacheState(sn wire.SequenceNumber, isRelevant bool, status ChangeFromWriterStatus) {
	p.cacheState[sn] = ChangeFromWriter{SeqNum: sn, Status: status, IsRelevant: isRelevant}
}

// AvailableChangesMax returns the highest sequence number known
// Received or Lost (spec §4.6).
func (p *WriterProxy) AvailableChangesMax() wire.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	var max wire.SequenceNumber
	for sn, cfw := range p.cacheState {
		if cfw.Status == StatusReceived || cfw.Status == StatusLost {
			if sn > max {
				max = sn
			}
		}
	}
	return max
}

// IrrelevantChangeSet marks sn Received but not relevant — the GAP
// handling path (spec §4.6).
func (p *WriterProxy) IrrelevantChangeSet(sn wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCacheState(sn, false, StatusReceived)
}

// LostChangesUpdate transitions every Unknown/Missing change below
// firstAvailable to Lost (spec §4.6).
func (p *WriterProxy) LostChangesUpdate(firstAvailable wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn, cfw := range p.cacheState {
		if (cfw.Status == StatusUnknown || cfw.Status == StatusMissing) && sn < firstAvailable {
			cfw.Status = StatusLost
			p.cacheState[sn] = cfw
		}
	}
}

// MissingChanges returns every sequence number currently Missing.
func (p *WriterProxy) MissingChanges() []wire.SequenceNumber {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []wire.SequenceNumber
	for sn, cfw := range p.cacheState {
		if cfw.Status == StatusMissing {
			out = append(out, sn)
		}
	}
	return out
}

// MissingChangesUpdate marks every sequence number in
// [firstAvailable, lastAvailable] that is still Unknown as Missing,
// creating entries as needed (spec §4.6, handling HEARTBEAT).
func (p *WriterProxy) MissingChangesUpdate(firstAvailable, lastAvailable wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for sn := firstAvailable; sn <= lastAvailable; sn++ {
		cfw, ok := p.cacheState[sn]
		if !ok {
			p.updateCacheState(sn, true, StatusMissing)
			continue
		}
		if cfw.Status == StatusUnknown {
			cfw.Status = StatusMissing
			p.cacheState[sn] = cfw
		}
	}
}

// ReceivedChangeSet marks sn Received, creating an entry if needed
// (spec §4.6, BestEffort/Reliable intake).
func (p *WriterProxy) ReceivedChangeSet(sn wire.SequenceNumber) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateCacheState(sn, true, StatusReceived)
}
