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

// Package endpoint implements the stateful Writer and Reader engines:
// the reliable-and-best-effort delivery protocol running over a
// HistoryCache and a set of matched Reader/WriterProxy peers (spec
// §4.5, §4.6).
package endpoint

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/xtaci/rtps/builder"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/history"
	"github.com/xtaci/rtps/metrics"
	"github.com/xtaci/rtps/proxy"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

// AckNackState is the Writer's per-proxy repair state machine (spec
// §4.5): Waiting -ACKNACK with Requested-> MustRepair
// -nack_response_delay-> Repairing -drained-> Waiting.
type AckNackState int

const (
	StateWaiting AckNackState = iota
	StateMustRepair
	StateRepairing
)

// Sender is the minimal outbound capability a Writer/Reader needs: send
// a fully-built datagram to every locator in the list, best-effort
// (spec §6's Transport contract, narrowed to what endpoint needs).
type Sender interface {
	SendTo(datagram []byte, locators []wire.Locator)
}

// WriterIngredients is what the user façade hands the engine when
// creating a Writer (spec §6, Façade contract).
type WriterIngredients struct {
	GUID                guid.GUID
	PushMode            bool
	HeartbeatPeriod     wire.Duration
	NackResponseDelay   wire.Duration
	DataMaxSizeSerialized int32
	QoS                 qos.Policies
}

// Writer is a stateful RTPS Writer: it owns a HistoryCache and a
// ReaderProxy per matched reader (spec §4.5).
type Writer struct {
	mu sync.Mutex

	guid                guid.GUID
	pushMode            bool
	heartbeatPeriod     wire.Duration
	nackResponseDelay   wire.Duration
	dataMaxSizeSerialized int32
	qos                 qos.Policies

	cache          *history.Cache
	lastSeqNum     wire.SequenceNumber
	matchedReaders map[guid.GUID]*proxy.ReaderProxy
	ackNackState   map[guid.GUID]AckNackState
	hbCount        uint32

	sender Sender
	met    *metrics.Metrics
	log    *logrus.Entry
}

// NewWriter builds a Writer from wi, sending datagrams through sender.
// A nil met is replaced with a no-op set, the same nil-safe convention
// the teacher uses for log.
func NewWriter(wi WriterIngredients, sender Sender, met *metrics.Metrics, log *logrus.Entry) *Writer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if met == nil {
		met = metrics.NewNoop()
	}
	return &Writer{
		guid:                  wi.GUID,
		pushMode:              wi.PushMode,
		heartbeatPeriod:       wi.HeartbeatPeriod,
		nackResponseDelay:     wi.NackResponseDelay,
		dataMaxSizeSerialized: wi.DataMaxSizeSerialized,
		qos:                   wi.QoS,
		cache:                 history.New(),
		matchedReaders:        make(map[guid.GUID]*proxy.ReaderProxy),
		ackNackState:          make(map[guid.GUID]AckNackState),
		sender:                sender,
		met:                   met,
		log:                   log.WithField("writer", wi.GUID.String()),
	}
}

// GUID returns the writer's own GUID.
func (w *Writer) GUID() guid.GUID { return w.guid }

// QoS returns the writer's effective QoS.
func (w *Writer) QoS() qos.Policies { return w.qos }

// AddMatchedReader installs rp as a matched reader proxy (spec §4.4).
func (w *Writer) AddMatchedReader(rp *proxy.ReaderProxy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.matchedReaders[rp.RemoteReaderGUID] = rp
	w.ackNackState[rp.RemoteReaderGUID] = StateWaiting
	w.log.WithField("reader", rp.RemoteReaderGUID.String()).Info("matched reader added")
}

// RemoveMatchedReader drops a previously matched reader.
func (w *Writer) RemoveMatchedReader(readerGUID guid.GUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.matchedReaders, readerGUID)
	delete(w.ackNackState, readerGUID)
}

// HasMatchedReader reports whether readerGUID is currently a matched
// peer, without mutating anything — used to route a broadcast
// submessage (writer_id == ENTITYID_UNKNOWN, spec §4.3) to every local
// Writer whose matched-reader set contains the source reader.
func (w *Writer) HasMatchedReader(readerGUID guid.GUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.matchedReaders[readerGUID]
	return ok
}

// Write assigns the next sequence number, inserts a CacheChange, updates
// every matched reader's ChangeForReader table, trims the cache per the
// History QoS, and — in push mode — immediately emits DATA to each
// proxy (spec §4.5, §4.2).
func (w *Writer) Write(payload *wire.SerializedPayload, now wire.Timestamp) wire.SequenceNumber {
	w.mu.Lock()
	w.lastSeqNum++
	sn := w.lastSeqNum
	if !w.cache.Add(history.CacheChange{
		Kind:            history.ChangeKindAlive,
		WriterGUID:      w.guid,
		SequenceNumber:  sn,
		SourceTimestamp: now,
		Data:            payload,
	}) {
		w.log.WithField("seq", sn).Error("write: sequence number already present in history cache")
	}
	w.enforceHistoryLocked()

	status := proxy.StatusUnsent
	if !w.pushMode {
		status = proxy.StatusUnacknowledged
	}
	readers := make([]*proxy.ReaderProxy, 0, len(w.matchedReaders))
	for _, rp := range w.matchedReaders {
		rp.UpdateCacheState(sn, true, status)
		readers = append(readers, rp)
	}
	w.mu.Unlock()

	if w.pushMode {
		for _, rp := range readers {
			w.sendData(rp, sn, payload, now, true)
		}
	}
	return sn
}

// sendData builds and sends a single DATA submessage for sn to rp,
// marking it Underway, or a GAP if isRelevant is false (spec §4.5).
func (w *Writer) sendData(rp *proxy.ReaderProxy, sn wire.SequenceNumber, payload *wire.SerializedPayload, now wire.Timestamp, isRelevant bool) {
	b := builder.New([12]byte(w.guid.Prefix), wire.LittleEndian)
	b.InfoTimestamp(now)
	if isRelevant {
		b.Data(wire.Data{
			ReaderID:          [4]byte(rp.RemoteReaderGUID.EntityID),
			WriterID:          [4]byte(w.guid.EntityID),
			WriterSN:          sn,
			SerializedPayload: payload,
		})
	} else {
		gapList := wire.NewSequenceNumberSet(sn + 1)
		b.Gap([4]byte(rp.RemoteReaderGUID.EntityID), [4]byte(w.guid.EntityID), sn, gapList)
	}
	w.sender.SendTo(b.Build(), w.locatorsFor(rp))
	rp.MarkUnderway(sn)

	if isRelevant {
		w.met.SubmessagesSent.WithLabelValues("DATA").Inc()
	} else {
		w.met.SubmessagesSent.WithLabelValues("GAP").Inc()
		w.met.GapsEmitted.WithLabelValues(w.guid.String()).Inc()
	}
}

func (w *Writer) locatorsFor(rp *proxy.ReaderProxy) []wire.Locator {
	if locs := rp.UnicastLocators(); len(locs) > 0 {
		return locs
	}
	return rp.MulticastLocators()
}

// SendHeartbeat emits HEARTBEAT to every matched reader, suppressed if
// the cache is empty or max < first, and increments hbCount once per
// send (spec §4.5).
func (w *Writer) SendHeartbeat(liveliness bool) {
	w.mu.Lock()
	first := w.cache.MinSeqNum()
	last := w.cache.MaxSeqNum()
	if w.cache.Len() == 0 || last < first {
		w.mu.Unlock()
		return
	}
	w.hbCount++
	count := w.hbCount
	readers := make([]*proxy.ReaderProxy, 0, len(w.matchedReaders))
	for _, rp := range w.matchedReaders {
		readers = append(readers, rp)
	}
	w.mu.Unlock()

	for _, rp := range readers {
		b := builder.New([12]byte(w.guid.Prefix), wire.LittleEndian)
		b.Heartbeat([4]byte(rp.RemoteReaderGUID.EntityID), [4]byte(w.guid.EntityID), first, last, count, false, liveliness)
		w.sender.SendTo(b.Build(), w.locatorsFor(rp))
		w.met.SubmessagesSent.WithLabelValues("HEARTBEAT").Inc()
	}
}

// HandleAckNack processes an inbound ACKNACK from readerGUID: a
// base=0,num_bits=0 set is a preemptive ping and is ignored (spec §9,
// P3); otherwise acked_changes_set(base-1) and
// requested_changes_set(set_bits) run, and if the writer was Waiting it
// transitions to MustRepair (spec §4.5).
func (w *Writer) HandleAckNack(readerGUID guid.GUID, an wire.AckNack) {
	w.mu.Lock()
	rp, ok := w.matchedReaders[readerGUID]
	if !ok {
		w.mu.Unlock()
		return
	}
	if an.ReaderSNState.Empty() && an.ReaderSNState.Base == 0 {
		w.mu.Unlock()
		return
	}
	rp.AckedChangesSet(an.ReaderSNState.Base - 1)
	rp.RequestedChangesSet(an.ReaderSNState.Sequences())
	w.enforceHistoryLocked()

	stateChanged := false
	if len(rp.RequestedChanges()) > 0 && w.ackNackState[readerGUID] == StateWaiting {
		w.ackNackState[readerGUID] = StateMustRepair
		stateChanged = true
	}
	immediate := w.nackResponseDelay == wire.DurationZero
	w.mu.Unlock()

	if stateChanged && immediate {
		w.repair(readerGUID)
	}
}

// enforceHistoryLocked evicts changes from the writer's HistoryCache per
// the History QoS policy (spec §4.2): KeepLast bounds the cache to the
// configured Depth, oldest first; KeepAll retains every change until
// every matched reliable reader has acknowledged it. Callers must hold
// w.mu.
func (w *Writer) enforceHistoryLocked() {
	switch w.qos.History.Kind {
	case qos.HistoryKeepLast:
		depth := w.qos.History.Depth
		if depth <= 0 {
			depth = 1
		}
		for int32(w.cache.Len()) > depth {
			oldest := w.cache.MinSeqNum()
			if oldest == 0 {
				return
			}
			w.cache.Remove(oldest)
		}
	case qos.HistoryKeepAll:
		for {
			oldest := w.cache.MinSeqNum()
			if oldest == 0 || !w.ackedByEveryReliableReaderLocked(oldest) {
				return
			}
			w.cache.Remove(oldest)
		}
	}
}

// ackedByEveryReliableReaderLocked reports whether every matched reader
// with Reliable QoS has acknowledged sn; best-effort readers never ack
// and so never block KeepAll eviction. Callers must hold w.mu.
func (w *Writer) ackedByEveryReliableReaderLocked(sn wire.SequenceNumber) bool {
	for _, rp := range w.matchedReaders {
		if rp.QoS.Reliability != qos.ReliabilityReliable {
			continue
		}
		if !rp.IsSeqNumAcked(sn) {
			return false
		}
	}
	return true
}

// HandleNackResponseTimeout fires the armed NACK-response timer for
// readerGUID, transitioning MustRepair -> Repairing and performing the
// repair (spec §4.5).
func (w *Writer) HandleNackResponseTimeout(readerGUID guid.GUID) {
	w.mu.Lock()
	if w.ackNackState[readerGUID] != StateMustRepair {
		w.mu.Unlock()
		return
	}
	w.ackNackState[readerGUID] = StateRepairing
	w.mu.Unlock()

	w.repair(readerGUID)
}

// repair walks every Requested change for readerGUID, marking it
// Underway, resending the DATA if still cached, else sending a catch-up
// HEARTBEAT; irrelevant requested changes get a GAP instead. When
// drained, the writer returns to Waiting (spec §4.5).
func (w *Writer) repair(readerGUID guid.GUID) {
	w.mu.Lock()
	rp, ok := w.matchedReaders[readerGUID]
	if !ok {
		w.mu.Unlock()
		return
	}
	requested := rp.RequestedChanges()
	max := w.cache.MaxSeqNum()
	w.mu.Unlock()

	for _, cfr := range requested {
		if !cfr.IsRelevant {
			w.mu.Lock()
			b := builder.New([12]byte(w.guid.Prefix), wire.LittleEndian)
			gapList := wire.NewSequenceNumberSet(cfr.SeqNum + 1)
			b.Gap([4]byte(rp.RemoteReaderGUID.EntityID), [4]byte(w.guid.EntityID), cfr.SeqNum, gapList)
			w.sender.SendTo(b.Build(), w.locatorsFor(rp))
			w.mu.Unlock()
			rp.MarkUnderway(cfr.SeqNum)
			w.met.SubmessagesSent.WithLabelValues("GAP").Inc()
			w.met.GapsEmitted.WithLabelValues(w.guid.String()).Inc()
			continue
		}
		ch, ok := w.cache.Get(cfr.SeqNum)
		if !ok {
			w.mu.Lock()
			w.hbCount++
			count := w.hbCount
			b := builder.New([12]byte(w.guid.Prefix), wire.LittleEndian)
			b.Heartbeat([4]byte(rp.RemoteReaderGUID.EntityID), [4]byte(w.guid.EntityID), cfr.SeqNum+1, max, count, false, false)
			w.sender.SendTo(b.Build(), w.locatorsFor(rp))
			w.mu.Unlock()
			rp.MarkUnderway(cfr.SeqNum)
			w.met.SubmessagesSent.WithLabelValues("HEARTBEAT").Inc()
			continue
		}
		w.sendData(rp, cfr.SeqNum, ch.Data, ch.SourceTimestamp, true)
		w.met.Resends.WithLabelValues(w.guid.String()).Inc()
	}

	w.mu.Lock()
	if len(rp.RequestedChanges()) == 0 {
		w.ackNackState[readerGUID] = StateWaiting
		w.log.WithField("reader", readerGUID.String()).Debug("repair drained, back to waiting")
	}
	w.mu.Unlock()
}
