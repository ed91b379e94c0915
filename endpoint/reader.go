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

package endpoint

import (
	"sort"
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

// ReliabilityKind mirrors qos.ReliabilityKind for the subset of
// behaviors the Reader's intake path branches on.
type ReliabilityKind = qos.ReliabilityKind

// ReaderIngredients is what the user façade hands the engine when
// creating a Reader (spec §6, Façade contract).
type ReaderIngredients struct {
	GUID                   guid.GUID
	Reliability            ReliabilityKind
	ExpectsInlineQoS       bool
	HeartbeatResponseDelay wire.Duration
	QoS                    qos.Policies
	OnDataAvailable        func(history.CacheChange)
}

// Reader is a stateful RTPS Reader: it owns a HistoryCache and a
// WriterProxy per matched writer (spec §4.6).
type Reader struct {
	mu sync.Mutex

	guid                   guid.GUID
	reliability            ReliabilityKind
	expectsInlineQoS       bool
	heartbeatResponseDelay wire.Duration
	qos                    qos.Policies

	cache          *history.Cache
	matchedWriters map[guid.GUID]*proxy.WriterProxy
	acnCount       uint32

	onDataAvailable func(history.CacheChange)
	sender          Sender
	met             *metrics.Metrics
	log             *logrus.Entry
}

// NewReader builds a Reader from ri, sending datagrams through sender.
// A nil met is replaced with a no-op set, the same nil-safe convention
// the teacher uses for log.
func NewReader(ri ReaderIngredients, sender Sender, met *metrics.Metrics, log *logrus.Entry) *Reader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if met == nil {
		met = metrics.NewNoop()
	}
	return &Reader{
		guid:                   ri.GUID,
		reliability:            ri.Reliability,
		expectsInlineQoS:       ri.ExpectsInlineQoS,
		heartbeatResponseDelay: ri.HeartbeatResponseDelay,
		qos:                    ri.QoS,
		cache:                  history.New(),
		matchedWriters:         make(map[guid.GUID]*proxy.WriterProxy),
		onDataAvailable:        ri.OnDataAvailable,
		sender:                 sender,
		met:                    met,
		log:                    log.WithField("reader", ri.GUID.String()),
	}
}

// GUID returns the reader's own GUID.
func (r *Reader) GUID() guid.GUID { return r.guid }

// QoS returns the reader's effective QoS.
func (r *Reader) QoS() qos.Policies { return r.qos }

// IsReliable reports whether this Reader runs the Reliable intake path.
func (r *Reader) IsReliable() bool { return r.reliability == qos.ReliabilityReliable }

// AddMatchedWriter installs wp as a matched writer proxy (spec §4.4).
func (r *Reader) AddMatchedWriter(wp *proxy.WriterProxy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matchedWriters[wp.RemoteWriterGUID] = wp
}

// RemoveMatchedWriter drops a previously matched writer.
func (r *Reader) RemoveMatchedWriter(writerGUID guid.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.matchedWriters, writerGUID)
}

// MatchedWriters returns every currently matched WriterProxy, for a
// caller that needs to sweep them (the EventLoop's writer-liveliness
// check, spec §5).
func (r *Reader) MatchedWriters() []*proxy.WriterProxy {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*proxy.WriterProxy, 0, len(r.matchedWriters))
	for _, wp := range r.matchedWriters {
		out = append(out, wp)
	}
	return out
}

// HasMatchedWriter reports whether writerGUID is currently a matched
// peer, without mutating anything — used to route a broadcast
// submessage (reader_id == ENTITYID_UNKNOWN, spec §4.3) to every local
// Reader whose matched-writer set contains the source writer.
func (r *Reader) HasMatchedWriter(writerGUID guid.GUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.matchedWriters[writerGUID]
	return ok
}

// Take drains every held change in ascending sequence-number order.
func (r *Reader) Take() []history.CacheChange {
	return r.cache.TakeReady()
}

// AddChange intakes a CacheChange received from writerGUID. BestEffort
// discards samples older than the next expected one and reports a gap
// forward of it; Reliable always accepts (spec §4.6). A sequence number
// already held — a retransmitted repair, most often — is not
// re-delivered to the application a second time (spec §4.2's add_change
// contract). The cache is then trimmed per the History QoS.
func (r *Reader) AddChange(writerGUID guid.GUID, change history.CacheChange) {
	r.mu.Lock()
	wp, ok := r.matchedWriters[writerGUID]
	r.mu.Unlock()
	if !ok {
		r.log.WithField("writer", writerGUID.String()).Warn("addChange: no matched writer proxy")
		return
	}

	if r.IsReliable() {
		if r.cache.Add(change) {
			r.notify(change)
		}
		wp.ReceivedChangeSet(change.SequenceNumber)
		r.enforceHistory()
		return
	}

	expected := wp.AvailableChangesMax() + 1
	if change.SequenceNumber < expected {
		r.log.WithFields(logrus.Fields{
			"seq": change.SequenceNumber, "expected": expected,
		}).Debug("addChange: best-effort reader dropping stale sample")
		return
	}
	if r.cache.Add(change) {
		r.notify(change)
	}
	wp.ReceivedChangeSet(change.SequenceNumber)
	if change.SequenceNumber > expected {
		wp.LostChangesUpdate(change.SequenceNumber)
	}
	r.enforceHistory()
}

// enforceHistory bounds the reader's cache to its History QoS's
// KeepLast depth, oldest first; KeepAll holds everything until Take()
// drains it, which needs no extra bookkeeping here (spec §4.2).
func (r *Reader) enforceHistory() {
	if r.qos.History.Kind != qos.HistoryKeepLast {
		return
	}
	depth := r.qos.History.Depth
	if depth <= 0 {
		depth = 1
	}
	for int32(r.cache.Len()) > depth {
		oldest := r.cache.MinSeqNum()
		if oldest == 0 {
			return
		}
		r.cache.Remove(oldest)
	}
}

func (r *Reader) notify(change history.CacheChange) {
	if r.onDataAvailable != nil {
		r.onDataAvailable(change)
	}
}

// HandleGap marks every sequence number in [gap.GapStart, gap.GapList.Base)
// and every set bit of gap.GapList irrelevant (spec §4.6).
func (r *Reader) HandleGap(writerGUID guid.GUID, gap wire.Gap) {
	r.mu.Lock()
	wp, ok := r.matchedWriters[writerGUID]
	r.mu.Unlock()
	if !ok {
		return
	}
	for sn := gap.GapStart; sn < gap.GapList.Base; sn++ {
		wp.IrrelevantChangeSet(sn)
	}
	for _, sn := range gap.GapList.Sequences() {
		wp.IrrelevantChangeSet(sn)
	}
}

// HandleHeartbeat processes an inbound HEARTBEAT: updates missing/lost
// state, then, if heartbeat_response_delay is zero, sends the ACKNACK
// response per the Final/Liveliness flags (spec §4.6's may_send_ack /
// must_send_ack transitions). With a non-zero delay it sends nothing;
// the EventLoop arms the response timer instead.
func (r *Reader) HandleHeartbeat(writerGUID guid.GUID, hb wire.Heartbeat) {
	r.mu.Lock()
	wp, ok := r.matchedWriters[writerGUID]
	immediate := r.heartbeatResponseDelay == wire.DurationZero
	r.mu.Unlock()
	if !ok {
		r.log.WithField("writer", writerGUID.String()).Warn("handleHeartbeat: no matched writer proxy")
		return
	}

	wp.MissingChangesUpdate(hb.FirstSN, hb.LastSN)
	wp.LostChangesUpdate(hb.FirstSN)

	if !hb.Final {
		if immediate {
			r.HandleHBResponseTimeout(writerGUID)
		}
		return
	}
	if !hb.Liveliness && len(wp.MissingChanges()) > 0 {
		if immediate {
			r.HandleHBResponseTimeout(writerGUID)
		}
	}
}

// HandleHBResponseTimeout builds and sends the ACKNACK owed to
// writerGUID: base is the smallest missing sequence number if any are
// missing, else AvailableChangesMax()+1 — RustDDS's correction of the
// RTPS spec's literal base formula, which cannot represent a missing
// number below AvailableChangesMax()+1 in a forward-only bitmap (spec
// §4.6).
func (r *Reader) HandleHBResponseTimeout(writerGUID guid.GUID) {
	r.mu.Lock()
	wp, ok := r.matchedWriters[writerGUID]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.acnCount++
	count := r.acnCount
	r.mu.Unlock()

	missing := wp.MissingChanges()
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })

	base := wp.AvailableChangesMax() + 1
	if len(missing) > 0 {
		base = missing[0]
	}
	set := wire.NewSequenceNumberSet(base)
	for _, sn := range missing {
		set.Add(sn)
	}

	b := builder.New([12]byte(r.guid.Prefix), wire.LittleEndian)
	b.InfoDestination([12]byte(wp.RemoteWriterGUID.Prefix))
	b.AckNack([4]byte(r.guid.EntityID), [4]byte(writerGUID.EntityID), set, count, false)
	r.sender.SendTo(b.Build(), r.locatorsFor(wp))
	r.met.SubmessagesSent.WithLabelValues("ACKNACK").Inc()
}

func (r *Reader) locatorsFor(wp *proxy.WriterProxy) []wire.Locator {
	if locs := wp.UnicastLocators(); len(locs) > 0 {
		return locs
	}
	return wp.MulticastLocators()
}
