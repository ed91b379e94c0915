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

package engine

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/xtaci/rtps/endpoint"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/history"
	"github.com/xtaci/rtps/proxy"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/receiver"
	"github.com/xtaci/rtps/transport"
	"github.com/xtaci/rtps/wire"
)

// eventLoop is the single goroutine that owns every local Writer,
// Reader, and their proxies (spec §9 REDESIGN FLAG 1): it reads the two
// user-traffic sockets, runs every per-endpoint timer from spec §5's
// table except the two Discovery owns, and applies match/unmatch
// notices Discovery hands it. Nothing outside this goroutine ever
// touches the writers/readers maps or a proxy directly.
type eventLoop struct {
	p *Participant

	writers      map[guid.GUID]*endpoint.Writer
	readers      map[guid.GUID]*endpoint.Reader
	writerTopics map[guid.GUID]TopicDescription
	readerTopics map[guid.GUID]TopicDescription

	// writerNackDelay/readerHBDelay remember each endpoint's configured
	// nack_response_delay/heartbeat_response_delay (spec §5), since
	// endpoint.Writer/Reader do not expose their private copies and the
	// EventLoop — not the endpoint — owns timer scheduling.
	writerNackDelay map[guid.GUID]wire.Duration
	readerHBDelay   map[guid.GUID]wire.Duration

	// lastAssert is when a local Writer last proved activity — a Write
	// call or an explicit assertion — consulted by checkManualLiveliness
	// for writers whose Liveliness.Kind is not Automatic (spec §5's
	// "Writer check-manual-liveliness" timer, §3's Liveliness QoS).
	lastAssert map[guid.GUID]time.Time
	// writerLastSeen is when any traffic (HEARTBEAT, DATA, or GAP) was
	// last observed from a matched remote Writer, consulted by
	// checkWriterLiveliness (spec §5's "Reader writer-liveliness check").
	writerLastSeen map[guid.GUID]time.Time
	// writerAlive/proxyAlive remember the last status event raised for a
	// local writer's own manual liveliness / a remote writer's observed
	// liveliness, so the checks only post a StatusEvent on a transition
	// instead of once per sweep.
	writerAlive map[guid.GUID]bool
	proxyAlive  map[guid.GUID]bool

	recv *receiver.Receiver

	sched *Scheduler
	work  chan func()

	matches   chan matchNotice
	unmatches chan unmatchNotice
}

func newEventLoop(p *Participant) *eventLoop {
	el := &eventLoop{
		p:            p,
		writers:      make(map[guid.GUID]*endpoint.Writer),
		readers:      make(map[guid.GUID]*endpoint.Reader),
		writerTopics: make(map[guid.GUID]TopicDescription),
		readerTopics: make(map[guid.GUID]TopicDescription),
		writerNackDelay: make(map[guid.GUID]wire.Duration),
		readerHBDelay:   make(map[guid.GUID]wire.Duration),
		lastAssert:      make(map[guid.GUID]time.Time),
		writerLastSeen:  make(map[guid.GUID]time.Time),
		writerAlive:     make(map[guid.GUID]bool),
		proxyAlive:      make(map[guid.GUID]bool),
		sched:        NewScheduler(),
		work:         make(chan func(), 64),
		matches:      make(chan matchNotice, 16),
		unmatches:    make(chan unmatchNotice, 16),
	}
	el.recv = receiver.New([12]byte(p.prefix), receiver.EntityHandlers{
		AckNack:   el.onAckNack,
		Heartbeat: el.onHeartbeat,
		Gap:       el.onGap,
		Data:      el.onData,
	}, p.log, func(kind string) {
		p.met.SubmessagesReceived.WithLabelValues(kind).Inc()
	})

	el.sched.Every("liveliness-assert-automatic", time.Duration(p.cfg.AutomaticLivelinessAssertPeriod.Seconds)*time.Second, el.assertAutomaticLiveliness)
	// Both liveliness checks sweep at a fixed cadence rather than the
	// literal per-writer min(lease)/2 and min(lease) from spec §5's
	// table: the matched-writer/proxy set changes at runtime, so
	// recomputing a single "soonest" interval on every match/unmatch
	// would need its own timer-replacement bookkeeping for a core whose
	// lease durations are measured in seconds. A one-second sweep
	// resolves any lease down to that granularity.
	el.sched.Every("writer-manual-liveliness-check", livelinessCheckInterval, el.checkManualLiveliness)
	el.sched.Every("reader-writer-liveliness-check", livelinessCheckInterval, el.checkWriterLiveliness)
	return el
}

const livelinessCheckInterval = time.Second

// submit hands fn to the EventLoop goroutine and returns immediately;
// fn runs serialized with every other dispatch, so it may freely read
// or mutate writers/readers/proxies.
func (el *eventLoop) submit(fn func()) {
	el.work <- fn
}

// run is the EventLoop's reflect.Select dispatch loop (spec §5): user
// socket reads, submitted work closures, match/unmatch notices from
// Discovery, and every registered timer, one flat dynamic select since
// the timer set grows and shrinks as proxies are added and repaired.
func (el *eventLoop) run(ctx context.Context) (err error) {
	defer el.sched.Stop()

	userUC := readLoop(ctx, el.p.userUnicast)
	userMC := readLoop(ctx, el.p.userMulticast)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: event loop panic: %v", r)
			el.p.log.WithField("panic", r).Error("engine: event loop terminated")
		}
	}()

	const (
		caseDone = iota
		caseWork
		caseMatch
		caseUnmatch
		caseUserUC
		caseUserMC
		caseTimerBase
	)
	for {
		cases := []reflect.SelectCase{
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(el.work)},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(el.matches)},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(el.unmatches)},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(userUC)},
			{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(userMC)},
		}
		for i := 0; i < el.sched.NumSlots(); i++ {
			cases = append(cases, el.sched.SlotCase(i))
		}

		chosen, recv, ok := reflect.Select(cases)
		switch chosen {
		case caseDone:
			return nil
		case caseWork:
			if !ok {
				return nil
			}
			el.dispatchWork(recv)
		case caseMatch:
			if ok {
				el.applyMatch(recv.Interface().(matchNotice))
			}
		case caseUnmatch:
			if ok {
				el.applyUnmatch(recv.Interface().(unmatchNotice))
			}
		case caseUserUC, caseUserMC:
			if ok {
				func() {
					defer func() {
						if r := recover(); r != nil {
							el.p.log.WithField("panic", r).Error("engine: datagram handling panicked, continuing")
						}
					}()
					el.handleDatagram(recv.Interface().(datagram))
				}()
			}
		default:
			el.sched.FireSlot(chosen-caseTimerBase, recv)
		}
	}
}

func (el *eventLoop) dispatchWork(recv reflect.Value) {
	fn := recv.Interface().(func())
	func() {
		defer func() {
			if r := recover(); r != nil {
				el.p.log.WithField("panic", r).Error("engine: work closure panicked, continuing")
			}
		}()
		fn()
	}()
}

// datagram is one inbound UDP payload; it does not record which socket
// it arrived on, since routing is entirely by RTPS entity ID.
type datagram struct {
	bytes []byte
}

// readLoop spawns a goroutine blocking on t.Recv() and forwards every
// datagram onto the returned channel, exiting when ctx is cancelled.
func readLoop(ctx context.Context, t transport.Transport) <-chan datagram {
	out := make(chan datagram, 32)
	go func() {
		defer close(out)
		for {
			buf, _, err := t.Recv()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				continue
			}
			select {
			case out <- datagram{bytes: buf}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// sourceGUID combines the receiver's current source GuidPrefix — the
// remote participant that sent this submessage — with a raw entity id
// field, the key for a remote peer (a matched WriterProxy/ReaderProxy).
func sourceGUID(ctx receiver.Context, entityID [4]byte) guid.GUID {
	return guid.New(guid.GuidPrefix(ctx.SourceGuidPrefix), guid.EntityId(entityID))
}

// localGUID combines the receiver's DestGuidPrefix — this participant's
// own prefix — with a raw entity id field, the key for the local
// Writer/Reader a submessage addresses.
func localGUID(ctx receiver.Context, entityID [4]byte) guid.GUID {
	return guid.New(guid.GuidPrefix(ctx.DestGuidPrefix), guid.EntityId(entityID))
}

func (el *eventLoop) handleDatagram(d datagram) {
	msg, err := wire.Decode(d.bytes)
	if err != nil {
		el.p.log.WithError(err).Debug("engine: dropping malformed datagram")
		return
	}
	el.recv.ProcessMessage(msg)
}

// onAckNack delivers an inbound ACKNACK to the local Writer its
// WriterID addresses, or — when WriterID is ENTITYID_UNKNOWN — to every
// local Writer matched with the source reader (spec §4.3's broadcast
// addressing rule).
func (el *eventLoop) onAckNack(ctx receiver.Context, m wire.AckNack) {
	readerGUID := sourceGUID(ctx, m.ReaderID)
	if guid.EntityId(m.WriterID).IsUnknown() {
		for _, w := range el.writers {
			if w.HasMatchedReader(readerGUID) {
				el.deliverAckNack(w, readerGUID, m)
			}
		}
		return
	}
	w, ok := el.writers[localGUID(ctx, m.WriterID)]
	if !ok {
		return
	}
	el.deliverAckNack(w, readerGUID, m)
}

func (el *eventLoop) deliverAckNack(w *endpoint.Writer, readerGUID guid.GUID, m wire.AckNack) {
	w.HandleAckNack(readerGUID, m)
	delay := el.writerNackDelay[w.GUID()]
	if delay.Seconds == 0 && delay.Fraction == 0 {
		return
	}
	el.sched.After(timerName("nack-response", w.GUID(), readerGUID), durationOf(delay), func(time.Time) {
		w.HandleNackResponseTimeout(readerGUID)
	})
}

// onHeartbeat delivers an inbound HEARTBEAT to the local Reader its
// ReaderID addresses, or — when ReaderID is ENTITYID_UNKNOWN — to every
// local Reader matched with the source writer (spec §4.3's broadcast
// addressing rule).
func (el *eventLoop) onHeartbeat(ctx receiver.Context, m wire.Heartbeat) {
	writerGUID := sourceGUID(ctx, m.WriterID)
	if guid.EntityId(m.ReaderID).IsUnknown() {
		for _, r := range el.readers {
			if r.HasMatchedWriter(writerGUID) {
				el.deliverHeartbeat(r, writerGUID, m)
			}
		}
		return
	}
	r, ok := el.readers[localGUID(ctx, m.ReaderID)]
	if !ok {
		return
	}
	el.deliverHeartbeat(r, writerGUID, m)
}

func (el *eventLoop) deliverHeartbeat(r *endpoint.Reader, writerGUID guid.GUID, m wire.Heartbeat) {
	r.HandleHeartbeat(writerGUID, m)
	el.writerLastSeen[writerGUID] = time.Now()
	delay := el.readerHBDelay[r.GUID()]
	if delay.Seconds == 0 && delay.Fraction == 0 {
		return
	}
	el.sched.After(timerName("hb-response", r.GUID(), writerGUID), durationOf(delay), func(time.Time) {
		r.HandleHBResponseTimeout(writerGUID)
	})
}

// onGap delivers an inbound GAP to the local Reader its ReaderID
// addresses, or — when ReaderID is ENTITYID_UNKNOWN — to every local
// Reader matched with the source writer (spec §4.3's broadcast
// addressing rule).
func (el *eventLoop) onGap(ctx receiver.Context, m wire.Gap) {
	writerGUID := sourceGUID(ctx, m.WriterID)
	if guid.EntityId(m.ReaderID).IsUnknown() {
		for _, r := range el.readers {
			if r.HasMatchedWriter(writerGUID) {
				el.deliverGap(r, writerGUID, m)
			}
		}
		return
	}
	r, ok := el.readers[localGUID(ctx, m.ReaderID)]
	if !ok {
		return
	}
	el.deliverGap(r, writerGUID, m)
}

func (el *eventLoop) deliverGap(r *endpoint.Reader, writerGUID guid.GUID, m wire.Gap) {
	r.HandleGap(writerGUID, m)
	el.writerLastSeen[writerGUID] = time.Now()
}

// changeFromData builds the CacheChange a reader's HistoryCache stores
// for an inbound DATA submessage (spec §4.2); this core carries no
// keyed-instance tracking, so InstanceHandle is always the zero value
// and every sample is ChangeKindAlive.
func changeFromData(writerGUID guid.GUID, m wire.Data, ctx receiver.Context) history.CacheChange {
	ts := ctx.Timestamp
	if !ctx.HaveTimestamp {
		ts = wire.Timestamp{}
	}
	return history.CacheChange{
		Kind:            history.ChangeKindAlive,
		WriterGUID:      writerGUID,
		SequenceNumber:  m.WriterSN,
		SourceTimestamp: ts,
		InlineQoS:       m.InlineQoS,
		Data:            m.SerializedPayload,
	}
}

// onData delivers an inbound DATA to the local Reader its ReaderID
// addresses, or — when ReaderID is ENTITYID_UNKNOWN — to every local
// Reader matched with the source writer (spec §4.3's broadcast
// addressing rule, the standard pattern for best-effort multicast to an
// unaddressed set of readers).
func (el *eventLoop) onData(ctx receiver.Context, m wire.Data) {
	writerGUID := sourceGUID(ctx, m.WriterID)
	if guid.EntityId(m.ReaderID).IsUnknown() {
		for _, r := range el.readers {
			if r.HasMatchedWriter(writerGUID) {
				el.deliverData(r, writerGUID, m, ctx)
			}
		}
		return
	}
	r, ok := el.readers[localGUID(ctx, m.ReaderID)]
	if !ok {
		return
	}
	el.deliverData(r, writerGUID, m, ctx)
}

func (el *eventLoop) deliverData(r *endpoint.Reader, writerGUID guid.GUID, m wire.Data, ctx receiver.Context) {
	change := changeFromData(writerGUID, m, ctx)
	r.AddChange(writerGUID, change)
	el.writerLastSeen[writerGUID] = time.Now()
	el.p.met.HistoryDepth.WithLabelValues(r.GUID().String()).Inc()
	el.p.postEvent(StatusEvent{Kind: DataAvailable, Entity: r.GUID(), Peer: writerGUID, Change: change})
}

func (el *eventLoop) assertAutomaticLiveliness(now time.Time) {
	ts := wire.Timestamp{Seconds: int32(now.Unix())}
	msg := el.p.pm.BuildAutomaticLivelinessAssertion(ts)
	el.p.metaSender.SendTo(msg, el.p.metatrafficMulticast)
}

// createWriter installs a brand-new local Writer; called only from
// inside the EventLoop goroutine via submit.
func (el *eventLoop) createWriter(req WriterRequest) *endpoint.Writer {
	w := endpoint.NewWriter(req.Ingredients, el.p.sender, el.p.met, el.p.log)
	el.writers[w.GUID()] = w
	el.writerTopics[w.GUID()] = req.Topic
	el.writerNackDelay[w.GUID()] = req.Ingredients.NackResponseDelay
	el.lastAssert[w.GUID()] = time.Now()
	el.writerAlive[w.GUID()] = true
	if req.Ingredients.HeartbeatPeriod.Seconds != 0 || req.Ingredients.HeartbeatPeriod.Fraction != 0 {
		el.sched.Every(timerName("heartbeat", w.GUID()), durationOf(req.Ingredients.HeartbeatPeriod), func(time.Time) {
			w.SendHeartbeat(false)
		})
	}
	return w
}

func (el *eventLoop) createReader(req ReaderRequest) *endpoint.Reader {
	r := endpoint.NewReader(req.Ingredients, el.p.sender, el.p.met, el.p.log)
	el.readers[r.GUID()] = r
	el.readerTopics[r.GUID()] = req.Topic
	el.readerHBDelay[r.GUID()] = req.Ingredients.HeartbeatResponseDelay
	return r
}

// applyMatch installs the proxy pair a SEDP match forms, raises
// PublicationMatched/SubscriptionMatched, or surfaces the two
// incompatible-QoS status events instead (spec §4.4, §6).
func (el *eventLoop) applyMatch(n matchNotice) {
	w, hasWriter := el.writers[n.result.Writer]
	r, hasReader := el.readers[n.result.Reader]
	if !hasWriter && !hasReader {
		return
	}
	if !n.result.Compatible {
		reason := qos.Summary(n.result.Reasons)
		if hasWriter {
			el.p.postEvent(StatusEvent{Kind: OfferedIncompatibleQos, Entity: n.result.Writer, Peer: n.result.Reader, Reason: reason})
		}
		if hasReader {
			el.p.postEvent(StatusEvent{Kind: RequestedIncompatibleQos, Entity: n.result.Reader, Peer: n.result.Writer, Reason: reason})
		}
		return
	}
	if hasWriter {
		rp := proxy.NewReaderProxy(n.reader.GUID, n.reader.ExpectsInlineQoS, n.reader.UnicastLocatorList, n.reader.MulticastLocatorList, nil, nil, n.reader.BuiltinTopicData.QoS, nil, el.p.cfg.PushMode)
		w.AddMatchedReader(rp)
		el.p.met.MatchedProxies.WithLabelValues(w.GUID().String()).Inc()
		el.p.postEvent(StatusEvent{Kind: PublicationMatched, Entity: w.GUID(), Peer: n.reader.GUID})
	}
	if hasReader {
		wp := proxy.NewWriterProxy(n.writer.GUID, n.writer.UnicastLocatorList, n.writer.MulticastLocatorList, nil, nil, n.writer.DataMaxSizeSerialized, n.writer.BuiltinTopicData.QoS)
		r.AddMatchedWriter(wp)
		el.p.met.MatchedProxies.WithLabelValues(r.GUID().String()).Inc()
		el.p.postEvent(StatusEvent{Kind: SubscriptionMatched, Entity: r.GUID(), Peer: n.writer.GUID})
		// Seed the new peer's liveliness clock at match time so
		// checkWriterLiveliness doesn't immediately treat a writer with a
		// short lease and no traffic yet as already lost.
		el.writerLastSeen[n.writer.GUID] = time.Now()
		el.proxyAlive[n.writer.GUID] = true
	}
}

func (el *eventLoop) applyUnmatch(n unmatchNotice) {
	if w, ok := el.writers[n.endpoint]; ok {
		w.RemoveMatchedReader(n.peer)
		el.p.met.MatchedProxies.WithLabelValues(w.GUID().String()).Dec()
	}
	if r, ok := el.readers[n.endpoint]; ok {
		r.RemoveMatchedWriter(n.peer)
		el.p.met.MatchedProxies.WithLabelValues(r.GUID().String()).Dec()
		delete(el.writerLastSeen, n.peer)
		delete(el.proxyAlive, n.peer)
	}
}

// write assigns req its next sequence number on the named local writer;
// called only from inside the EventLoop goroutine via submit.
func (el *eventLoop) write(writerGUID guid.GUID, payload *wire.SerializedPayload, now wire.Timestamp) (wire.SequenceNumber, bool) {
	w, ok := el.writers[writerGUID]
	if !ok {
		return 0, false
	}
	el.lastAssert[writerGUID] = time.Now()
	return w.Write(payload, now), true
}

// checkManualLiveliness raises LivelinessLost on every local Writer
// whose Liveliness.Kind is not Automatic and which has missed its own
// lease_duration without a Write (spec §3's Liveliness QoS, §5's
// "Writer check-manual-liveliness" timer): Automatic writers are kept
// alive by assertAutomaticLiveliness instead and never checked here.
func (el *eventLoop) checkManualLiveliness(now time.Time) {
	for id, w := range el.writers {
		lease := w.QoS().Liveliness
		if lease.Kind == qos.LivelinessAutomatic || lease.LeaseDuration == wire.DurationInfinite {
			continue
		}
		expired := now.Sub(el.lastAssert[id]) > durationOf(lease.LeaseDuration)
		wasAlive := el.writerAlive[id]
		if expired && wasAlive {
			el.writerAlive[id] = false
			el.p.met.LivelinessLosses.Inc()
			el.p.postEvent(StatusEvent{Kind: LivelinessLost, Entity: id})
		} else if !expired && !wasAlive {
			el.writerAlive[id] = true
		}
	}
}

// checkWriterLiveliness raises LivelinessChanged on every local Reader
// whose matched WriterProxy has gone silent past the writer's
// advertised lease_duration (spec §5's "Reader writer-liveliness check"
// timer). Activity of any kind — HEARTBEAT, DATA, or GAP — counts as an
// assertion, since this core does not track per-writer assertion counts
// the way a full DDS liveliness_changed_status would.
func (el *eventLoop) checkWriterLiveliness(now time.Time) {
	for readerID, r := range el.readers {
		for _, wp := range r.MatchedWriters() {
			lease := wp.QoS.Liveliness.LeaseDuration
			if lease == wire.DurationInfinite {
				continue
			}
			lastSeen, ok := el.writerLastSeen[wp.RemoteWriterGUID]
			if !ok {
				continue
			}
			expired := now.Sub(lastSeen) > durationOf(lease)
			wasAlive := el.proxyAlive[wp.RemoteWriterGUID]
			if expired && wasAlive {
				el.proxyAlive[wp.RemoteWriterGUID] = false
				el.p.postEvent(StatusEvent{Kind: LivelinessChanged, Entity: readerID, Peer: wp.RemoteWriterGUID, Reason: "writer lease expired"})
			} else if !expired && !wasAlive {
				el.proxyAlive[wp.RemoteWriterGUID] = true
				el.p.postEvent(StatusEvent{Kind: LivelinessChanged, Entity: readerID, Peer: wp.RemoteWriterGUID, Reason: "writer recovered"})
			}
		}
	}
}

// durationOf converts a wire.Duration into a time.Duration, saturating
// at DurationInfinite the way wire.Duration.Nanoseconds already does.
func durationOf(d wire.Duration) time.Duration {
	return time.Duration(d.Nanoseconds())
}

func timerName(kind string, ids ...guid.GUID) string {
	name := kind
	for _, id := range ids {
		name += ":" + id.String()
	}
	return name
}
