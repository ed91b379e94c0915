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
	"testing"
	"time"

	"github.com/xtaci/rtps/discovery"
	"github.com/xtaci/rtps/endpoint"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

func newTestDiscoveryLoop(t *testing.T) (*discoveryLoop, *Participant) {
	t.Helper()
	p, _, _ := newTestParticipant(t, testPrefix(1))
	p.el = newEventLoop(p)

	self := discovery.SPDPdiscoveredParticipantData{GUID: guid.New(p.prefix, guid.EntityIDParticipant)}
	dl := newDiscoveryLoop(p, discovery.NewSPDP(p.db, 0, self, p.log), discovery.NewSEDP(p.log))
	p.disc = dl
	return dl, p
}

func TestAnnounceWriterRecordsDataAndBroadcasts(t *testing.T) {
	dl, p := newTestDiscoveryLoop(t)
	wg := guid.New(p.prefix, guid.EntityId{1, 0, 0, 0})

	dl.announceWriter(wg, WriterRequest{Topic: TopicDescription{TopicName: "t", TypeName: "T", QoS: qos.Default()}})

	if _, ok := dl.writerData[wg]; !ok {
		t.Fatalf("announceWriter should have recorded the writer's DiscoveredWriterData")
	}
	ids := dl.endpointsByPrefix[wg.Prefix]
	if len(ids) != 1 || ids[0] != wg {
		t.Fatalf("announceWriter should have indexed %s under its own prefix, got %v", wg, ids)
	}
}

func TestAnnounceWriterThenReaderProducesAMatch(t *testing.T) {
	dl, p := newTestDiscoveryLoop(t)
	wg := guid.New(p.prefix, guid.EntityId{1, 0, 0, 0})
	rg := guid.New(p.prefix, guid.EntityId{2, 0, 0, 0})

	w := p.el.createWriter(WriterRequest{Ingredients: endpoint.WriterIngredients{GUID: wg, QoS: qos.Default()}})
	r := p.el.createReader(ReaderRequest{Ingredients: endpoint.ReaderIngredients{GUID: rg, QoS: qos.Default()}})
	_ = w
	_ = r

	topic := TopicDescription{TopicName: "t", TypeName: "T", QoS: qos.Default()}
	dl.announceWriter(wg, WriterRequest{Topic: topic})
	dl.announceReader(rg, ReaderRequest{Topic: topic})

	select {
	case n := <-p.el.matches:
		if n.result.Writer != wg || n.result.Reader != rg || !n.result.Compatible {
			t.Fatalf("got match %+v, want a compatible writer=%s/reader=%s match", n.result, wg, rg)
		}
	default:
		t.Fatalf("expected a match notice on p.el.matches")
	}
}

func TestSweepLeasesRemovesExpiredParticipantAndItsEndpoints(t *testing.T) {
	dl, p := newTestDiscoveryLoop(t)
	remotePrefix := testPrefix(9)
	wg := guid.New(remotePrefix, guid.EntityId{1, 0, 0, 0})

	p.db.WriteParticipant(remotePrefix, wire.Timestamp{Seconds: 0}, discovery.SPDPdiscoveredParticipantData{GUID: guid.New(remotePrefix, guid.EntityIDParticipant)})
	dl.writerData[wg] = discovery.DiscoveredWriterData{GUID: wg}
	dl.endpointsByPrefix[remotePrefix] = []guid.GUID{wg}

	rg := guid.New(p.prefix, guid.EntityId{2, 0, 0, 0})
	p.el.createReader(ReaderRequest{Ingredients: endpoint.ReaderIngredients{GUID: rg, QoS: qos.Default()}})
	dl.readerData[rg] = discovery.DiscoveredReaderData{GUID: rg}

	dl.sweepLeases(time.Now().Add(2 * time.Hour))

	if _, ok := dl.writerData[wg]; ok {
		t.Fatalf("sweepLeases should have dropped the expired writer's DiscoveredWriterData")
	}
	if entries := p.db.Participants(); len(entries) != 0 {
		t.Fatalf("sweepLeases should have removed the expired participant, got %v", entries)
	}

	select {
	case n := <-p.el.unmatches:
		if n.peer != wg {
			t.Fatalf("got unmatch peer %s, want %s", n.peer, wg)
		}
	default:
		t.Fatalf("expected an unmatch notice for the expired writer's peer")
	}
}

func TestSweepLeasesKeepsFreshParticipant(t *testing.T) {
	dl, p := newTestDiscoveryLoop(t)
	remotePrefix := testPrefix(9)
	p.db.WriteParticipant(remotePrefix, wire.Timestamp{Seconds: int32(time.Now().Unix())}, discovery.SPDPdiscoveredParticipantData{GUID: guid.New(remotePrefix, guid.EntityIDParticipant)})

	dl.sweepLeases(time.Now())

	if entries := p.db.Participants(); len(entries) != 1 {
		t.Fatalf("sweepLeases should not drop a participant seen just now, got %v", entries)
	}
}
