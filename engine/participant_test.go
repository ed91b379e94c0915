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
	"testing"
	"time"

	"github.com/xtaci/rtps/discovery"
	"github.com/xtaci/rtps/endpoint"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

// runningParticipant starts a Participant's EventLoop goroutine against
// a test fixture (no sockets, no Discovery goroutine), the minimum
// needed to exercise the façade methods that hop through el.submit.
func runningParticipant(t *testing.T) (*Participant, context.CancelFunc) {
	t.Helper()
	p, _, _ := newTestParticipant(t, testPrefix(3))
	p.el = newEventLoop(p)
	self := discovery.SPDPdiscoveredParticipantData{GUID: guid.New(p.prefix, guid.EntityIDParticipant)}
	p.disc = newDiscoveryLoop(p, discovery.NewSPDP(p.db, 0, self, p.log), discovery.NewSEDP(p.log))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.el.run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, cancel
}

func TestParticipantCreateWriterThenWriteAssignsSequenceNumbers(t *testing.T) {
	p, _ := runningParticipant(t)

	w, err := p.CreateWriter(WriterRequest{
		Ingredients: endpoint.WriterIngredients{GUID: guid.New(p.prefix, guid.EntityId{1, 0, 0, 0}), QoS: qos.Default()},
		Topic:       TopicDescription{TopicName: "t", TypeName: "T", QoS: qos.Default()},
	})
	if err != nil {
		t.Fatalf("CreateWriter: %v", err)
	}

	sn, err := p.Write(w.GUID(), &wire.SerializedPayload{Data: []byte("one")}, wire.Timestamp{Seconds: 1})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if sn != 1 {
		t.Fatalf("first Write() sequence number = %d, want 1", sn)
	}

	sn2, err := p.Write(w.GUID(), &wire.SerializedPayload{Data: []byte("two")}, wire.Timestamp{Seconds: 2})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if sn2 != 2 {
		t.Fatalf("second Write() sequence number = %d, want 2", sn2)
	}
}

func TestParticipantWriteOnUnknownWriterReturnsError(t *testing.T) {
	p, _ := runningParticipant(t)

	_, err := p.Write(guid.New(p.prefix, guid.EntityId{9, 9, 9, 9}), &wire.SerializedPayload{}, wire.Timestamp{})
	if err == nil {
		t.Fatalf("Write on an unregistered writer GUID should return an error")
	}
}

func TestParticipantEventsDeliversDataAvailable(t *testing.T) {
	p, _ := runningParticipant(t)
	remotePrefix := testPrefix(4)
	rg := guid.New(p.prefix, guid.EntityId{5, 0, 0, 0})
	wg := guid.New(remotePrefix, guid.EntityId{6, 0, 0, 0})

	_, err := p.CreateReader(ReaderRequest{
		Ingredients: endpoint.ReaderIngredients{GUID: rg, QoS: qos.Default()},
		Topic:       TopicDescription{TopicName: "t", TypeName: "T", QoS: qos.Default()},
	})
	if err != nil {
		t.Fatalf("CreateReader: %v", err)
	}

	p.el.submit(func() {
		p.el.applyMatch(newMatchNotice(wg, rg, true))
	})
	waitForEvent(t, p, SubscriptionMatched)

	p.el.submit(func() {
		ctx := receiverCtx(remotePrefix, p.prefix)
		p.el.onData(ctx, wire.Data{ReaderID: [4]byte(rg.EntityID), WriterID: [4]byte(wg.EntityID), WriterSN: 1, SerializedPayload: &wire.SerializedPayload{Data: []byte("hi")}})
	})
	waitForEvent(t, p, DataAvailable)
}

func waitForEvent(t *testing.T, p *Participant, want StatusEventKind) {
	t.Helper()
	for {
		select {
		case ev := <-p.Events():
			if ev.Kind == want {
				return
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}
