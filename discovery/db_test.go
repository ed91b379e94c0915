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

package discovery

import (
	"testing"

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

func TestDBWriteReadParticipant(t *testing.T) {
	db := NewDB()
	prefix := samplePrefix(0x01)
	data := SPDPdiscoveredParticipantData{DomainID: 1, GUID: guid.New(prefix, guid.EntityIDParticipant)}
	ts := wire.Timestamp{Seconds: 100}

	if _, ok := db.ReadParticipantData(prefix); ok {
		t.Fatal("expected no participant before WriteParticipant")
	}

	db.WriteParticipant(prefix, ts, data)

	got, ok := db.ReadParticipantData(prefix)
	if !ok {
		t.Fatal("expected participant to be found after WriteParticipant")
	}
	if got.DomainID != 1 {
		t.Errorf("DomainID = %d, want 1", got.DomainID)
	}
	gotTS, ok := db.ReadParticipantTimestamp(prefix)
	if !ok || gotTS != ts {
		t.Errorf("ReadParticipantTimestamp = %v, %v, want %v, true", gotTS, ok, ts)
	}
}

func TestDBWriteParticipantTimestampIgnoresUnknownPrefix(t *testing.T) {
	db := NewDB()
	prefix := samplePrefix(0x02)

	db.WriteParticipantTimestamp(prefix, wire.Timestamp{Seconds: 5})

	if _, ok := db.ReadParticipantTimestamp(prefix); ok {
		t.Fatal("expected no timestamp recorded for an unknown participant")
	}
}

func TestDBUpdateLivelinessWithGuidPrefix(t *testing.T) {
	db := NewDB()
	prefix := samplePrefix(0x03)
	writer := guid.New(prefix, guid.EntityId{0x00, 0x00, 0x01, 0x02})
	other := guid.New(samplePrefix(0x04), guid.EntityId{0x00, 0x00, 0x01, 0x02})

	db.WriteRemoteWriter(writer, wire.Timestamp{Seconds: 1})
	db.WriteRemoteWriter(other, wire.Timestamp{Seconds: 1})

	db.UpdateLivelinessWithGuidPrefix(prefix, wire.Timestamp{Seconds: 99})

	ts, ok := db.ReadRemoteWriter(writer)
	if !ok || ts != (wire.Timestamp{Seconds: 99}) {
		t.Errorf("ReadRemoteWriter(writer) = %v, %v, want refreshed timestamp", ts, ok)
	}
	ts, ok = db.ReadRemoteWriter(other)
	if !ok || ts != (wire.Timestamp{Seconds: 1}) {
		t.Errorf("ReadRemoteWriter(other) = %v, %v, want untouched timestamp", ts, ok)
	}
}

func TestDBLocalWriterLivelinessKindDefaultsToAutomatic(t *testing.T) {
	db := NewDB()
	w := guid.New(samplePrefix(0x05), guid.EntityId{0x00, 0x00, 0x01, 0x02})

	if got := db.LocalWriterLivelinessKind(w); got != qos.LivelinessAutomatic {
		t.Errorf("LocalWriterLivelinessKind(unset) = %v, want Automatic", got)
	}

	db.SetLocalWriterLiveliness(w, qos.LivelinessManualByTopic)

	if got := db.LocalWriterLivelinessKind(w); got != qos.LivelinessManualByTopic {
		t.Errorf("LocalWriterLivelinessKind = %v, want ManualByTopic", got)
	}
}

func TestDBRemoveParticipantDropsItsRemoteWriters(t *testing.T) {
	db := NewDB()
	prefix := samplePrefix(0x06)
	writer := guid.New(prefix, guid.EntityId{0x00, 0x00, 0x01, 0x02})
	other := guid.New(samplePrefix(0x07), guid.EntityId{0x00, 0x00, 0x01, 0x02})

	db.WriteParticipant(prefix, wire.Timestamp{Seconds: 1}, SPDPdiscoveredParticipantData{})
	db.WriteRemoteWriter(writer, wire.Timestamp{Seconds: 1})
	db.WriteRemoteWriter(other, wire.Timestamp{Seconds: 1})

	db.RemoveParticipant(prefix)

	if _, ok := db.ReadParticipantData(prefix); ok {
		t.Error("expected participant to be removed")
	}
	if _, ok := db.ReadRemoteWriter(writer); ok {
		t.Error("expected writer belonging to removed participant to be dropped")
	}
	if _, ok := db.ReadRemoteWriter(other); !ok {
		t.Error("expected writer belonging to a different participant to survive")
	}
}

func TestDBParticipantsSnapshot(t *testing.T) {
	db := NewDB()
	p1 := samplePrefix(0x08)
	p2 := samplePrefix(0x09)
	db.WriteParticipant(p1, wire.Timestamp{Seconds: 1}, SPDPdiscoveredParticipantData{DomainID: 1})
	db.WriteParticipant(p2, wire.Timestamp{Seconds: 2}, SPDPdiscoveredParticipantData{DomainID: 2})

	entries := db.Participants()
	if len(entries) != 2 {
		t.Fatalf("len(Participants()) = %d, want 2", len(entries))
	}
}
