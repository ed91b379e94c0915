package receiver

import (
	"testing"

	"github.com/xtaci/rtps/wire"
)

func buildMessage(t *testing.T, ownPrefix, otherPrefix [12]byte, subs [][]byte) wire.Message {
	t.Helper()
	header := wire.Header{Version: wire.CurrentProtocolVersion, VendorID: [2]byte{1, 0xff}, GuidPrefix: otherPrefix}
	var body []byte
	for _, s := range subs {
		body = append(body, s...)
	}
	raw := wire.Encode(header, wire.LittleEndian, [][]byte{body})
	msg, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	return msg
}

func TestProcessMessageDispatchesData(t *testing.T) {
	ownPrefix := [12]byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	otherPrefix := [12]byte{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}

	var gotSN wire.SequenceNumber
	handlers := EntityHandlers{
		Data: func(ctx Context, m wire.Data) {
			gotSN = m.WriterSN
			if ctx.SourceGuidPrefix != otherPrefix {
				t.Errorf("expected source prefix %v, got %v", otherPrefix, ctx.SourceGuidPrefix)
			}
		},
	}
	r := New(ownPrefix, handlers, nil, nil)

	data := wire.Data{
		ReaderID: [4]byte{0, 0, 0, 0},
		WriterID: [4]byte{1, 0, 0, 2},
		WriterSN: 5,
	}
	sub := wire.EncodeData(data, wire.LittleEndian)
	msg := buildMessage(t, ownPrefix, otherPrefix, [][]byte{sub})

	r.ProcessMessage(msg)
	if gotSN != 5 {
		t.Fatalf("expected data handler called with sn 5, got %d", gotSN)
	}
}

func TestProcessMessageDropsOwnLoopbackDatagram(t *testing.T) {
	ownPrefix := [12]byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}

	called := false
	r := New(ownPrefix, EntityHandlers{Data: func(Context, wire.Data) { called = true }}, nil, nil)

	data := wire.Data{WriterSN: 1}
	sub := wire.EncodeData(data, wire.LittleEndian)

	header := wire.Header{Version: wire.CurrentProtocolVersion, VendorID: [2]byte{1, 0xff}, GuidPrefix: ownPrefix}
	infoDst := wire.EncodeInfoDestination(wire.InfoDestination{GuidPrefix: ownPrefix}, wire.LittleEndian)
	var body []byte
	body = append(body, infoDst...)
	body = append(body, sub...)
	raw := wire.Encode(header, wire.LittleEndian, [][]byte{body})
	msg, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}

	r.ProcessMessage(msg)
	if called {
		t.Fatal("expected own-loopback datagram to be dropped before dispatch")
	}
}

func TestProcessMessageInfoTimestampInvalidateClearsContext(t *testing.T) {
	ownPrefix := [12]byte{1}
	otherPrefix := [12]byte{2}

	var hadTimestamp bool
	handlers := EntityHandlers{
		Data: func(ctx Context, m wire.Data) { hadTimestamp = ctx.HaveTimestamp },
	}
	r := New(ownPrefix, handlers, nil, nil)

	ts := wire.EncodeInfoTimestamp(wire.InfoTimestamp{Timestamp: wire.Timestamp{Seconds: 100}}, wire.LittleEndian)
	invalidate := wire.EncodeInfoTimestamp(wire.InfoTimestamp{Invalidate: true}, wire.LittleEndian)
	data := wire.EncodeData(wire.Data{WriterSN: 1}, wire.LittleEndian)

	msg := buildMessage(t, ownPrefix, otherPrefix, [][]byte{ts, invalidate, data})
	r.ProcessMessage(msg)
	if hadTimestamp {
		t.Fatal("expected HaveTimestamp false after INFO_TS invalidate")
	}
}

func TestProcessMessageCallsOnReceivedPerEntitySubmessage(t *testing.T) {
	ownPrefix := [12]byte{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	otherPrefix := [12]byte{2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2, 2}

	var kinds []string
	r := New(ownPrefix, EntityHandlers{}, nil, func(kind string) { kinds = append(kinds, kind) })

	data := wire.EncodeData(wire.Data{WriterSN: 1}, wire.LittleEndian)
	an := wire.EncodeAckNack(wire.AckNack{ReaderSNState: wire.NewSequenceNumberSet(1), Count: 1}, wire.LittleEndian)
	msg := buildMessage(t, ownPrefix, otherPrefix, [][]byte{data, an})

	r.ProcessMessage(msg)
	if len(kinds) != 2 || kinds[0] != "DATA" || kinds[1] != "ACKNACK" {
		t.Fatalf("expected onReceived(DATA) then onReceived(ACKNACK), got %v", kinds)
	}
}
