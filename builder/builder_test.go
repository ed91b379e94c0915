package builder

import (
	"testing"

	"github.com/xtaci/rtps/wire"
)

func TestBuilderAssemblesMultipleSubmessages(t *testing.T) {
	prefix := [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	b := New(prefix, wire.LittleEndian)

	raw := b.
		InfoTimestamp(wire.Timestamp{Seconds: 42}).
		Data(wire.Data{ReaderID: [4]byte{0, 0, 0, 0}, WriterID: [4]byte{1, 0, 0, 2}, WriterSN: 1}).
		Build()

	msg, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	if msg.Header.GuidPrefix != prefix {
		t.Fatalf("GuidPrefix = %v, want %v", msg.Header.GuidPrefix, prefix)
	}
	if len(msg.Submessages) != 2 {
		t.Fatalf("expected 2 submessages, got %d", len(msg.Submessages))
	}
	if msg.Submessages[0].Header.Kind != wire.KindInfoTS || msg.Submessages[1].Header.Kind != wire.KindData {
		t.Fatalf("unexpected submessage kinds: %+v", msg.Submessages)
	}
}

func TestBuilderResetsAfterBuild(t *testing.T) {
	prefix := [12]byte{1}
	b := New(prefix, wire.BigEndian)
	b.InfoTimestamp(wire.Timestamp{Seconds: 1})
	_ = b.Build()

	raw := b.Build()
	msg, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	if len(msg.Submessages) != 0 {
		t.Fatalf("expected empty message after reset, got %+v", msg.Submessages)
	}
}

func TestBuilderHeartbeatAndAckNack(t *testing.T) {
	prefix := [12]byte{9}
	set := wire.NewSequenceNumberSet(1)
	set.Add(1)
	raw := New(prefix, wire.LittleEndian).
		Heartbeat([4]byte{0, 0, 0, 0}, [4]byte{0, 0, 0, 2}, 1, 5, 1, true, false).
		AckNack([4]byte{0, 0, 0, 0}, [4]byte{0, 0, 0, 2}, set, 1, true).
		Build()

	msg, err := wire.Decode(raw)
	if err != nil {
		t.Fatalf("wire.Decode: %v", err)
	}
	if len(msg.Submessages) != 2 {
		t.Fatalf("expected 2 submessages, got %d", len(msg.Submessages))
	}
}
