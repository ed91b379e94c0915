package wire

import (
	"bytes"
	"testing"
)

func decodeBody(t *testing.T, raw []byte) (SubmessageHeader, []byte) {
	t.Helper()
	hdr, err := decodeSubmessageHeader(raw)
	if err != nil {
		t.Fatalf("decodeSubmessageHeader: %v", err)
	}
	return hdr, raw[SubmessageHeaderLength : SubmessageHeaderLength+int(hdr.Length)]
}

func TestAckNackRoundTrip(t *testing.T) {
	for _, order := range []Endian{BigEndian, LittleEndian} {
		set := NewSequenceNumberSet(5)
		set.Add(5)
		set.Add(7)
		want := AckNack{
			ReaderID:      EntityIdBytes(0x01, 0x02, 0x03, 0x04),
			WriterID:      EntityIdBytes(0x05, 0x06, 0x07, 0x08),
			ReaderSNState: set,
			Count:         42,
			Final:         true,
		}
		raw := EncodeAckNack(want, order)
		hdr, body := decodeBody(t, raw)
		if hdr.Kind != KindAckNack {
			t.Fatalf("kind = %v", hdr.Kind)
		}
		got, err := DecodeAckNack(body, hdr.Flags)
		if err != nil {
			t.Fatalf("DecodeAckNack: %v", err)
		}
		if got.ReaderID != want.ReaderID || got.WriterID != want.WriterID || got.Count != want.Count || got.Final != want.Final {
			t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
		}
		if len(got.ReaderSNState.Sequences()) != len(want.ReaderSNState.Sequences()) {
			t.Fatalf("sequence set mismatch: %v vs %v", got.ReaderSNState.Sequences(), want.ReaderSNState.Sequences())
		}
	}
}

func TestHeartbeatRoundTripAndValidation(t *testing.T) {
	for _, order := range []Endian{BigEndian, LittleEndian} {
		want := Heartbeat{
			ReaderID:   EntityIdBytes(1, 2, 3, 4),
			WriterID:   EntityIdBytes(5, 6, 7, 8),
			FirstSN:    1,
			LastSN:     10,
			Count:      3,
			Final:      true,
			Liveliness: false,
		}
		raw := EncodeHeartbeat(want, order)
		hdr, body := decodeBody(t, raw)
		got, err := DecodeHeartbeat(body, hdr.Flags)
		if err != nil {
			t.Fatalf("DecodeHeartbeat: %v", err)
		}
		if got != want {
			t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
		}
		if err := ValidateHeartbeat(got); err != nil {
			t.Fatalf("ValidateHeartbeat: %v", err)
		}
	}

	bad := Heartbeat{FirstSN: 10, LastSN: 5}
	if err := ValidateHeartbeat(bad); err == nil {
		t.Fatal("expected error for last_sn < first_sn-1")
	}
}

func TestGapRoundTrip(t *testing.T) {
	set := NewSequenceNumberSet(3)
	set.Add(3)
	want := Gap{
		ReaderID: EntityIdBytes(1, 1, 1, 1),
		WriterID: EntityIdBytes(2, 2, 2, 2),
		GapStart: 1,
		GapList:  set,
	}
	raw := EncodeGap(want, BigEndian)
	hdr, body := decodeBody(t, raw)
	got, err := DecodeGap(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeGap: %v", err)
	}
	if got.GapStart != want.GapStart || got.ReaderID != want.ReaderID || got.WriterID != want.WriterID {
		t.Fatalf("mismatch: %+v vs %+v", got, want)
	}
}

func TestInfoTimestampInvalidate(t *testing.T) {
	raw := EncodeInfoTimestamp(InfoTimestamp{Invalidate: true}, LittleEndian)
	hdr, body := decodeBody(t, raw)
	got, err := DecodeInfoTimestamp(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoTimestamp: %v", err)
	}
	if !got.Invalidate {
		t.Fatal("expected Invalidate")
	}

	ts := Timestamp{Seconds: 123, Fraction: 456}
	raw = EncodeInfoTimestamp(InfoTimestamp{Timestamp: ts}, BigEndian)
	hdr, body = decodeBody(t, raw)
	got, err = DecodeInfoTimestamp(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoTimestamp: %v", err)
	}
	if got.Invalidate || got.Timestamp != ts {
		t.Fatalf("mismatch: %+v", got)
	}
}

func TestDataRoundTripWithInlineQosAndPayload(t *testing.T) {
	for _, order := range []Endian{BigEndian, LittleEndian} {
		var pl ParameterList
		pl.AddString(PIDTopicName, "square", order)
		payload := SerializedPayload{Representation: ReprCDRLE, Data: []byte{1, 2, 3, 4}}
		want := Data{
			ReaderID:          EntityIdBytes(0, 0, 0, 0),
			WriterID:          EntityIdBytes(9, 9, 9, 2),
			WriterSN:          7,
			InlineQoS:         &pl,
			SerializedPayload: &payload,
		}
		if err := ValidateData(want); err != nil {
			t.Fatalf("ValidateData: %v", err)
		}
		raw := EncodeData(want, order)
		hdr, body := decodeBody(t, raw)
		got, err := DecodeData(body, hdr.Flags)
		if err != nil {
			t.Fatalf("DecodeData: %v", err)
		}
		if got.WriterSN != want.WriterSN || got.ReaderID != want.ReaderID || got.WriterID != want.WriterID {
			t.Fatalf("mismatch: %+v vs %+v", got, want)
		}
		if got.InlineQoS == nil {
			t.Fatal("expected inline qos")
		}
		if p, ok := got.InlineQoS.Get(PIDTopicName); !ok || len(p.Value) == 0 {
			t.Fatal("expected topic name parameter")
		}
		if got.SerializedPayload == nil || !bytes.Equal(got.SerializedPayload.Data, payload.Data) {
			t.Fatalf("payload mismatch: %+v", got.SerializedPayload)
		}
	}

	if err := ValidateData(Data{WriterSN: 0}); err == nil {
		t.Fatal("expected error for writer_sn <= 0")
	}
}

func TestDataFragRoundTrip(t *testing.T) {
	want := DataFrag{
		ReaderID:              EntityIdBytes(1, 2, 3, 4),
		WriterID:              EntityIdBytes(5, 6, 7, 8),
		WriterSN:              11,
		FragmentStartingNum:   1,
		FragmentsInSubmessage: 1,
		FragmentSize:          1024,
		DataSize:              4096,
		FragmentData:          []byte{0xde, 0xad, 0xbe, 0xef},
	}
	raw := EncodeDataFrag(want, BigEndian)
	hdr, body := decodeBody(t, raw)
	got, err := DecodeDataFrag(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeDataFrag: %v", err)
	}
	if got.WriterSN != want.WriterSN || got.FragmentSize != want.FragmentSize || got.DataSize != want.DataSize {
		t.Fatalf("mismatch: %+v vs %+v", got, want)
	}
	if !bytes.Equal(got.FragmentData, want.FragmentData) {
		t.Fatalf("fragment data mismatch: %x vs %x", got.FragmentData, want.FragmentData)
	}
}

func TestNackFragAndHeartbeatFragRoundTrip(t *testing.T) {
	fset := NewFragmentNumberSet(1)
	fset.Add(1)
	fset.Add(3)
	nf := NackFrag{
		ReaderID:            EntityIdBytes(1, 1, 1, 1),
		WriterID:            EntityIdBytes(2, 2, 2, 2),
		WriterSN:            4,
		FragmentNumberState: fset,
		Count:               9,
	}
	raw := EncodeNackFrag(nf, LittleEndian)
	hdr, body := decodeBody(t, raw)
	got, err := DecodeNackFrag(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeNackFrag: %v", err)
	}
	if got.WriterSN != nf.WriterSN || got.Count != nf.Count {
		t.Fatalf("mismatch: %+v vs %+v", got, nf)
	}

	hf := HeartbeatFrag{
		ReaderID:        EntityIdBytes(1, 1, 1, 1),
		WriterID:        EntityIdBytes(2, 2, 2, 2),
		WriterSN:        4,
		LastFragmentNum: 2,
		Count:           1,
	}
	raw = EncodeHeartbeatFrag(hf, BigEndian)
	hdr, body = decodeBody(t, raw)
	gotHF, err := DecodeHeartbeatFrag(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeHeartbeatFrag: %v", err)
	}
	if gotHF != hf {
		t.Fatalf("mismatch: %+v vs %+v", gotHF, hf)
	}
}

func TestInfoSourceInfoDestinationInfoReplyRoundTrip(t *testing.T) {
	src := InfoSource{
		ProtocolVersion: CurrentProtocolVersion,
		VendorID:        [2]byte{0x01, 0xff},
		GuidPrefix:      [12]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12},
	}
	raw := EncodeInfoSource(src, BigEndian)
	hdr, body := decodeBody(t, raw)
	gotSrc, err := DecodeInfoSource(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoSource: %v", err)
	}
	if gotSrc != src {
		t.Fatalf("mismatch: %+v vs %+v", gotSrc, src)
	}

	dst := InfoDestination{GuidPrefix: src.GuidPrefix}
	raw = EncodeInfoDestination(dst, LittleEndian)
	hdr, body = decodeBody(t, raw)
	gotDst, err := DecodeInfoDestination(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoDestination: %v", err)
	}
	if gotDst != dst {
		t.Fatalf("mismatch: %+v vs %+v", gotDst, dst)
	}

	reply := InfoReply{
		UnicastLocatorList: []Locator{NewUDPv4Locator(127, 0, 0, 1, 7400)},
		Multicast:          true,
		MulticastLocatorList: []Locator{
			NewUDPv4Locator(239, 255, 0, 1, 7401),
		},
	}
	raw = EncodeInfoReply(reply, BigEndian)
	hdr, body = decodeBody(t, raw)
	gotReply, err := DecodeInfoReply(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoReply: %v", err)
	}
	if len(gotReply.UnicastLocatorList) != 1 || len(gotReply.MulticastLocatorList) != 1 {
		t.Fatalf("mismatch: %+v", gotReply)
	}

	replyIP4 := InfoReplyIP4{
		UnicastLocator:   NewUDPv4Locator(127, 0, 0, 1, 7400),
		Multicast:        true,
		MulticastLocator: NewUDPv4Locator(239, 255, 0, 1, 7401),
	}
	raw = EncodeInfoReplyIP4(replyIP4, BigEndian)
	hdr, body = decodeBody(t, raw)
	gotReplyIP4, err := DecodeInfoReplyIP4(body, hdr.Flags)
	if err != nil {
		t.Fatalf("DecodeInfoReplyIP4: %v", err)
	}
	if gotReplyIP4 != replyIP4 {
		t.Fatalf("mismatch: %+v vs %+v", gotReplyIP4, replyIP4)
	}
}

func TestPadSubmessage(t *testing.T) {
	raw := EncodePad(BigEndian)
	hdr, body := decodeBody(t, raw)
	if hdr.Kind != KindPad || len(body) != 0 {
		t.Fatalf("unexpected pad submessage: %+v body=%v", hdr, body)
	}
}

// EntityIdBytes is a small test helper building a raw 4-byte entity id.
func EntityIdBytes(a, b, c, d byte) [4]byte {
	return [4]byte{a, b, c, d}
}
