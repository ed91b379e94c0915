package guid

import "testing"

func TestNewPrefixIsRandomAndVendorTagged(t *testing.T) {
	a, err := NewPrefix()
	if err != nil {
		t.Fatalf("NewPrefix: %v", err)
	}
	b, err := NewPrefix()
	if err != nil {
		t.Fatalf("NewPrefix: %v", err)
	}
	if a == b {
		t.Fatalf("two calls to NewPrefix produced the same prefix")
	}
	if a[0] != VendorIDThis[0] || a[1] != VendorIDThis[1] {
		t.Fatalf("prefix %s missing vendor id %v", a, VendorIDThis)
	}
	if a.IsUnknown() {
		t.Fatalf("random prefix reported as unknown")
	}
}

func TestEntityIDKindAndUnknown(t *testing.T) {
	if !UnknownEntityID.IsUnknown() {
		t.Fatalf("UnknownEntityID.IsUnknown() = false")
	}
	if EntityIDSPDPAnnouncer.IsUnknown() {
		t.Fatalf("EntityIDSPDPAnnouncer reported unknown")
	}
	if EntityIDSPDPAnnouncer.Kind() != EntityKindWriterWithKeyBuiltin {
		t.Fatalf("SPDP announcer kind = %x, want %x", EntityIDSPDPAnnouncer.Kind(), EntityKindWriterWithKeyBuiltin)
	}
}

func TestGUIDBytesRoundTrip(t *testing.T) {
	prefix, err := NewPrefix()
	if err != nil {
		t.Fatalf("NewPrefix: %v", err)
	}
	g := New(prefix, EntityIDSEDPPubAnnouncer)
	b := g.Bytes()

	var gotPrefix GuidPrefix
	copy(gotPrefix[:], b[:PrefixLength])
	var gotEntity EntityId
	copy(gotEntity[:], b[PrefixLength:])

	if gotPrefix != g.Prefix {
		t.Fatalf("prefix round-trip mismatch")
	}
	if gotEntity != g.EntityID {
		t.Fatalf("entity id round-trip mismatch")
	}
}

func TestPredefinedEntityIDsDistinct(t *testing.T) {
	ids := []EntityId{
		EntityIDParticipant,
		EntityIDSPDPAnnouncer, EntityIDSPDPDetector,
		EntityIDSEDPPubAnnouncer, EntityIDSEDPPubDetector,
		EntityIDSEDPSubAnnouncer, EntityIDSEDPSubDetector,
		EntityIDParticipantMessageWriter, EntityIDParticipantMessageReader,
	}
	seen := make(map[EntityId]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate predefined EntityId: %s", id)
		}
		seen[id] = true
	}
}
