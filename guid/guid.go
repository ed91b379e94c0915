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

// Package guid implements the RTPS GUID namespace: GuidPrefix, EntityId
// and their 16-byte concatenation, plus the predefined EntityIds for the
// built-in discovery and liveliness endpoints.
package guid

import (
	"encoding/hex"
	"fmt"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
)

// PrefixLength is the size in bytes of a GuidPrefix.
const PrefixLength = 12

// EntityIDLength is the size in bytes of an EntityId.
const EntityIDLength = 4

// Length is the size in bytes of a full GUID (GuidPrefix || EntityId).
const Length = PrefixLength + EntityIDLength

// VendorID identifies the implementation that produced a GuidPrefix. The
// first two octets of every GuidPrefix carry the vendor id (spec §3).
type VendorID [2]byte

// VendorIDThis is this implementation's vendor id. RTPS reserves low
// values for the standard's own reference implementations; vendor ids
// above 0x0100 are unallocated experimental space.
var VendorIDThis = VendorID{0x01, 0xff}

// GuidPrefix is the 12-byte process-unique prefix shared by every entity
// of one participant.
type GuidPrefix [PrefixLength]byte

// UnknownPrefix is the distinguished "no prefix" value used by MessageReceiver
// defaults and by GAP/HEARTBEAT senders that have not yet been resolved.
var UnknownPrefix = GuidPrefix{}

// NewPrefix returns a random GuidPrefix with VendorIDThis in its first
// two bytes, per spec §9 ("participant identity is randomized at
// construction; no global mutable state required").
func NewPrefix() (GuidPrefix, error) {
	var p GuidPrefix
	random, err := uuid.GenerateRandomBytes(16)
	if err != nil {
		return p, errors.Wrap(err, "guid.NewPrefix: generate randomness")
	}
	p[0] = VendorIDThis[0]
	p[1] = VendorIDThis[1]
	copy(p[2:], random[:PrefixLength-2])
	return p, nil
}

func (p GuidPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// IsUnknown reports whether p is the all-zero distinguished value.
func (p GuidPrefix) IsUnknown() bool {
	return p == UnknownPrefix
}

// EntityKind is the low byte of an EntityId; it distinguishes
// Reader/Writer x WithKey/NoKey x User/BuiltIn plus the participant and
// group kinds (spec §3).
type EntityKind byte

const (
	EntityKindParticipant           EntityKind = 0xc1
	EntityKindWriterWithKeyUser     EntityKind = 0x02
	EntityKindWriterNoKeyUser       EntityKind = 0x03
	EntityKindReaderNoKeyUser       EntityKind = 0x04
	EntityKindReaderWithKeyUser     EntityKind = 0x07
	EntityKindWriterGroupUser       EntityKind = 0x08
	EntityKindReaderGroupUser       EntityKind = 0x09
	EntityKindWriterWithKeyBuiltin  EntityKind = 0xc2
	EntityKindWriterNoKeyBuiltin    EntityKind = 0xc3
	EntityKindReaderNoKeyBuiltin    EntityKind = 0xc4
	EntityKindReaderWithKeyBuiltin  EntityKind = 0xc7
	EntityKindWriterGroupBuiltin    EntityKind = 0xc8
	EntityKindReaderGroupBuiltin    EntityKind = 0xc9
	EntityKindPublisherBuiltin      EntityKind = 0xc3
	EntityKindSubscriberBuiltin     EntityKind = 0xc4
	EntityKindUnknown               EntityKind = 0x00
)

// EntityId is a 3-byte entity key plus a 1-byte entity kind.
type EntityId [EntityIDLength]byte

// UnknownEntityID is the wildcard EntityId used by ACKNACK/DATA reader_id fields
// meaning "every local Reader".
var UnknownEntityID = EntityId{}

// Kind returns the entity kind byte (last octet).
func (e EntityId) Kind() EntityKind { return EntityKind(e[3]) }

// IsUnknown reports whether e is the all-zero wildcard value.
func (e EntityId) IsUnknown() bool { return e == UnknownEntityID }

func (e EntityId) String() string {
	return hex.EncodeToString(e[:])
}

// newEntityID builds an EntityId from a 3-byte key and a kind octet.
func newEntityID(key [3]byte, kind EntityKind) EntityId {
	return EntityId{key[0], key[1], key[2], byte(kind)}
}

// Predefined EntityIds (spec §6).
var (
	EntityIDParticipant = newEntityID([3]byte{0x00, 0x00, 0x01}, EntityKindParticipant)

	EntityIDSPDPAnnouncer = newEntityID([3]byte{0x00, 0x01, 0x00}, EntityKindWriterWithKeyBuiltin)
	EntityIDSPDPDetector  = newEntityID([3]byte{0x00, 0x01, 0x00}, EntityKindReaderWithKeyBuiltin)

	EntityIDSEDPPubAnnouncer = newEntityID([3]byte{0x00, 0x00, 0x03}, EntityKindWriterWithKeyBuiltin)
	EntityIDSEDPPubDetector  = newEntityID([3]byte{0x00, 0x00, 0x03}, EntityKindReaderWithKeyBuiltin)

	EntityIDSEDPSubAnnouncer = newEntityID([3]byte{0x00, 0x00, 0x04}, EntityKindWriterWithKeyBuiltin)
	EntityIDSEDPSubDetector  = newEntityID([3]byte{0x00, 0x00, 0x04}, EntityKindReaderWithKeyBuiltin)

	EntityIDParticipantMessageWriter = newEntityID([3]byte{0x00, 0x02, 0x00}, EntityKindWriterWithKeyBuiltin)
	EntityIDParticipantMessageReader = newEntityID([3]byte{0x00, 0x02, 0x00}, EntityKindReaderWithKeyBuiltin)
)

// GUID is the 16-byte concatenation of a GuidPrefix and an EntityId.
type GUID struct {
	Prefix   GuidPrefix
	EntityID EntityId
}

// New builds a GUID from its parts.
func New(prefix GuidPrefix, entityID EntityId) GUID {
	return GUID{Prefix: prefix, EntityID: entityID}
}

// Bytes returns the wire representation: 12-byte prefix then 4-byte
// entity id.
func (g GUID) Bytes() [Length]byte {
	var out [Length]byte
	copy(out[:PrefixLength], g.Prefix[:])
	copy(out[PrefixLength:], g.EntityID[:])
	return out
}

func (g GUID) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.EntityID)
}

// IsUnknown reports whether both halves of g are the wildcard value.
func (g GUID) IsUnknown() bool {
	return g.Prefix.IsUnknown() && g.EntityID.IsUnknown()
}
