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
	"sync"

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
	"github.com/xtaci/rtps/wire"
)

// participantEntry pairs a discovered participant's record with the
// last time anything was heard from it.
type participantEntry struct {
	lastSeen wire.Timestamp
	data     SPDPdiscoveredParticipantData
}

// DB is the process-wide discovery table shared behind a single mutex
// (spec §3/§5): participant records keyed by GuidPrefix, plus
// per-local-writer and per-remote-writer liveliness timestamps and each
// local writer's declared liveliness kind.
//
// Grounded on the two-tier split in discovery_db.rs: a small set of
// named accessors over BTreeMap-shaped tables, here Go maps behind one
// sync.RWMutex in place of the source's Arc<Mutex<DiscoveryDBInner>>
// (spec §5's "DiscoveryDB is behind a single mutex").
type DB struct {
	mu sync.RWMutex

	participants map[guid.GuidPrefix]participantEntry

	localWriters  map[guid.GUID]wire.Timestamp
	remoteWriters map[guid.GUID]wire.Timestamp

	localWriterLiveliness map[guid.GUID]qos.LivelinessKind
}

// NewDB returns an empty DiscoveryDB.
func NewDB() *DB {
	return &DB{
		participants:          make(map[guid.GuidPrefix]participantEntry),
		localWriters:          make(map[guid.GUID]wire.Timestamp),
		remoteWriters:         make(map[guid.GUID]wire.Timestamp),
		localWriterLiveliness: make(map[guid.GUID]qos.LivelinessKind),
	}
}

// WriteParticipant inserts or replaces a remote participant's record
// and last-seen timestamp (spec §4.8, SPDP inbound).
func (db *DB) WriteParticipant(prefix guid.GuidPrefix, ts wire.Timestamp, data SPDPdiscoveredParticipantData) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.participants[prefix] = participantEntry{lastSeen: ts, data: data}
}

// WriteParticipantTimestamp refreshes an existing participant's
// last-seen timestamp without touching its stored data; a no-op if the
// prefix is not yet known (a liveliness update cannot precede the
// participant's own SPDP announcement).
func (db *DB) WriteParticipantTimestamp(prefix guid.GuidPrefix, ts wire.Timestamp) {
	db.mu.Lock()
	defer db.mu.Unlock()
	entry, ok := db.participants[prefix]
	if !ok {
		return
	}
	entry.lastSeen = ts
	db.participants[prefix] = entry
}

// UpdateLivelinessWithGuidPrefix refreshes the last-seen timestamp of
// every remote writer belonging to prefix — used when any message
// (not just a ParticipantMessage) arrives from that participant, since
// traffic of any kind asserts its liveliness (spec §4.8).
func (db *DB) UpdateLivelinessWithGuidPrefix(prefix guid.GuidPrefix, ts wire.Timestamp) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for g := range db.remoteWriters {
		if g.Prefix == prefix {
			db.remoteWriters[g] = ts
		}
	}
}

// WriteLocalWriter records a local writer's liveliness assertion.
func (db *DB) WriteLocalWriter(g guid.GUID, ts wire.Timestamp) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.localWriters[g] = ts
}

// WriteRemoteWriter records a remote writer's liveliness assertion.
func (db *DB) WriteRemoteWriter(g guid.GUID, ts wire.Timestamp) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.remoteWriters[g] = ts
}

// SetLocalWriterLiveliness records a local writer's declared liveliness
// kind, consulted by the Writer check-manual-liveliness timer (spec §5).
func (db *DB) SetLocalWriterLiveliness(g guid.GUID, kind qos.LivelinessKind) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.localWriterLiveliness[g] = kind
}

// ReadParticipantData returns the stored record for prefix, if any.
func (db *DB) ReadParticipantData(prefix guid.GuidPrefix) (SPDPdiscoveredParticipantData, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	entry, ok := db.participants[prefix]
	return entry.data, ok
}

// ReadParticipantTimestamp returns the last-seen time for prefix, if any.
func (db *DB) ReadParticipantTimestamp(prefix guid.GuidPrefix) (wire.Timestamp, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	entry, ok := db.participants[prefix]
	return entry.lastSeen, ok
}

// ReadLocalWriter returns g's last liveliness-assertion timestamp.
func (db *DB) ReadLocalWriter(g guid.GUID) (wire.Timestamp, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ts, ok := db.localWriters[g]
	return ts, ok
}

// ReadRemoteWriter returns g's last liveliness-assertion timestamp.
func (db *DB) ReadRemoteWriter(g guid.GUID) (wire.Timestamp, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	ts, ok := db.remoteWriters[g]
	return ts, ok
}

// RemoveParticipant drops a participant and every remote writer whose
// GUID carries its prefix — called by the Participant-lease timer once
// a peer's lease_duration has elapsed without a refresh (spec §5).
func (db *DB) RemoveParticipant(prefix guid.GuidPrefix) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.participants, prefix)
	for g := range db.remoteWriters {
		if g.Prefix == prefix {
			delete(db.remoteWriters, g)
		}
	}
}

// ParticipantEntry is a read-only snapshot of one participant's record,
// for iteration by the lease-expiry timer.
type ParticipantEntry struct {
	Prefix   guid.GuidPrefix
	LastSeen wire.Timestamp
	Data     SPDPdiscoveredParticipantData
}

// Participants returns a snapshot of every known remote participant.
func (db *DB) Participants() []ParticipantEntry {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]ParticipantEntry, 0, len(db.participants))
	for prefix, entry := range db.participants {
		out = append(out, ParticipantEntry{Prefix: prefix, LastSeen: entry.lastSeen, Data: entry.data})
	}
	return out
}

// LocalWriterLivelinessKind returns g's declared liveliness kind,
// defaulting to Automatic when never set (spec §4.4 default table).
func (db *DB) LocalWriterLivelinessKind(g guid.GUID) qos.LivelinessKind {
	db.mu.RLock()
	defer db.mu.RUnlock()
	kind, ok := db.localWriterLiveliness[g]
	if !ok {
		return qos.LivelinessAutomatic
	}
	return kind
}
