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
	"github.com/sirupsen/logrus"

	"github.com/xtaci/rtps/builder"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/wire"
)

// DefaultParticipantMessagePeriod is the SPDP announce interval (spec
// §4.8/§5).
var DefaultParticipantMessagePeriod = wire.Duration{Seconds: 3}

// DefaultLeaseDuration is the participant lease this implementation
// advertises and enforces (spec §9's Open Question decision, kept at
// 20s).
var DefaultLeaseDuration = wire.Duration{Seconds: 20}

// SPDP runs the announce/detect half of discovery (spec §4.8 item 1):
// building this participant's own SPDPdiscoveredParticipantData,
// periodically broadcasting it, and folding inbound records into a
// shared DB.
//
// Grounded on discovery.rs's spdp_send/spdp_participant loop, split here
// into pure functions the owning goroutine (engine's Discovery loop,
// spec §5) drives on its own timer and socket reads.
type SPDP struct {
	db       *DB
	domainID uint16
	self     SPDPdiscoveredParticipantData
	log      *logrus.Entry
}

// NewSPDP builds an SPDP announcer/detector advertising self within db.
func NewSPDP(db *DB, domainID uint16, self SPDPdiscoveredParticipantData, log *logrus.Entry) *SPDP {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SPDP{db: db, domainID: domainID, self: self, log: log.WithField("component", "spdp")}
}

// BuildAnnounce returns the RTPS message to broadcast this round: a
// single DATA submessage addressed to the SPDP detector, carrying this
// participant's SPDPdiscoveredParticipantData as a PL_CDR serialized
// payload (spec §4.8).
func (s *SPDP) BuildAnnounce(now wire.Timestamp) []byte {
	payload := wire.SerializedPayload{
		Representation: wire.ReprPLCDRLE,
		Data:           EncodeSPDPParticipantData(s.self, wire.LittleEndian),
	}
	b := builder.New([12]byte(s.self.GUID.Prefix), wire.LittleEndian)
	b.InfoTimestamp(now)
	b.Data(wire.Data{
		ReaderID:          [4]byte(guid.EntityIDSPDPDetector),
		WriterID:          [4]byte(guid.EntityIDSPDPAnnouncer),
		WriterSN:          1,
		SerializedPayload: &payload,
	})
	return b.Build()
}

// HandleInbound processes an inbound SPDP DATA payload: drops records
// from a foreign domain, otherwise stores the record in DB. It reports
// whether a new or updated participant was recorded, which the caller
// (engine's Discovery loop) uses to trigger SEDP endpoint matching
// (spec §4.4, §4.8 item 1: "otherwise the record is stored in DiscoveryDB
// and the EventLoop is notified to perform SEDP endpoint matching").
func (s *SPDP) HandleInbound(payload []byte, now wire.Timestamp) (SPDPdiscoveredParticipantData, bool) {
	data, err := DecodeSPDPParticipantData(payload, wire.LittleEndian)
	if err != nil {
		s.log.WithError(err).Warn("spdp: dropping malformed participant data")
		return SPDPdiscoveredParticipantData{}, false
	}
	if data.DomainID != s.domainID {
		s.log.WithFields(logrus.Fields{"got": data.DomainID, "want": s.domainID}).Debug("spdp: dropping participant data from foreign domain")
		return SPDPdiscoveredParticipantData{}, false
	}
	if data.GUID.Prefix == s.self.GUID.Prefix {
		return SPDPdiscoveredParticipantData{}, false
	}
	s.db.WriteParticipant(data.GUID.Prefix, now, data)
	s.log.WithField("participant", data.GUID.Prefix.String()).Info("spdp: discovered participant")
	return data, true
}
