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

// ParticipantMessage is the built-in Writer/Reader pair that refreshes
// remote writers' liveliness leases (spec §4.8 item 3): an automatic
// liveliness writer asserts on the EventLoop's 10s timer (spec §5), a
// manual one asserts only when the application writes data, and the
// Reader side folds any inbound ParticipantMessageData into DB.
//
// Grounded on discovery.rs's participant_message writer/reader, which
// publishes ParticipantMessageData carrying the sending participant's
// own GUID and a liveliness kind, and on the shared DB's
// UpdateLivelinessWithGuidPrefix (spec §5's Writer
// assert-automatic-liveliness / check-manual-liveliness timers).
type ParticipantMessage struct {
	db   *DB
	self guid.GuidPrefix
	log  *logrus.Entry
}

// NewParticipantMessage returns a ParticipantMessage endpoint pair for
// the participant identified by self.
func NewParticipantMessage(db *DB, self guid.GuidPrefix, log *logrus.Entry) *ParticipantMessage {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &ParticipantMessage{db: db, self: self, log: log.WithField("component", "participant_message")}
}

// BuildAutomaticLivelinessAssertion returns the RTPS message sent every
// time the EventLoop's 10s automatic-liveliness timer fires (spec §5),
// refreshing every local writer with Automatic liveliness in one shot.
func (pm *ParticipantMessage) BuildAutomaticLivelinessAssertion(now wire.Timestamp) []byte {
	return pm.build(ParticipantMessageKindAutomaticLivelinessUpdate, now)
}

// BuildManualLivelinessAssertion returns the RTPS message sent when the
// application asserts manual liveliness on a writer (spec §5's
// check-manual-liveliness timer watches for the absence of this).
func (pm *ParticipantMessage) BuildManualLivelinessAssertion(now wire.Timestamp) []byte {
	return pm.build(ParticipantMessageKindManualLivelinessUpdate, now)
}

func (pm *ParticipantMessage) build(kind ParticipantMessageKind, now wire.Timestamp) []byte {
	msg := ParticipantMessageData{
		GUID: guid.New(pm.self, guid.EntityIDParticipantMessageWriter),
		Kind: kind,
	}
	payload := wire.SerializedPayload{
		Representation: wire.ReprCDRLE,
		Data:           EncodeParticipantMessageData(msg, wire.LittleEndian),
	}
	b := builder.New([12]byte(pm.self), wire.LittleEndian)
	b.InfoTimestamp(now)
	b.Data(wire.Data{
		ReaderID:          [4]byte(guid.EntityIDParticipantMessageReader),
		WriterID:          [4]byte(guid.EntityIDParticipantMessageWriter),
		WriterSN:          1,
		SerializedPayload: &payload,
	})
	return b.Build()
}

// HandleInbound decodes an inbound ParticipantMessageData payload and
// refreshes the sending writer's liveliness timestamp in DB, asserting
// the whole remote participant's writer set (spec §4.8 item 3: any
// ParticipantMessage datum refreshes every remote writer sharing its
// GUID prefix).
func (pm *ParticipantMessage) HandleInbound(payload []byte, now wire.Timestamp) error {
	msg, err := DecodeParticipantMessageData(payload, wire.LittleEndian)
	if err != nil {
		pm.log.WithError(err).Warn("participant_message: dropping malformed payload")
		return err
	}
	pm.db.UpdateLivelinessWithGuidPrefix(msg.GUID.Prefix, now)
	pm.db.WriteParticipantTimestamp(msg.GUID.Prefix, now)
	return nil
}
