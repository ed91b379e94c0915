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

	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/qos"
)

// MatchResult is the outcome of comparing one discovered writer against
// one discovered reader (spec §4.4): a topic/type match whose QoS either
// is or is not compatible.
type MatchResult struct {
	Writer     guid.GUID
	Reader     guid.GUID
	Compatible bool
	Reasons    []qos.IncompatibilityReason
}

// SEDP runs the reliable endpoint-advertisement half of discovery (spec
// §4.8 item 2): each participant's two built-in Writer/Reader pairs
// (publications and subscriptions) exchange DiscoveredWriterData and
// DiscoveredReaderData, and this type matches them by topic_name +
// type_name, checking QoS compatibility per spec §4.4's table.
//
// Grounded on discovery.rs's sedp_*_handler functions, which react to
// inbound DiscoveredWriterData/ReaderData by looking up the topic in a
// local registry and comparing QoS before handing the pairing to the
// Reader/Writer endpoint engines.
type SEDP struct {
	writers map[guid.GUID]DiscoveredWriterData
	readers map[guid.GUID]DiscoveredReaderData
	log     *logrus.Entry
}

// NewSEDP returns an empty SEDP endpoint registry.
func NewSEDP(log *logrus.Entry) *SEDP {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &SEDP{
		writers: make(map[guid.GUID]DiscoveredWriterData),
		readers: make(map[guid.GUID]DiscoveredReaderData),
		log:     log.WithField("component", "sedp"),
	}
}

// AddWriter records a discovered writer and returns every match it forms
// against already-known readers (spec §4.4: matching happens in both
// directions as records trickle in).
func (s *SEDP) AddWriter(w DiscoveredWriterData) []MatchResult {
	s.writers[w.GUID] = w
	var matches []MatchResult
	for _, r := range s.readers {
		if m, ok := match(w, r); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// AddReader records a discovered reader and returns every match it forms
// against already-known writers.
func (s *SEDP) AddReader(r DiscoveredReaderData) []MatchResult {
	s.readers[r.GUID] = r
	var matches []MatchResult
	for _, w := range s.writers {
		if m, ok := match(w, r); ok {
			matches = append(matches, m)
		}
	}
	return matches
}

// RemoveEndpoint drops a writer or reader that has been disposed or
// whose owning participant's lease expired (spec §4.8 item 1, triggered
// by the Participant-lease timer).
func (s *SEDP) RemoveEndpoint(g guid.GUID) {
	delete(s.writers, g)
	delete(s.readers, g)
}

// match reports whether w and r share a topic_name and type_name, and if
// so whether w's offered QoS satisfies r's requested QoS (spec §4.4).
func match(w DiscoveredWriterData, r DiscoveredReaderData) (MatchResult, bool) {
	if w.BuiltinTopicData.TopicName == "" || r.BuiltinTopicData.TopicName == "" {
		return MatchResult{}, false
	}
	if w.BuiltinTopicData.TopicName != r.BuiltinTopicData.TopicName {
		return MatchResult{}, false
	}
	if w.BuiltinTopicData.TypeName != r.BuiltinTopicData.TypeName {
		return MatchResult{}, false
	}
	reasons := w.BuiltinTopicData.QoS.IsCompatibleWith(r.BuiltinTopicData.QoS)
	return MatchResult{
		Writer:     w.GUID,
		Reader:     r.GUID,
		Compatible: len(reasons) == 0,
		Reasons:    reasons,
	}, true
}
