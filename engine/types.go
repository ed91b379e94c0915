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

package engine

import (
	"github.com/xtaci/rtps/discovery"
	"github.com/xtaci/rtps/endpoint"
	"github.com/xtaci/rtps/guid"
	"github.com/xtaci/rtps/history"
	"github.com/xtaci/rtps/qos"
)

// StatusEventKind enumerates the notifications the façade contract
// promises back to the user (spec §6).
type StatusEventKind int

const (
	PublicationMatched StatusEventKind = iota
	SubscriptionMatched
	OfferedIncompatibleQos
	RequestedIncompatibleQos
	LivelinessLost
	LivelinessChanged
	DataAvailable
)

func (k StatusEventKind) String() string {
	switch k {
	case PublicationMatched:
		return "PublicationMatched"
	case SubscriptionMatched:
		return "SubscriptionMatched"
	case OfferedIncompatibleQos:
		return "OfferedIncompatibleQos"
	case RequestedIncompatibleQos:
		return "RequestedIncompatibleQos"
	case LivelinessLost:
		return "LivelinessLost"
	case LivelinessChanged:
		return "LivelinessChanged"
	case DataAvailable:
		return "DataAvailable"
	default:
		return "Unknown"
	}
}

// StatusEvent is one notification the engine posts back to the user
// façade over its Events() channel (spec §6).
type StatusEvent struct {
	Kind   StatusEventKind
	Entity guid.GUID
	Peer   guid.GUID
	Reason string
	Change history.CacheChange
}

// TopicDescription is the topic/type/QoS triple a Writer or Reader is
// created against, the information SEDP advertises alongside its proxy
// (spec §3).
type TopicDescription struct {
	TopicName string
	TypeName  string
	QoS       qos.Policies
}

// WriterRequest asks the Participant to create a local Writer (spec §6
// Façade contract's WriterIngredients, carried here as a single struct
// instead of a raw channel handshake since Go's typed channels already
// give the façade a synchronous call shape without reflection).
type WriterRequest struct {
	Ingredients endpoint.WriterIngredients
	Topic       TopicDescription
}

// ReaderRequest is WriterRequest's Reader analogue.
type ReaderRequest struct {
	Ingredients endpoint.ReaderIngredients
	Topic       TopicDescription
}

// matchNotice is how the Discovery goroutine tells the EventLoop
// goroutine about a SEDP match so the EventLoop — the sole owner of
// every Writer/Reader and its proxies (REDESIGN FLAG 1) — can install
// the proxy itself. Carrying only GUIDs and the already-decoded
// discovery records keeps the cross-goroutine message immutable.
type matchNotice struct {
	writer discovery.DiscoveredWriterData
	reader discovery.DiscoveredReaderData
	result discovery.MatchResult
}

// unmatchNotice tells the EventLoop goroutine a previously matched peer
// is gone; the discovery loop sends one when a participant's lease
// expires.
type unmatchNotice struct {
	endpoint guid.GUID
	peer     guid.GUID
}
