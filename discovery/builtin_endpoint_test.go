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

import "testing"

func TestBuiltinEndpointSetHas(t *testing.T) {
	set := BuiltinEndpointParticipantAnnouncer | BuiltinEndpointPublicationsDetector

	if !set.Has(BuiltinEndpointParticipantAnnouncer) {
		t.Fatal("expected ParticipantAnnouncer bit set")
	}
	if !set.Has(BuiltinEndpointPublicationsDetector) {
		t.Fatal("expected PublicationsDetector bit set")
	}
	if set.Has(BuiltinEndpointSubscriptionsAnnouncer) {
		t.Fatal("did not expect SubscriptionsAnnouncer bit set")
	}
}

func TestDefaultBuiltinEndpointsCoversEveryRunEndpoint(t *testing.T) {
	want := []BuiltinEndpointSet{
		BuiltinEndpointParticipantAnnouncer,
		BuiltinEndpointParticipantDetector,
		BuiltinEndpointPublicationsAnnouncer,
		BuiltinEndpointPublicationsDetector,
		BuiltinEndpointSubscriptionsAnnouncer,
		BuiltinEndpointSubscriptionsDetector,
		BuiltinEndpointParticipantMessageWriter,
		BuiltinEndpointParticipantMessageReader,
	}
	for _, e := range want {
		if !DefaultBuiltinEndpoints.Has(e) {
			t.Fatalf("expected DefaultBuiltinEndpoints to include %#x", uint32(e))
		}
	}
}
