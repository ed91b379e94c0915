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

package transport

import "github.com/pkg/errors"

// MulticastGroup is the fixed RTPS default multicast address (spec §6).
const MulticastGroup = "239.255.0.1"

// MaxParticipantID bounds the participant_id port-scan range; no domain
// can host more than this many co-located participants (spec §6/§7 —
// "no free port in the 0-120 participant_id range" is the only startup
// fatal error besides an event-loop panic).
const MaxParticipantID = 120

// SPDPMulticastPort returns the SPDP multicast port for domainID (spec §6).
func SPDPMulticastPort(domainID int) int { return 7400 + 250*domainID }

// SPDPUnicastPort returns the SPDP unicast port for (domainID, participantID).
func SPDPUnicastPort(domainID, participantID int) int {
	return 7400 + 250*domainID + 10 + 2*participantID
}

// UserMulticastPort returns the user-traffic multicast port for domainID.
func UserMulticastPort(domainID int) int { return 7400 + 250*domainID + 1 }

// UserUnicastPort returns the user-traffic unicast port for
// (domainID, participantID).
func UserUnicastPort(domainID, participantID int) int {
	return 7400 + 250*domainID + 11 + 2*participantID
}

// PickParticipantID calls tryBind(participantID) for participantID in
// [0, MaxParticipantID] until it succeeds, returning the first working
// id. tryBind should attempt to bind every port this participant would
// need at that id and return an error if any is unavailable.
func PickParticipantID(tryBind func(participantID int) error) (int, error) {
	var lastErr error
	for pid := 0; pid <= MaxParticipantID; pid++ {
		err := tryBind(pid)
		if err == nil {
			return pid, nil
		}
		lastErr = err
	}
	return 0, errors.Wrap(lastErr, "transport: no free participant_id in [0,120]")
}
