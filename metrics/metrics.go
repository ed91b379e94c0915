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

// Package metrics replaces the teacher's periodic CSV snapshot of
// kcp.DefaultSnmp counters (std/snmp.go) with live prometheus
// counter/gauge vectors an operator scrapes instead of tailing a file:
// submessages sent/received by kind, ACKNACK-triggered resends, GAPs
// emitted, HistoryCache depth per endpoint, matched-proxy counts, and
// liveliness losses.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every counter/gauge vector the engine updates.
// NewNoop returns a fully built set registered only with a fresh private
// registry, so callers that export no metrics still get vectors that
// are safe to update,
// the same way the teacher's SnmpLogger silently no-ops when its
// path/interval are unset. A nil *Metrics is not safe to use.
type Metrics struct {
	SubmessagesSent     *prometheus.CounterVec
	SubmessagesReceived *prometheus.CounterVec
	Resends             *prometheus.CounterVec
	GapsEmitted         *prometheus.CounterVec
	HistoryDepth        *prometheus.GaugeVec
	MatchedProxies      *prometheus.GaugeVec
	LivelinessLosses    prometheus.Counter
}

// New registers and returns a fresh Metrics set against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SubmessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps", Name: "submessages_sent_total",
			Help: "Submessages sent, by kind.",
		}, []string{"kind"}),
		SubmessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps", Name: "submessages_received_total",
			Help: "Submessages received, by kind.",
		}, []string{"kind"}),
		Resends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps", Name: "acknack_resends_total",
			Help: "DATA resends triggered by an ACKNACK repair, by writer GUID.",
		}, []string{"writer"}),
		GapsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rtps", Name: "gaps_emitted_total",
			Help: "GAP submessages emitted for irrelevant requested changes, by writer GUID.",
		}, []string{"writer"}),
		HistoryDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtps", Name: "history_cache_depth",
			Help: "Current HistoryCache sample count, by endpoint GUID.",
		}, []string{"endpoint"}),
		MatchedProxies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtps", Name: "matched_proxies",
			Help: "Current matched reader/writer proxy count, by endpoint GUID.",
		}, []string{"endpoint"}),
		LivelinessLosses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rtps", Name: "liveliness_losses_total",
			Help: "LivelinessLost status events raised.",
		}),
	}
	reg.MustRegister(
		m.SubmessagesSent, m.SubmessagesReceived, m.Resends,
		m.GapsEmitted, m.HistoryDepth, m.MatchedProxies, m.LivelinessLosses,
	)
	return m
}

// NewNoop returns a Metrics backed by an unregistered, throwaway
// registry — for tests and callers that do not care to expose
// /metrics.
func NewNoop() *Metrics {
	return New(prometheus.NewRegistry())
}
