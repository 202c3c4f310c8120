/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats tracks the runtime's operational counters and exposes them
// two ways: a plain JSON HTTP endpoint (grounded on
// github.com/facebook/time's ptp4u/stats/json.go) and a
// github.com/prometheus/client_golang registry (grounded on
// ptp/sptp/stats/prom_exporter.go), so either a human curling the daemon or
// a scrape-based monitoring stack can read the same numbers.
package stats

import (
	"sync/atomic"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats holds every counter/gauge the runtime reports, atomically updated
// from the event loop and any number of handler goroutines.
type Stats struct {
	registry *prometheus.Registry

	sdOffersSent        prometheus.Counter
	sdFindsSent         prometheus.Counter
	sdOffersReceived    prometheus.Counter
	sdSubscriptions     prometheus.Gauge
	pendingRequests     prometheus.Gauge
	reassemblyPending   prometheus.Gauge
	workerQueueDepth    prometheus.Gauge
	requestsTimedOut    prometheus.Counter
	requestsCompleted   prometheus.Counter
	malformedDropped    prometheus.Counter

	pendingRequestsRaw   int64
	reassemblyPendingRaw int64
	workerQueueDepthRaw  int64
	sdSubscriptionsRaw   int64
}

// New builds a Stats with every collector registered against a fresh
// prometheus.Registry.
func New() *Stats {
	s := &Stats{
		registry: prometheus.NewRegistry(),
		sdOffersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_sd_offers_sent_total", Help: "Offer entries emitted by local services."}),
		sdFindsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_sd_finds_sent_total", Help: "FindService entries emitted."}),
		sdOffersReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_sd_offers_received_total", Help: "Offer entries observed from remote services."}),
		sdSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_sd_subscriptions", Help: "Active eventgroup subscriptions held as a provider."}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_pending_requests", Help: "Requests awaiting a Response."}),
		reassemblyPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_tp_reassembly_pending", Help: "In-flight TP reassembly keys."}),
		workerQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "someip_worker_queue_depth", Help: "Approximate worker pool backlog."}),
		requestsTimedOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_requests_timed_out_total", Help: "Requests that never received a Response in time."}),
		requestsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_requests_completed_total", Help: "Requests that received a Response or Error."}),
		malformedDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "someip_malformed_messages_dropped_total", Help: "Inbound messages dropped for failing to decode."}),
	}
	for _, c := range []prometheus.Collector{
		s.sdOffersSent, s.sdFindsSent, s.sdOffersReceived, s.sdSubscriptions,
		s.pendingRequests, s.reassemblyPending, s.workerQueueDepth,
		s.requestsTimedOut, s.requestsCompleted, s.malformedDropped,
	} {
		s.registry.MustRegister(c)
	}
	return s
}

// Registry returns the prometheus.Registry for wiring into promhttp.
func (s *Stats) Registry() *prometheus.Registry { return s.registry }

func (s *Stats) IncSDOfferSent()     { s.sdOffersSent.Inc() }
func (s *Stats) IncSDFindSent()      { s.sdFindsSent.Inc() }
func (s *Stats) IncSDOfferReceived() { s.sdOffersReceived.Inc() }
func (s *Stats) IncRequestTimedOut() { s.requestsTimedOut.Inc() }
func (s *Stats) IncRequestCompleted() { s.requestsCompleted.Inc() }
func (s *Stats) IncMalformedDropped() { s.malformedDropped.Inc() }

func (s *Stats) SetSDSubscriptions(n int) {
	atomic.StoreInt64(&s.sdSubscriptionsRaw, int64(n))
	s.sdSubscriptions.Set(float64(n))
}

func (s *Stats) SetPendingRequests(n int) {
	atomic.StoreInt64(&s.pendingRequestsRaw, int64(n))
	s.pendingRequests.Set(float64(n))
}

func (s *Stats) SetReassemblyPending(n int) {
	atomic.StoreInt64(&s.reassemblyPendingRaw, int64(n))
	s.reassemblyPending.Set(float64(n))
}

func (s *Stats) SetWorkerQueueDepth(n int) {
	atomic.StoreInt64(&s.workerQueueDepthRaw, int64(n))
	s.workerQueueDepth.Set(float64(n))
}

// Snapshot is the plain-JSON view of the same counters, for someipctl and
// anyone curling the daemon directly.
type Snapshot struct {
	SDOffersSent      float64 `json:"sd_offers_sent"`
	SDFindsSent       float64 `json:"sd_finds_sent"`
	SDOffersReceived  float64 `json:"sd_offers_received"`
	SDSubscriptions   int64   `json:"sd_subscriptions"`
	PendingRequests   int64   `json:"pending_requests"`
	ReassemblyPending int64   `json:"tp_reassembly_pending"`
	WorkerQueueDepth  int64   `json:"worker_queue_depth"`
	RequestsTimedOut  float64 `json:"requests_timed_out"`
	RequestsCompleted float64 `json:"requests_completed"`
	MalformedDropped  float64 `json:"malformed_messages_dropped"`
}

// Snapshot reads every counter/gauge into a JSON-serialisable struct.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		SDOffersSent:      readCounter(s.sdOffersSent),
		SDFindsSent:       readCounter(s.sdFindsSent),
		SDOffersReceived:  readCounter(s.sdOffersReceived),
		SDSubscriptions:   atomic.LoadInt64(&s.sdSubscriptionsRaw),
		PendingRequests:   atomic.LoadInt64(&s.pendingRequestsRaw),
		ReassemblyPending: atomic.LoadInt64(&s.reassemblyPendingRaw),
		WorkerQueueDepth:  atomic.LoadInt64(&s.workerQueueDepthRaw),
		RequestsTimedOut:  readCounter(s.requestsTimedOut),
		RequestsCompleted: readCounter(s.requestsCompleted),
		MalformedDropped:  readCounter(s.malformedDropped),
	}
}

func readCounter(c prometheus.Counter) float64 {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}
