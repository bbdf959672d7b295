// Copyright (C) European XFEL GmbH Schenefeld. All rights reserved.
// Use of this source code is governed by a license that can be found
// in the LICENSE file.

package xms

import "github.com/prometheus/client_golang/prometheus"

// instanceMetrics exposes counters a scraper can use to observe the
// RPC core from outside (SPEC_FULL.md §3: ambient observability,
// carried even though spec.md's Non-goals exclude a metrics feature
// of their own).
type instanceMetrics struct {
	shortCircuitDeliveries prometheus.Counter
	publishErrors          prometheus.Counter
	pendingRequests        prometheus.Gauge
}

func newInstanceMetrics(instanceID string) *instanceMetrics {
	m := &instanceMetrics{
		shortCircuitDeliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "karabo_xms_short_circuit_deliveries_total",
			Help:        "Messages delivered in-process without a broker round trip.",
			ConstLabels: prometheus.Labels{"instance": instanceID},
		}),
		publishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "karabo_xms_publish_errors_total",
			Help:        "Broker publish calls that returned an error after the retry budget.",
			ConstLabels: prometheus.Labels{"instance": instanceID},
		}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "karabo_xms_pending_requests",
			Help:        "Requests awaiting a reply.",
			ConstLabels: prometheus.Labels{"instance": instanceID},
		}),
	}
	// Registration is best-effort: a second SignalSlotable instance in
	// the same process (tests spin up several) would otherwise panic
	// the default registry on a duplicate metric family.
	_ = prometheus.Register(m.shortCircuitDeliveries)
	_ = prometheus.Register(m.publishErrors)
	_ = prometheus.Register(m.pendingRequests)
	return m
}
