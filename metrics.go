// Copyright 2018-2020 opcua authors. All rights reserved.
// Use of this source code is governed by a MIT-style license that can be
// found in the LICENSE file.

package opcua

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the set of prometheus collectors the client core updates.
// A nil *Metrics is valid everywhere it's used: every method on it is a
// no-op guard, so a Session created without NewMetrics pays no
// observability cost.
type Metrics struct {
	keepAliveTicks         *prometheus.CounterVec
	reconnectAttempts      prometheus.Counter
	reconnectDuration      prometheus.Histogram
	publishOutstanding     prometheus.Gauge
	notificationsDelivered prometheus.Counter
	notificationsDropped   prometheus.Counter
	monitoredItems         prometheus.Gauge

	publishOutstandingTotal int64
}

// NewMetrics registers the client core's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		keepAliveTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "opcua_client",
			Subsystem: "keepalive",
			Name:      "ticks_total",
			Help:      "KeepAlive probe outcomes by result.",
		}, []string{"result"}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "opcua_client",
			Subsystem: "recovery",
			Name:      "attempts_total",
			Help:      "Number of Recovery attempts started.",
		}),
		reconnectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "opcua_client",
			Subsystem: "recovery",
			Name:      "duration_seconds",
			Help:      "Wall-clock time spent in a single Recovery attempt.",
			Buckets:   prometheus.DefBuckets,
		}),
		publishOutstanding: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_client",
			Subsystem: "subscription",
			Name:      "publish_requests_outstanding",
			Help:      "Publish requests currently in flight across all subscriptions.",
		}),
		notificationsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "opcua_client",
			Subsystem: "subscription",
			Name:      "notifications_delivered_total",
			Help:      "Notifications handed to a MonitoredItem handler.",
		}),
		notificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "opcua_client",
			Subsystem: "subscription",
			Name:      "notifications_dropped_total",
			Help:      "Failed Publish responses reported to item handlers as a status change instead of notifications.",
		}),
		monitoredItems: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "opcua_client",
			Subsystem: "subscription",
			Name:      "monitored_items",
			Help:      "Currently registered MonitoredItems across all subscriptions.",
		}),
	}
}

func (m *Metrics) keepAliveTick(result string) {
	if m == nil {
		return
	}
	m.keepAliveTicks.WithLabelValues(result).Inc()
}

func (m *Metrics) recoveryStarted() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) recoveryFinished(seconds float64) {
	if m == nil {
		return
	}
	m.reconnectDuration.Observe(seconds)
}

// adjustPublishOutstanding adds delta to the session-wide count of
// in-flight Publish requests across every subscription and republishes
// the gauge, since individual subscriptions only know their own share.
func (m *Metrics) adjustPublishOutstanding(delta int) {
	if m == nil {
		return
	}
	total := atomic.AddInt64(&m.publishOutstandingTotal, int64(delta))
	m.publishOutstanding.Set(float64(total))
}

func (m *Metrics) notificationDelivered() {
	if m == nil {
		return
	}
	m.notificationsDelivered.Inc()
}

func (m *Metrics) notificationDropped() {
	if m == nil {
		return
	}
	m.notificationsDropped.Inc()
}

func (m *Metrics) setMonitoredItems(n int) {
	if m == nil {
		return
	}
	m.monitoredItems.Set(float64(n))
}
