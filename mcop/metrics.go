// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mcop

import "github.com/prometheus/client_golang/prometheus"

var objectsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arts",
		Subsystem: "mcop",
		Name:      "objects",
		Help:      "Number of live local objects",
	},
)

var connectionsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arts",
		Subsystem: "mcop",
		Name:      "connections",
		Help:      "Number of open connections",
	},
)

var messagesReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "mcop",
		Name:      "messages_received_total",
		Help:      "Messages received, by message type",
	},
	[]string{"type"},
)

var corruptMessages = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "mcop",
		Name:      "corrupt_messages_total",
		Help:      "Connections dropped for malformed messages",
	},
)

var authFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "mcop",
		Name:      "auth_failures_total",
		Help:      "Clients rejected during the handshake",
	},
)

func init() {
	prometheus.MustRegister(objectsGauge)
	prometheus.MustRegister(connectionsGauge)
	prometheus.MustRegister(messagesReceived)
	prometheus.MustRegister(corruptMessages)
	prometheus.MustRegister(authFailures)
}
