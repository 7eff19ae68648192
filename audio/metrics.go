// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package audio

import "github.com/prometheus/client_golang/prometheus"

var underrunCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "audio",
		Name:      "underruns_total",
		Help:      "Times the producer could not fill a fragment",
	},
)

var overrunCounter = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "audio",
		Name:      "overruns_total",
		Help:      "Times recorded input was dropped",
	},
)

var runningGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arts",
		Subsystem: "audio",
		Name:      "running",
		Help:      "1 if the audio device is open",
	},
)

func init() {
	prometheus.MustRegister(underrunCounter)
	prometheus.MustRegister(overrunCounter)
	prometheus.MustRegister(runningGauge)
}
