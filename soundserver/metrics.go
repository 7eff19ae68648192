// Copyright 2026 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package soundserver

import "github.com/prometheus/client_golang/prometheus"

var jobsGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arts",
		Subsystem: "soundserver",
		Name:      "jobs",
		Help:      "Number of jobs being mixed",
	},
)

var jobsStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "soundserver",
		Name:      "jobs_started_total",
		Help:      "Jobs started, by kind",
	},
	[]string{"kind"},
)

var streamStarved = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arts",
		Subsystem: "soundserver",
		Name:      "stream_starved_total",
		Help:      "Mixing rounds in which a stream had no data",
	},
)

var cpuUsageGauge = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arts",
		Subsystem: "soundserver",
		Name:      "cpu_usage_ratio",
		Help:      "Fraction of wall time spent mixing",
	},
)

func init() {
	prometheus.MustRegister(jobsGauge)
	prometheus.MustRegister(jobsStarted)
	prometheus.MustRegister(streamStarved)
	prometheus.MustRegister(cpuUsageGauge)
}
