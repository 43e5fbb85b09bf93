package registry

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	started prometheus.Counter
	stopped prometheus.Counter
	active  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mdbridge",
			Subsystem: "workers",
			Name:      "started_total",
			Help:      "Workers registered since process start.",
		}),
		stopped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mdbridge",
			Subsystem: "workers",
			Name:      "stopped_total",
			Help:      "Workers deregistered since process start.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mdbridge",
			Subsystem: "workers",
			Name:      "active",
			Help:      "Workers currently registered.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.started, m.stopped, m.active)
	}
	return m
}
