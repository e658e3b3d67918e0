// Copyright © 2016 Geoff Holden <geoff@geoffholden.com>

package publish

import (
	"net/http"

	"github.com/geoffholden/mitemp/device"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records sensor values and acquisition outcomes for Prometheus.
// Failed reads only show up here and in the log.
type Metrics struct {
	registry    *prometheus.Registry
	value       *prometheus.GaugeVec
	attempts    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		value: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mitemp_sensor_value",
			Help: "Latest value of a sensor.",
		}, []string{"device", "name", "key"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mitemp_acquisitions_total",
			Help: "Acquisition attempts per device.",
		}, []string{"device"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mitemp_acquisition_failures_total",
			Help: "Failed acquisitions per device.",
		}, []string{"device"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mitemp_last_success_timestamp_seconds",
			Help: "Time of the last successful acquisition.",
		}, []string{"device"}),
	}
	m.registry.MustRegister(m.value, m.attempts, m.failures, m.lastSuccess)
	return m
}

// Observe records the outcome of one Device.Update call.
func (m *Metrics) Observe(d *device.Device, attempted bool, err error) {
	mac := d.Config().MAC
	if attempted {
		m.attempts.WithLabelValues(mac).Inc()
		if err != nil {
			m.failures.WithLabelValues(mac).Inc()
		}
	}

	reading := d.Reading()
	if reading.Empty() {
		return
	}
	if attempted && err == nil {
		m.lastSuccess.WithLabelValues(mac).Set(float64(reading.TimeStamp.Unix()))
	}
	for _, s := range d.Sensors() {
		m.value.WithLabelValues(mac, s.Name(), s.Key()).Set(s.Value())
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
