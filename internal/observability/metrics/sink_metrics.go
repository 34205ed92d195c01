package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var windowGaugeOnce sync.Once

// RegisterAlertWindowGauge exposes the current high-priority count in
// the trailing alert window. The provided func is invoked per scrape
// and must tolerate sink outages by returning 0.
func RegisterAlertWindowGauge(count func() float64) {
	if count == nil {
		return
	}
	windowGaugeOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: metricPrefix + "alert_window_count",
				Help: "High-priority incidents observed in the trailing alert window",
			},
			count,
		))
	})
}
