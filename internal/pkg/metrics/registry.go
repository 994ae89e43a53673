package metrics

import "github.com/prometheus/client_golang/prometheus"

var reg = prometheus.DefaultRegisterer

// Registerer returns the registerer collectors in this package are created on.
func Registerer() prometheus.Registerer { return reg }

// UseRegisterer swaps the registerer. It must run before the first accessor
// (App, Kafka, Syncer, ...) is called, since collectors register once.
func UseRegisterer(r prometheus.Registerer) {
	if r != nil {
		reg = r
	}
}
