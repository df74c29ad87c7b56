package storage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "chessnet"
	catalogSubsystem = "catalog"
)

type metrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	writes prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: catalogSubsystem,
			Name:      name,
			Help:      help,
		})
		if reg == nil {
			return c
		}
		if err := reg.Register(c); err != nil {
			// a second catalog on the same registry shares the counters
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
					return existing
				}
			}
		}
		return c
	}
	return &metrics{
		hits:   counter("hits_total", "Catalog lookups that found a stored network"),
		misses: counter("misses_total", "Catalog lookups that found nothing"),
		writes: counter("writes_total", "Networks written to the catalog"),
	}
}
