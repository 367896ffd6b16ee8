package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "kbbridge"

// Collectors returns Prometheus collectors reading the bridge counters at
// scrape time.
func (b *Bridge) Collectors() []prometheus.Collector {
	counter := func(name, help string, get func() float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, get)
	}
	gauge := func(name, help string, get func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      name,
			Help:      help,
		}, get)
	}
	return []prometheus.Collector{
		counter("ticks_total", "Scheduler ticks run.",
			func() float64 { return float64(b.ticks.Load()) }),
		counter("scancodes_sent_total", "Bytes clocked out on the keyboard bus.",
			func() float64 { return float64(b.tx.Sent()) }),
		counter("scancodes_dropped_total", "Bytes dropped because the transmit queue was full.",
			func() float64 { return float64(b.sched.Stats().Dropped) }),
		counter("spurious_clock_edges_total", "Clock edges seen while the transmitter was idle.",
			func() float64 { return float64(b.tx.Spurious()) }),
		counter("key_presses_total", "Key MAKE sequences emitted.",
			func() float64 { return float64(b.sched.Stats().Presses) }),
		counter("key_repeats_total", "Typematic repeats emitted.",
			func() float64 { return float64(b.sched.Stats().Repeats) }),
		counter("key_releases_total", "Key BREAK sequences emitted.",
			func() float64 { return float64(b.sched.Stats().Releases) }),
		gauge("queue_depth", "Bytes waiting in the transmit queue.",
			func() float64 { return float64(b.queue.Len()) }),
		gauge("keys_held", "Keys currently held.",
			func() float64 { return float64(len(b.tracker.Snapshot().Held())) }),
	}
}

// RegisterMetrics registers all bridge collectors with reg.
func (b *Bridge) RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range b.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
