package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus collectors. One Metrics value can be
// shared by every engine in a process; a nil *Metrics records nothing.
type Metrics struct {
	echoesSuppressed prometheus.Counter
	cellWrites       prometheus.Counter
	arrayWrites      prometheus.Counter
	rowsAdded        prometheus.Counter
	rowsRemoved      prometheus.Counter
	staleEvents      prometheus.Counter
	rows             prometheus.Gauge
}

// NewMetrics registers the engine collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "vecgrid",
			Subsystem: "engine",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		echoesSuppressed: counter("echoes_suppressed_total", "Notifications dropped because the engine itself caused them"),
		cellWrites:       counter("cell_writes_total", "Cell writes issued by engines"),
		arrayWrites:      counter("array_writes_total", "Array element writes issued by engines"),
		rowsAdded:        counter("rows_added_total", "Grid rows created"),
		rowsRemoved:      counter("rows_removed_total", "Grid rows deleted"),
		staleEvents:      counter("stale_events_total", "Notifications skipped because their index addressed no row"),
		rows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "vecgrid",
			Subsystem: "engine",
			Name:      "rows",
			Help:      "Rows currently held by all grids",
		}),
	}
}

func (m *Metrics) echoSuppressed() {
	if m != nil {
		m.echoesSuppressed.Inc()
	}
}

func (m *Metrics) cellWrite() {
	if m != nil {
		m.cellWrites.Inc()
	}
}

func (m *Metrics) arrayWrite() {
	if m != nil {
		m.arrayWrites.Inc()
	}
}

func (m *Metrics) rowAdded() {
	if m != nil {
		m.rowsAdded.Inc()
		m.rows.Inc()
	}
}

func (m *Metrics) rowRemoved() {
	if m != nil {
		m.rowsRemoved.Inc()
		m.rows.Dec()
	}
}

func (m *Metrics) staleEvent() {
	if m != nil {
		m.staleEvents.Inc()
	}
}
