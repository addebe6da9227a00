package cardpdf

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records pipeline outcomes. A nil *Metrics records nothing.
type Metrics struct {
	generations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers the pipeline collectors with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "card_generations_total",
				Help: "Card documents generated, by card type and result.",
			},
			[]string{"card_type", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "card_generation_duration_seconds",
				Help:    "Time spent in each card document pipeline stage.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"stage"},
		),
	}
	for _, c := range []prometheus.Collector{m.generations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observe(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) result(cardType, result string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(cardType, result).Inc()
}
