package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink exposes the latest value and step of every tag as gauges.
type PrometheusSink struct {
	values *prometheus.GaugeVec
	steps  *prometheus.GaugeVec
	count  prometheus.Counter
}

// NewPrometheusSink registers its collectors with reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frost",
			Name:      "scalar",
			Help:      "Latest value of a training scalar.",
		}, []string{"tag"}),
		steps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "frost",
			Name:      "scalar_step",
			Help:      "Step of the latest value of a training scalar.",
		}, []string{"tag"}),
		count: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "frost",
			Name:      "scalars_total",
			Help:      "Number of scalars recorded.",
		}),
	}
	for _, c := range []prometheus.Collector{s.values, s.steps, s.count} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) AddScalar(tag string, value float64, step int) error {
	s.values.WithLabelValues(tag).Set(value)
	s.steps.WithLabelValues(tag).Set(float64(step))
	s.count.Inc()
	return nil
}

func (s *PrometheusSink) Close() error { return nil }
