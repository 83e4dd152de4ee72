package server

import (
	"time"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/information-sharing-networks/cmp-trust/internal/validation"
)

// validationMetrics records the verdicts of the validation endpoint.
//
//	validation.accepted           counter
//	validation.rejected.<CODE>    counter per validation error code
//	validation.recovered          counter of trust-anchor recoveries
//	validation.duration           timer
//	transactions.open             gauge
type validationMetrics struct {
	registry  metrics.Registry
	accepted  metrics.Counter
	recovered metrics.Counter
	duration  metrics.Timer
	open      metrics.Gauge
}

func newValidationMetrics(registry metrics.Registry) *validationMetrics {
	return &validationMetrics{
		registry:  registry,
		accepted:  metrics.GetOrRegisterCounter("validation.accepted", registry),
		recovered: metrics.GetOrRegisterCounter("validation.recovered", registry),
		duration:  metrics.GetOrRegisterTimer("validation.duration", registry),
		open:      metrics.GetOrRegisterGauge("transactions.open", registry),
	}
}

func (m *validationMetrics) observe(start time.Time, result *validation.Result, err error) {
	m.duration.UpdateSince(start)
	if err != nil {
		code := validation.CodeOf(err)
		if code == "" {
			code = validation.ErrCodeInternal
		}
		metrics.GetOrRegisterCounter("validation.rejected."+string(code), m.registry).Inc(1)
		return
	}
	m.accepted.Inc(1)
	if result.Recovered {
		m.recovered.Inc(1)
	}
}
