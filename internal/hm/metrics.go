package hm

import "time"

// Metrics receives per-unit observations.
type Metrics interface {
	// ObserveUnit is called once per finished unit, after retries.
	ObserveUnit(operation string, result *UnitResult, elapsed time.Duration)
	// ObserveRetry is called each time a unit attempt fails and is retried.
	ObserveRetry(operation string)
}

// NopMetrics discards observations.
type NopMetrics struct{}

func (NopMetrics) ObserveUnit(string, *UnitResult, time.Duration) {}
func (NopMetrics) ObserveRetry(string)                            {}
