package core

import "time"

// Metrics receives walk telemetry. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveHop(outcome string)
	ObserveResolution(method Method)
	ObserveRejection(reason string)
	ObserveSimilarityCall(provider, status string, took time.Duration)
	ObserveWalk(outcome string, took time.Duration)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) ObserveHop(string)                                   {}
func (NopMetrics) ObserveResolution(Method)                            {}
func (NopMetrics) ObserveRejection(string)                             {}
func (NopMetrics) ObserveSimilarityCall(string, string, time.Duration) {}
func (NopMetrics) ObserveWalk(string, time.Duration)                   {}
