package ports

import "time"

// Metrics receives operational counters. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveFetch(duration time.Duration, err error)
	IncThrottled()
	SetPublished(account string, seq uint64, at time.Time)
	IncLogin(result string)
	IncCommand(kind, result string)
	IncAPIRequest(operation, outcome string)
	SetPendingActions(count int)
}

type NopMetrics struct{}

func (NopMetrics) ObserveFetch(time.Duration, error)      {}
func (NopMetrics) IncThrottled()                          {}
func (NopMetrics) SetPublished(string, uint64, time.Time) {}
func (NopMetrics) IncLogin(string)                        {}
func (NopMetrics) IncCommand(string, string)              {}
func (NopMetrics) IncAPIRequest(string, string)           {}
func (NopMetrics) SetPendingActions(int)                  {}
