package monitoring

import (
	"sync"
	"time"
)

// Sample is one recorded observation of a named measurement
type Sample struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary aggregates the samples of one measurement
type Summary struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     float64 `json:"max"`
	Last    float64 `json:"last"`
}

// Monitor keeps recent timing samples per measurement name.
// Each session server owns one instance; there is no package-level state.
type Monitor struct {
	samples      map[string][]Sample
	maxSamples   int
	metricsMutex sync.RWMutex
	startTime    time.Time
}

// NewMonitor creates a monitor that keeps at most maxSamples per name
func NewMonitor(maxSamples int) *Monitor {
	if maxSamples <= 0 {
		maxSamples = 100
	}
	return &Monitor{
		samples:    make(map[string][]Sample),
		maxSamples: maxSamples,
		startTime:  time.Now(),
	}
}

// Record stores a sample for the named measurement
func (m *Monitor) Record(name string, value float64) {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()

	entries := append(m.samples[name], Sample{Value: value, Timestamp: time.Now()})
	if len(entries) > m.maxSamples {
		entries = entries[len(entries)-m.maxSamples:]
	}
	m.samples[name] = entries
}

// RecordDuration stores a duration in milliseconds
func (m *Monitor) RecordDuration(name string, d time.Duration) {
	m.Record(name, float64(d)/float64(time.Millisecond))
}

// Samples returns a copy of the samples of one measurement
func (m *Monitor) Samples(name string) []Sample {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	entries := m.samples[name]
	out := make([]Sample, len(entries))
	copy(out, entries)
	return out
}

// Average returns the mean of the recorded samples, or zero if there are none
func (m *Monitor) Average(name string) float64 {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()
	return summarize(m.samples[name]).Average
}

// GetMetrics returns a summary of every measurement plus the uptime
func (m *Monitor) GetMetrics() map[string]interface{} {
	m.metricsMutex.RLock()
	defer m.metricsMutex.RUnlock()

	metrics := make(map[string]interface{}, len(m.samples)+1)
	for name, entries := range m.samples {
		metrics[name] = summarize(entries)
	}

	// Add system metrics
	metrics["uptime_seconds"] = time.Since(m.startTime).Seconds()

	return metrics
}

// Reset clears all samples
func (m *Monitor) Reset() {
	m.metricsMutex.Lock()
	defer m.metricsMutex.Unlock()
	m.samples = make(map[string][]Sample)
}

func summarize(entries []Sample) Summary {
	if len(entries) == 0 {
		return Summary{}
	}
	var sum, max float64
	for _, e := range entries {
		sum += e.Value
		if e.Value > max {
			max = e.Value
		}
	}
	return Summary{
		Count:   len(entries),
		Average: sum / float64(len(entries)),
		Max:     max,
		Last:    entries[len(entries)-1].Value,
	}
}
