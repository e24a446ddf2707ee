package monitoring

import (
	"testing"
	"time"
)

func TestMonitor_GetMetrics(t *testing.T) {
	m := NewMonitor(10)
	m.Record("api.get_orders", 40)
	m.Record("api.get_orders", 60)

	metrics := m.GetMetrics()

	// Check if our metric is present
	value, exists := metrics["api.get_orders"]
	if !exists {
		t.Fatalf("Expected 'api.get_orders' to be present in metrics, but it was not")
	}

	summary, ok := value.(Summary)
	if !ok {
		t.Fatalf("Expected a Summary, got %T", value)
	}
	if summary.Count != 2 || summary.Average != 50 || summary.Max != 60 || summary.Last != 60 {
		t.Errorf("Unexpected summary %+v", summary)
	}

	// Check uptime presence
	if _, exists = metrics["uptime_seconds"]; !exists {
		t.Errorf("Expected 'uptime_seconds' to be present in metrics, but it was not")
	}
}

func TestMonitor_KeepsMostRecentSamples(t *testing.T) {
	m := NewMonitor(3)
	for i := 1; i <= 5; i++ {
		m.Record("poll", float64(i))
	}

	samples := m.Samples("poll")
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	if samples[0].Value != 3 || samples[2].Value != 5 {
		t.Errorf("Expected samples 3..5, got %v", samples)
	}
	if avg := m.Average("poll"); avg != 4 {
		t.Errorf("Expected average 4, got %v", avg)
	}
}

func TestMonitor_RecordDuration(t *testing.T) {
	m := NewMonitor(0)
	m.RecordDuration("place_order", 250*time.Millisecond)

	if avg := m.Average("place_order"); avg != 250 {
		t.Errorf("Expected 250ms, got %v", avg)
	}
}

func TestMonitor_InstancesAreIndependent(t *testing.T) {
	a := NewMonitor(10)
	b := NewMonitor(10)
	a.Record("shared_name", 1)

	if len(b.Samples("shared_name")) != 0 {
		t.Errorf("Expected separate monitors not to share samples")
	}
}

func TestMonitor_Reset(t *testing.T) {
	m := NewMonitor(10)
	m.Record("test_metric", 42)

	m.Reset()

	metrics := m.GetMetrics()

	// Our test metric should be gone, but uptime should still be there
	if _, exists := metrics["test_metric"]; exists {
		t.Errorf("Expected 'test_metric' to be removed after Reset(), but it was present")
	}

	// Uptime should still be present (it's added on GetMetrics call)
	if _, exists := metrics["uptime_seconds"]; !exists {
		t.Errorf("Expected 'uptime_seconds' to be present in metrics, but it was not")
	}
}
