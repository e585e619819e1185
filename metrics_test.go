package authcore

import (
	"sync"
	"testing"
)

func TestMetricsDisabledIsNoOp(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)
	m.Add(MetricLoginSuccess, 5)

	if m.Enabled() {
		t.Fatal("expected disabled metrics")
	}
	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if len(m.Snapshot()) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricLoginSuccess)
	if nilMetrics.Value(MetricLoginSuccess) != 0 {
		t.Fatal("nil metrics must be safe")
	}
}

func TestMetricsCountersAndSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Add(MetricRevocationEvicted, 7)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("Value = %d, want 2", got)
	}
	snap := m.Snapshot()
	if snap[MetricLoginSuccess] != 2 || snap[MetricRevocationEvicted] != 7 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
	if snap[MetricLoginFailure] != 0 {
		t.Fatalf("untouched counter = %d, want 0", snap[MetricLoginFailure])
	}

	// Out-of-range IDs are ignored, not a panic.
	m.Inc(MetricID(9999))
	if m.Value(MetricID(9999)) != 0 {
		t.Fatal("out-of-range id must read zero")
	}
}

func TestMetricsConcurrentIncrements(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines, perGoroutine = 8, 1000
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Value(MetricRefreshSuccess); got != goroutines*perGoroutine {
		t.Fatalf("Value = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestMetricIDNames(t *testing.T) {
	seen := make(map[string]MetricID)
	for id := MetricID(0); id < metricIDCount; id++ {
		name := id.Name()
		if name == "unknown" || name == "" {
			t.Fatalf("metric %d has no name", id)
		}
		if prev, dup := seen[name]; dup {
			t.Fatalf("name %q shared by %d and %d", name, prev, id)
		}
		seen[name] = id
	}
	if MetricID(9999).Name() != "unknown" {
		t.Fatal("out-of-range id must name unknown")
	}
}
