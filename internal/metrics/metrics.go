// Package metrics aggregates the per-run build counters.
package metrics

import (
	"context"
	"sync"

	"agentcluster/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is a value snapshot of the run counters.
type Metrics struct {
	LinesProcessed   int `json:"lines_processed"`
	ErrorsFound      int `json:"errors_found"`
	ErrorsCorrected  int `json:"errors_corrected"`
	ToolsGenerated   int `json:"tools_generated"`
	ValidationCycles int `json:"validation_cycles"`
}

// Partial is a sparse update; nil fields are left untouched by Merge.
type Partial struct {
	LinesProcessed   *int
	ErrorsFound      *int
	ErrorsCorrected  *int
	ToolsGenerated   *int
	ValidationCycles *int
}

// Int is a helper for building Partial literals.
func Int(v int) *int { return &v }

// Aggregator owns the counters. Values only move up, except on Reset.
type Aggregator struct {
	mu sync.RWMutex
	m  Metrics
}

// New creates a zeroed aggregator.
func New() *Aggregator {
	return &Aggregator{}
}

// Reset zeroes every counter.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m = Metrics{}
}

// Merge applies the provided fields. A value below the current counter is
// ignored and reported as false.
func (a *Aggregator) Merge(p Partial) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	ok := true
	apply := func(name string, dst *int, v *int) {
		if v == nil {
			return
		}
		if *v < *dst {
			logging.Get(logging.CategoryMetrics).Warn("Rejected decrease of %s: %d -> %d", name, *dst, *v)
			ok = false
			return
		}
		*dst = *v
	}
	apply("lines_processed", &a.m.LinesProcessed, p.LinesProcessed)
	apply("errors_found", &a.m.ErrorsFound, p.ErrorsFound)
	apply("errors_corrected", &a.m.ErrorsCorrected, p.ErrorsCorrected)
	apply("tools_generated", &a.m.ToolsGenerated, p.ToolsGenerated)
	apply("validation_cycles", &a.m.ValidationCycles, p.ValidationCycles)
	return ok
}

// IncErrorsFound counts a detected error.
func (a *Aggregator) IncErrorsFound() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.ErrorsFound++
}

// IncErrorsCorrected counts a corrected error.
func (a *Aggregator) IncErrorsCorrected() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.ErrorsCorrected++
}

// IncToolsGenerated bumps the generated tool counter by one.
func (a *Aggregator) IncToolsGenerated() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.m.ToolsGenerated++
}

// Snapshot returns the current counters.
func (a *Aggregator) Snapshot() Metrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.m
}

// RegisterGauges exposes the counters as observable gauges on the global
// meter provider. A no-op provider makes this free when telemetry is off.
func (a *Aggregator) RegisterGauges() error {
	meter := otel.Meter("agentcluster/metrics")

	gauges := []struct {
		name string
		desc string
		get  func(Metrics) int
	}{
		{"agentcluster.build.lines_processed", "Lines processed in the current run", func(m Metrics) int { return m.LinesProcessed }},
		{"agentcluster.build.errors_found", "Synthetic errors detected in the current run", func(m Metrics) int { return m.ErrorsFound }},
		{"agentcluster.build.errors_corrected", "Synthetic errors corrected in the current run", func(m Metrics) int { return m.ErrorsCorrected }},
		{"agentcluster.build.tools_generated", "Dynamic tools activated in the current run", func(m Metrics) int { return m.ToolsGenerated }},
		{"agentcluster.build.validation_cycles", "Validation cycles completed in the current run", func(m Metrics) int { return m.ValidationCycles }},
	}

	for _, g := range gauges {
		get := g.get
		if _, err := meter.Int64ObservableGauge(g.name,
			metric.WithDescription(g.desc),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(get(a.Snapshot())))
				return nil
			}),
		); err != nil {
			return err
		}
	}
	return nil
}
