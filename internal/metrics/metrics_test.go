package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMerge_LeavesAbsentFieldsUntouched(t *testing.T) {
	a := New()
	a.Merge(Partial{ErrorsFound: Int(2), ErrorsCorrected: Int(2), ToolsGenerated: Int(1)})
	a.Merge(Partial{LinesProcessed: Int(10), ValidationCycles: Int(3)})

	assert.Equal(t, Metrics{
		LinesProcessed:   10,
		ErrorsFound:      2,
		ErrorsCorrected:  2,
		ToolsGenerated:   1,
		ValidationCycles: 3,
	}, a.Snapshot())
}

func TestMerge_RejectsDecrease(t *testing.T) {
	a := New()
	require.True(t, a.Merge(Partial{LinesProcessed: Int(20)}))

	ok := a.Merge(Partial{LinesProcessed: Int(5), ValidationCycles: Int(1)})
	assert.False(t, ok)
	assert.Equal(t, 20, a.Snapshot().LinesProcessed)
	assert.Equal(t, 1, a.Snapshot().ValidationCycles, "valid fields in the same partial still apply")
}

func TestReset(t *testing.T) {
	a := New()
	a.IncErrorsFound()
	a.IncErrorsCorrected()
	a.IncToolsGenerated()
	a.Reset()
	assert.Equal(t, Metrics{}, a.Snapshot())
}

func TestIncrements(t *testing.T) {
	a := New()
	for i := 0; i < 7; i++ {
		a.IncErrorsFound()
	}
	for i := 0; i < 6; i++ {
		a.IncErrorsCorrected()
	}
	a.IncToolsGenerated()

	m := a.Snapshot()
	assert.Equal(t, 7, m.ErrorsFound)
	assert.Equal(t, 6, m.ErrorsCorrected, "found and corrected count independently")
	assert.Equal(t, 1, m.ToolsGenerated)
}

func TestRegisterGauges_ReportsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	a := New()
	require.NoError(t, a.RegisterGauges())
	a.Merge(Partial{LinesProcessed: Int(50), ValidationCycles: Int(16)})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			gauge, ok := m.Data.(metricdata.Gauge[int64])
			if !ok || len(gauge.DataPoints) == 0 {
				continue
			}
			values[m.Name] = gauge.DataPoints[0].Value
		}
	}
	assert.Equal(t, int64(50), values["agentcluster.build.lines_processed"])
	assert.Equal(t, int64(16), values["agentcluster.build.validation_cycles"])
	assert.Equal(t, int64(0), values["agentcluster.build.errors_found"])
}
