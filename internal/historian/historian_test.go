package historian_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/historian"
	"github.com/flowrt/flowrt/internal/node"
)

func TestQueryBucketedAggregation(t *testing.T) {
	h := historian.New(t.TempDir())
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 60; i++ {
		require.NoError(t, h.Write(ctx, node.Measurement{
			Name:      "sim.temp",
			Timestamp: start.Add(time.Duration(i) * time.Second),
			Value:     float64(i + 1),
			Quality:   node.QualityGood,
		}))
	}

	result, err := h.Query(ctx, "sim.temp", start, start.Add(60*time.Second), historian.AggAvg, 6)
	require.NoError(t, err)

	require.Equal(t, 10*time.Second, result.BucketDuration)
	require.Equal(t, 60, result.TotalRaw)
	require.Len(t, result.Points, 6)

	expected := []float64{5.5, 15.5, 25.5, 35.5, 45.5, 55.5}
	for i, b := range result.Points {
		assert.InDelta(t, expected[i], b.Value, 1e-9)
	}
}

func TestWriteThenQuerySinglePointBucket(t *testing.T) {
	h := historian.New(t.TempDir())
	ctx := context.Background()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, h.Write(ctx, node.Measurement{
		Name: "m1", Timestamp: ts, Value: 42, Quality: node.QualityGood,
	}))

	result, err := h.Query(ctx, "m1", ts, ts.Add(time.Microsecond), historian.AggCount, 1)
	require.NoError(t, err)
	require.Len(t, result.Points, 1)
	assert.Equal(t, 1, result.Points[0].RawCount)
}

func TestMeasurementNameSanitized(t *testing.T) {
	h := historian.New(t.TempDir())
	ctx := context.Background()
	require.NoError(t, h.Write(ctx, node.Measurement{
		Name: "Sim/Temp.Shifted", Timestamp: time.Now(), Value: 1,
	}))

	names, err := h.Measurements()
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.NotContains(t, names[0], "/")
	assert.NotContains(t, names[0], ".")
}

func TestQueryMissingMeasurementReturnsEmptyNotError(t *testing.T) {
	h := historian.New(t.TempDir())
	result, err := h.Query(context.Background(), "never-written", time.Now(), time.Now().Add(time.Minute), historian.AggAvg, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Points)
}
