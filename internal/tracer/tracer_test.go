package tracer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowrt/flowrt/internal/tracer"
)

func TestRecordAndTracesByRun(t *testing.T) {
	tr := tracer.New()
	tr.Record(tracer.Record{RunID: "run-1", NodeID: "a", Status: tracer.StatusSuccess})
	tr.Record(tracer.Record{RunID: "run-1", NodeID: "b", Status: tracer.StatusSuccess})
	tr.Record(tracer.Record{RunID: "run-2", NodeID: "c", Status: tracer.StatusFailed})

	run1 := tr.Traces("run-1")
	require.Len(t, run1, 2)
	assert.Equal(t, "a", run1[0].NodeID)
	assert.Equal(t, "b", run1[1].NodeID)

	run2 := tr.Traces("run-2")
	require.Len(t, run2, 1)
	assert.Equal(t, tracer.StatusFailed, run2[0].Status)

	assert.Len(t, tr.All(), 3)
}

func TestPurgeDropsOlderEntriesAndTidiesIndex(t *testing.T) {
	tr := tracer.New()
	cutoff := time.Now()

	tr.Record(tracer.Record{RunID: "old", StartedAt: cutoff.Add(-time.Hour)})
	tr.Record(tracer.Record{RunID: "new", StartedAt: cutoff.Add(time.Hour)})

	tr.Purge(cutoff)

	assert.Empty(t, tr.Traces("old"))
	assert.Len(t, tr.Traces("new"), 1)
	assert.Len(t, tr.All(), 1)
}

func TestRunIDsSorted(t *testing.T) {
	tr := tracer.New()
	tr.Record(tracer.Record{RunID: "b"})
	tr.Record(tracer.Record{RunID: "a"})

	assert.Equal(t, []string{"a", "b"}, tr.RunIDs())
}
