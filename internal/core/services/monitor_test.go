package services

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMonitoredRegistry(t *testing.T) (*Registry, *stubLevelSource, *countingMetrics, *ActivityMonitor) {
	t.Helper()

	r := newTestRegistry(t, 4)
	require.NoError(t, r.OnJoin("participant_1", "Alice"))

	source := &stubLevelSource{}
	metrics := &countingMetrics{}
	monitor := NewActivityMonitor("participant_1", source, r, 30, 2*time.Millisecond, metrics, testLogger())
	t.Cleanup(monitor.Stop)

	return r, source, metrics, monitor
}

func TestMonitorIdlesUntilSessionStarts(t *testing.T) {
	r, source, _, monitor := startMonitoredRegistry(t)
	source.set(200)

	monitor.Start()
	time.Sleep(30 * time.Millisecond)

	snapshot := r.Snapshot()
	assert.False(t, snapshot[0].Speaking)
	assert.Equal(t, 0, snapshot[0].Contributions)
}

func TestMonitorClassifiesAgainstThreshold(t *testing.T) {
	r, source, metrics, monitor := startMonitoredRegistry(t)
	require.NoError(t, r.StartSession(time.Now()))

	monitor.Start()

	// Exactly at the threshold does not count as speaking.
	source.set(30)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, r.Snapshot()[0].Speaking)

	source.set(31)
	waitFor(t, func() bool { return r.Snapshot()[0].Speaking })

	snapshot := r.Snapshot()
	assert.Equal(t, 1, snapshot[0].Contributions)
	// Raw 31 normalizes onto the 0-100 display scale.
	assert.InDelta(t, 12.16, snapshot[0].AudioLevel, 0.01)
	assert.Equal(t, int64(1), atomic.LoadInt64(&metrics.contributions))
}

func TestMonitorCountsDistinctTurns(t *testing.T) {
	r, source, _, monitor := startMonitoredRegistry(t)
	require.NoError(t, r.StartSession(time.Now()))

	monitor.Start()

	source.set(200)
	waitFor(t, func() bool { return r.Snapshot()[0].Contributions == 1 })

	source.set(0)
	waitFor(t, func() bool { return !r.Snapshot()[0].Speaking })

	source.set(200)
	waitFor(t, func() bool { return r.Snapshot()[0].Contributions == 2 })
}

func TestMonitorStopsWhenSessionEnds(t *testing.T) {
	r, source, _, monitor := startMonitoredRegistry(t)
	require.NoError(t, r.StartSession(time.Now()))

	monitor.Start()
	source.set(200)
	waitFor(t, func() bool { return r.Snapshot()[0].Contributions == 1 })

	r.EndSession(time.Now())

	// The loop notices the end and exits on its own; Stop still releases the
	// source and must not hang.
	monitor.Stop()
	assert.True(t, source.isClosed())
}

func TestMonitorStopIsIdempotent(t *testing.T) {
	_, source, _, monitor := startMonitoredRegistry(t)

	monitor.Start()
	monitor.Stop()
	monitor.Stop()
	assert.True(t, source.isClosed())
}
