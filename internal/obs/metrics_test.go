package obs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()
	m.IncPlanAdmitted()
	m.IncPlanAdmitted()
	m.IncCandidatePlaced()
	m.IncEscalation()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.PlansAdmitted)
	assert.Equal(t, uint64(1), snap.CandidatesPlaced)
	assert.Equal(t, uint64(1), snap.Escalations)
	assert.Equal(t, uint64(0), snap.Exhausted)
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.IncPlanAdmitted()
	m.ObserveTick(time.Millisecond)
	assert.Equal(t, Snapshot{}, m.Snapshot())
}

func TestLatencyStats(t *testing.T) {
	m := NewMetrics()
	m.ObserveTick(2 * time.Millisecond)
	m.ObserveTick(4 * time.Millisecond)
	m.ObserveTick(6 * time.Millisecond)

	lat := m.Snapshot().TickLatency
	assert.Equal(t, uint64(3), lat.Count)
	assert.Equal(t, 2*time.Millisecond, lat.Min)
	assert.Equal(t, 6*time.Millisecond, lat.Max)
	assert.Equal(t, 4*time.Millisecond, lat.Avg)
}

func TestMetricsConcurrent(t *testing.T) {
	m := NewMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.IncCandidateTried()
				m.ObserveTick(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	assert.Equal(t, uint64(8000), snap.CandidatesTried)
	assert.Equal(t, uint64(8000), snap.TickLatency.Count)
}
