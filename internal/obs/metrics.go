package obs

import (
	"sync/atomic"
	"time"
)

// Metrics collects lightweight engine counters and tick latency.
type Metrics struct {
	plansAdmitted     uint64
	plansDropped      uint64
	candidatesTried   uint64
	candidatesPlaced  uint64
	candidatesSkipped uint64
	softRejections    uint64
	exhausted         uint64
	shrinks           uint64
	escalations       uint64
	staleCancels      uint64
	cancelFailures    uint64
	queueDrops        uint64

	tickLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// Observe records one duration sample.
func (s *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	v := uint64(d)
	atomic.AddUint64(&s.count, 1)
	atomic.AddUint64(&s.sum, v)
	for {
		current := atomic.LoadUint64(&s.min)
		if current != 0 && v >= current {
			break
		}
		if atomic.CompareAndSwapUint64(&s.min, current, v) {
			break
		}
	}
	for {
		current := atomic.LoadUint64(&s.max)
		if v <= current {
			break
		}
		if atomic.CompareAndSwapUint64(&s.max, current, v) {
			break
		}
	}
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

func (s *LatencyStats) snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&s.count)
	out := LatencySnapshot{
		Count: count,
		Min:   time.Duration(atomic.LoadUint64(&s.min)),
		Max:   time.Duration(atomic.LoadUint64(&s.max)),
	}
	if count > 0 {
		out.Avg = time.Duration(atomic.LoadUint64(&s.sum) / count)
	}
	return out
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	PlansAdmitted     uint64
	PlansDropped      uint64
	CandidatesTried   uint64
	CandidatesPlaced  uint64
	CandidatesSkipped uint64
	SoftRejections    uint64
	Exhausted         uint64
	Shrinks           uint64
	Escalations       uint64
	StaleCancels      uint64
	CancelFailures    uint64
	QueueDrops        uint64
	TickLatency       LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) inc(counter *uint64) {
	if m == nil {
		return
	}
	atomic.AddUint64(counter, 1)
}

func (m *Metrics) IncPlanAdmitted()     { m.inc(&m.plansAdmitted) }
func (m *Metrics) IncPlanDropped()      { m.inc(&m.plansDropped) }
func (m *Metrics) IncCandidateTried()   { m.inc(&m.candidatesTried) }
func (m *Metrics) IncCandidatePlaced()  { m.inc(&m.candidatesPlaced) }
func (m *Metrics) IncCandidateSkipped() { m.inc(&m.candidatesSkipped) }
func (m *Metrics) IncSoftRejection()    { m.inc(&m.softRejections) }
func (m *Metrics) IncExhausted()        { m.inc(&m.exhausted) }
func (m *Metrics) IncShrink()           { m.inc(&m.shrinks) }
func (m *Metrics) IncEscalation()       { m.inc(&m.escalations) }
func (m *Metrics) IncStaleCancel()      { m.inc(&m.staleCancels) }
func (m *Metrics) IncCancelFailure()    { m.inc(&m.cancelFailures) }
func (m *Metrics) IncQueueDrop()        { m.inc(&m.queueDrops) }

// ObserveTick records one dispatch tick duration.
func (m *Metrics) ObserveTick(d time.Duration) {
	if m == nil {
		return
	}
	m.tickLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		PlansAdmitted:     atomic.LoadUint64(&m.plansAdmitted),
		PlansDropped:      atomic.LoadUint64(&m.plansDropped),
		CandidatesTried:   atomic.LoadUint64(&m.candidatesTried),
		CandidatesPlaced:  atomic.LoadUint64(&m.candidatesPlaced),
		CandidatesSkipped: atomic.LoadUint64(&m.candidatesSkipped),
		SoftRejections:    atomic.LoadUint64(&m.softRejections),
		Exhausted:         atomic.LoadUint64(&m.exhausted),
		Shrinks:           atomic.LoadUint64(&m.shrinks),
		Escalations:       atomic.LoadUint64(&m.escalations),
		StaleCancels:      atomic.LoadUint64(&m.staleCancels),
		CancelFailures:    atomic.LoadUint64(&m.cancelFailures),
		QueueDrops:        atomic.LoadUint64(&m.queueDrops),
		TickLatency:       m.tickLatency.snapshot(),
	}
}
