package uringrt

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the completion-latency histogram buckets in
// nanoseconds, from submission to completion. Buckets cover 1us to 10s with
// logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks driver and executor statistics for a running Runtime.
type Metrics struct {
	SubmittedOps     atomic.Uint64 // SQEs pushed onto the ring
	CompletedOps     atomic.Uint64 // CQEs observed
	CompletionErrors atomic.Uint64 // completions with a negative result

	InFlightTotal atomic.Uint64 // cumulative in-flight samples
	InFlightCount atomic.Uint64 // number of in-flight measurements
	MaxInFlight   atomic.Uint32 // max observed outstanding ops

	TotalLatencyNs atomic.Uint64 // cumulative submit-to-complete latency
	OpCount        atomic.Uint64 // completions counted for latency

	// LatencyBuckets[i] holds the cumulative count of completions observed
	// with latency <= LatencyBuckets[i].
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	TasksScheduledLocal  atomic.Uint64 // Runnables pushed to a local queue
	TasksScheduledGlobal atomic.Uint64 // Runnables pushed to the global injector
	TasksPolled          atomic.Uint64 // Runnables polled by the executor
	GlobalQueueChecks    atomic.Uint64 // times the starvation-avoidance check fired

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a new metrics instance with its start time set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSubmit records a single SQE submission.
func (m *Metrics) RecordSubmit() {
	m.SubmittedOps.Add(1)
}

// RecordCompletion records a completion and its submit-to-complete latency.
func (m *Metrics) RecordCompletion(latencyNs uint64, success bool) {
	m.CompletedOps.Add(1)
	if !success {
		m.CompletionErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

// RecordInFlight records the current number of outstanding operations.
func (m *Metrics) RecordInFlight(depth uint32) {
	m.InFlightTotal.Add(uint64(depth))
	m.InFlightCount.Add(1)

	for {
		current := m.MaxInFlight.Load()
		if depth <= current {
			break
		}
		if m.MaxInFlight.CompareAndSwap(current, depth) {
			break
		}
	}
}

// RecordTaskScheduled records a Runnable being pushed to a queue.
func (m *Metrics) RecordTaskScheduled(global bool) {
	if global {
		m.TasksScheduledGlobal.Add(1)
	} else {
		m.TasksScheduledLocal.Add(1)
	}
}

// RecordTaskPolled records the executor polling one Runnable once, whether
// or not that poll completes it.
func (m *Metrics) RecordTaskPolled() {
	m.TasksPolled.Add(1)
}

// RecordGlobalQueueCheck records one firing of the starvation-avoidance
// policy's periodic/empty-local check against the global injector queue.
func (m *Metrics) RecordGlobalQueueCheck() {
	m.GlobalQueueChecks.Add(1)
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)

	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the runtime as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time copy of Metrics with derived statistics.
type MetricsSnapshot struct {
	SubmittedOps     uint64
	CompletedOps     uint64
	CompletionErrors uint64

	AvgInFlight float64
	MaxInFlight uint32

	AvgLatencyNs uint64
	UptimeNs     uint64

	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TasksScheduledLocal  uint64
	TasksScheduledGlobal uint64
	TasksPolled          uint64
	GlobalQueueChecks    uint64

	OpsPerSecond float64
	ErrorRate    float64
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		SubmittedOps:         m.SubmittedOps.Load(),
		CompletedOps:         m.CompletedOps.Load(),
		CompletionErrors:     m.CompletionErrors.Load(),
		MaxInFlight:          m.MaxInFlight.Load(),
		TasksScheduledLocal:  m.TasksScheduledLocal.Load(),
		TasksScheduledGlobal: m.TasksScheduledGlobal.Load(),
		TasksPolled:          m.TasksPolled.Load(),
		GlobalQueueChecks:    m.GlobalQueueChecks.Load(),
	}

	inFlightTotal := m.InFlightTotal.Load()
	inFlightCount := m.InFlightCount.Load()
	if inFlightCount > 0 {
		snap.AvgInFlight = float64(inFlightTotal) / float64(inFlightCount)
	}

	totalLatencyNs := m.TotalLatencyNs.Load()
	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = totalLatencyNs / opCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	if snap.UptimeNs > 0 {
		snap.OpsPerSecond = float64(snap.CompletedOps) / (float64(snap.UptimeNs) / 1e9)
	}

	if snap.CompletedOps > 0 {
		snap.ErrorRate = float64(snap.CompletionErrors) / float64(snap.CompletedOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters. Useful for testing.
func (m *Metrics) Reset() {
	m.SubmittedOps.Store(0)
	m.CompletedOps.Store(0)
	m.CompletionErrors.Store(0)
	m.InFlightTotal.Store(0)
	m.InFlightCount.Store(0)
	m.MaxInFlight.Store(0)
	m.TotalLatencyNs.Store(0)
	m.OpCount.Store(0)
	m.TasksScheduledLocal.Store(0)
	m.TasksScheduledGlobal.Store(0)
	m.TasksPolled.Store(0)
	m.GlobalQueueChecks.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.LatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable collection of driver/executor events.
type Observer interface {
	ObserveSubmit()
	ObserveCompletion(latencyNs uint64, success bool)
	ObserveInFlight(depth uint32)
	ObserveTaskScheduled(global bool)
	ObserveTaskPolled()
}

// NoOpObserver is a no-op Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSubmit()                           {}
func (NoOpObserver) ObserveCompletion(uint64, bool)            {}
func (NoOpObserver) ObserveInFlight(uint32)                    {}
func (NoOpObserver) ObserveTaskScheduled(bool)                 {}
func (NoOpObserver) ObserveTaskPolled()                        {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSubmit() {
	o.metrics.RecordSubmit()
}

func (o *MetricsObserver) ObserveCompletion(latencyNs uint64, success bool) {
	o.metrics.RecordCompletion(latencyNs, success)
}

func (o *MetricsObserver) ObserveInFlight(depth uint32) {
	o.metrics.RecordInFlight(depth)
}

func (o *MetricsObserver) ObserveTaskScheduled(global bool) {
	o.metrics.RecordTaskScheduled(global)
}

func (o *MetricsObserver) ObserveTaskPolled() {
	o.metrics.RecordTaskPolled()
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
