// Package metrics is the in-process metrics component (SPEC_FULL.md §9):
// counters and latency observations for dispatch outcomes, classification
// verdicts, submission results, and RPC endpoint health, collected without a
// third-party metrics client.
//
// Grounded on the teacher's internal/utils/metrics/collector.go, whose
// Collector wraps a label-keyed sync.Map of named metrics. No library in the
// pack provides in-process counters/histograms without a Prometheus
// dependency the teacher's own go.mod never actually carries (the teacher's
// collector.go imports prometheus/client_golang but that module is absent
// from go.mod — an orphaned file, not a real dependency of the built
// program), so this component keeps the teacher's sync.Map-of-counters shape
// but backs it with stdlib atomics instead.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter is a label-keyed, goroutine-safe count.
type Counter struct {
	values sync.Map // label string -> *atomic.Uint64
}

func (c *Counter) Inc(label string) {
	v, _ := c.values.LoadOrStore(label, new(atomic.Uint64))
	v.(*atomic.Uint64).Add(1)
}

func (c *Counter) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	c.values.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Uint64).Load()
		return true
	})
	return out
}

// latencyAccumulator tracks count and total duration per label, enough to
// derive a mean without a full histogram implementation.
type latencyAccumulator struct {
	count atomic.Uint64
	total atomic.Uint64 // nanoseconds
}

// Latency is a label-keyed running average of observed durations.
type Latency struct {
	values sync.Map // label string -> *latencyAccumulator
}

func (l *Latency) Observe(label string, d time.Duration) {
	v, _ := l.values.LoadOrStore(label, &latencyAccumulator{})
	acc := v.(*latencyAccumulator)
	acc.count.Add(1)
	acc.total.Add(uint64(d.Nanoseconds()))
}

// LatencySnapshot is one label's observation count and mean duration.
type LatencySnapshot struct {
	Count uint64
	Mean  time.Duration
}

func (l *Latency) Snapshot() map[string]LatencySnapshot {
	out := make(map[string]LatencySnapshot)
	l.values.Range(func(key, value any) bool {
		acc := value.(*latencyAccumulator)
		count := acc.count.Load()
		mean := time.Duration(0)
		if count > 0 {
			mean = time.Duration(acc.total.Load() / count)
		}
		out[key.(string)] = LatencySnapshot{Count: count, Mean: mean}
		return true
	})
	return out
}

// Gauge is a label-keyed last-value setting, used for endpoint health.
type Gauge struct {
	values sync.Map // label string -> *atomic.Int64
}

func (g *Gauge) Set(label string, value int64) {
	v, _ := g.values.LoadOrStore(label, new(atomic.Int64))
	v.(*atomic.Int64).Store(value)
}

func (g *Gauge) Snapshot() map[string]int64 {
	out := make(map[string]int64)
	g.values.Range(func(key, value any) bool {
		out[key.(string)] = value.(*atomic.Int64).Load()
		return true
	})
	return out
}

// Collector bundles every metric the core records. The zero value is ready
// to use, matching the teacher's NewCollector()-returns-ready-struct shape
// minus the external client/wallet references that collector also held.
type Collector struct {
	ClassificationOutcomes Counter // label: "accepted" | rejection reason
	DispatchOutcomes       Counter // label: submit.Outcome.String()
	DispatchLatency        Latency // label: DEX family
	RPCLatency             Latency // label: "<method>:<endpoint>"
	EndpointHealthy        Gauge   // label: endpoint URL, 1 healthy / 0 cooling
}

// New returns a ready-to-use Collector.
func New() *Collector {
	return &Collector{}
}

func (c *Collector) RecordClassification(outcomeOrReason string) {
	c.ClassificationOutcomes.Inc(outcomeOrReason)
}

func (c *Collector) RecordDispatch(outcome string, dexFamily string, duration time.Duration) {
	c.DispatchOutcomes.Inc(outcome)
	c.DispatchLatency.Observe(dexFamily, duration)
}

func (c *Collector) RecordRPCLatency(method, endpoint string, duration time.Duration) {
	c.RPCLatency.Observe(method+":"+endpoint, duration)
}

func (c *Collector) SetEndpointHealthy(endpoint string, healthy bool) {
	v := int64(0)
	if healthy {
		v = 1
	}
	c.EndpointHealthy.Set(endpoint, v)
}
