package metrics

import (
	"sync"
	"sync/atomic"
)

// registry lazily creates one instrument per name.
type registry[T any] struct {
	mu    sync.Mutex
	items map[string]T
}

func (r *registry[T]) get(name string, create func() T) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.items[name]; ok {
		return v
	}
	if r.items == nil {
		r.items = make(map[string]T)
	}
	v := create()
	r.items[name] = v
	return v
}

// BasicProvider keeps instruments in memory. Suitable for tests and for
// applications inspecting their own counters.
type BasicProvider struct {
	counters   registry[*BasicCounter]
	updowns    registry[*BasicCounter]
	histograms registry[*BasicHistogram]
}

func NewBasicProvider() *BasicProvider { return &BasicProvider{} }

func (p *BasicProvider) Counter(name string, _ ...InstrumentOption) Counter {
	return p.counters.get(name, func() *BasicCounter { return &BasicCounter{} })
}

func (p *BasicProvider) UpDownCounter(name string, _ ...InstrumentOption) UpDownCounter {
	return p.updowns.get(name, func() *BasicCounter { return &BasicCounter{} })
}

func (p *BasicProvider) Histogram(name string, _ ...InstrumentOption) Histogram {
	return p.histograms.get(name, func() *BasicHistogram { return &BasicHistogram{} })
}

// CounterValue returns the value of the named counter, zero if it was never created.
func (p *BasicProvider) CounterValue(name string) int64 {
	return p.counters.get(name, func() *BasicCounter { return &BasicCounter{} }).Value()
}

// UpDownValue returns the value of the named up/down counter.
func (p *BasicProvider) UpDownValue(name string) int64 {
	return p.updowns.get(name, func() *BasicCounter { return &BasicCounter{} }).Value()
}

// HistogramSnapshot returns the state of the named histogram.
func (p *BasicProvider) HistogramSnapshot(name string) HistSnapshot {
	return p.histograms.get(name, func() *BasicHistogram { return &BasicHistogram{} }).Snapshot()
}

// BasicCounter is an atomic counter serving both Counter and UpDownCounter.
type BasicCounter struct {
	v atomic.Int64
}

func (c *BasicCounter) Add(n int64)  { c.v.Add(n) }
func (c *BasicCounter) Value() int64 { return c.v.Load() }

// BasicHistogram tracks count, sum, min and max; it keeps no buckets.
type BasicHistogram struct {
	mu sync.Mutex
	s  HistSnapshot
}

// HistSnapshot is a point-in-time copy of a BasicHistogram.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// Mean returns Sum/Count, or zero for an empty histogram.
func (s HistSnapshot) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.s.Count == 0 || v < h.s.Min {
		h.s.Min = v
	}
	if h.s.Count == 0 || v > h.s.Max {
		h.s.Max = v
	}
	h.s.Count++
	h.s.Sum += v
}

func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.s
}
