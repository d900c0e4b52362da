package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
)

// BasicProvider keeps every instrument in memory so values can be read back with
// Snapshot. It is concurrency-safe and meant for tests, tools and the demo command.
type BasicProvider struct {
	counters   *registry[*BasicCounter]
	updowns    *registry[*BasicUpDownCounter]
	histograms *registry[*BasicHistogram]
}

// NewBasicProvider constructs an empty BasicProvider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		counters:   newRegistry(func() *BasicCounter { return &BasicCounter{} }),
		updowns:    newRegistry(func() *BasicUpDownCounter { return &BasicUpDownCounter{} }),
		histograms: newRegistry(func() *BasicHistogram { return &BasicHistogram{} }),
	}
}

// Counter returns the counter registered under name, creating it on first use.
func (p *BasicProvider) Counter(name string, opts ...InstrumentOption) Counter {
	return p.counters.get(name, opts)
}

// UpDownCounter returns the up/down counter registered under name, creating it on first use.
func (p *BasicProvider) UpDownCounter(name string, opts ...InstrumentOption) UpDownCounter {
	return p.updowns.get(name, opts)
}

// Histogram returns the histogram registered under name, creating it on first use.
func (p *BasicProvider) Histogram(name string, opts ...InstrumentOption) Histogram {
	return p.histograms.get(name, opts)
}

// CounterValue returns the current value of a counter, or 0 if it was never created.
func (p *BasicProvider) CounterValue(name string) int64 {
	if c, ok := p.counters.lookup(name); ok {
		return c.Snapshot()
	}
	return 0
}

// UpDownValue returns the current value of an up/down counter, or 0 if it was never created.
func (p *BasicProvider) UpDownValue(name string) int64 {
	if u, ok := p.updowns.lookup(name); ok {
		return u.Snapshot()
	}
	return 0
}

// HistogramValue returns a snapshot of a histogram; ok is false if it was never created.
func (p *BasicProvider) HistogramValue(name string) (HistSnapshot, bool) {
	if h, ok := p.histograms.lookup(name); ok {
		return h.Snapshot(), true
	}
	return HistSnapshot{}, false
}

// Describe returns the options an instrument was created with.
func (p *BasicProvider) Describe(name string) (InstrumentConfig, bool) {
	for _, r := range []interface {
		config(string) (InstrumentConfig, bool)
	}{p.counters, p.updowns, p.histograms} {
		if cfg, ok := r.config(name); ok {
			return cfg, true
		}
	}
	return InstrumentConfig{}, false
}

// Names lists every registered instrument name in sorted order.
func (p *BasicProvider) Names() []string {
	names := append(p.counters.names(), p.updowns.names()...)
	names = append(names, p.histograms.names()...)
	sort.Strings(names)
	return names
}

// registry maps names to instruments of one kind.
type registry[I any] struct {
	mu    sync.RWMutex
	items map[string]I
	meta  map[string]InstrumentConfig
	newFn func() I
}

func newRegistry[I any](newFn func() I) *registry[I] {
	return &registry[I]{
		items: make(map[string]I),
		meta:  make(map[string]InstrumentConfig),
		newFn: newFn,
	}
}

func (r *registry[I]) get(name string, opts []InstrumentOption) I {
	r.mu.RLock()
	it, ok := r.items[name]
	r.mu.RUnlock()
	if ok {
		return it
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if it, ok = r.items[name]; ok {
		return it
	}
	it = r.newFn()
	r.items[name] = it
	r.meta[name] = applyOptions(opts)
	return it
}

func (r *registry[I]) lookup(name string) (I, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.items[name]
	return it, ok
}

func (r *registry[I]) config(name string) (InstrumentConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.meta[name]
	return cfg, ok
}

func (r *registry[I]) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.items))
	for name := range r.items {
		out = append(out, name)
	}
	return out
}

// BasicCounter is a thread-safe monotonic counter.
type BasicCounter struct {
	val atomic.Int64
}

func (c *BasicCounter) Add(n int64) { c.val.Add(n) }

// Snapshot returns the current value.
func (c *BasicCounter) Snapshot() int64 { return c.val.Load() }

// BasicUpDownCounter is a thread-safe up/down counter that also remembers its peak.
type BasicUpDownCounter struct {
	val  atomic.Int64
	peak atomic.Int64
}

func (u *BasicUpDownCounter) Add(n int64) {
	v := u.val.Add(n)
	for {
		p := u.peak.Load()
		if v <= p || u.peak.CompareAndSwap(p, v) {
			return
		}
	}
}

// Snapshot returns the current value.
func (u *BasicUpDownCounter) Snapshot() int64 { return u.val.Load() }

// Peak returns the highest value ever reached.
func (u *BasicUpDownCounter) Peak() int64 { return u.peak.Load() }

// BasicHistogram tracks count, sum, min and max without buckets.
type BasicHistogram struct {
	mu    sync.Mutex
	count int64
	sum   float64
	min   float64
	max   float64
}

func (h *BasicHistogram) Record(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v
}

// HistSnapshot is an immutable copy of a BasicHistogram.
type HistSnapshot struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	Mean  float64
}

// Snapshot returns a copy of the histogram state.
func (h *BasicHistogram) Snapshot() HistSnapshot {
	h.mu.Lock()
	s := HistSnapshot{Count: h.count, Sum: h.sum, Min: h.min, Max: h.max}
	h.mu.Unlock()
	if s.Count > 0 {
		s.Mean = s.Sum / float64(s.Count)
	}
	return s
}
