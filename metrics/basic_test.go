package metrics

import (
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasicProvider_Counter_ReusedAndAccumulates(t *testing.T) {
	p := NewBasicProvider()

	c1 := p.Counter("pipeline_items_produced_total", WithUnit("1"))
	c2 := p.Counter("pipeline_items_produced_total")
	require.Same(t, c1.(*BasicCounter), c2.(*BasicCounter), "same name must return the same counter")

	c1.Add(3)
	c2.Add(2)
	require.Equal(t, int64(5), p.CounterValue("pipeline_items_produced_total"))

	other := p.Counter("other")
	require.NotSame(t, c1.(*BasicCounter), other.(*BasicCounter))
	require.Equal(t, int64(0), p.CounterValue("never_created"))
}

func TestBasicProvider_UpDownCounter_TracksPeak(t *testing.T) {
	p := NewBasicProvider()
	u := p.UpDownCounter("inflight")

	u.Add(3)
	u.Add(-1)
	u.Add(2)
	u.Add(-4)

	bu := u.(*BasicUpDownCounter)
	require.Equal(t, int64(0), bu.Snapshot())
	require.Equal(t, int64(4), bu.Peak())
	require.Equal(t, int64(0), p.UpDownValue("inflight"))
}

func TestBasicProvider_Histogram_RecordsStats(t *testing.T) {
	p := NewBasicProvider()
	h := p.Histogram("duration_seconds")

	_, ok := p.HistogramValue("missing")
	require.False(t, ok)

	h.Record(0.3)
	h.Record(0.1)
	h.Record(0.2)

	s, ok := p.HistogramValue("duration_seconds")
	require.True(t, ok)
	require.Equal(t, int64(3), s.Count)
	require.InDelta(t, 0.1, s.Min, 1e-9)
	require.InDelta(t, 0.3, s.Max, 1e-9)
	require.InDelta(t, 0.6, s.Sum, 1e-9)
	require.InDelta(t, 0.2, s.Mean, 1e-9)
}

func TestBasicProvider_Histogram_NegativeFirstValue(t *testing.T) {
	h := &BasicHistogram{}
	h.Record(-2)
	h.Record(-5)
	s := h.Snapshot()
	require.Equal(t, -5.0, s.Min)
	require.Equal(t, -2.0, s.Max)
}

func TestBasicProvider_DescribeAndNames(t *testing.T) {
	p := NewBasicProvider()
	p.Counter("b_total", WithDescription("b"), WithAttributes(map[string]string{"stage": "producer"}))
	p.Histogram("a_seconds", WithUnit("s"))
	p.UpDownCounter("c_inflight")

	require.Equal(t, []string{"a_seconds", "b_total", "c_inflight"}, p.Names())

	cfg, ok := p.Describe("b_total")
	require.True(t, ok)
	require.Equal(t, "b", cfg.Description)
	require.Equal(t, map[string]string{"stage": "producer"}, cfg.Attributes)

	cfg, ok = p.Describe("a_seconds")
	require.True(t, ok)
	require.Equal(t, "s", cfg.Unit)

	_, ok = p.Describe("missing")
	require.False(t, ok)
}

func TestBasicProvider_Concurrent(t *testing.T) {
	p := NewBasicProvider()
	workers := runtime.NumCPU() * 2
	iters := 1000

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				p.Counter("hits").Add(1)
				p.UpDownCounter("inflight").Add(1)
				p.Histogram("latency").Record(float64(i % 10))
				p.UpDownCounter("inflight").Add(-1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(workers*iters), p.CounterValue("hits"))
	require.Equal(t, int64(0), p.UpDownValue("inflight"))
	s, ok := p.HistogramValue("latency")
	require.True(t, ok)
	require.Equal(t, int64(workers*iters), s.Count)
	require.Equal(t, 0.0, s.Min)
	require.Equal(t, 9.0, s.Max)
}

func TestNoopProvider_DiscardsEverything(t *testing.T) {
	var p Provider = NewNoopProvider()
	require.NotPanics(t, func() {
		p.Counter("c").Add(1)
		p.UpDownCounter("u").Add(-1)
		p.Histogram("h").Record(1.5)
	})
}
