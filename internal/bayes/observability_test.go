package bayes

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type spyChainObserver struct {
	mu    sync.Mutex
	stats []ChainStats
}

func (s *spyChainObserver) ObserveChain(stats ChainStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = append(s.stats, stats)
}

func (s *spyChainObserver) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stats)
}

func TestSampler_Sample_ObservesEveryChain(t *testing.T) {
	net := compileModel(t)
	spy := &spyChainObserver{}

	_, err := NewSampler(WithSeed(4), WithChains(2), WithChainObserver(spy)).Sample(net, 100, 50)
	if err != nil {
		t.Fatal(err)
	}

	if got := spy.Count(); got != 2 {
		t.Fatalf("expected 2 observed chains, got %d", got)
	}
	spy.mu.Lock()
	defer spy.mu.Unlock()
	for _, st := range spy.stats {
		if st.Draws != 100 || st.Warmup != 50 {
			t.Fatalf("unexpected stats: %#v", st)
		}
		if len(st.Acceptance) == 0 {
			t.Fatalf("expected acceptance rates in stats")
		}
	}
}

func TestAsyncChainObserver_DeliversEventsOnClose(t *testing.T) {
	spy := &spyChainObserver{}
	async := NewAsyncChainObserver(spy, 8)

	async.ObserveChain(ChainStats{Chain: 0, Duration: time.Millisecond})
	async.ObserveChain(ChainStats{Chain: 1, Duration: 2 * time.Millisecond})
	async.Close()

	if got := spy.Count(); got != 2 {
		t.Fatalf("expected 2 delivered events, got %d", got)
	}
}

func TestAsyncChainObserver_DropsWhenBufferIsFull(t *testing.T) {
	spy := &spyChainObserver{}
	async := NewAsyncChainObserver(spy, 1)

	for i := 0; i < 1000; i++ {
		async.ObserveChain(ChainStats{Chain: i})
	}
	async.Close()

	if async.Dropped() == 0 {
		t.Fatalf("expected dropped events > 0")
	}
}

func TestAsyncChainObserver_CloseDuringConcurrentObserveDoesNotPanic(t *testing.T) {
	spy := &spyChainObserver{}
	async := NewAsyncChainObserver(spy, 32)

	const workers = 8
	const perWorker = 200
	var wg sync.WaitGroup
	var panics atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if recover() != nil {
					panics.Add(1)
				}
			}()
			for j := 0; j < perWorker; j++ {
				async.ObserveChain(ChainStats{Chain: j})
			}
		}()
	}

	time.Sleep(1 * time.Millisecond)
	async.Close()
	wg.Wait()

	if panics.Load() != 0 {
		t.Fatalf("expected no panics, got %d", panics.Load())
	}
}
