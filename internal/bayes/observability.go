package bayes

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ChainStats is reported once per completed chain. Observers may be
// called concurrently when multiple chains run.
type ChainStats struct {
	Chain      int
	Draws      int
	Warmup     int
	Duration   time.Duration
	Acceptance map[string]float64
}

type ChainObserver interface {
	ObserveChain(stats ChainStats)
}

type ChainLogger struct {
	logger *log.Logger
}

func NewChainLogger(logger *log.Logger) *ChainLogger {
	return &ChainLogger{logger: logger}
}

func (l *ChainLogger) ObserveChain(stats ChainStats) {
	if l == nil || l.logger == nil {
		return
	}

	vars := make([]string, 0, len(stats.Acceptance))
	for name := range stats.Acceptance {
		vars = append(vars, name)
	}
	sort.Strings(vars)

	var b strings.Builder
	for _, name := range vars {
		fmt.Fprintf(&b, " accept_%s=%.3f", name, stats.Acceptance[name])
	}

	l.logger.Printf("mcmc_chain chain=%d draws=%d warmup=%d duration_ms=%.3f%s",
		stats.Chain, stats.Draws, stats.Warmup,
		float64(stats.Duration.Microseconds())/1000.0, b.String())
}

// AsyncChainObserver decouples observation from the sampling hot path:
// events are buffered and delivered on a single goroutine; a full
// buffer drops instead of blocking a chain.
type AsyncChainObserver struct {
	next    ChainObserver
	events  chan ChainStats
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

func NewAsyncChainObserver(next ChainObserver, buffer int) *AsyncChainObserver {
	if buffer <= 0 {
		buffer = 1
	}

	o := &AsyncChainObserver{
		next:   next,
		events: make(chan ChainStats, buffer),
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.events {
			if o.next == nil {
				continue
			}
			o.next.ObserveChain(ev)
		}
	}()

	return o
}

func (o *AsyncChainObserver) ObserveChain(stats ChainStats) {
	if o == nil {
		return
	}
	o.mu.RLock()
	if o.closed {
		o.mu.RUnlock()
		o.dropped.Add(1)
		return
	}
	select {
	case o.events <- stats:
	default:
		o.dropped.Add(1)
	}
	o.mu.RUnlock()
}

func (o *AsyncChainObserver) Dropped() uint64 {
	if o == nil {
		return 0
	}
	return o.dropped.Load()
}

func (o *AsyncChainObserver) Close() {
	if o == nil {
		return
	}
	o.once.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.events)
		o.mu.Unlock()
		o.wg.Wait()
	})
}
