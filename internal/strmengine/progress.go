package strmengine

import (
	"sync/atomic"
	"time"

	"github.com/cloudgather/cloudgather/internal/store"
)

// progressCounters mirrors syncengine's lock-free progress publishing
// shape (design note: "Progress publishing uses atomic integers + a
// periodic fence, not per-file lock acquisition").
type progressCounters struct {
	done    atomic.Int64
	total   atomic.Int64
	success atomic.Int64
	skipped atomic.Int64
	failed  atomic.Int64
}

func (p *progressCounters) snapshot() store.ProgressSnapshot {
	done := p.done.Load()
	total := p.total.Load()

	var pct float64
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}

	return store.ProgressSnapshot{
		Done:    int(done),
		Total:   int(total),
		Success: int(p.success.Load()),
		Skipped: int(p.skipped.Load()),
		Failed:  int(p.failed.Load()),
		Percent: pct,
	}
}

// publishLoop calls publish with the current snapshot every interval until
// stop is closed, then publishes one final snapshot (spec section 4.3,
// 4.4: "the progress snapshot is published ... at least once per 500ms").
func publishLoop(p *progressCounters, publish func(store.ProgressSnapshot), interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			publish(p.snapshot())
		case <-stop:
			publish(p.snapshot())
			return
		}
	}
}
