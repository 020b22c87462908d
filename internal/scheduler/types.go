// Package scheduler implements the Scheduler Core (spec section 4.7): the
// cron timer wheel, the bounded admission queue, the running-task set, and
// dispatch to the Directory Sync and STRM workers.
//
// Grounded on the teacher's internal/sync/worker.go for the bounded-pool
// dispatch shape, rebuilt around a single scheduling loop goroutine plus a
// priority queue (container/heap) instead of the teacher's flat channel
// fan-out, since the scheduler's job is choosing *when* to run a task, not
// running it.
package scheduler

import (
	"context"
	"time"

	"github.com/cloudgather/cloudgather/internal/store"
)

// EntryKind distinguishes why a task was admitted to the run queue (spec
// section 4.7: "enqueue with kind SYNC/STRM"; section 3: run queue entry
// kinds SYNC/STRM/FULL_OVERWRITE/RECONSTRUCT).
type EntryKind string

const (
	EntrySync          EntryKind = "SYNC"
	EntryStrm          EntryKind = "STRM"
	EntryFullOverwrite EntryKind = "FULL_OVERWRITE"
	EntryReconstruct   EntryKind = "RECONSTRUCT"
)

// Entry is one admission-queue item.
type Entry struct {
	TaskID     string
	Kind       EntryKind
	EnqueuedAt time.Time
}

// Dispatcher runs one task to completion. The scheduler core does not know
// how a sync or STRM run works; it only knows when to start one and what
// to do with the result (design note: accept an interface here so the
// scheduler stays testable without the real engines).
type Dispatcher interface {
	Dispatch(ctx context.Context, task *store.Task, entry Entry) (store.StatsSnapshot, error)
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, task *store.Task, entry Entry) (store.StatsSnapshot, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, task *store.Task, entry Entry) (store.StatsSnapshot, error) {
	return f(ctx, task, entry)
}
