package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/cronexpr"
	"github.com/cloudgather/cloudgather/internal/store"
)

func newTestStore(t *testing.T) *store.TaskStore {
	t.Helper()

	s := store.NewTaskStore(t.TempDir())
	require.NoError(t, s.Load())

	return s
}

func everyMinuteTask(name string) *store.Task {
	return &store.Task{
		Name:    name,
		Kind:    store.KindSync,
		Cron:    "* * * * *",
		Enabled: true,
		Sync:    &store.SyncFields{SourcePath: "/a", TargetPath: "/b"},
	}
}

// countingDispatcher records every dispatched entry and blocks until
// released, so tests can assert on concurrency and admission behavior.
type countingDispatcher struct {
	mu      sync.Mutex
	calls   []Entry
	release chan struct{}
	count   atomic.Int32
}

func newCountingDispatcher() *countingDispatcher {
	return &countingDispatcher{release: make(chan struct{})}
}

func (d *countingDispatcher) Dispatch(ctx context.Context, task *store.Task, entry Entry) (store.StatsSnapshot, error) {
	d.count.Add(1)

	d.mu.Lock()
	d.calls = append(d.calls, entry)
	d.mu.Unlock()

	select {
	case <-d.release:
	case <-ctx.Done():
	}

	return store.StatsSnapshot{Total: 1, Success: 1}, nil
}

// cancellingDispatcher blocks until ctx is cancelled, then returns
// cgerrors.ErrCancelled, mimicking a sync/STRM engine run cut short by
// shutdown (spec section 7).
type cancellingDispatcher struct {
	count atomic.Int32
}

func (d *cancellingDispatcher) Dispatch(ctx context.Context, task *store.Task, entry Entry) (store.StatsSnapshot, error) {
	d.count.Add(1)
	<-ctx.Done()

	return store.StatsSnapshot{Total: 1, Success: 0}, cgerrors.ErrCancelled
}

func TestRunOneCancelledDispatchLeavesTaskIdle(t *testing.T) {
	st := newTestStore(t)
	task, err := st.Upsert(everyMinuteTask("t1"))
	require.NoError(t, err)

	dispatcher := &cancellingDispatcher{}

	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: dispatcher, Cap: 1})

	ctx, cancel := context.WithCancel(context.Background())

	go sched.Run(ctx)

	require.NoError(t, sched.TriggerManual(task.ID, EntrySync))
	require.Eventually(t, func() bool { return dispatcher.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		got := st.Get(task.ID)
		return got != nil && got.Status == store.StatusIdle
	}, time.Second, 5*time.Millisecond)

	require.NotEqual(t, store.StatusError, st.Get(task.ID).Status)
}

func TestTriggerManualRunsOnce(t *testing.T) {
	st := newTestStore(t)
	task, err := st.Upsert(everyMinuteTask("t1"))
	require.NoError(t, err)

	dispatcher := newCountingDispatcher()
	close(dispatcher.release)

	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: dispatcher, Cap: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)

	require.NoError(t, sched.TriggerManual(task.ID, EntrySync))

	require.Eventually(t, func() bool { return dispatcher.count.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestTriggerManualRejectsDoubleQueue(t *testing.T) {
	st := newTestStore(t)
	task, err := st.Upsert(everyMinuteTask("t1"))
	require.NoError(t, err)

	dispatcher := newCountingDispatcher() // never released: keeps the run in flight

	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: dispatcher, Cap: 1})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)

	require.NoError(t, sched.TriggerManual(task.ID, EntrySync))
	require.Eventually(t, func() bool { return dispatcher.count.Load() == 1 }, time.Second, 5*time.Millisecond)

	err = sched.TriggerManual(task.ID, EntrySync)
	require.Error(t, err)
}

func TestConcurrencyCapLimitsRunningTasks(t *testing.T) {
	st := newTestStore(t)

	var ids []string

	for i := 0; i < 4; i++ {
		task, err := st.Upsert(everyMinuteTask("t"))
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	dispatcher := newCountingDispatcher()

	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: dispatcher, Cap: 2})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(ctx)

	for _, id := range ids {
		require.NoError(t, sched.TriggerManual(id, EntrySync))
	}

	require.Eventually(t, func() bool { return dispatcher.count.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int32(2), dispatcher.count.Load())
	require.Equal(t, 2, len(sched.RunningIDs()))
	require.Equal(t, 2, sched.QueueDepth())

	close(dispatcher.release)

	require.Eventually(t, func() bool { return dispatcher.count.Load() == 4 }, time.Second, 5*time.Millisecond)
}

func TestReloadSkipsDisabledTasks(t *testing.T) {
	st := newTestStore(t)

	task := everyMinuteTask("disabled")
	task.Enabled = false

	saved, err := st.Upsert(task)
	require.NoError(t, err)

	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: newCountingDispatcher(), Cap: 1})
	require.NoError(t, sched.Reload())

	_, inWheel := sched.pqIndex[saved.ID]
	require.False(t, inWheel)
}

func TestTriggerManualUnknownTaskErrors(t *testing.T) {
	st := newTestStore(t)
	sched := New(Config{Tasks: st, Evaluator: cronexpr.NewEvaluator(time.UTC), Dispatcher: newCountingDispatcher(), Cap: 1})

	err := sched.TriggerManual("does-not-exist", EntrySync)
	require.Error(t, err)
}
