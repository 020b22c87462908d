package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/cloudgather/cloudgather/internal/cgerrors"
	"github.com/cloudgather/cloudgather/internal/cronexpr"
	"github.com/cloudgather/cloudgather/internal/store"
)

// Scheduler is the Scheduler Core (spec section 4.7). One Scheduler runs
// one scheduling loop; Run blocks until ctx is cancelled.
type Scheduler struct {
	tasks      *store.TaskStore
	evaluator  *cronexpr.Evaluator
	dispatcher Dispatcher
	cap        int
	logger     *slog.Logger

	mu        sync.Mutex
	pq        fireHeap
	pqIndex   map[string]*fireItem
	admission []Entry
	queued    map[string]struct{}
	running   map[string]struct{}

	wake chan struct{}
}

// Config bundles the Scheduler's construction parameters.
type Config struct {
	Tasks      *store.TaskStore
	Evaluator  *cronexpr.Evaluator
	Dispatcher Dispatcher
	Cap        int
	Logger     *slog.Logger
}

// New creates a Scheduler. Call Reload once before Run to seed the timer
// wheel from the task store's current contents.
func New(cfg Config) *Scheduler {
	cap := cfg.Cap
	if cap < 1 {
		cap = runtime.NumCPU()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		tasks:      cfg.Tasks,
		evaluator:  cfg.Evaluator,
		dispatcher: cfg.Dispatcher,
		cap:        cap,
		logger:     logger,
		pqIndex:    make(map[string]*fireItem),
		queued:     make(map[string]struct{}),
		running:    make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
	}
}

// Reload computes nextFire for every enabled task not yet in the wheel
// (spec section 4.7: "maintain an in-memory map taskId → nextFireInstant"),
// dropping entries for tasks that no longer exist or were disabled. A task
// already in the wheel keeps its current nextFire, so an edited cron
// expression takes effect only after that pending fire.
func (s *Scheduler) Reload() error {
	tasks := s.tasks.List()

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(tasks))

	for _, t := range tasks {
		seen[t.ID] = struct{}{}

		if !t.Enabled {
			s.removeFromWheelLocked(t.ID)
			continue
		}

		if _, ok := s.pqIndex[t.ID]; ok {
			continue // already scheduled; leave its current nextFire alone
		}

		next, err := s.evaluator.NextFire(t.Cron, time.Now())
		if err != nil {
			s.logger.Warn("scheduler: invalid cron expression, task will not fire",
				slog.String("task", t.ID), slog.String("cron", t.Cron), slog.String("error", err.Error()))

			continue
		}

		s.pushLocked(t.ID, next)

		if err := s.tasks.SetRunTimes(t.ID, t.LastRun, &next); err != nil {
			s.logger.Error("scheduler: persisting nextRun failed", slog.String("task", t.ID), slog.String("error", err.Error()))
		}
	}

	for id := range s.pqIndex {
		if _, ok := seen[id]; !ok {
			s.removeFromWheelLocked(id)
		}
	}

	s.wakeNonBlocking()

	return nil
}

func (s *Scheduler) pushLocked(taskID string, fireAt time.Time) {
	item := &fireItem{taskID: taskID, fireAt: fireAt}
	heap.Push(&s.pq, item)
	s.pqIndex[taskID] = item
}

func (s *Scheduler) removeFromWheelLocked(taskID string) {
	item, ok := s.pqIndex[taskID]
	if !ok {
		return
	}

	heap.Remove(&s.pq, item.index)
	delete(s.pqIndex, taskID)
}

// Run executes the scheduling loop until ctx is cancelled (spec section
// 4.7, step 1-4). Intended to run on its own goroutine for the lifetime of
// the daemon.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		timer := s.nextTimer()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			s.admitFireable()
		case <-s.wake:
		}

		timer.Stop()

		s.dispatchReady(ctx)
	}
}

// nextTimer returns a timer that fires at the earliest nextFire instant,
// or a long sleep if the wheel is empty (still woken early by external
// events via s.wake).
func (s *Scheduler) nextTimer() *time.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pq) == 0 {
		return time.NewTimer(time.Hour)
	}

	d := time.Until(s.pq[0].fireAt)
	if d < 0 {
		d = 0
	}

	return time.NewTimer(d)
}

// admitFireable moves every due, enabled, not-already-queued-or-running
// task onto the admission queue and reschedules its next fire instant
// (spec section 4.7, step 2).
func (s *Scheduler) admitFireable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	for len(s.pq) > 0 && !s.pq[0].fireAt.After(now) {
		item := heap.Pop(&s.pq).(*fireItem)
		delete(s.pqIndex, item.taskID)

		task := s.tasks.Get(item.taskID)
		if task == nil || !task.Enabled {
			continue
		}

		s.admitLocked(task, entryKindFor(task))
		s.rescheduleLocked(task)
	}
}

func (s *Scheduler) rescheduleLocked(task *store.Task) {
	next, err := s.evaluator.NextFire(task.Cron, time.Now())
	if err != nil {
		s.logger.Warn("scheduler: invalid cron expression, task will not re-fire",
			slog.String("task", task.ID), slog.String("cron", task.Cron), slog.String("error", err.Error()))

		return
	}

	s.pushLocked(task.ID, next)

	if err := s.tasks.SetRunTimes(task.ID, task.LastRun, &next); err != nil {
		s.logger.Error("scheduler: persisting nextRun failed", slog.String("task", task.ID), slog.String("error", err.Error()))
	}
}

func entryKindFor(task *store.Task) EntryKind {
	if task.Kind == store.KindStrm {
		return EntryStrm
	}

	return EntrySync
}

// admitLocked appends an entry to the admission queue unless the task is
// already running or already queued (spec section 5: "no task may appear
// twice in the admission queue simultaneously"). Callers must hold mu.
func (s *Scheduler) admitLocked(task *store.Task, kind EntryKind) bool {
	if _, busy := s.running[task.ID]; busy {
		return false
	}

	if _, busy := s.queued[task.ID]; busy {
		return false
	}

	s.admission = append(s.admission, Entry{TaskID: task.ID, Kind: kind, EnqueuedAt: time.Now()})
	s.queued[task.ID] = struct{}{}

	return true
}

// TriggerManual admits a task outside its cron schedule (manual trigger,
// full-overwrite, or reconstruct). These share the admission path but
// never change nextFire (spec section 4.7).
func (s *Scheduler) TriggerManual(taskID string, kind EntryKind) error {
	task := s.tasks.Get(taskID)
	if task == nil {
		return cgerrors.ErrTaskNotFound
	}

	s.mu.Lock()
	admitted := s.admitLocked(task, kind)
	s.mu.Unlock()

	if !admitted {
		return fmt.Errorf("%w: task %s", cgerrors.ErrTaskBusy, taskID)
	}

	s.wakeNonBlocking()

	return nil
}

func (s *Scheduler) wakeNonBlocking() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// dispatchReady pops admitted entries onto workers while the concurrency
// cap allows (spec section 4.7, step 3).
func (s *Scheduler) dispatchReady(ctx context.Context) {
	for {
		entry, task, ok := s.popReadyLocked()
		if !ok {
			return
		}

		s.tasks.UpdateLive(task.ID, func(t *store.Task) { t.Status = store.StatusRunning })

		go s.runOne(ctx, task, entry)
	}
}

func (s *Scheduler) popReadyLocked() (Entry, *store.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) >= s.cap || len(s.admission) == 0 {
		return Entry{}, nil, false
	}

	entry := s.admission[0]
	s.admission = s.admission[1:]
	delete(s.queued, entry.TaskID)

	task := s.tasks.Get(entry.TaskID)
	if task == nil {
		return Entry{}, nil, false
	}

	s.running[entry.TaskID] = struct{}{}

	return entry, task, true
}

// runOne executes one dispatched entry and reconciles scheduler state on
// completion (spec section 4.7, step 4).
func (s *Scheduler) runOne(ctx context.Context, task *store.Task, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: panic running task", slog.String("task", task.ID), slog.Any("panic", r))
		}

		s.mu.Lock()
		delete(s.running, task.ID)
		s.mu.Unlock()

		s.wakeNonBlocking()
	}()

	stats, err := s.dispatcher.Dispatch(ctx, task, entry)

	now := time.Now()

	cancelled := errors.Is(err, cgerrors.ErrCancelled)

	s.tasks.UpdateLive(task.ID, func(t *store.Task) {
		switch {
		case cancelled:
			t.Status = store.StatusIdle
		case err != nil:
			t.Status = store.StatusError
		default:
			t.Status = store.StatusIdle
		}

		t.LastStats = stats
	})

	if err := s.tasks.SetRunTimes(task.ID, &now, taskNextRun(s.tasks.Get(task.ID))); err != nil {
		s.logger.Error("scheduler: persisting lastRun failed", slog.String("task", task.ID), slog.String("error", err.Error()))
	}

	switch {
	case cancelled:
		s.logger.Info("scheduler: run cancelled", slog.String("task", task.ID), slog.String("kind", string(entry.Kind)))
	case err != nil:
		s.logger.Error("scheduler: run failed", slog.String("task", task.ID), slog.String("kind", string(entry.Kind)), slog.String("error", err.Error()))
	default:
		s.logger.Info("scheduler: run complete", slog.String("task", task.ID), slog.String("kind", string(entry.Kind)),
			slog.Int("total", stats.Total), slog.Int("success", stats.Success), slog.Int("failed", stats.Failed))
	}
}

func taskNextRun(task *store.Task) *time.Time {
	if task == nil {
		return nil
	}

	return task.NextRun
}

// RunningIDs returns a snapshot of task ids currently executing.
func (s *Scheduler) RunningIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.running))
	for id := range s.running {
		out = append(out, id)
	}

	return out
}

// QueueDepth returns the number of entries waiting in the admission queue.
func (s *Scheduler) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.admission)
}
