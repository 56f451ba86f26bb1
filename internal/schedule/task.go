package schedule

import (
	"sync"
	"time"
)

// Task is a cancellable one-shot job. Scheduling an armed task replaces
// the pending run. A run that was already in flight when Cancel or
// Schedule happened is discarded.
type Task struct {
	mu      sync.Mutex
	clock   Clock
	fn      func()
	timer   Timer
	gen     uint64
	pending bool
}

// NewTask creates a disarmed task that runs fn.
func NewTask(clock Clock, fn func()) *Task {
	if clock == nil {
		clock = Real()
	}
	return &Task{clock: clock, fn: fn}
}

// Schedule arms the task to run after d, replacing any pending run.
func (t *Task) Schedule(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending = true
	t.timer = t.clock.AfterFunc(d, func() { t.fire(gen) })
}

// Cancel disarms the task. It reports whether a run was pending.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	wasPending := t.pending
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	t.pending = false
	return wasPending
}

// Pending reports whether the task is armed.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Task) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || !t.pending {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.mu.Unlock()

	t.fn()
}

// Debouncer coalesces bursts of triggers into one run after a quiet period.
type Debouncer struct {
	task  *Task
	delay time.Duration
}

// NewDebouncer creates a Debouncer that runs fn once delay has elapsed
// since the last Trigger.
func NewDebouncer(clock Clock, delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{task: NewTask(clock, fn), delay: delay}
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.task.Schedule(d.delay)
}

// Stop cancels a pending run.
func (d *Debouncer) Stop() bool {
	return d.task.Cancel()
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	return d.task.Pending()
}
