// Package conversion transcodes files that Plex cannot play directly into
// H.264/AAC MP4, queueing work behind a small concurrency cap.
package conversion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vmunix/plexorg/internal/events"
)

const (
	DefaultMaxConcurrent = 2
	MinConcurrent        = 1
	MaxConcurrentLimit   = 4

	defaultEventBuffer = 64
	partialSuffix      = ".partial"
)

// Config for the engine.
type Config struct {
	MaxConcurrent int           // 1-4, default 2
	Timeout       time.Duration // per task; 0 means none
	EventBuffer   int           // per-task event channel size
}

// Archiver stores finished tasks before ClearFinished forgets them.
type Archiver interface {
	ArchiveTask(ctx context.Context, t Task) error
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithBus publishes task events on the global bus.
func WithBus(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithMetrics records engine state in Prometheus collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithArchiver persists tasks removed by ClearFinished.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

type task struct {
	snap            Task
	err             error
	ctx             context.Context
	cancel          context.CancelFunc
	events          chan Event
	done            chan struct{}
	cancelRequested bool
	lastPublished   int // last whole percent sent to the bus
}

// Engine runs conversions in FIFO order with at most MaxConcurrent at once.
type Engine struct {
	transcoder Transcoder
	timeout    time.Duration
	eventBuf   int
	bus        *events.Bus
	metrics    *Metrics
	archiver   Archiver
	log        *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu            sync.Mutex
	tasks         map[string]*task
	order         []string
	queue         []*task
	active        int
	maxConcurrent int
	closed        bool
}

// New creates an engine. Work starts as soon as tasks are enqueued.
func New(t Transcoder, cfg Config, logger *slog.Logger, opts ...Option) *Engine {
	log := logger.With("component", "conversion")

	limit := cfg.MaxConcurrent
	switch {
	case limit == 0:
		limit = DefaultMaxConcurrent
	case limit < MinConcurrent || limit > MaxConcurrentLimit:
		clamped := min(max(limit, MinConcurrent), MaxConcurrentLimit)
		log.Warn("max_concurrent out of range, clamping", "requested", limit, "using", clamped)
		limit = clamped
	}
	if cfg.EventBuffer <= 1 {
		cfg.EventBuffer = defaultEventBuffer
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		transcoder:    t,
		timeout:       cfg.Timeout,
		eventBuf:      cfg.EventBuffer,
		log:           log,
		baseCtx:       ctx,
		baseCancel:    cancel,
		tasks:         make(map[string]*task),
		maxConcurrent: limit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue adds a conversion and returns at once with the task pending.
// Transcoder failures surface through the task's terminal state, never here.
func (e *Engine) Enqueue(input, output string, opts Options) (*Handle, error) {
	if input == "" || output == "" {
		return nil, errors.New("conversion: input and output paths are required")
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := newTaskID()
	ctx, cancel := context.WithCancel(e.baseCtx)
	t := &task{
		snap: Task{
			ID:         id,
			InputPath:  input,
			OutputPath: output,
			Options:    opts,
			Status:     StatusPending,
			QueuedAt:   time.Now(),
		},
		ctx:           ctx,
		cancel:        cancel,
		events:        make(chan Event, e.eventBuf),
		done:          make(chan struct{}),
		lastPublished: -1,
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return nil, ErrEngineClosed
	}
	e.tasks[id] = t
	e.order = append(e.order, id)
	e.queue = append(e.queue, t)
	pub := []Event{e.emitLocked(t, Event{Type: EventQueued})}
	pub = append(pub, e.dispatchLocked()...)
	e.metrics.observe(e.active, len(e.queue))
	e.mu.Unlock()

	e.log.Info("conversion queued", "task_id", id, "input", input, "output", output)
	e.publish(pub)
	return &Handle{e: e, t: t}, nil
}

// Submit enqueues a conversion and returns its pending snapshot.
func (e *Engine) Submit(input, output string, opts Options) (Task, error) {
	h, err := e.Enqueue(input, output, opts)
	if err != nil {
		return Task{}, err
	}
	return h.Snapshot(), nil
}

// Wait blocks until the task with id finishes or ctx ends.
func (e *Engine) Wait(ctx context.Context, id string) (Task, error) {
	e.mu.Lock()
	t, ok := e.tasks[id]
	e.mu.Unlock()
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return (&Handle{e: e, t: t}).Wait(ctx)
}

func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// dispatchLocked starts queued tasks while slots are free.
func (e *Engine) dispatchLocked() []Event {
	var pub []Event
	for e.active < e.maxConcurrent && len(e.queue) > 0 {
		t := e.queue[0]
		e.queue = e.queue[1:]
		if !t.snap.Status.CanTransitionTo(StatusProcessing) {
			continue
		}
		t.snap.Status = StatusProcessing
		t.snap.StartedAt = time.Now()
		e.active++
		pub = append(pub, e.emitLocked(t, Event{Type: EventStarted}))

		e.wg.Add(1)
		go e.run(t)
	}
	return pub
}

func (e *Engine) run(t *task) {
	defer e.wg.Done()

	ctx := t.ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	job := Job{
		Input:   t.snap.InputPath,
		Output:  t.snap.OutputPath + partialSuffix,
		Options: t.snap.Options,
	}
	e.log.Info("conversion started", "task_id", t.snap.ID, "input", job.Input)

	err := os.MkdirAll(filepath.Dir(job.Output), 0755)
	if err == nil {
		err = e.transcoder.Transcode(ctx, job, func(p Progress) { e.progress(t, p) })
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil {
		err = os.Rename(job.Output, t.snap.OutputPath)
	}
	if err != nil {
		_ = os.Remove(job.Output)
	}
	e.finish(t, err)
}

func (e *Engine) progress(t *task, p Progress) {
	frac := min(max(p.Percent, 0), 100) / 100

	e.mu.Lock()
	if t.snap.Status != StatusProcessing || frac < t.snap.Progress {
		e.mu.Unlock()
		return
	}
	t.snap.Progress = frac
	t.snap.Timemark = p.Timemark
	ev := e.emitLocked(t, Event{Type: EventProgress, Percent: frac * 100, Timemark: p.Timemark})

	var pub []Event
	if whole := int(frac * 100); whole > t.lastPublished {
		t.lastPublished = whole
		pub = append(pub, ev)
	}
	e.mu.Unlock()

	e.publish(pub)
}

func (e *Engine) finish(t *task, err error) {
	e.mu.Lock()
	e.active--

	switch {
	case t.cancelRequested && err != nil:
		// A cancel that arrives after the output is in place is too late.
		err = ErrCancelled
		t.snap.Cancelled = true
	case errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("conversion timed out after %s: %w", e.timeout, err)
	}

	var pub []Event
	if err != nil {
		pub = append(pub, e.terminateLocked(t, StatusFailed, err))
	} else {
		t.snap.Progress = 1.0
		pub = append(pub, e.terminateLocked(t, StatusCompleted, nil))
	}
	pub = append(pub, e.dispatchLocked()...)
	snap := t.snap
	e.metrics.observe(e.active, len(e.queue))
	e.mu.Unlock()

	e.metrics.finished(snap)
	if err != nil {
		e.log.Warn("conversion failed", "task_id", snap.ID, "input", snap.InputPath, "error", err)
	} else {
		e.log.Info("conversion completed", "task_id", snap.ID, "output", snap.OutputPath,
			"duration_ms", snap.Elapsed().Milliseconds())
	}
	e.publish(pub)
}

// terminateLocked moves t to a terminal status, emits the terminal event
// and closes the task's channels.
func (e *Engine) terminateLocked(t *task, status Status, err error) Event {
	if !t.snap.Status.CanTransitionTo(status) {
		e.log.Error("invalid status transition", "task_id", t.snap.ID, "from", t.snap.Status, "to", status)
	}
	t.snap.Status = status
	t.snap.CompletedAt = time.Now()
	t.err = err

	ev := Event{Type: EventCompleted}
	if err != nil {
		t.snap.Error = err.Error()
		ev = Event{Type: EventFailed, Err: err}
	}
	ev = e.emitLocked(t, ev)
	close(t.events)
	close(t.done)
	t.cancel()
	return ev
}

// emitLocked fills in task fields and sends ev on the task channel without
// blocking. One slot is kept free so the terminal event is never dropped.
func (e *Engine) emitLocked(t *task, ev Event) Event {
	ev.TaskID = t.snap.ID
	ev.InputPath = t.snap.InputPath
	ev.OutputPath = t.snap.OutputPath
	ev.At = time.Now()

	terminal := ev.Type == EventCompleted || ev.Type == EventFailed
	if terminal || len(t.events) < cap(t.events)-1 {
		select {
		case t.events <- ev:
		default:
		}
	}
	return ev
}

func (e *Engine) publish(evs []Event) {
	if e.bus == nil {
		return
	}
	for _, ev := range evs {
		_ = e.bus.Publish(context.Background(), busEvent(ev))
	}
}

// Cancel stops a task. A pending task leaves the queue and fails at once;
// a running task has its process killed and fails once it exits. A task
// whose output was already renamed into place still completes.
func (e *Engine) Cancel(id string) error {
	e.mu.Lock()
	t, ok := e.tasks[id]
	if !ok {
		e.mu.Unlock()
		return ErrTaskNotFound
	}

	var pub []Event
	switch t.snap.Status {
	case StatusPending:
		e.removeQueuedLocked(t)
		t.snap.Cancelled = true
		pub = append(pub, e.terminateLocked(t, StatusFailed, ErrCancelled))
		e.metrics.observe(e.active, len(e.queue))
	case StatusProcessing:
		t.cancelRequested = true
		t.cancel()
	default:
		e.mu.Unlock()
		return ErrTaskFinished
	}
	snap := t.snap
	e.mu.Unlock()

	e.log.Info("conversion cancel requested", "task_id", id, "status", snap.Status)
	if snap.Status.IsTerminal() {
		e.metrics.finished(snap)
	}
	e.publish(pub)
	return nil
}

func (e *Engine) removeQueuedLocked(t *task) {
	for i, q := range e.queue {
		if q == t {
			e.queue = append(e.queue[:i], e.queue[i+1:]...)
			return
		}
	}
}

// SetMaxConcurrent changes the concurrency cap. Lowering it never stops
// running tasks; they finish and free their slots normally.
func (e *Engine) SetMaxConcurrent(n int) error {
	if n < MinConcurrent || n > MaxConcurrentLimit {
		return fmt.Errorf("max concurrent must be between %d and %d, got %d", MinConcurrent, MaxConcurrentLimit, n)
	}
	e.mu.Lock()
	e.maxConcurrent = n
	pub := e.dispatchLocked()
	e.metrics.observe(e.active, len(e.queue))
	e.mu.Unlock()

	e.log.Info("max concurrent updated", "max_concurrent", n)
	e.publish(pub)
	return nil
}

// MaxConcurrent returns the current concurrency cap.
func (e *Engine) MaxConcurrent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxConcurrent
}

// Get returns a snapshot of one task.
func (e *Engine) Get(id string) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tasks[id]
	if !ok {
		return Task{}, ErrTaskNotFound
	}
	return t.snap, nil
}

// List returns snapshots of all known tasks in enqueue order.
func (e *Engine) List() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Task, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.tasks[id].snap)
	}
	return out
}

// Stats counts tasks by status.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Stats{MaxConcurrent: e.maxConcurrent}
	for _, t := range e.tasks {
		switch t.snap.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// ClearFinished archives and forgets terminal tasks, returning them.
func (e *Engine) ClearFinished(ctx context.Context) []Task {
	e.mu.Lock()
	var removed []Task
	kept := e.order[:0]
	for _, id := range e.order {
		t := e.tasks[id]
		if t.snap.Status.IsTerminal() {
			removed = append(removed, t.snap)
			delete(e.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	e.order = kept
	e.mu.Unlock()

	if e.archiver != nil {
		for _, t := range removed {
			if err := e.archiver.ArchiveTask(ctx, t); err != nil {
				e.log.Warn("archive task failed", "task_id", t.ID, "error", err)
			}
		}
	}
	return removed
}

// Close cancels all work and waits for running transcodes to exit.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.wg.Wait()
		return nil
	}
	e.closed = true

	var pub []Event
	var cancelled []Task
	for _, t := range e.queue {
		t.snap.Cancelled = true
		pub = append(pub, e.terminateLocked(t, StatusFailed, ErrCancelled))
		cancelled = append(cancelled, t.snap)
	}
	e.queue = nil
	for _, t := range e.tasks {
		if t.snap.Status == StatusProcessing {
			t.cancelRequested = true
			t.cancel()
		}
	}
	e.metrics.observe(e.active, 0)
	e.mu.Unlock()

	for _, snap := range cancelled {
		e.metrics.finished(snap)
	}
	e.publish(pub)
	e.wg.Wait()
	e.baseCancel()
	return nil
}

// Handle refers to one enqueued task.
type Handle struct {
	e *Engine
	t *task
}

// ID returns the task ID.
func (h *Handle) ID() string {
	return h.t.snap.ID
}

// Snapshot returns the current task state.
func (h *Handle) Snapshot() Task {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.t.snap
}

// Events returns the task's event stream. It is closed after the terminal
// event. Progress events are dropped if the reader falls behind.
func (h *Handle) Events() <-chan Event {
	return h.t.events
}

// Done is closed when the task reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.t.done
}

// Wait blocks until the task finishes or ctx ends. It returns the final
// snapshot and the task's error, which is nil for completed tasks.
func (h *Handle) Wait(ctx context.Context) (Task, error) {
	select {
	case <-h.t.done:
	case <-ctx.Done():
		return h.Snapshot(), ctx.Err()
	}
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	return h.t.snap, h.t.err
}
