package conversion_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/vmunix/plexorg/internal/conversion"
	"github.com/vmunix/plexorg/internal/conversion/mocks"
	"github.com/vmunix/plexorg/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// writeOutput simulates a successful transcode.
func writeOutput(_ context.Context, job conversion.Job, progress func(conversion.Progress)) error {
	progress(conversion.Progress{Percent: 50, Timemark: "00:00:10.00"})
	progress(conversion.Progress{Percent: 100, Timemark: "00:00:20.00"})
	return os.WriteFile(job.Output, []byte("converted"), 0644)
}

// gate blocks transcodes until released and records run order.
type gate struct {
	mu      sync.Mutex
	started []string
	running atomic.Int32
	peak    atomic.Int32
	release chan struct{}
}

func newGate() *gate {
	return &gate{release: make(chan struct{})}
}

func (g *gate) Transcode(ctx context.Context, job conversion.Job, _ func(conversion.Progress)) error {
	n := g.running.Add(1)
	defer g.running.Add(-1)
	for {
		p := g.peak.Load()
		if n <= p || g.peak.CompareAndSwap(p, n) {
			break
		}
	}
	g.mu.Lock()
	g.started = append(g.started, job.Input)
	g.mu.Unlock()

	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return os.WriteFile(job.Output, nil, 0644)
}

func (g *gate) order() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.started...)
}

func TestEngine_CompletesTask(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	dir := t.TempDir()
	out := filepath.Join(dir, "Movie (2020)", "movie.mp4")

	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, job conversion.Job, progress func(conversion.Progress)) error {
			assert.Equal(t, "/in/movie.mkv", job.Input)
			assert.Equal(t, out+".partial", job.Output)
			assert.Equal(t, conversion.DefaultOptions(), job.Options)
			return writeOutput(ctx, job, progress)
		})

	e := conversion.New(tr, conversion.Config{}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("/in/movie.mkv", out, conversion.Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, h.ID())

	task, err := h.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, conversion.StatusCompleted, task.Status)
	assert.Equal(t, 1.0, task.Progress)
	assert.False(t, task.CompletedAt.IsZero())

	assert.FileExists(t, out)
	assert.NoFileExists(t, out+".partial")
}

func TestEngine_EventSequence(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	out := filepath.Join(t.TempDir(), "out.mp4")
	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeOutput)

	e := conversion.New(tr, conversion.Config{}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("/in/a.mkv", out, conversion.Options{})
	require.NoError(t, err)

	var types []conversion.EventType
	var percents []float64
	for ev := range h.Events() {
		assert.Equal(t, h.ID(), ev.TaskID)
		types = append(types, ev.Type)
		if ev.Type == conversion.EventProgress {
			percents = append(percents, ev.Percent)
		}
	}

	assert.Equal(t, []conversion.EventType{
		conversion.EventQueued,
		conversion.EventStarted,
		conversion.EventProgress,
		conversion.EventProgress,
		conversion.EventCompleted,
	}, types)
	assert.Equal(t, []float64{50, 100}, percents)
}

func TestEngine_ProgressIsMonotonic(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	out := filepath.Join(t.TempDir(), "out.mp4")

	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job conversion.Job, progress func(conversion.Progress)) error {
			for _, p := range []float64{10, 40, 30, 60, 150, -5} {
				progress(conversion.Progress{Percent: p})
			}
			return os.WriteFile(job.Output, nil, 0644)
		})

	e := conversion.New(tr, conversion.Config{}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("/in/a.mkv", out, conversion.Options{})
	require.NoError(t, err)

	var percents []float64
	for ev := range h.Events() {
		if ev.Type == conversion.EventProgress {
			percents = append(percents, ev.Percent)
		}
	}
	assert.Equal(t, []float64{10, 40, 60, 100}, percents)
}

func TestEngine_SlowReaderStillGetsTerminalEvent(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	out := filepath.Join(t.TempDir(), "out.mp4")

	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, job conversion.Job, progress func(conversion.Progress)) error {
			for i := 1; i <= 100; i++ {
				progress(conversion.Progress{Percent: float64(i)})
			}
			return os.WriteFile(job.Output, nil, 0644)
		})

	e := conversion.New(tr, conversion.Config{EventBuffer: 4}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("/in/a.mkv", out, conversion.Options{})
	require.NoError(t, err)
	<-h.Done()

	var last conversion.Event
	count := 0
	for ev := range h.Events() {
		last = ev
		count++
	}
	assert.LessOrEqual(t, count, 4)
	assert.Equal(t, conversion.EventCompleted, last.Type)
}

func TestEngine_TranscoderFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"spawn", &conversion.SpawnError{Binary: "ffmpeg", Err: errors.New("executable file not found")}},
		{"process", &conversion.ProcessError{ExitCode: 1, Stderr: "Invalid data found", Err: errors.New("exit status 1")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			tr := mocks.NewMockTranscoder(ctrl)
			out := filepath.Join(t.TempDir(), "out.mp4")

			tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, job conversion.Job, _ func(conversion.Progress)) error {
					require.NoError(t, os.WriteFile(job.Output, []byte("half"), 0644))
					return tt.err
				})

			e := conversion.New(tr, conversion.Config{}, testLogger())
			defer e.Close()

			h, err := e.Enqueue("/in/a.mkv", out, conversion.Options{})
			require.NoError(t, err, "enqueue never reports transcoder failures")

			task, err := h.Wait(waitCtx(t))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, conversion.StatusFailed, task.Status)
			assert.False(t, task.Cancelled)
			assert.NotEmpty(t, task.Error)
			assert.NoFileExists(t, out)
			assert.NoFileExists(t, out+".partial")
		})
	}
}

func TestEngine_InvalidOptions(t *testing.T) {
	ctrl := gomock.NewController(t)
	e := conversion.New(mocks.NewMockTranscoder(ctrl), conversion.Config{}, testLogger())
	defer e.Close()

	_, err := e.Enqueue("/in/a.mkv", "/out/a.mp4", conversion.Options{CRF: 60})
	assert.ErrorIs(t, err, conversion.ErrInvalidOptions)

	_, err = e.Enqueue("", "/out/a.mp4", conversion.Options{})
	assert.Error(t, err)
	assert.Empty(t, e.List())
}

func TestEngine_FIFOAndConcurrencyCap(t *testing.T) {
	g := newGate()
	dir := t.TempDir()
	e := conversion.New(g, conversion.Config{MaxConcurrent: 2}, testLogger())
	defer e.Close()

	var handles []*conversion.Handle
	inputs := []string{"a", "b", "c", "d", "e"}
	for _, in := range inputs {
		h, err := e.Enqueue(in, filepath.Join(dir, in+".mp4"), conversion.Options{})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	require.Eventually(t, func() bool { return e.Stats().Processing == 2 }, 2*time.Second, 5*time.Millisecond)
	stats := e.Stats()
	assert.Equal(t, 3, stats.Pending)
	assert.Equal(t, 2, stats.MaxConcurrent)

	close(g.release)
	for _, h := range handles {
		_, err := h.Wait(waitCtx(t))
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, g.peak.Load(), int32(2))
	order := g.order()
	require.Len(t, order, 5)
	assert.ElementsMatch(t, []string{"a", "b"}, order[:2])
	assert.Equal(t, []string{"c", "d", "e"}, order[2:])
	assert.Equal(t, 5, e.Stats().Completed)
}

func TestEngine_SetMaxConcurrent(t *testing.T) {
	g := newGate()
	dir := t.TempDir()
	e := conversion.New(g, conversion.Config{MaxConcurrent: 1}, testLogger())
	defer e.Close()

	for _, in := range []string{"a", "b", "c"} {
		_, err := e.Enqueue(in, filepath.Join(dir, in+".mp4"), conversion.Options{})
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return e.Stats().Processing == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.SetMaxConcurrent(3))
	assert.Equal(t, 3, e.MaxConcurrent())
	require.Eventually(t, func() bool { return e.Stats().Processing == 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Error(t, e.SetMaxConcurrent(0))
	assert.Error(t, e.SetMaxConcurrent(5))
	assert.Equal(t, 3, e.MaxConcurrent())

	close(g.release)
}

func TestEngine_ConfigClampsConcurrency(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)

	assert.Equal(t, conversion.DefaultMaxConcurrent, conversion.New(tr, conversion.Config{}, testLogger()).MaxConcurrent())
	assert.Equal(t, 4, conversion.New(tr, conversion.Config{MaxConcurrent: 9}, testLogger()).MaxConcurrent())
	assert.Equal(t, 1, conversion.New(tr, conversion.Config{MaxConcurrent: -3}, testLogger()).MaxConcurrent())
}

func TestEngine_CancelPending(t *testing.T) {
	g := newGate()
	dir := t.TempDir()
	e := conversion.New(g, conversion.Config{MaxConcurrent: 1}, testLogger())
	defer e.Close()

	first, err := e.Enqueue("a", filepath.Join(dir, "a.mp4"), conversion.Options{})
	require.NoError(t, err)
	second, err := e.Enqueue("b", filepath.Join(dir, "b.mp4"), conversion.Options{})
	require.NoError(t, err)

	require.NoError(t, e.Cancel(second.ID()))

	task, err := second.Wait(waitCtx(t))
	assert.ErrorIs(t, err, conversion.ErrCancelled)
	assert.Equal(t, conversion.StatusFailed, task.Status)
	assert.True(t, task.Cancelled)
	assert.True(t, task.StartedAt.IsZero())

	assert.ErrorIs(t, e.Cancel(second.ID()), conversion.ErrTaskFinished)
	assert.ErrorIs(t, e.Cancel("missing"), conversion.ErrTaskNotFound)

	close(g.release)
	_, err = first.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.order())
}

func TestEngine_CancelProcessing(t *testing.T) {
	g := newGate()
	out := filepath.Join(t.TempDir(), "a.mp4")
	e := conversion.New(g, conversion.Config{}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("a", out, conversion.Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.Snapshot().Status == conversion.StatusProcessing }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Cancel(h.ID()))

	task, err := h.Wait(waitCtx(t))
	assert.ErrorIs(t, err, conversion.ErrCancelled)
	assert.True(t, task.Cancelled)
	assert.Equal(t, conversion.StatusFailed, task.Status)
	assert.NoFileExists(t, out)
	assert.NoFileExists(t, out+".partial")

	var last conversion.Event
	for ev := range h.Events() {
		last = ev
	}
	assert.Equal(t, conversion.EventFailed, last.Type)
	assert.ErrorIs(t, last.Err, conversion.ErrCancelled)
}

func TestEngine_Timeout(t *testing.T) {
	g := newGate()
	e := conversion.New(g, conversion.Config{Timeout: 20 * time.Millisecond}, testLogger())
	defer e.Close()

	h, err := e.Enqueue("a", filepath.Join(t.TempDir(), "a.mp4"), conversion.Options{})
	require.NoError(t, err)

	task, err := h.Wait(waitCtx(t))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, task.Cancelled)
	assert.Contains(t, task.Error, "timed out")
}

type recordingArchiver struct {
	mu    sync.Mutex
	tasks []conversion.Task
}

func (r *recordingArchiver) ArchiveTask(_ context.Context, t conversion.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return nil
}

func TestEngine_ClearFinished(t *testing.T) {
	g := newGate()
	dir := t.TempDir()
	arch := &recordingArchiver{}
	e := conversion.New(g, conversion.Config{MaxConcurrent: 1}, testLogger(), conversion.WithArchiver(arch))
	defer e.Close()

	running, err := e.Enqueue("a", filepath.Join(dir, "a.mp4"), conversion.Options{})
	require.NoError(t, err)
	queued, err := e.Enqueue("b", filepath.Join(dir, "b.mp4"), conversion.Options{})
	require.NoError(t, err)
	require.NoError(t, e.Cancel(queued.ID()))

	removed := e.ClearFinished(context.Background())
	require.Len(t, removed, 1)
	assert.Equal(t, queued.ID(), removed[0].ID)
	assert.Len(t, arch.tasks, 1)

	_, err = e.Get(queued.ID())
	assert.ErrorIs(t, err, conversion.ErrTaskNotFound)

	list := e.List()
	require.Len(t, list, 1)
	assert.Equal(t, running.ID(), list[0].ID)

	close(g.release)
	_, err = running.Wait(waitCtx(t))
	require.NoError(t, err)
}

func TestEngine_Close(t *testing.T) {
	g := newGate()
	dir := t.TempDir()
	e := conversion.New(g, conversion.Config{MaxConcurrent: 1}, testLogger())

	running, err := e.Enqueue("a", filepath.Join(dir, "a.mp4"), conversion.Options{})
	require.NoError(t, err)
	queued, err := e.Enqueue("b", filepath.Join(dir, "b.mp4"), conversion.Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return running.Snapshot().Status == conversion.StatusProcessing }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, e.Close())

	for _, h := range []*conversion.Handle{running, queued} {
		task, err := h.Wait(waitCtx(t))
		assert.ErrorIs(t, err, conversion.ErrCancelled)
		assert.True(t, task.Cancelled)
	}
	assert.True(t, queued.Snapshot().StartedAt.IsZero(), "a queued task never enters processing")
	var types []conversion.EventType
	for ev := range queued.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []conversion.EventType{conversion.EventQueued, conversion.EventFailed}, types)

	_, err = e.Enqueue("c", filepath.Join(dir, "c.mp4"), conversion.Options{})
	assert.ErrorIs(t, err, conversion.ErrEngineClosed)
	assert.NoError(t, e.Close())
}

func TestEngine_PublishesToBus(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeOutput)

	bus := events.NewBus(nil, testLogger())
	defer bus.Close()
	queuedSub := bus.Subscribe(events.EventConversionQueued, 10)
	doneSub := bus.Subscribe(events.EventConversionCompleted, 10)

	e := conversion.New(tr, conversion.Config{}, testLogger(), conversion.WithBus(bus))
	defer e.Close()

	h, err := e.Enqueue("/in/a.mkv", filepath.Join(t.TempDir(), "a.mp4"), conversion.Options{})
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)

	for _, sub := range []<-chan events.Event{queuedSub, doneSub} {
		select {
		case ev := <-sub:
			assert.Equal(t, h.ID(), ev.EntityID())
			assert.Equal(t, events.EntityTask, ev.EntityType())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for bus event")
		}
	}
}

func TestEngine_Metrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	tr := mocks.NewMockTranscoder(ctrl)
	tr.EXPECT().Transcode(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(writeOutput)

	reg := prometheus.NewRegistry()
	e := conversion.New(tr, conversion.Config{}, testLogger(), conversion.WithMetrics(conversion.NewMetrics(reg)))
	defer e.Close()

	h, err := e.Enqueue("/in/a.mkv", filepath.Join(t.TempDir(), "a.mp4"), conversion.Options{})
	require.NoError(t, err)
	_, err = h.Wait(waitCtx(t))
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)
	found := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				found[mf.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				found[mf.GetName()] = m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				found[mf.GetName()] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	assert.Equal(t, 1.0, found["plexorg_conversions_total"])
	assert.Equal(t, 1.0, found["plexorg_conversion_duration_seconds"])
	assert.Equal(t, 0.0, found["plexorg_conversions_active"])
	assert.Equal(t, 0.0, found["plexorg_conversion_queue_depth"])
}
