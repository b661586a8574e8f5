package handlers

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/plexorg/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockHandler is a test implementation of Handler
type mockHandler struct {
	name    string
	started atomic.Bool
	stopped atomic.Bool
}

func (h *mockHandler) Name() string { return h.name }

func (h *mockHandler) Start(ctx context.Context) error {
	h.started.Store(true)
	<-ctx.Done()
	h.stopped.Store(true)
	return ctx.Err()
}

func TestHandler_StartStop(t *testing.T) {
	h := &mockHandler{name: "test"}

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- h.Start(ctx)
	}()

	require.Eventually(t, h.started.Load, time.Second, 5*time.Millisecond)
	assert.False(t, h.stopped.Load())

	cancel()
	err := <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, h.stopped.Load())
}

func TestBaseHandler_Fields(t *testing.T) {
	bus := events.NewBus(nil, nil)
	defer bus.Close()

	base := NewBaseHandler(bus, "test", nil)
	assert.NotNil(t, base.Bus())
	assert.NotNil(t, base.Logger())
}

// startHandler runs h until the test ends and gives it time to subscribe.
func startHandler(t *testing.T, h Handler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	time.Sleep(20 * time.Millisecond)
}
