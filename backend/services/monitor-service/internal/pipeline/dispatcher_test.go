package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	mu     sync.Mutex
	frames []string
	gate   chan struct{}
}

func (r *recorder) handle(_ context.Context, topic string, payload []byte, _ time.Time) {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, topic+":"+string(payload))
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestDispatcherProcessesSubmittedFrames(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(2, 16, time.Second, rec.handle, zap.NewNop())
	d.Start()

	require.True(t, d.Submit("a", []byte("1")))
	require.True(t, d.Submit("b", []byte("2")))

	d.Stop()

	assert.ElementsMatch(t, []string{"a:1", "b:2"}, rec.frames)
}

func TestDispatcherCopiesPayload(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(1, 16, time.Second, rec.handle, zap.NewNop())
	d.Start()

	payload := []byte("original")
	require.True(t, d.Submit("a", payload))
	// Transports reuse their receive buffers; mutating after Submit must not
	// corrupt the queued frame.
	copy(payload, "clobber!")

	d.Stop()

	require.Len(t, rec.frames, 1)
	assert.Equal(t, "a:original", rec.frames[0])
}

func TestDispatcherQueueFullRejects(t *testing.T) {
	rec := &recorder{gate: make(chan struct{})}
	d := NewDispatcher(1, 1, time.Second, rec.handle, zap.NewNop())
	d.Start()

	// First submit is picked up by the worker and blocks on the gate; the
	// second fills the queue.
	require.True(t, d.Submit("a", []byte("1")))
	require.Eventually(t, func() bool {
		return d.Submit("b", []byte("2"))
	}, time.Second, 5*time.Millisecond)

	assert.False(t, d.Submit("c", []byte("3")))

	close(rec.gate)
	d.Stop()

	assert.Equal(t, 2, rec.count())
}

func TestDispatcherStopDrainsQueue(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(1, 16, time.Second, rec.handle, zap.NewNop())
	d.Start()

	for i := 0; i < 10; i++ {
		require.True(t, d.Submit("t", []byte{byte('0' + i)}))
	}

	d.Stop()

	assert.Equal(t, 10, rec.count())
}

func TestDispatcherSubmitAfterStopRejects(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(1, 16, time.Second, rec.handle, zap.NewNop())
	d.Start()
	d.Stop()

	assert.False(t, d.Submit("a", []byte("1")))
	assert.Equal(t, 0, rec.count())
}

func TestDispatcherStopIsIdempotent(t *testing.T) {
	d := NewDispatcher(1, 16, time.Second, (&recorder{}).handle, zap.NewNop())
	d.Start()
	d.Stop()
	d.Stop()
}
