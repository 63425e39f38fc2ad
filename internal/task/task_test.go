package task

import (
	"context"
	"testing"
	"time"

	"github.com/edgecore/core-runtime/internal/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNotReadyUntilStreamCompletes(t *testing.T) {
	cs := stream.New()
	tk := New(cs)
	assert.False(t, tk.IsReady())

	cs.Push(`{"answer": 4`)
	assert.False(t, tk.IsReady())

	cs.Push(`2}`)
	cs.Close()
	assert.True(t, tk.IsReady())
}

func TestTaskWaitBlocksUntilReady(t *testing.T) {
	cs := stream.New()
	tk := New(cs)

	done := make(chan struct{})
	var value any
	go func() {
		v, err := tk.Wait(context.Background())
		require.NoError(t, err)
		value = v
		close(done)
	}()

	cs.Push(`"hello"`)
	cs.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Wait did not unblock after stream closed")
	}
	assert.Equal(t, "hello", value)
}

func TestTaskWaitRespectsContext(t *testing.T) {
	cs := stream.New()
	tk := New(cs)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := tk.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskPeekSeesPartialValue(t *testing.T) {
	cs := stream.New()
	tk := New(cs)
	cs.Push(`"partial`)
	v, finished := tk.Peek()
	assert.False(t, finished)
	assert.Equal(t, "partial", v)

	cs.Push(` text"`)
	cs.Close()
	v, finished = tk.Peek()
	assert.True(t, finished)
	assert.Equal(t, "partial text", v)
}

func TestTaskFailsOnMalformedStream(t *testing.T) {
	cs := stream.New()
	tk := New(cs)
	cs.Push(`{"unterminated`)
	cs.Close()
	assert.True(t, tk.IsReady())
	_, err := tk.Wait(context.Background())
	assert.ErrorIs(t, err, stream.ErrMalformed)
}
