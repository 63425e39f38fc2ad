package future

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveMakesFutureReady(t *testing.T) {
	p, f := New[int]()
	assert.False(t, f.IsReady())
	p.Resolve(42)
	assert.True(t, f.IsReady())

	v, err := f.ProduceValue(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestRejectSurfacesError(t *testing.T) {
	p, f := New[string]()
	wantErr := errors.New("boom")
	p.Reject(wantErr)

	_, err := f.ProduceValue(context.Background())
	assert.Equal(t, wantErr, err)
}

func TestSecondResolveIsNoOp(t *testing.T) {
	p, f := New[int]()
	p.Resolve(1)
	p.Resolve(2)
	v, _ := f.ProduceValue(context.Background())
	assert.Equal(t, 1, v)
}

func TestProduceValueRespectsContextCancellation(t *testing.T) {
	_, f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.ProduceValue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMultipleConsumersSeeSameValue(t *testing.T) {
	p, f := New[int]()
	p.Resolve(7)

	v1, _ := f.ProduceValue(context.Background())
	v2, _ := f.ProduceValue(context.Background())
	assert.Equal(t, v1, v2)
}
