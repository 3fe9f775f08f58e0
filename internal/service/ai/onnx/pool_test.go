package onnx

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionPool_AcquireRelease(t *testing.T) {
	created := 0
	pool, err := newSessionPool(2, func() (*session, error) {
		created++
		return &session{}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	ctx := context.Background()
	a, err := pool.acquire(ctx)
	require.NoError(t, err)
	b, err := pool.acquire(ctx)
	require.NoError(t, err)
	assert.NotSame(t, a, b)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = pool.acquire(waitCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	pool.release(a)
	c, err := pool.acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, a, c)

	pool.destroy()
	pool.release(b)
	_, err = pool.acquire(ctx)
	assert.Error(t, err)
}

func TestSessionPool_FactoryFailure(t *testing.T) {
	calls := 0
	_, err := newSessionPool(3, func() (*session, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("no model")
		}
		return &session{}, nil
	})
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestFillInput(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{G: 51, B: 102, A: 255})

	dst := make([]float32, 6)
	fillInput(img, dst)

	assert.InDeltaSlice(t, []float32{1, 0, 0, 0.2, 0, 0.4}, dst, 1e-6)
}
