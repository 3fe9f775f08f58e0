package onnx

import (
	"context"
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultPoolSize = 2
	AcquireTimeout  = 5 * time.Second
)

// session is one onnxruntime session with its bound input and output tensors.
type session struct {
	run    *ort.AdvancedSession
	input  *ort.Tensor[float32]
	output *ort.Tensor[float32]
}

func (s *session) destroy() {
	if s.run != nil {
		s.run.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
}

// sessionPool hands out sessions so concurrent relay sessions can run
// inference in parallel without sharing tensors.
type sessionPool struct {
	sessions chan *session
	mu       sync.Mutex
	closed   bool
}

func newSessionPool(size int, factory func() (*session, error)) (*sessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}

	pool := &sessionPool{sessions: make(chan *session, size)}
	for i := 0; i < size; i++ {
		s, err := factory()
		if err != nil {
			pool.destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- s
	}
	return pool, nil
}

func (p *sessionPool) acquire(ctx context.Context) (*session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("pool is closed")
	}

	timer := time.NewTimer(AcquireTimeout)
	defer timer.Stop()

	select {
	case s, ok := <-p.sessions:
		if !ok {
			return nil, fmt.Errorf("pool is closed")
		}
		return s, nil
	case <-timer.C:
		return nil, fmt.Errorf("timeout waiting for available session")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *sessionPool) release(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		s.destroy()
		return
	}
	p.sessions <- s
}

// destroy closes the pool. Sessions still checked out are destroyed on release.
func (p *sessionPool) destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.sessions)

	for s := range p.sessions {
		s.destroy()
	}
}
