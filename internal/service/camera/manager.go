// Package camera turns reassembled UDP camera frames into relay sessions, one
// per camera, and forwards their results to viewers.
package camera

import (
	"context"
	"sync"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
	"hazardcam/internal/service/relay"
)

// FrameQueueSize bounds how many frames may wait per camera before new ones
// are dropped.
const FrameQueueSize = 4

// Broadcaster delivers camera results to viewers.
type Broadcaster interface {
	BroadcastJSON(v interface{})
}

type Manager struct {
	ctx     context.Context
	server  func(ctx context.Context, f *Feed) error
	viewers Broadcaster
	logger  *logger.Logger

	mu    sync.Mutex
	feeds map[string]*Feed
	wg    sync.WaitGroup
}

// NewManager creates a manager whose sessions live until ctx is done. serve
// runs the relay for one feed.
func NewManager(ctx context.Context, serve func(ctx context.Context, f *Feed) error, viewers Broadcaster, logger *logger.Logger) *Manager {
	return &Manager{
		ctx:     ctx,
		server:  serve,
		viewers: viewers,
		logger:  logger,
		feeds:   make(map[string]*Feed),
	}
}

// HandleCameraImage queues a complete frame for camera, starting its session
// on first use. Frames arriving while the queue is full are dropped.
func (m *Manager) HandleCameraImage(image []byte, camera string) {
	feed := m.feed(camera)
	if feed == nil {
		return
	}

	select {
	case feed.frames <- image:
	default:
		m.logger.Warning("Frame queue full for camera %s, skipping frame", camera)
	}
}

func (m *Manager) feed(camera string) *Feed {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx.Err() != nil {
		return nil
	}
	if f, ok := m.feeds[camera]; ok {
		return f
	}

	f := newFeed(camera, m.viewers)
	m.feeds[camera] = f
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server(m.ctx, f); err != nil {
			m.logger.Error("Camera %s session failed: %v", camera, err)
		}
		m.mu.Lock()
		delete(m.feeds, camera)
		m.mu.Unlock()
	}()
	m.logger.Info("Started relay session for camera: %s", camera)
	return f
}

// Wait blocks until every camera session has ended.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Cameras returns the names of cameras with a running session.
func (m *Manager) Cameras() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.feeds))
	for name := range m.feeds {
		names = append(names, name)
	}
	return names
}

var _ relay.Transport = (*Feed)(nil)

// Feed is the relay transport of one camera session.
type Feed struct {
	camera  string
	frames  chan []byte
	viewers Broadcaster

	closeOnce sync.Once
	closed    chan struct{}
}

func newFeed(camera string, viewers Broadcaster) *Feed {
	return &Feed{
		camera:  camera,
		frames:  make(chan []byte, FrameQueueSize),
		viewers: viewers,
		closed:  make(chan struct{}),
	}
}

func (f *Feed) Receive(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-f.frames:
		return frame, nil
	case <-f.closed:
		return nil, relay.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Feed) Send(_ context.Context, result dto.FrameResult) error {
	if f.viewers != nil {
		f.viewers.BroadcastJSON(dto.CameraEvent{Type: "detections", Camera: f.camera, Result: result})
	}
	return nil
}

func (f *Feed) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *Feed) Source() string { return f.camera }
