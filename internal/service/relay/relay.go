// Package relay runs the per-connection detection cycle: receive a frame,
// decode it, run the detector, classify the results, capture evidence when
// the throttle allows, and send a structured result back.
package relay

import (
	"context"
	"errors"
	"image"
	"io"
	"time"

	"github.com/google/uuid"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
	"hazardcam/internal/metrics"
	"hazardcam/internal/model"
	"hazardcam/internal/service/ai"
	"hazardcam/internal/service/danger"
	"hazardcam/internal/service/storage"
	"hazardcam/internal/service/throttle"
)

// ErrClosed is returned by a Transport when the peer has gone away.
var ErrClosed = errors.New("connection closed")

// Transport is one caller connection. Receive blocks for the next payload.
// Send is only ever called from a single goroutine per connection.
type Transport interface {
	Receive(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, result dto.FrameResult) error
	// Close must be idempotent and safe to call concurrently with Receive.
	Close() error
	// Source names the peer for logs and the capture index.
	Source() string
}

// FrameCodec decodes inbound payloads and encodes annotated evidence.
type FrameCodec interface {
	Decode(payload []byte) (image.Image, error)
	Encode(frame image.Image, detections []model.Detection) ([]byte, error)
}

// EvidenceStore persists annotated captures.
type EvidenceStore interface {
	SaveFrom(source string, data []byte, detections []model.Detection, at time.Time) (string, error)
}

// Publisher fans capture alerts out to viewers.
type Publisher interface {
	Publish(alert dto.Alert)
}

type Dependencies struct {
	Codec      FrameCodec
	Detector   ai.Detector
	Classifier *danger.Classifier
	Throttle   *throttle.Throttle
	Store      EvidenceStore
	Publisher  Publisher        // optional
	Metrics    *metrics.Metrics // optional
	Logger     *logger.Logger   // optional
	Clock      func() time.Time // optional, defaults to time.Now
}

type Config struct {
	ConfidenceThreshold float64
	// CaptureURLPrefix is the path captures are served under, used in alerts.
	CaptureURLPrefix string
	// OutboundBuffer is the per-connection queue between cycles and the writer.
	OutboundBuffer int
}

// Relay is shared by every connection. All cross-connection state lives in
// the injected throttle and store.
type Relay struct {
	deps Dependencies
	cfg  Config
	log  *logger.Logger
	now  func() time.Time
}

func New(deps Dependencies, cfg Config) *Relay {
	if cfg.OutboundBuffer <= 0 {
		cfg.OutboundBuffer = 8
	}
	if cfg.CaptureURLPrefix == "" {
		cfg.CaptureURLPrefix = "/captures"
	}

	r := &Relay{deps: deps, cfg: cfg, log: deps.Logger, now: deps.Clock}
	if r.log == nil {
		r.log = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Serve runs the cycle loop for one connection until the peer disconnects,
// ctx is cancelled or the transport fails. A peer disconnect returns nil.
func (r *Relay) Serve(ctx context.Context, t Transport) error {
	s := newSession(t, r.log.With("session", uuid.NewString()[:8]))
	defer t.Close()

	if m := r.deps.Metrics; m != nil {
		m.ActiveSessions.Inc()
		defer m.ActiveSessions.Dec()
	}
	s.log.Info("Relay session opened for %s", t.Source())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	// Unblocks a pending Receive when the session is cancelled.
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()

	out := make(chan dto.FrameResult, r.cfg.OutboundBuffer)
	writeErr := make(chan error, 1)
	go func() {
		writeErr <- s.writeLoop(ctx, cancel, out)
	}()

	var err error
	for {
		s.setState(StateReceiving)
		payload, recvErr := t.Receive(ctx)
		if recvErr != nil {
			if !isClosed(recvErr) && ctx.Err() == nil {
				err = recvErr
			}
			break
		}

		s.setState(StateProcessing)
		result, ok := r.ProcessFrom(ctx, t.Source(), payload, s.log)
		if !ok {
			continue
		}

		select {
		case out <- result:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	close(out)
	if werr := <-writeErr; werr != nil && err == nil {
		err = werr
	}
	s.setState(StateClosed)

	if err != nil {
		s.log.Warning("Relay session for %s ended: %v", t.Source(), err)
		return err
	}
	s.log.Info("Relay session for %s closed", t.Source())
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled)
}

// Process runs one cycle synchronously. ok is false when the payload could
// not be decoded and nothing should be sent back.
func (r *Relay) Process(ctx context.Context, payload []byte) (dto.FrameResult, bool) {
	return r.ProcessFrom(ctx, "", payload, r.log)
}

// ProcessFrom is Process with the frame source and logger of the caller.
func (r *Relay) ProcessFrom(ctx context.Context, source string, payload []byte, log *logger.Logger) (dto.FrameResult, bool) {
	if log == nil {
		log = r.log
	}
	m := r.deps.Metrics

	frame, err := r.deps.Codec.Decode(payload)
	if err != nil {
		log.Debug("Skipping frame: %v", err)
		if m != nil {
			m.FramesTotal.WithLabelValues("skipped").Inc()
		}
		return dto.FrameResult{}, false
	}
	if m != nil {
		m.FramesTotal.WithLabelValues("decoded").Inc()
	}

	start := r.now()
	result := r.cycle(ctx, source, frame, log)
	result.Camera = source

	if m != nil {
		m.CycleDuration.Observe(r.now().Sub(start).Seconds())
		switch {
		case result.Error != "":
			m.CyclesTotal.WithLabelValues("error").Inc()
		case result.Captured != nil:
			m.CyclesTotal.WithLabelValues("captured").Inc()
		default:
			m.CyclesTotal.WithLabelValues("ok").Inc()
		}
	}
	return result, true
}

func (r *Relay) cycle(ctx context.Context, source string, frame image.Image, log *logger.Logger) dto.FrameResult {
	detections, err := r.deps.Detector.Infer(ctx, frame, r.cfg.ConfidenceThreshold)
	if err != nil {
		log.Warning("Inference failed: %v", err)
		if m := r.deps.Metrics; m != nil {
			m.InferenceErrors.Inc()
		}
		return dto.ErrorResult(err.Error())
	}

	detections, dangerous := r.deps.Classifier.Apply(detections)

	captured := ""
	if dangerous {
		now := r.now()
		if r.deps.Throttle.Reserve(now, true) {
			captured = r.capture(source, frame, detections, now, log)
		}
	}
	return dto.NewFrameResult(detections, captured)
}

// capture resolves a reservation taken at now. It runs to completion even if
// the connection is going away, so the throttle is never left pending.
func (r *Relay) capture(source string, frame image.Image, detections []model.Detection, now time.Time, log *logger.Logger) string {
	m := r.deps.Metrics

	data, err := r.deps.Codec.Encode(frame, detections)
	var name string
	if err == nil {
		name, err = r.deps.Store.SaveFrom(source, data, detections, now)
	}
	if err != nil {
		r.deps.Throttle.Release()
		log.Error("Error persisting capture: %v", err)
		if m != nil {
			m.CapturesTotal.WithLabelValues("failed").Inc()
		}
		return ""
	}

	r.deps.Throttle.RecordCapture(now)
	log.Info("Captured %s", name)
	if m != nil {
		m.CapturesTotal.WithLabelValues("saved").Inc()
	}

	if r.deps.Publisher != nil {
		r.deps.Publisher.Publish(r.alert(source, name, detections, now))
	}
	return name
}

// alert describes a stored capture the way the catalog lists it: the stamp
// and classes come from the filename when it parses.
func (r *Relay) alert(source, name string, detections []model.Detection, now time.Time) dto.Alert {
	c := model.Capture{Filename: name, Timestamp: now, Classes: storage.Labels(detections)}
	if at, classes, ok := storage.ParseCaptureFilename(name); ok {
		c.Timestamp, c.Classes = at, classes
	}
	info := dto.NewCaptureInfo(c, r.cfg.CaptureURLPrefix)
	return dto.Alert{
		Type:      "capture",
		Filename:  name,
		URL:       info.URL,
		Classes:   c.Classes,
		Source:    source,
		Timestamp: c.Timestamp,
	}
}
