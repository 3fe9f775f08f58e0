package relay

import (
	"context"
	"sync/atomic"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
)

// State is the lifecycle of one connection.
type State int32

const (
	StateOpen State = iota
	StateReceiving
	StateProcessing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReceiving:
		return "receiving"
	case StateProcessing:
		return "processing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

type session struct {
	t     Transport
	log   *logger.Logger
	state atomic.Int32
}

func newSession(t Transport, log *logger.Logger) *session {
	s := &session{t: t, log: log}
	s.state.Store(int32(StateOpen))
	return s
}

func (s *session) setState(st State) {
	if old := State(s.state.Swap(int32(st))); old != st {
		s.log.Debug("State %s -> %s", old, st)
	}
}

// writeLoop is the only goroutine that sends on the transport. On a send
// failure it cancels the session, which closes the transport, then drains
// out so the cycle loop never blocks.
func (s *session) writeLoop(ctx context.Context, cancel context.CancelFunc, out <-chan dto.FrameResult) error {
	var err error
	for result := range out {
		if err != nil {
			continue
		}
		if sendErr := s.t.Send(ctx, result); sendErr != nil {
			err = sendErr
			cancel()
		}
	}
	if err != nil && isClosed(err) {
		return nil
	}
	return err
}
