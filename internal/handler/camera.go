package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"hazardcam/internal/config"
	"hazardcam/internal/logger"
)

const (
	udpPacketSize = 2048
	// maxCameraFrame drops partial frames that never see an end marker.
	maxCameraFrame = 4 << 20
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// FrameSink receives complete frames from a named camera. *camera.Manager
// satisfies it.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string)
}

// UDPCameraHandler listens for UDP packets from cameras on the configured
// port until ctx is done.
func UDPCameraHandler(ctx context.Context, sink FrameSink, logger *logger.Logger, cfg *config.Config) error {
	port := strconv.Itoa(cfg.CamerasPort)

	addr, err := net.ResolveUDPAddr("udp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP port %s: %w", port, err)
	}

	logger.Info("UDP Camera handler started on port %s", port)
	return ServeCameras(ctx, conn, sink, cfg.CameraNames, logger)
}

// ServeCameras reconstructs JPEG frames from datagrams on conn and forwards
// complete frames to sink. Cameras are named by IP through names; unknown
// senders become "unknown_<ip>". conn is closed when ctx is done.
func ServeCameras(ctx context.Context, conn net.PacketConn, sink FrameSink, names map[string]string, logger *logger.Logger) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	buffer := make([]byte, udpPacketSize)
	frames := newFrameAssembler()

	for {
		n, remoteAddr, err := conn.ReadFrom(buffer)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		name := cameraName(remoteAddr, names)
		if frame := frames.add(name, buffer[:n]); frame != nil {
			sink.HandleCameraImage(frame, name)
		}
	}
}

func cameraName(addr net.Addr, names map[string]string) string {
	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if name, ok := names[ip]; ok {
		return name
	}
	return "unknown_" + ip
}

// frameAssembler keeps one partial frame per camera.
type frameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func newFrameAssembler() *frameAssembler {
	return &frameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// add appends a datagram and returns a copy of the frame once its end marker
// arrives. A start marker discards whatever was buffered before it.
func (a *frameAssembler) add(camera string, data []byte) []byte {
	buf, ok := a.buffers[camera]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[camera] = buf
	}

	if bytes.HasPrefix(data, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// Mid-frame packet with no start seen.
		return nil
	}
	buf.Write(data)

	if buf.Len() > maxCameraFrame {
		buf.Reset()
		return nil
	}
	if !bytes.HasSuffix(data, jpegFooter) {
		return nil
	}

	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame
}
