package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"

	"hazardcam/internal/model"
)

// RemoteDetector sends each frame as a JPEG to an external detection service.
type RemoteDetector struct {
	endpoint string
	client   *http.Client
}

type remoteResponse struct {
	Detections []struct {
		Label      string     `json:"label"`
		Confidence float64    `json:"confidence"`
		Box        [4]float64 `json:"box"`
	} `json:"detections"`
}

// NewRemoteDetector returns a detector posting to endpoint. A zero timeout
// means no client side timeout.
func NewRemoteDetector(endpoint string, timeout time.Duration) *RemoteDetector {
	return &RemoteDetector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (d *RemoteDetector) Infer(ctx context.Context, frame image.Image, threshold float64) ([]model.Detection, error) {
	var body bytes.Buffer
	if err := imaging.Encode(&body, frame, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("%w: failed to encode frame: %v", ErrInference, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %v", ErrInference, err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: detector returned %d: %s", ErrInference, resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", ErrInference, err)
	}

	raw := make([]RawDetection, 0, len(decoded.Detections))
	for _, d := range decoded.Detections {
		raw = append(raw, RawDetection{
			Label:      d.Label,
			Confidence: d.Confidence,
			X1:         d.Box[0],
			Y1:         d.Box[1],
			X2:         d.Box[2],
			Y2:         d.Box[3],
		})
	}
	return Normalize(raw, frame.Bounds(), threshold), nil
}

func (d *RemoteDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}
