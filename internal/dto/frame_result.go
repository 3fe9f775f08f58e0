package dto

import "hazardcam/internal/model"

// DetectionMessage is the wire form of a single detection.
type DetectionMessage struct {
	Class      string  `json:"class"`
	Confidence float64 `json:"confidence"`
	BBox       [4]int  `json:"bbox"`
	Dangerous  bool    `json:"dangerous"`
}

// FrameResult is the per-cycle response sent back to the caller.
// Captured is nil when nothing was persisted in the cycle.
type FrameResult struct {
	Detections []DetectionMessage `json:"detections"`
	Captured   *string            `json:"captured"`
	Error      string             `json:"error,omitempty"`
	Camera     string             `json:"camera,omitempty"`
}

// NewFrameResult converts classified detections into a response payload.
func NewFrameResult(detections []model.Detection, captured string) FrameResult {
	msgs := make([]DetectionMessage, 0, len(detections))
	for _, d := range detections {
		msgs = append(msgs, DetectionMessage{
			Class:      d.Label,
			Confidence: d.Confidence,
			BBox:       [4]int{d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2},
			Dangerous:  d.Dangerous,
		})
	}

	result := FrameResult{Detections: msgs}
	if captured != "" {
		name := captured
		result.Captured = &name
	}
	return result
}

// ErrorResult builds the response sent when inference fails for a cycle.
func ErrorResult(msg string) FrameResult {
	return FrameResult{
		Detections: []DetectionMessage{},
		Error:      msg,
	}
}
