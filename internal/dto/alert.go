package dto

import "time"

// Alert is pushed to viewers whenever evidence is captured.
type Alert struct {
	Type      string    `json:"type"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Classes   []string  `json:"classes"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// CameraEvent carries the result of one camera frame to viewers.
type CameraEvent struct {
	Type   string      `json:"type"`
	Camera string      `json:"camera"`
	Result FrameResult `json:"result"`
}
