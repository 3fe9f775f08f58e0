package model

import "time"

// Capture is a persisted evidence image.
type Capture struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Classes   []string  `json:"classes"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
	Source    string    `json:"source"`
}

// CaptureDetection is a detection row stored alongside a capture in the index.
type CaptureDetection struct {
	ID         int64   `json:"id"`
	CaptureID  int64   `json:"capture_id"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	Dangerous  bool    `json:"dangerous"`
}

// CaptureStats contains statistics about stored captures.
type CaptureStats struct {
	TotalCaptures  int            `json:"total_captures"`
	TotalSizeBytes int64          `json:"total_size_bytes"`
	ClassCounts    map[string]int `json:"class_counts"`
	LastCapture    *time.Time     `json:"last_capture,omitempty"`
}
