package dto

import (
	"strings"

	"hazardcam/internal/model"
)

// CaptureTimestampLayout is the timestamp layout used in capture filenames and listings.
const CaptureTimestampLayout = "20060102_150405"

// CaptureInfo is one catalog entry.
type CaptureInfo struct {
	Filename  string `json:"filename"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
	Classes   string `json:"classes"`
}

// CaptureList is the catalog listing payload, newest first.
type CaptureList struct {
	Captures []CaptureInfo `json:"captures"`
	Total    int           `json:"total"`
}

// NewCaptureInfo maps a stored capture to its catalog entry. urlPrefix is the
// path under which capture files are served.
func NewCaptureInfo(c model.Capture, urlPrefix string) CaptureInfo {
	return CaptureInfo{
		Filename:  c.Filename,
		URL:       strings.TrimSuffix(urlPrefix, "/") + "/" + c.Filename,
		Timestamp: c.Timestamp.Format(CaptureTimestampLayout),
		Classes:   strings.Join(c.Classes, "_"),
	}
}

// DeleteResult is the catalog delete response.
type DeleteResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}
