package repository

import (
	"hazardcam/internal/dto"
	"hazardcam/internal/model"
)

// CaptureIndex is the write side of the capture index that the evidence store
// mirrors every saved or deleted capture into.
type CaptureIndex interface {
	// Upsert replaces any row with the same filename, detections included.
	Upsert(c *model.Capture, detections []model.CaptureDetection) (int64, error)
	DeleteByFilename(filename string) error
}

// CaptureRepository defines the interface for capture data operations.
type CaptureRepository interface {
	CaptureIndex

	// Read operations
	GetByFilename(filename string) (*model.Capture, error)
	GetAll(filter dto.CaptureFilter) ([]model.Capture, error)
	GetTotalCount(filter dto.CaptureFilter) (int, error)

	// Delete operations
	DeleteAll() error
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	GetByCaptureID(captureID int64) ([]model.CaptureDetection, error)
	GetLabelsByCaptureID(captureID int64) ([]string, error)
	GetLabelCounts() (map[string]int, error)
}
