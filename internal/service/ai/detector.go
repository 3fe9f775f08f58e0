// Package ai wraps external object detectors behind one stable interface and
// normalizes whatever they return into model.Detection values.
package ai

import (
	"context"
	"errors"
	"image"
	"math"
	"sort"

	"hazardcam/internal/model"
)

// ErrInference marks a failed detector call.
var ErrInference = errors.New("inference failed")

// Detector runs object detection on one frame. Implementations must be safe
// to call from several relay sessions at once.
type Detector interface {
	// Infer returns the detections at or above threshold, already normalized.
	// An empty slice is a normal result.
	Infer(ctx context.Context, frame image.Image, threshold float64) ([]model.Detection, error)
	// Close releases model resources.
	Close() error
}

// RawDetection is what a backend extracts from its model output, before
// rounding and clipping. Coordinates are absolute frame pixels.
type RawDetection struct {
	Label      string
	Confidence float64
	X1, Y1     float64
	X2, Y2     float64
}

// Normalize converts raw backend output into canonical detections: confidence
// clamped to [0,1], coordinates rounded and clipped to bounds, entries below
// threshold, without a label or with an empty box dropped. The result is
// ordered by confidence, highest first.
func Normalize(raw []RawDetection, bounds image.Rectangle, threshold float64) []model.Detection {
	out := make([]model.Detection, 0, len(raw))
	for _, r := range raw {
		if r.Label == "" || math.IsNaN(r.Confidence) {
			continue
		}
		conf := clamp(r.Confidence, 0, 1)
		if conf < threshold {
			continue
		}

		box := model.Box{
			X1: clampInt(roundCoord(math.Min(r.X1, r.X2)), 0, bounds.Dx()),
			Y1: clampInt(roundCoord(math.Min(r.Y1, r.Y2)), 0, bounds.Dy()),
			X2: clampInt(roundCoord(math.Max(r.X1, r.X2)), 0, bounds.Dx()),
			Y2: clampInt(roundCoord(math.Max(r.Y1, r.Y2)), 0, bounds.Dy()),
		}
		if !box.Valid() {
			continue
		}

		out = append(out, model.Detection{
			Label:      r.Label,
			Confidence: conf,
			Box:        box,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func roundCoord(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	if math.IsInf(v, 1) || v > math.MaxInt32 {
		return math.MaxInt32
	}
	if math.IsInf(v, -1) || v < math.MinInt32 {
		return math.MinInt32
	}
	return int(math.Round(v))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
