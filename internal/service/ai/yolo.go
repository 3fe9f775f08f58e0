package ai

import (
	"fmt"
	"sort"
)

// DecodeYOLO reads a YOLOv8 style output tensor of shape [1, 4+classes, boxes]
// where each column holds cx, cy, w, h in input pixels followed by one score
// per class. scaleX and scaleY map input pixels back to frame pixels.
func DecodeYOLO(output []float32, numClasses, numBoxes int, scaleX, scaleY float64, labels Labels, threshold float64) ([]RawDetection, error) {
	if want := (4 + numClasses) * numBoxes; len(output) != want {
		return nil, fmt.Errorf("unexpected output length: got %d, want %d", len(output), want)
	}

	var raw []RawDetection
	for i := 0; i < numBoxes; i++ {
		bestClass, bestScore := -1, float32(0)
		for c := 0; c < numClasses; c++ {
			if score := output[(4+c)*numBoxes+i]; score > bestScore {
				bestClass, bestScore = c, score
			}
		}
		if bestClass < 0 || float64(bestScore) < threshold {
			continue
		}

		cx := float64(output[i])
		cy := float64(output[numBoxes+i])
		w := float64(output[2*numBoxes+i])
		h := float64(output[3*numBoxes+i])

		raw = append(raw, RawDetection{
			Label:      labels.Name(bestClass),
			Confidence: float64(bestScore),
			X1:         (cx - w/2) * scaleX,
			Y1:         (cy - h/2) * scaleY,
			X2:         (cx + w/2) * scaleX,
			Y2:         (cy + h/2) * scaleY,
		})
	}
	return raw, nil
}

// NMS applies class-wise non-maximum suppression, keeping the highest scoring
// box of every overlapping group.
func NMS(raw []RawDetection, iouThreshold float64) []RawDetection {
	sorted := make([]RawDetection, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]RawDetection, 0, len(sorted))
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == cand.Label && iou(k, cand) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, cand)
		}
	}
	return kept
}

func iou(a, b RawDetection) float64 {
	ix1, iy1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	ix2, iy2 := min(a.X2, b.X2), min(a.Y2, b.Y2)
	if ix2 <= ix1 || iy2 <= iy1 {
		return 0
	}
	inter := (ix2 - ix1) * (iy2 - iy1)
	union := (a.X2-a.X1)*(a.Y2-a.Y1) + (b.X2-b.X1)*(b.Y2-b.Y1) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
