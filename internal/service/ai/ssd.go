package ai

import "fmt"

// SSDRowSize is the width of one detection row in an SSD style output:
// [batch_id, class_id, confidence, x1, y1, x2, y2].
const SSDRowSize = 7

// SSDLabels is the 91-id COCO map used by TensorFlow and Caffe SSD graphs.
// Id 0 is the background class and the ids COCO never assigned are empty.
var SSDLabels = ssdLabels()

func ssdLabels() Labels {
	gaps := map[int]bool{12: true, 26: true, 29: true, 30: true, 45: true, 66: true, 68: true, 69: true, 71: true, 83: true}
	out := make(Labels, 0, len(COCOLabels)+len(gaps)+1)
	out = append(out, "background")
	next := 0
	for id := 1; next < len(COCOLabels); id++ {
		if gaps[id] {
			out = append(out, "")
			continue
		}
		out = append(out, COCOLabels[next])
		next++
	}
	return out
}

// DecodeSSD turns flattened SSD rows into raw detections. Coordinates in the
// rows are relative to the frame, so they are scaled by width and height.
// Rows below threshold and background rows are dropped.
func DecodeSSD(output []float32, width, height float64, labels Labels, threshold float64) ([]RawDetection, error) {
	if len(output)%SSDRowSize != 0 {
		return nil, fmt.Errorf("%w: output length %d is not a multiple of %d", ErrInference, len(output), SSDRowSize)
	}

	raw := make([]RawDetection, 0, len(output)/SSDRowSize)
	for i := 0; i+SSDRowSize <= len(output); i += SSDRowSize {
		row := output[i : i+SSDRowSize]
		classID := int(row[1])
		confidence := float64(row[2])
		if classID <= 0 || confidence < threshold {
			continue
		}
		raw = append(raw, RawDetection{
			Label:      labels.Name(classID),
			Confidence: confidence,
			X1:         float64(row[3]) * width,
			Y1:         float64(row[4]) * height,
			X2:         float64(row[5]) * width,
			Y2:         float64(row[6]) * height,
		})
	}
	return raw, nil
}
