package storage

import (
	"sort"
	"strings"
	"time"

	"hazardcam/internal/dto"
	"hazardcam/internal/model"
)

const (
	captureExt = ".jpg"
	tempExt    = ".tmp"
)

var labelReplacer = strings.NewReplacer("/", "-", `\`, "-", "_", "-")

// Labels returns the sorted set of every label present in detections.
func Labels(detections []model.Detection) []string {
	seen := make(map[string]struct{}, len(detections))
	labels := make([]string, 0, len(detections))
	for _, d := range detections {
		label := labelReplacer.Replace(d.Label)
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// CaptureFilename builds "{YYYYMMDD}_{HHMMSS}_{label1}_{label2}...jpg".
func CaptureFilename(at time.Time, labels []string) string {
	return at.Format(dto.CaptureTimestampLayout) + "_" + strings.Join(labels, "_") + captureExt
}

// ParseCaptureFilename reverses CaptureFilename. ok is false for names that do
// not follow the capture naming scheme.
func ParseCaptureFilename(name string) (at time.Time, labels []string, ok bool) {
	stem, found := strings.CutSuffix(name, captureExt)
	if !found || strings.HasPrefix(name, ".") {
		return time.Time{}, nil, false
	}

	parts := strings.Split(stem, "_")
	if len(parts) < 3 || len(parts[0]) != 8 || len(parts[1]) != 6 {
		return time.Time{}, nil, false
	}

	at, err := time.ParseInLocation(dto.CaptureTimestampLayout, parts[0]+"_"+parts[1], time.Local)
	if err != nil {
		return time.Time{}, nil, false
	}

	labels = parts[2:]
	for _, l := range labels {
		if l == "" {
			return time.Time{}, nil, false
		}
	}
	return at, labels, true
}

// validName reports whether name can refer to a file directly inside the
// capture directory.
func validName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
