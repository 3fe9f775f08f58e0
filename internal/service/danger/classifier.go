// Package danger decides which detected classes are security relevant.
package danger

import (
	"sort"

	"hazardcam/internal/model"
)

// Classifier maps class labels to a dangerous flag. Matching is exact and
// case-sensitive. A Classifier is immutable and safe for concurrent use.
type Classifier struct {
	labels map[string]struct{}
}

// New builds a classifier from the configured dangerous labels.
func New(labels []string) *Classifier {
	set := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l != "" {
			set[l] = struct{}{}
		}
	}
	return &Classifier{labels: set}
}

// Classify reports whether label is in the dangerous set.
func (c *Classifier) Classify(label string) bool {
	_, ok := c.labels[label]
	return ok
}

// Apply returns a copy of detections with Dangerous set, and whether any of them is dangerous.
func (c *Classifier) Apply(detections []model.Detection) ([]model.Detection, bool) {
	out := make([]model.Detection, len(detections))
	found := false
	for i, d := range detections {
		d.Dangerous = c.Classify(d.Label)
		found = found || d.Dangerous
		out[i] = d
	}
	return out, found
}

// Labels returns the configured labels, sorted.
func (c *Classifier) Labels() []string {
	out := make([]string, 0, len(c.labels))
	for l := range c.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
