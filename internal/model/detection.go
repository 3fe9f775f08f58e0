package model

// Box is an axis-aligned bounding box in frame pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Width returns the horizontal extent of the box.
func (b Box) Width() int { return b.X2 - b.X1 }

// Height returns the vertical extent of the box.
func (b Box) Height() int { return b.Y2 - b.Y1 }

// Valid reports whether the box has a positive area.
func (b Box) Valid() bool { return b.X1 < b.X2 && b.Y1 < b.Y2 }

// Detection is one object instance found in a frame.
// Dangerous is filled in by the danger classifier, never by a detector.
type Detection struct {
	Label      string
	Confidence float64
	Box        Box
	Dangerous  bool
}
