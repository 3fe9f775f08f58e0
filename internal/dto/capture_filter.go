// CaptureFilter describes user-provided filters to narrow the capture list.
package dto

import "time"

type CaptureFilter struct {
	Class      string
	DateAfter  time.Time
	DateBefore time.Time
	Limit      int
	Offset     int
}

// IsZero reports whether no filter field is set.
func (f CaptureFilter) IsZero() bool {
	return f.Class == "" && f.DateAfter.IsZero() && f.DateBefore.IsZero() && f.Limit == 0 && f.Offset == 0
}
