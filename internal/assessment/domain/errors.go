package assessment

import "errors"

var (
	// ErrEmptyEquipmentID is returned when an assessment has no equipment id.
	ErrEmptyEquipmentID = errors.New("assessment: empty equipment id")
	// ErrInvalidTimeRange is returned when the window is empty or inverted.
	ErrInvalidTimeRange = errors.New("assessment: invalid time range")
	// ErrNoData is returned when no readings exist in the requested window.
	ErrNoData = errors.New("assessment: no data in range")
	// ErrReportNotFound is returned when a report cannot be found.
	ErrReportNotFound = errors.New("assessment: report not found")
)
