package domain

import (
	"time"
)

// SeriesOrigin records where the current series came from
type SeriesOrigin string

const (
	// SeriesOriginManual marks sample sets, pasted text and uploaded files
	SeriesOriginManual SeriesOrigin = "manual"
	// SeriesOriginDerived marks a series extended with pipeline results
	SeriesOriginDerived SeriesOrigin = "derived"
)

// StatusSnapshot is the complete UI state of the controller at a point in time.
// It is derived from the state machine and the dataset store, never stored.
type StatusSnapshot struct {
	RunID         string       `json:"run_id,omitempty"`
	JobID         string       `json:"job_id,omitempty"`
	State         string       `json:"state"`           // idle|submitting|polling|completing|errored
	Stage         string       `json:"stage,omitempty"` // importing|predicting|forecasting|exporting|complete
	Busy          bool         `json:"busy"`
	Message       string       `json:"message,omitempty"`
	Warning       string       `json:"warning,omitempty"`
	ErrorType     string       `json:"error_type,omitempty"`
	SeriesLength  int          `json:"series_length"`
	AppendedRange int          `json:"appended_range"`
	Origin        SeriesOrigin `json:"origin"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// RunStatus is the lifecycle status of one submission
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// RunRecord is the history entry kept for every submission
type RunRecord struct {
	ID          string     `json:"id"`
	JobID       string     `json:"job_id,omitempty"`
	Status      RunStatus  `json:"status"`
	Stage       string     `json:"stage,omitempty"`
	InputLength int        `json:"input_length"`
	Appended    int        `json:"appended"`
	Polls       int        `json:"polls"`
	Error       string     `json:"error,omitempty"`
	ErrorType   string     `json:"error_type,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ChartSpec is a chart-ready view of the series, shaped after the line chart
// options the page uses.
type ChartSpec struct {
	Labels      []int     `json:"labels"`
	Values      []float64 `json:"values"`
	PointColors []string  `json:"point_colors"`
	BorderColor string    `json:"border_color"`
	YAxis       AxisHint  `json:"y_axis"`
	Revision    int64     `json:"revision"`
}

// AxisHint carries suggested bounds for the rendering widget. It is a hint,
// not a clamp.
type AxisHint struct {
	SuggestedMin float64 `json:"suggested_min"`
	SuggestedMax float64 `json:"suggested_max"`
	StepSize     float64 `json:"step_size"`
}
