package services

import "errors"

// Service errors
var (
	// ErrNoChartData is returned when there are too few points to draw
	ErrNoChartData = errors.New("no chart data available")

	// ErrInvalidInput is returned for a request the service cannot act on
	ErrInvalidInput = errors.New("invalid input")
)
