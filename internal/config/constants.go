package config

import "time"

// Application constants
const (
	AppName = "Forecast Page"

	DefaultPort             = 8080
	DefaultPipelineEndpoint = "http://localhost:3000/api/forecast"
	DefaultStartAction      = "start"

	// DefaultPollInterval is the fixed wait between polls of a pending stage
	DefaultPollInterval   = 300000 * time.Millisecond
	DefaultRequestTimeout = 30 * time.Second
	DefaultHistorySize    = 50

	DefaultChartWidth  = 960
	DefaultChartHeight = 480
)
