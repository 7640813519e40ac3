package operations

import (
	"fmt"

	"github.com/tanaka-takurou/serverless-forecast-page-go/pkg/contracts/domain"
)

// Stage is a step of the remote pipeline as seen by the poller
type Stage int

const (
	StageImporting Stage = iota
	StagePredicting
	StageForecasting
	StageExporting
	StageComplete
)

// Stages lists the polled stages in order
var Stages = []Stage{StageImporting, StagePredicting, StageForecasting, StageExporting}

// Next returns the stage that follows s. StageComplete is a fixed point.
func (s Stage) Next() Stage {
	switch s {
	case StageImporting:
		return StagePredicting
	case StagePredicting:
		return StageForecasting
	case StageForecasting:
		return StageExporting
	default:
		return StageComplete
	}
}

// Action returns the wire action used to poll s. StageComplete has none.
func (s Stage) Action() string {
	switch s {
	case StageImporting:
		return domain.ActionCheckImport
	case StagePredicting:
		return domain.ActionCheckPredictor
	case StageForecasting:
		return domain.ActionCheckForecast
	case StageExporting:
		return domain.ActionCheckExport
	}
	return ""
}

// Message returns the text shown to the user while s is running
func (s Stage) Message() string {
	switch s {
	case StageImporting:
		return "Data-Import process. Please wait."
	case StagePredicting:
		return "Predictor process. Please wait."
	case StageForecasting:
		return "Forecast process. Please wait."
	case StageExporting:
		return "Data-Export process. Please wait."
	}
	return MessageFetchingResult
}

func (s Stage) String() string {
	switch s {
	case StageImporting:
		return "importing"
	case StagePredicting:
		return "predicting"
	case StageForecasting:
		return "forecasting"
	case StageExporting:
		return "exporting"
	case StageComplete:
		return "complete"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageForAction maps a poll action back to its stage
func StageForAction(action string) (Stage, bool) {
	for _, s := range Stages {
		if s.Action() == action {
			return s, true
		}
	}
	return StageComplete, false
}
