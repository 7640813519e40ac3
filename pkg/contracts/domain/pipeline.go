package domain

// Remote pipeline actions. The poll actions double as stage names on the wire.
const (
	ActionStart          = "start"
	ActionCheckImport    = "checkimport"
	ActionCheckPredictor = "checkpredictor"
	ActionCheckForecast  = "checkforecast"
	ActionCheckExport    = "checkexport"
	ActionGetResult      = "getresult"
)

// Poll response sentinels
const (
	MessageActive       = "ACTIVE"
	MessageFailedSuffix = "FAILED"
)

// PipelineRequest is the JSON body POSTed to the remote pipeline endpoint.
// Data carries the JSON-encoded series for start; ID carries the job identifier
// for poll and getresult.
type PipelineRequest struct {
	Action string `json:"action" validate:"required"`
	Data   string `json:"data,omitempty"`
	ID     string `json:"id,omitempty"`
}

// PipelineResponse is the JSON body returned by the remote pipeline for both
// success and error replies.
type PipelineResponse struct {
	Message string `json:"message"`
}
