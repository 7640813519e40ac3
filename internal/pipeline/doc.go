// Package pipeline talks to the remote forecast pipeline.
//
// Every action (start, checkimport, checkpredictor, checkforecast,
// checkexport, getresult) is a JSON POST to one configured endpoint that
// answers with {"message": "..."}. The transport makes a single attempt per
// call; retry and polling cadence belong to the progress state machine in
// internal/operations.
package pipeline
