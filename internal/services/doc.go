// Package services implements the application layer between the HTTP
// handlers and the forecast state machine.
//
// ForecastService is the façade the page talks to: it submits and cancels
// jobs, replaces the series from a sample set, pasted text or an uploaded
// file, and exposes the rendered chart. HealthService reports liveness and
// readiness of the process.
//
// # Error Handling
//
// Services return the typed errors of the layers below them
// (*operations.OperationError, *dataset.ValidationError) unchanged, so
// handlers can map them to HTTP status codes with errors.As.
package services
