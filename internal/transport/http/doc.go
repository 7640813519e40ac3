// Package http implements the local JSON API, the status page and the
// metrics endpoint of the forecast controller.
//
// Handlers stay thin: they parse and validate the request, call the
// forecast service, and render the result with go-chi/render. Every
// failure goes through errors.ErrorHandler and is answered with an
// RFC 7807 problem document:
//
//	{
//	    "type": "/errors/job/in-flight",
//	    "title": "Job In Progress",
//	    "status": 409,
//	    "detail": "A job is already in progress.",
//	    "instance": "/api/forecast/submit"
//	}
//
// State changes are not pushed from here. The WebSocket hub receives them
// from the state machine directly, so a handler only returns the snapshot
// observed right after its own call.
package http
