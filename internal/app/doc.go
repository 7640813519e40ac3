// Package app wires the forecast page server together and owns its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from FORECAST_* environment variables
//	2. Initialize logging and OpenTelemetry
//	3. Create the pipeline transport, the series store and the job machine
//	4. Attach the chart renderer and the WebSocket status broadcaster
//	5. Build the chi router and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//
// Run returns after SIGINT or SIGTERM once the server has drained. A job
// still in flight at shutdown is abandoned.
package app
