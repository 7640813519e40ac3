// Package operations drives one forecast job at a time through the remote
// pipeline.
//
// A job is submitted with the start action, then polled through four stages
// (import, predictor, forecast, export). Each poll either advances the stage
// on "ACTIVE", stops the job on a "...FAILED" reply, or re-polls the same
// stage after the configured interval. Once the export stage is active the
// result is fetched, appended to the dataset and the listeners are signalled.
//
// Core Components:
//
// Machine: the progress state machine. All state lives behind one mutex;
// network calls run outside it, in the goroutine the Scheduler hands out.
// Every scheduled tick carries a generation number so that ticks made stale
// by a cancellation or a terminal transition do nothing.
//
// Stage: the closed enumeration of pipeline stages with its total Next
// function, the wire action polled in each stage and the user message.
//
// RunHistory: a bounded in-memory record of past submissions.
//
// StatusBroadcaster: turns machine events into WebSocket messages.
//
// Example usage:
//
//	store := dataset.NewStore(dataset.DefaultSeries())
//	machine := operations.NewMachine(transport, store, operations.NewConfig(),
//		operations.WithListener(renderer),
//	)
//	if err := machine.Submit(ctx); err != nil {
//		return err
//	}
package operations
