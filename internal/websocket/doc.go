// Package websocket pushes forecast events to connected pages over
// gorilla/websocket. The Hub fans typed events.Message envelopes out to every
// client; Handler upgrades /ws requests.
package websocket
