// Package connection implements the Connection Manager component.
//
// The Connection Manager:
//   - Owns a single push WebSocket to the feed endpoint
//   - Sends application pings and samples round-trip latency
//   - Force-closes a socket that stays silent past twice the heartbeat interval
//   - Reconnects after unclean closes with exponential backoff, up to a limit
//   - Dispatches typed inbound messages to handlers in transport order
package connection
