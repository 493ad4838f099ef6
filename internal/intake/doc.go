// Package intake receives raw CGM payloads from companion feeds.
//
// A Feed keeps one websocket connection to a companion app open:
//   - Reconnects with exponential backoff
//   - Forwards every frame as a RawMessage to the router
//
// HTTP intake lives in internal/server.
package intake
