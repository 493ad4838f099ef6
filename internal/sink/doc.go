// Package sink delivers stored glucose records to downstream consumers.
//
// Two sinks are notified per record:
//   - Relay: local broadcast (websocket hub, Redis pub/sub)
//   - Upload: remote service (Nightscout)
//
// Fanout invokes both concurrently. A failure in one sink never affects the
// other or the stored record.
package sink
